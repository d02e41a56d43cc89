package conf

import (
	"fmt"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
)

const stringListDelimiter = ","

// StringListVar is a custom kingpin parser which resolves flag parameters
// consisting of a string slice delimited by stringListDelimiter.
// For instance for a flag defined like this:
// `flag = StringList(kingpin.Flag("flag_name", "help"))`
//
// When the user specifies `--flag_name=A,B,C --flag_name=D,E,F` the flag
// variable becomes a slice with A,B,C,D,E,F items.
//
// Tested in SliceFlag (conf_test.go)
type StringListVar []string

// Set parses the input string and appends it as a slice. Implements
// kingpin.Value.
func (s *StringListVar) Set(value string) error {
	*s = append((*s), strings.Split(value, stringListDelimiter)...)
	return nil
}

// String returns string value from StringListVar. Implements kingpin.Value.
func (s *StringListVar) String() string {
	return fmt.Sprintf("%v", *s)
}

// IsCumulative implements optional interface (kingpin.repeatableFlag) for
// flags that can be repeated.
func (s *StringListVar) IsCumulative() bool {
	return true
}

// StringList is a helper for defining kingpin flags.
func StringList(s kingpin.Settings) (target *[]string) {
	target = new([]string)
	s.SetValue((*StringListVar)(target))
	return
}
