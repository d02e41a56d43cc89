// Package conf is a helper for BioPsyKit configuration for both the command
// line interface and environment variables. It gives the ability to register
// arguments which will be fetched from CLI input OR an environment variable.
//
// By default it registers the following option:
// <BIOPSYKIT_LOG> --log <Log level: debug, info, warn, error, fatal, panic> Default: error
//
// When ParseEnv is executed, only the environment arguments are parsed and
// ready to be used in the flag variables; it can be run multiple times.
// When ParseFlags is executed, arguments from both CLI and Env are parsed;
// the --help option prints the full configuration overview.
package conf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// envPrefix is prepended to uppercased flag names to form environment
// variable names.
const envPrefix = "BIOPSYKIT"

var (
	app = kingpin.New("biopsykit", "No help available")

	// Default flags and values.
	logLevelFlag = NewStringFlag(
		"log",
		"Log level: debug, info, warn, error, fatal, panic",
		"error",
	)
	isEnvParsed = false
)

// SetHelp sets the help message for the CLI.
// We need to expose this function so other packages can set the app help.
func SetHelp(help string) {
	app.Help = help
}

// SetAppName sets application name for CLI output.
// We need to expose this function so other packages can set the app name.
func SetAppName(name string) {
	app.Name = name
}

// AppName returns specified app name.
func AppName() string {
	return app.Name
}

// LogLevel returns configured log level from input option or env variable.
// If it cannot parse the log level, it returns the default value.
func LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(logLevelFlag.Value())
	if err == nil {
		return level
	}

	level, err = logrus.ParseLevel(logLevelFlag.defaultValue)
	if err == nil {
		return level
	}

	// Programmer error.
	panic(errors.Wrap(err, "parsing log level failed"))
}

// ParseFlags parses both the command line flags of the process and
// environment variables.
func ParseFlags() error {
	_, err := app.Parse(os.Args[1:])
	if err == nil {
		isEnvParsed = true
		return nil
	}

	return errors.Wrapf(err, "could not parse command line flags")
}

// ParseEnv parses the environment for arguments.
func ParseEnv() error {
	_, err := app.Parse([]string{})
	if err == nil {
		isEnvParsed = true
		return nil
	}

	return errors.Wrapf(err, "could not parse environment flags")
}

// GetFlags returns the registered flags as a map with current values.
func GetFlags() map[string]string {
	flags := map[string]string{}
	for _, name := range definedFlagNames {
		flags[name] = definedFlags[name].stringValue()
	}
	return flags
}

// DumpConfig dumps environment based configuration with current values of
// flags. Includes "allexport" directives for bash.
func DumpConfig() string {
	buffer := &bytes.Buffer{}

	buffer.WriteString("# Exported values.\n")
	buffer.WriteString("set -o allexport\n")

	for _, name := range definedFlagNames {
		flag := definedFlags[name]
		fmt.Fprintf(buffer, "\n# %s\n", flag.help())
		fmt.Fprintf(buffer, "%s_%s=%v\n", envPrefix, strings.ToUpper(name), flag.stringValue())
	}

	buffer.WriteString("set +o allexport")
	return buffer.String()
}
