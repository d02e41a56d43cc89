package validation

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorClasses(t *testing.T) {
	Convey("While using the error taxonomy", t, func() {
		Convey("A configuration error is recognized through wrapping", func() {
			err := NewConfigurationError("ragged structure at %q", "MIST")
			So(IsConfigurationError(err), ShouldBeTrue)
			So(IsValidationError(err), ShouldBeFalse)
			So(err.Error(), ShouldContainSubstring, "MIST")

			wrapped := errors.Wrap(err, "pipeline step failed")
			So(IsConfigurationError(wrapped), ShouldBeTrue)
		})

		Convey("A validation error is recognized through wrapping", func() {
			err := NewValidationError("subject %q has no condition entry", "Vp01")
			So(IsValidationError(err), ShouldBeTrue)
			So(IsConfigurationError(err), ShouldBeFalse)

			wrapped := errors.Wrapf(err, "adding conditions failed")
			So(IsValidationError(wrapped), ShouldBeTrue)
		})

		Convey("Foreign errors belong to neither class", func() {
			err := errors.New("some other failure")
			So(IsConfigurationError(err), ShouldBeFalse)
			So(IsValidationError(err), ShouldBeFalse)
		})
	})
}
