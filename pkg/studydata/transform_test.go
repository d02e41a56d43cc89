package studydata

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// constantSeries builds a single-column frame of n samples at 1 Hz.
func constantSeries(t *testing.T, n int, value float64) *series.Frame {
	t.Helper()
	time := make([]float64, n)
	values := make([]float64, n)
	for i := range time {
		time[i] = float64(i)
		values[i] = value
	}
	frame, err := series.NewFrame(time, "Heart_Rate", values)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

// subjectPhaseDict builds an un-merged subject-outer dictionary from
// per-subject phase series lengths.
func subjectPhaseDict(t *testing.T, lengths map[string]map[string]int, value float64) *Dict {
	t.Helper()
	dict := New(LevelSubject, LevelPhase)
	for _, subject := range sortedKeys(lengths) {
		for _, phase := range sortedKeys(lengths[subject]) {
			err := dict.PutFrame([]string{subject, phase}, constantSeries(t, lengths[subject][phase], value))
			if err != nil {
				t.Fatal(err)
			}
		}
	}
	return dict
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func TestSelectPhases(t *testing.T) {
	Convey("Given a subject-outer dictionary with three phases", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Before": 100, "Stress": 100, "After": 100},
			"Vp02": {"Before": 100, "Stress": 100, "After": 100},
		}, 80)

		Convey("Selecting phases preserves the order of the given names", func() {
			selected, err := SelectPhases(dict, []string{"Stress", "Before"})
			So(err, ShouldBeNil)
			subject, _ := selected.Root().Child("Vp01")
			So(subject.Keys(), ShouldResemble, []string{"Stress", "Before"})
		})

		Convey("Selecting a subset of a selection is idempotent", func() {
			selected, err := SelectPhases(dict, []string{"Before", "Stress"})
			So(err, ShouldBeNil)
			again, err := SelectPhases(selected, []string{"Before", "Stress"})
			So(err, ShouldBeNil)
			subject, _ := again.Root().Child("Vp02")
			So(subject.Keys(), ShouldResemble, []string{"Before", "Stress"})
		})

		Convey("Selecting an unknown phase is a hard error", func() {
			_, err := SelectPhases(dict, []string{"Before", "Recovery"})
			So(err, ShouldNotBeNil)
			So(validation.IsValidationError(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "Recovery")
		})
	})
}

func TestSplitIntoSubphases(t *testing.T) {
	Convey("Given a 400 second series split into BL:60, AT:240, FB:120", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{"Vp01": {"MIST1": 400}}, 75)
		subphases := []Subphase{{"BL", 60}, {"AT", 240}, {"FB", 120}}

		split, err := SplitIntoSubphases(dict, subphases)
		So(err, ShouldBeNil)

		Convey("The subphase level is appended as innermost level", func() {
			So(split.Levels(), ShouldResemble, []string{LevelSubject, LevelPhase, LevelSubphase})
		})

		Convey("The last subphase is truncated to the remaining samples", func() {
			bl, err := split.Frame("Vp01", "MIST1", "BL")
			So(err, ShouldBeNil)
			So(bl.Len(), ShouldEqual, 60)

			at, err := split.Frame("Vp01", "MIST1", "AT")
			So(err, ShouldBeNil)
			So(at.Len(), ShouldEqual, 240)

			fb, err := split.Frame("Vp01", "MIST1", "FB")
			So(err, ShouldBeNil)
			So(fb.Len(), ShouldEqual, 100)
		})

		Convey("Subphase windows restart their time index at zero", func() {
			at, err := split.Frame("Vp01", "MIST1", "AT")
			So(err, ShouldBeNil)
			So(at.Time()[0], ShouldEqual, 0)
		})

		Convey("A non-positive duration is rejected", func() {
			_, err := SplitIntoSubphases(dict, []Subphase{{"BL", 0}})
			So(validation.IsConfigurationError(err), ShouldBeTrue)
		})
	})
}

func TestCutToShortestAndMerge(t *testing.T) {
	Convey("Given two subjects with series lengths 500 and 480 for phase Stress", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Stress": 500},
			"Vp02": {"Stress": 480},
		}, 90)
		rearranged, err := Rearrange(dict)
		So(err, ShouldBeNil)
		So(rearranged.Levels(), ShouldResemble, []string{LevelPhase, LevelSubject})

		Convey("Cutting truncates every subject to the phase minimum", func() {
			cut, err := CutToShortest(rearranged)
			So(err, ShouldBeNil)
			for _, subject := range []string{"Vp01", "Vp02"} {
				frame, err := cut.Frame("Stress", subject)
				So(err, ShouldBeNil)
				So(frame.Len(), ShouldEqual, 480)
			}
		})

		Convey("Merging yields one frame per phase with one column per subject", func() {
			cut, err := CutToShortest(rearranged)
			So(err, ShouldBeNil)
			merged, err := MergeSubjects(cut)
			So(err, ShouldBeNil)
			So(merged.Merged(), ShouldBeTrue)
			So(merged.Levels(), ShouldResemble, []string{LevelPhase})

			frame, err := merged.Frame("Stress")
			So(err, ShouldBeNil)
			So(frame.Len(), ShouldEqual, 480)
			So(frame.Columns(), ShouldResemble, []string{"Vp01", "Vp02"})
		})

		Convey("Merging without prior cutting truncates internally", func() {
			merged, err := MergeSubjects(rearranged)
			So(err, ShouldBeNil)
			frame, err := merged.Frame("Stress")
			So(err, ShouldBeNil)
			So(frame.Len(), ShouldEqual, 480)
		})
	})
}

func TestNormalizeToPhase(t *testing.T) {
	Convey("Given a subject with a baseline phase of mean 80", t, func() {
		dict := New(LevelSubject, LevelPhase)
		So(dict.PutFrame([]string{"Vp01", "Baseline"}, constantSeries(t, 60, 80)), ShouldBeNil)
		So(dict.PutFrame([]string{"Vp01", "Stress"}, constantSeries(t, 60, 100)), ShouldBeNil)

		Convey("Normalization expresses values as percentage increase", func() {
			normalized, err := NormalizeToPhase(dict, Reference{Phase: "Baseline"})
			So(err, ShouldBeNil)

			stress, err := normalized.Frame("Vp01", "Stress")
			So(err, ShouldBeNil)
			values, err := stress.Column("Heart_Rate")
			So(err, ShouldBeNil)
			So(values[0], ShouldAlmostEqual, 25.0)

			baseline, err := normalized.Frame("Vp01", "Baseline")
			So(err, ShouldBeNil)
			values, err = baseline.Column("Heart_Rate")
			So(err, ShouldBeNil)
			So(values[0], ShouldAlmostEqual, 0.0)
		})

		Convey("A missing reference phase names the subject in the error", func() {
			_, err := NormalizeToPhase(dict, Reference{Phase: "Recovery"})
			So(validation.IsValidationError(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "Vp01")
			So(err.Error(), ShouldContainSubstring, "Recovery")
		})
	})
}

func TestMeanPerSubject(t *testing.T) {
	Convey("Given two subjects with two phases each", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Before": 100, "Stress": 100},
			"Vp02": {"Before": 100, "Stress": 100},
		}, 85)

		Convey("The reduction yields exactly one row per subject and phase", func() {
			table, err := MeanPerSubject(dict, []string{LevelSubject, LevelPhase}, "")
			So(err, ShouldBeNil)
			So(table.NumRows(), ShouldEqual, 4)
			So(table.IndexNames(), ShouldResemble, []string{LevelSubject, LevelPhase})
			So(table.Columns(), ShouldResemble, []string{"Heart_Rate"})

			seen := map[string]bool{}
			for i := 0; i < table.NumRows(); i++ {
				index, values := table.Row(i)
				key := index[0] + "/" + index[1]
				So(seen[key], ShouldBeFalse)
				seen[key] = true
				So(values[0], ShouldAlmostEqual, 85)
			}
		})

		Convey("A level-name count mismatching the depth is a configuration error", func() {
			_, err := MeanPerSubject(dict, []string{LevelSubject}, "")
			So(validation.IsConfigurationError(err), ShouldBeTrue)
		})
	})
}

func TestSplitByCondition(t *testing.T) {
	conditions := NewConditionMap()
	conditions.Add("Vp01", "Control")
	conditions.Add("Vp02", "Intervention")

	Convey("Given an un-merged subject-outer dictionary", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Stress": 50},
			"Vp02": {"Stress": 50},
		}, 70)

		Convey("The condition becomes the added outermost level", func() {
			split, err := SplitByCondition(dict, conditions)
			So(err, ShouldBeNil)
			So(split.Levels(), ShouldResemble, []string{LevelCondition, LevelSubject, LevelPhase})

			control, ok := split.Root().Child("Control")
			So(ok, ShouldBeTrue)
			So(control.Keys(), ShouldResemble, []string{"Vp01"})
		})

		Convey("A subject without a condition entry is rejected", func() {
			missing := NewConditionMap()
			missing.Add("Vp01", "Control")
			_, err := SplitByCondition(dict, missing)
			So(validation.IsValidationError(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "Vp02")
		})

		Convey("A condition with no matching subject yields no group", func() {
			extra := NewConditionMap()
			extra.Add("Vp01", "Control")
			extra.Add("Vp02", "Intervention")
			extra.Add("Vp99", "Placebo")

			split, err := SplitByCondition(dict, extra)
			So(err, ShouldBeNil)
			So(split.Keys(), ShouldResemble, []string{"Control", "Intervention"})

			depth, err := split.Depth()
			So(err, ShouldBeNil)
			So(depth, ShouldEqual, 3)
		})
	})

	Convey("Given an un-merged phase-outer dictionary", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Before": 30, "Stress": 50},
			"Vp02": {"Before": 30, "Stress": 50},
		}, 70)
		rearranged, err := Rearrange(dict)
		So(err, ShouldBeNil)

		Convey("Subject children are grouped by condition within each phase", func() {
			split, err := SplitByCondition(rearranged, conditions)
			So(err, ShouldBeNil)
			So(split.Levels(), ShouldResemble, []string{LevelCondition, LevelPhase, LevelSubject})
			So(split.Keys(), ShouldResemble, []string{"Control", "Intervention"})

			control, ok := split.Root().Child("Control")
			So(ok, ShouldBeTrue)
			So(control.Keys(), ShouldResemble, []string{"Before", "Stress"})

			stress, ok := control.Child("Stress")
			So(ok, ShouldBeTrue)
			So(stress.Keys(), ShouldResemble, []string{"Vp01"})
		})

		Convey("A subject without a condition entry is rejected", func() {
			missing := NewConditionMap()
			missing.Add("Vp01", "Control")
			_, err := SplitByCondition(rearranged, missing)
			So(validation.IsValidationError(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "Vp02")
		})
	})

	Convey("Given a merged dictionary", t, func() {
		dict := subjectPhaseDict(t, map[string]map[string]int{
			"Vp01": {"Stress": 50},
			"Vp02": {"Stress": 50},
		}, 70)
		rearranged, err := Rearrange(dict)
		So(err, ShouldBeNil)
		merged, err := MergeSubjects(rearranged)
		So(err, ShouldBeNil)

		Convey("Each condition group keeps only its subjects' columns", func() {
			split, err := SplitByCondition(merged, conditions)
			So(err, ShouldBeNil)
			So(split.Merged(), ShouldBeTrue)

			frame, err := split.Frame("Control", "Stress")
			So(err, ShouldBeNil)
			So(frame.Columns(), ShouldResemble, []string{"Vp01"})
		})
	})
}

func TestResampleSec(t *testing.T) {
	Convey("Given an irregularly sampled series", t, func() {
		frame, err := series.NewFrame(
			[]float64{0, 0.4, 1.2, 2.0, 3.1, 4.0},
			"Heart_Rate",
			[]float64{60, 62, 64, 66, 68, 70},
		)
		So(err, ShouldBeNil)
		dict := New(LevelSubject, LevelPhase)
		So(dict.PutFrame([]string{"Vp01", "Stress"}, frame), ShouldBeNil)

		Convey("Resampling yields exactly one sample per second", func() {
			resampled, err := ResampleSec(dict)
			So(err, ShouldBeNil)
			out, err := resampled.Frame("Vp01", "Stress")
			So(err, ShouldBeNil)
			So(out.Len(), ShouldEqual, 5)
			So(out.Time(), ShouldResemble, []float64{0, 1, 2, 3, 4})
		})
	})
}
