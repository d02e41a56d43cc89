package io

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSubjectDataDict(t *testing.T) {
	Convey("Given a directory tree of per-subject phase CSV files", t, func() {
		dir := t.TempDir()
		for _, subject := range []string{"Vp01", "Vp02"} {
			writeFile(t, filepath.Join(dir, subject, "Before.csv"),
				"time,heart_rate\n0,70\n1,71\n2,72\n")
			writeFile(t, filepath.Join(dir, subject, "Stress.csv"),
				"time,heart_rate\n0,88\n1,90\n")
		}

		Convey("All phases load in lexical order by default", func() {
			dict, err := LoadSubjectDataDict(dir, "Heart_Rate", nil)
			So(err, ShouldBeNil)
			So(dict.Levels(), ShouldResemble,
				[]string{studydata.LevelSubject, studydata.LevelPhase})
			So(dict.Keys(), ShouldResemble, []string{"Vp01", "Vp02"})

			subject, ok := dict.Root().Child("Vp01")
			So(ok, ShouldBeTrue)
			So(subject.Keys(), ShouldResemble, []string{"Before", "Stress"})

			frame, err := dict.Frame("Vp01", "Before")
			So(err, ShouldBeNil)
			So(frame.Len(), ShouldEqual, 3)
			So(frame.Columns(), ShouldResemble, []string{"Heart_Rate"})
		})

		Convey("Explicit phase names control selection and order", func() {
			dict, err := LoadSubjectDataDict(dir, "Heart_Rate", []string{"Stress", "Before"})
			So(err, ShouldBeNil)
			subject, _ := dict.Root().Child("Vp01")
			So(subject.Keys(), ShouldResemble, []string{"Stress", "Before"})
		})

		Convey("A missing named phase is rejected", func() {
			_, err := LoadSubjectDataDict(dir, "Heart_Rate", []string{"Recovery"})
			So(validation.IsValidationError(err), ShouldBeTrue)
		})

		Convey("An empty directory is rejected", func() {
			_, err := LoadSubjectDataDict(t.TempDir(), "Heart_Rate", nil)
			So(validation.IsValidationError(err), ShouldBeTrue)
		})

		Convey("A malformed value is reported with its row", func() {
			writeFile(t, filepath.Join(dir, "Vp03", "Before.csv"),
				"time,heart_rate\n0,not-a-number\n")
			_, err := LoadSubjectDataDict(dir, "Heart_Rate", nil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Vp03")
		})
	})
}

func TestLoadSubjectConditionList(t *testing.T) {
	Convey("Given a condition list CSV", t, func() {
		path := filepath.Join(t.TempDir(), "conditions.csv")
		writeFile(t, path, "subject,condition\nVp01,Control\nVp02,Intervention\n")

		Convey("Subjects map to their conditions in row order", func() {
			conditions, err := LoadSubjectConditionList(path)
			So(err, ShouldBeNil)
			So(conditions.Subjects(), ShouldResemble, []string{"Vp01", "Vp02"})
			condition, ok := conditions.Condition("Vp02")
			So(ok, ShouldBeTrue)
			So(condition, ShouldEqual, "Intervention")
		})

		Convey("A header-only file is rejected", func() {
			empty := filepath.Join(t.TempDir(), "empty.csv")
			writeFile(t, empty, "subject,condition\n")
			_, err := LoadSubjectConditionList(empty)
			So(validation.IsValidationError(err), ShouldBeTrue)
		})
	})
}

func TestLoadSalivaCSV(t *testing.T) {
	Convey("Given a saliva CSV with a time column", t, func() {
		path := filepath.Join(t.TempDir(), "cortisol.csv")
		writeFile(t, path,
			"subject,cortisol,time\nVp01,5.2,-1\nVp01,6.1,0\nVp02,4.8,-1\nVp02,5.5,0\n")

		Convey("Values and times load per subject in row order", func() {
			data, err := LoadSalivaCSV(path, "cortisol")
			So(err, ShouldBeNil)
			So(data.Type(), ShouldEqual, "cortisol")
			So(data.Subjects(), ShouldResemble, []string{"Vp01", "Vp02"})
			So(data.Values("Vp01"), ShouldResemble, []float64{5.2, 6.1})
			So(data.HasTimes(), ShouldBeTrue)
			So(data.Times("Vp02"), ShouldResemble, []int{-1, 0})
		})

		Convey("Inconsistent sample counts across subjects are rejected", func() {
			uneven := filepath.Join(t.TempDir(), "uneven.csv")
			writeFile(t, uneven, "subject,cortisol\nVp01,5.2\nVp01,6.1\nVp02,4.8\n")
			_, err := LoadSalivaCSV(uneven, "cortisol")
			So(validation.IsValidationError(err), ShouldBeTrue)
		})
	})
}
