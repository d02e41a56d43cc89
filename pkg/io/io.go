// Package io loads study data from flat CSV files into the shapes the
// aggregation pipeline operates on. Loaders validate the documented shape
// contracts before data enters the pipeline; sensor-format parsing is out
// of scope.
package io

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/saliva"
	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// LoadSubjectDataDict loads a subject-outer study data dictionary from a
// directory tree of the form dataDir/<subject>/<phase>.csv, where each CSV
// file holds a header and rows of (time in seconds, value). When phaseNames
// is non-nil only the named phases are loaded, in the given order;
// otherwise phases are loaded in lexical file order.
func LoadSubjectDataDict(dataDir, valueColumn string, phaseNames []string) (*studydata.Dict, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading data directory %q failed", dataDir)
	}

	dict := studydata.New(studydata.LevelSubject, studydata.LevelPhase)
	subjects := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subject := entry.Name()
		phases, err := loadSubjectPhases(filepath.Join(dataDir, subject), valueColumn, phaseNames)
		if err != nil {
			return nil, errors.Wrapf(err, "loading subject %q failed", subject)
		}
		for _, phase := range phases.order {
			if err := dict.PutFrame([]string{subject, phase}, phases.frames[phase]); err != nil {
				return nil, err
			}
		}
		subjects++
	}
	if subjects == 0 {
		return nil, validation.NewValidationError("data directory %q holds no subject directories", dataDir)
	}
	logrus.Debugf("loaded %d subjects from %s", subjects, dataDir)
	return dict, nil
}

type phaseSet struct {
	order  []string
	frames map[string]*series.Frame
}

func loadSubjectPhases(subjectDir, valueColumn string, phaseNames []string) (*phaseSet, error) {
	entries, err := os.ReadDir(subjectDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q failed", subjectDir)
	}

	available := map[string]string{}
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		phase := strings.TrimSuffix(entry.Name(), ".csv")
		available[phase] = filepath.Join(subjectDir, entry.Name())
		names = append(names, phase)
	}
	sort.Strings(names)

	if phaseNames != nil {
		names = phaseNames
	}
	out := &phaseSet{frames: map[string]*series.Frame{}}
	for _, phase := range names {
		path, ok := available[phase]
		if !ok {
			return nil, validation.NewValidationError("phase %q not found in %q", phase, subjectDir)
		}
		frame, err := loadSeriesCSV(path, valueColumn)
		if err != nil {
			return nil, errors.Wrapf(err, "loading phase %q failed", phase)
		}
		out.order = append(out.order, phase)
		out.frames[phase] = frame
	}
	return out, nil
}

// loadSeriesCSV reads a two-column CSV (time, value) into a single-column
// frame. The header row is required; the value column takes the given name.
func loadSeriesCSV(path, valueColumn string) (*series.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q failed", path)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q failed", path)
	}
	if len(records) < 2 {
		return nil, validation.NewValidationError("%q holds no data rows", path)
	}

	time := make([]float64, 0, len(records)-1)
	values := make([]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, validation.NewValidationError("%q row %d has %d fields, expected 2", path, i+2, len(record))
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%q row %d: bad time value %q", path, i+2, record[0])
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%q row %d: bad value %q", path, i+2, record[1])
		}
		time = append(time, t)
		values = append(values, v)
	}
	return series.NewFrame(time, valueColumn, values)
}

// LoadSubjectConditionList loads a subject condition map from a CSV file
// with a header and rows of (subject, condition).
func LoadSubjectConditionList(path string) (*studydata.ConditionMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening condition list %q failed", path)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing condition list %q failed", path)
	}
	if len(records) < 2 {
		return nil, validation.NewValidationError("condition list %q holds no data rows", path)
	}

	conditions := studydata.NewConditionMap()
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, validation.NewValidationError(
				"condition list %q row %d has %d fields, expected 2", path, i+2, len(record))
		}
		conditions.Add(record[0], record[1])
	}
	return conditions, nil
}

// LoadSalivaCSV loads raw saliva data of one type from a CSV file with a
// header and rows of (subject, value) or (subject, value, time in minutes).
// Sample order per subject follows row order.
func LoadSalivaCSV(path, salivaType string) (*saliva.RawData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening saliva data %q failed", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing saliva data %q failed", path)
	}
	if len(records) < 2 {
		return nil, validation.NewValidationError("saliva data %q holds no data rows", path)
	}

	data := saliva.NewRawData(salivaType)
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, validation.NewValidationError(
				"saliva data %q row %d has %d fields, expected at least 2", path, i+2, len(record))
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "saliva data %q row %d: bad value %q", path, i+2, record[1])
		}
		if len(record) >= 3 {
			t, err := strconv.Atoi(record[2])
			if err != nil {
				return nil, errors.Wrapf(err, "saliva data %q row %d: bad time %q", path, i+2, record[2])
			}
			data.AppendWithTime(record[0], value, t)
		} else {
			data.Append(record[0], value)
		}
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}
