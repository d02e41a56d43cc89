package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/studydata"
)

// serializedProtocol is the JSON shape of a persisted protocol. Only the
// basic protocol information is serialized, never the accumulated data
// caches.
type serializedProtocol struct {
	Name      string     `json:"name"`
	Structure *Structure `json:"structure"`
	TestTimes [2]int     `json:"test_times"`
}

// ToFile serializes the protocol's name, structure and test times to a JSON
// file. The file path must end in .json.
func (p *Protocol) ToFile(filePath string) error {
	if filepath.Ext(filePath) != ".json" {
		return errors.Errorf("protocol file %q must have a .json extension", filePath)
	}
	encoded, err := json.Marshal(serializedProtocol{
		Name:      p.name,
		Structure: p.structure,
		TestTimes: p.testTimes,
	})
	if err != nil {
		return errors.Wrap(err, "serializing protocol failed")
	}
	if err := os.WriteFile(filePath, encoded, 0644); err != nil {
		return errors.Wrapf(err, "writing protocol file %q failed", filePath)
	}
	return nil
}

// FromFile loads a protocol serialized with ToFile.
func FromFile(filePath string) (*Protocol, error) {
	if filepath.Ext(filePath) != ".json" {
		return nil, errors.Errorf("protocol file %q must have a .json extension", filePath)
	}
	encoded, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading protocol file %q failed", filePath)
	}
	var serialized serializedProtocol
	if err := json.Unmarshal(encoded, &serialized); err != nil {
		return nil, errors.Wrapf(err, "parsing protocol file %q failed", filePath)
	}
	return New(serialized.Name, serialized.Structure, serialized.TestTimes)
}

// ExportHRResults writes every cached heart rate result table to one CSV
// file per identifier, named {prefix}_{result_id}.csv. An empty prefix
// defaults to the lowercased protocol name with spaces replaced by
// underscores.
func (p *Protocol) ExportHRResults(basePath, prefix string) error {
	tables := map[string]*studydata.Table{}
	for _, id := range p.HRResultIDs() {
		result := p.hrResults[id]
		if result.Table == nil {
			return errors.Errorf("heart rate result %q holds no flat table and cannot be exported", id)
		}
		tables[id] = result.Table
	}
	return p.exportResults(basePath, prefix, tables)
}

// ExportHRVResults writes every cached heart rate variability result table
// to one CSV file per identifier, named {prefix}_{result_id}.csv.
func (p *Protocol) ExportHRVResults(basePath, prefix string) error {
	return p.exportResults(basePath, prefix, p.hrvResults)
}

func (p *Protocol) exportResults(basePath, prefix string, results map[string]*studydata.Table) error {
	info, err := os.Stat(basePath)
	if err != nil {
		return errors.Wrapf(err, "export path %q is not accessible", basePath)
	}
	if !info.IsDir() {
		return errors.Errorf("export path %q must be a directory", basePath)
	}
	if prefix == "" {
		prefix = strings.ReplaceAll(strings.ToLower(p.name), " ", "_")
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fileName := fmt.Sprintf("%s_%s.csv", prefix, id)
		if err := writeTableCSV(filepath.Join(basePath, fileName), results[id]); err != nil {
			return err
		}
		logrus.Debugf("exported result %q to %s", id, fileName)
	}
	return nil
}

func writeTableCSV(filePath string, table *studydata.Table) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q failed", filePath)
	}
	defer file.Close()
	if err := table.WriteCSV(file); err != nil {
		return errors.Wrapf(err, "writing %q failed", filePath)
	}
	return nil
}
