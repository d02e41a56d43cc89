package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/actigraph/BioPsyKit/pkg/conf"
	bioio "github.com/actigraph/BioPsyKit/pkg/io"
	"github.com/actigraph/BioPsyKit/pkg/protocol"
	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/utils/errutil"
	"github.com/actigraph/BioPsyKit/pkg/visualization"
)

var (
	appName = "biopsykit-protocol"

	nameFlag = conf.NewStringFlag(
		"protocol_name", "Name of the study protocol.", "Protocol")
	dataDirFlag = conf.NewStringFlag(
		"data_dir", "Directory with per-subject heart rate data (<subject>/<phase>.csv).", "")
	outputDirFlag = conf.NewStringFlag(
		"output_dir", "Directory to export result CSV files to.", ".")
	valueColumnFlag = conf.NewStringFlag(
		"value_column", "Name of the value column of the loaded series.", "Heart_Rate")
	resultIDFlag = conf.NewStringFlag(
		"result_id", "Identifier to store and export the computed results under.", "hr_mean")
	resampleFlag = conf.NewBoolFlag(
		"resample", "Resample all series to 1 Hz before processing.", true)
	normalizeToFlag = conf.NewStringFlag(
		"normalize_to", "Phase to normalize heart rate data to (percentage increase), empty to skip.", "")
	selectPhasesFlag = conf.NewSliceFlag(
		"select_phases", "Phases to retain for processing, in order. Empty selects all phases.")
	conditionListFlag = conf.NewStringFlag(
		"condition_list", "CSV file with subject to condition assignments, empty to skip.", "")
	protocolFileFlag = conf.NewStringFlag(
		"protocol_file", "JSON file with a serialized protocol definition, empty to create a bare protocol.", "")
	dumpConfigFlag = conf.NewBoolFlag(
		"config_dump", "Dump the current configuration in environment variable form and exit.", false)
)

func main() {
	conf.SetAppName(appName)
	conf.SetHelp("Computes per-subject heart rate results for a study protocol and exports them as CSV.")
	errutil.CheckWithContext(conf.ParseFlags(), "parsing configuration failed")
	logrus.SetLevel(conf.LogLevel())

	if dumpConfigFlag.Value() {
		fmt.Println(conf.DumpConfig())
		os.Exit(0)
	}

	study := loadProtocol()
	dataDir := dataDirFlag.Value()
	if dataDir == "" {
		errutil.Check(fmt.Errorf("--data_dir is required"))
	}

	var phaseNames []string
	if len(selectPhasesFlag.Value()) > 0 {
		phaseNames = selectPhasesFlag.Value()
	}
	hrData, err := bioio.LoadSubjectDataDict(dataDir, valueColumnFlag.Value(), nil)
	errutil.CheckWithContext(err, "loading heart rate data failed")
	errutil.CheckWithContext(study.AddHRData("", hrData, nil), "adding heart rate data failed")

	opts := protocol.DefaultHRResultOptions()
	opts.Resample = resampleFlag.Value()
	opts.SelectPhases = phaseNames
	if normalizeToFlag.Value() != "" {
		opts.NormalizeTo = &studydata.Reference{Phase: normalizeToFlag.Value()}
	}
	if conditionListFlag.Value() != "" {
		conditions, err := bioio.LoadSubjectConditionList(conditionListFlag.Value())
		errutil.CheckWithContext(err, "loading condition list failed")
		opts.Conditions = conditions
	}

	resultID := resultIDFlag.Value()
	errutil.CheckWithContext(study.ComputeHRResults(resultID, opts), "computing heart rate results failed")
	errutil.CheckWithContext(study.ExportHRResults(outputDirFlag.Value(), ""), "exporting results failed")

	result, _ := study.HRResults(resultID)
	summary, err := studydata.MeanSEPerPhase(result.Table)
	errutil.CheckWithContext(err, "summarizing results failed")

	fmt.Println(visualization.NewProtocolMetadata(study.Name(), resultID).String())
	visualization.NewResultTable(summary, 2).Draw()
}

func loadProtocol() *protocol.Protocol {
	if protocolFileFlag.Value() != "" {
		study, err := protocol.FromFile(protocolFileFlag.Value())
		errutil.CheckWithContext(err, "loading protocol file failed")
		return study
	}
	study, err := protocol.New(nameFlag.Value(), nil, [2]int{0, 0})
	errutil.CheckWithContext(err, "creating protocol failed")
	return study
}
