package ingest

import (
	"errors"
	"fmt"
)

// Stage is a step of the per-dataset ingestion state machine.
type Stage int

// Stages in the order a dataset moves through them.
const (
	StageFetching Stage = iota
	StagePersisting
	StageHeaderExtraction
	StageProvisioning
	StageLoading
	StageLogging
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageFetching:         "fetching",
	StagePersisting:       "persisting",
	StageHeaderExtraction: "header_extraction",
	StageProvisioning:     "provisioning",
	StageLoading:          "loading",
	StageLogging:          "logging",
	StageDone:             "done",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError records the stage a dataset was in when it failed.
type StageError struct {
	Stage   Stage
	Dataset string
	Table   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest: dataset %s (table %s) failed while %s: %v", e.Dataset, e.Table, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStage reports whether err carries a StageError for stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}
