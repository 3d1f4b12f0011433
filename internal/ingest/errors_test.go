package ingest

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestStage_String(t *testing.T) {
	assert.Equal(t, "fetching", StageFetching.String())
	assert.Equal(t, "header_extraction", StageHeaderExtraction.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestStageError(t *testing.T) {
	cause := errors.New("connection reset")
	err := eris.Wrap(&StageError{Stage: StageLoading, Dataset: "clientes", Table: "erp_clientes", Err: cause}, "engine: run")

	assert.True(t, IsStage(err, StageLoading))
	assert.False(t, IsStage(err, StageFetching))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dataset clientes (table erp_clientes) failed while loading: connection reset")

	assert.False(t, IsStage(cause, StageLoading))
	assert.False(t, IsStage(nil, StageLoading))
}
