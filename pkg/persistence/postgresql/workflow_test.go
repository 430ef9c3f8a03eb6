package postgresql

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowArgs_EmptyContainers(t *testing.T) {
	workflow := models.NewWorkflow("0190c2f4-8e5a-7b3c-9d1e-2f3a4b5c6d7e", "user-1", "Empty", time.Now())
	workflow.Collaborators = nil
	workflow.Variables = nil

	args, err := workflowArgs(workflow)
	require.NoError(t, err)
	require.Len(t, args, 20)

	assert.Equal(t, []byte("[]"), args[14])
	assert.Equal(t, []byte("{}"), args[17])
	assert.Nil(t, args[12], "deployed_state stays NULL")
	assert.Nil(t, args[19], "marketplace_data stays NULL")
}

func TestUnmarshalColumns(t *testing.T) {
	var (
		variables map[string]any
		skipped   map[string]any
	)

	err := unmarshalColumns(map[string]columnTarget{
		"variables": {[]byte(`{"SYMBOL":"ETH/USD"}`), &variables},
		"data":      {nil, &skipped},
	})
	require.NoError(t, err)
	assert.Equal(t, "ETH/USD", variables["SYMBOL"])
	assert.Nil(t, skipped)

	err = unmarshalColumns(map[string]columnTarget{"state": {[]byte(`{`), &variables}})
	assert.ErrorContains(t, err, "failed to unmarshal state")
}

func TestNullables(t *testing.T) {
	assert.Nil(t, nullString(sql.NullString{}))
	assert.Equal(t, "x", *nullString(sql.NullString{String: "x", Valid: true}))

	local := time.Date(2025, 6, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	converted := nullTime(sql.NullTime{Time: local, Valid: true})
	require.NotNil(t, converted)
	assert.Equal(t, time.UTC, converted.Location())
	assert.Equal(t, 12, converted.Hour())
	assert.Nil(t, nullTime(sql.NullTime{}))
}
