package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
node "fold_request" {
  description = "Submits a folding job."

  field "endpoint" {
    type     = "string"
    required = true
  }
  field "timeout_seconds" {
    type    = "number"
    default = 30
  }

  input "sequence" {
    data_type = "sequence"
  }
  output "structure" {
    data_type = "pdb_file"
  }

  execution "api_call" {
    endpoint = "{{config.endpoint}}"
    method   = "POST"
  }

  defaults {
    endpoint = "/api/fold"
    retries  = 2
    tags     = ["fold", "protein"]
  }
}

node "note" {
  execution "log" {
    message = "{{config.message}}"
  }
}
`

// TestParseBytes_FullDocument validates the complete document shape: fields,
// handles, execution descriptor and defaults, across multiple node blocks.
func TestParseBytes_FullDocument(t *testing.T) {
	t.Parallel()

	defs, err := ParseBytes([]byte(sampleDocument), "sample.hcl")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	fold := defs[0]
	assert.Equal(t, "fold_request", fold.Type)
	assert.Equal(t, "Submits a folding job.", fold.Description)

	t.Run("schema fields", func(t *testing.T) {
		require.Contains(t, fold.Schema, "endpoint")
		assert.True(t, fold.Schema["endpoint"].Required)
		assert.Nil(t, fold.Schema["endpoint"].Default)

		require.Contains(t, fold.Schema, "timeout_seconds")
		assert.False(t, fold.Schema["timeout_seconds"].Required)
		assert.Equal(t, float64(30), fold.Schema["timeout_seconds"].Default)
	})

	t.Run("handles", func(t *testing.T) {
		require.Len(t, fold.Inputs, 1)
		assert.Equal(t, "sequence", fold.Inputs[0].ID)
		assert.Equal(t, "sequence", fold.Inputs[0].DataType)

		require.Len(t, fold.Outputs, 1)
		assert.Equal(t, "pdb_file", fold.Outputs[0].DataType)
	})

	t.Run("execution descriptor", func(t *testing.T) {
		assert.Equal(t, "api_call", fold.Execution.Type)
		assert.Equal(t, "{{config.endpoint}}", fold.Execution.StringField("endpoint"))
		assert.Equal(t, "POST", fold.Execution.StringField("method"))
		assert.Nil(t, fold.Execution.Field("absent"))
	})

	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, "/api/fold", fold.DefaultConfig["endpoint"])
		assert.Equal(t, float64(2), fold.DefaultConfig["retries"])
		assert.Equal(t, []any{"fold", "protein"}, fold.DefaultConfig["tags"])
	})

	note := defs[1]
	assert.Equal(t, "note", note.Type)
	assert.Equal(t, "log", note.Execution.Type)
	assert.Nil(t, note.DefaultConfig)
}

// TestParseBytes_MissingExecutionBlock validates a node without an execution
// block is rejected.
func TestParseBytes_MissingExecutionBlock(t *testing.T) {
	t.Parallel()

	src := `
node "broken" {
  field "x" {
    type = "string"
  }
}
`
	_, err := ParseBytes([]byte(src), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing execution block")
}

// TestParseBytes_MalformedHCL validates syntax errors surface with the
// document name.
func TestParseBytes_MalformedHCL(t *testing.T) {
	t.Parallel()

	_, err := ParseBytes([]byte(`node "x" {`), "bad.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.hcl")
}

// TestDefinition_HandleLookups validates the handle accessor helpers.
func TestDefinition_HandleLookups(t *testing.T) {
	t.Parallel()

	def := &Definition{
		Inputs: []HandleSpec{{ID: "sequence", DataType: "sequence"}},
		Outputs: []HandleSpec{
			{ID: "structure", DataType: "pdb_file"},
			{ID: "raw", DataType: "any"},
		},
	}

	require.NotNil(t, def.Input("sequence"))
	assert.Nil(t, def.Input("ghost"))

	assert.Equal(t, "structure", def.OutputByDataType("pdb_file").ID)
	assert.Equal(t, "structure", def.OutputByDataType(DataTypeAny).ID, "wildcard matches the first output")
	assert.Nil(t, def.OutputByDataType("csv"))

	assert.True(t, def.DeclaresOutput("pdb_file"))
	assert.False(t, def.DeclaresOutput("csv"))
}
