package response

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timestampRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}Z$`)

func TestSuccessEnvelope(t *testing.T) {
	type payload struct {
		Total int      `json:"total"`
		Items []string `json:"items"`
	}

	env := Success(TaskTypeState, "TCP_SOCKETS_V4", payload{Total: 0, Items: nil})

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.Contains(t, m, "timestamp")
	assert.Contains(t, m, "status")
	assert.Contains(t, m, "metadata")
	assert.Contains(t, m, "data")
	assert.NotContains(t, m, "error")

	var ts string
	require.NoError(t, json.Unmarshal(m["timestamp"], &ts))
	assert.Regexp(t, timestampRE, ts)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(m["metadata"], &meta))
	assert.Equal(t, "STATE", meta["task_type"])
	assert.Equal(t, "TCP_SOCKETS_V4", meta["subtype"])
}

func TestFailureEnvelope(t *testing.T) {
	env := Failure(TaskTypeState, "KALLSYMS", CodeIOFailure, "/proc/kallsyms: permission denied")

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.Contains(t, m, "error")
	assert.NotContains(t, m, "data")

	var detail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(m["error"], &detail))
	assert.Equal(t, 1002, detail.Code)
	assert.Equal(t, "/proc/kallsyms: permission denied", detail.Message)
}

func TestErrorCodeValues(t *testing.T) {
	// Integer values are part of the output contract.
	tests := []struct {
		code ErrorCode
		want int
		name string
	}{
		{CodeInvalidArguments, 1, "INVALID_ARGUMENTS"},
		{CodeToolNotAvailable, 1000, "TOOL_NOT_AVAILABLE"},
		{CodeExecutionFailure, 1001, "EXECUTION_FAILURE"},
		{CodeIOFailure, 1002, "IO_FAILURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, int(tt.code))
			assert.Equal(t, tt.name, tt.code.String())
		})
	}
}

func TestSuccessWithEmptyStructStillCarriesData(t *testing.T) {
	env := Success(TaskTypeState, "FTRACE_STATUS", struct{}{})

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data"`)
}
