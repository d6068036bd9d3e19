package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitRequestKeepsExtraFields(t *testing.T) {
	var req SubmitRequest
	body := `{"operation_id":"echo","inputs":{"n":9007199254740993},"operation_config":{},"client":"web","retries":2}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.Equal(t, "echo", req.OperationID)
	require.Equal(t, json.Number("9007199254740993"), req.Inputs["n"])
	require.Empty(t, req.OperationConfig)
	require.Equal(t, map[string]any{"client": "web", "retries": json.Number("2")}, req.Extra)
	require.NoError(t, req.Validate())

	out, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t, `{"operation_id":"echo","inputs":{"n":9007199254740993},"client":"web","retries":2}`, string(out))
}

func TestSubmitRequestValidation(t *testing.T) {
	var req SubmitRequest
	require.NoError(t, json.Unmarshal([]byte(`{"inputs":{}}`), &req))
	require.Error(t, req.Validate())

	require.Error(t, json.Unmarshal([]byte(`{"operation_id":5}`), &req))
	require.Error(t, json.Unmarshal([]byte(`[]`), &req))
}
