package openapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDocumentLoadsAndValidates(t *testing.T) {
	d, err := Document()
	require.NoError(t, err)
	require.Equal(t, "dataflow-gateway", d.Info.Title)

	for _, path := range []string{
		"/jobs/queue_job",
		"/jobs/monitor_job/{job_id}",
		"/operations/",
		"/data/serialized/{value}",
		"/render/pipeline",
		"/workflows/workflow_info/{workflow}",
	} {
		require.NotNil(t, d.Paths.Find(path), "missing path %s", path)
	}
	require.NotNil(t, d.Paths.Find("/jobs/queue_job").Post)
}

func TestEncodingsAgree(t *testing.T) {
	js, err := JSON()
	require.NoError(t, err)
	ym, err := YAML()
	require.NoError(t, err)

	var fromJSON, fromYAML map[string]any
	require.NoError(t, json.Unmarshal(js, &fromJSON))
	require.NoError(t, yaml.Unmarshal(ym, &fromYAML))
	require.Equal(t, fromJSON["openapi"], fromYAML["openapi"])
	require.Len(t, fromYAML["paths"], len(fromJSON["paths"].(map[string]any)))

	require.NotContains(t, string(ym), "{\"", "yaml output must use block style")
}
