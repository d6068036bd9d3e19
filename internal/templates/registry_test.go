package templates

import (
	"bytes"
	"errors"
	"html/template"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dataflow-gateway/internal/engine"
)

func TestEmbeddedTemplatesParse(t *testing.T) {
	r, err := Embedded()
	require.NoError(t, err)
	require.NoError(t, r.Check())
	_, err = r.Resolve("values/inputs/generic-scalar.html")
	require.NoError(t, err)
}

func TestCheckListsMissingPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "jobs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs", "job_monitor.html"), []byte(`{{.Job.ID}}`), 0o644))

	r, err := Dir(dir, false, nil)
	require.NoError(t, err)
	err = r.Check()
	require.ErrorIs(t, err, ErrNoTemplate)
	require.Contains(t, err.Error(), JobFinished)
	require.NotContains(t, err.Error(), JobMonitor)
}

func TestResolveOrder(t *testing.T) {
	r, err := Embedded()
	require.NoError(t, err)

	name, err := r.Resolve(InputCandidates("boolean", true)...)
	require.NoError(t, err)
	require.Equal(t, "values/inputs/boolean.html", name)

	name, err = r.Resolve(InputCandidates("float", true)...)
	require.NoError(t, err)
	require.Equal(t, "values/inputs/generic-scalar.html", name)

	name, err = r.Resolve(InputCandidates("table", false)...)
	require.NoError(t, err)
	require.Equal(t, "values/inputs/generic.html", name)

	_, err = r.Resolve("nope.html")
	require.ErrorIs(t, err, ErrNoTemplate)
}

func TestInputCandidates(t *testing.T) {
	require.Equal(t, []string{"values/inputs/table.html", "values/inputs/generic.html"}, InputCandidates("table", false))
	require.Equal(t, []string{
		"values/inputs/string.html",
		"values/inputs/generic-scalar.html",
		"values/inputs/generic.html",
	}, InputCandidates("string", true))
}

func TestFragmentDegradesToErrorText(t *testing.T) {
	r, err := Embedded()
	require.NoError(t, err)

	out := r.Fragment("values/inputs/<missing>.html", nil)
	require.Contains(t, string(out), "no such template")
	require.Contains(t, string(out), "&lt;missing&gt;")

	// a template that fails at execution time renders nothing of itself
	out = r.Fragment(OperationView, 42)
	require.Contains(t, string(out), "render-error")
}

func TestJobTemplates(t *testing.T) {
	r, err := Embedded()
	require.NoError(t, err)
	job := engine.Job{ID: uuid.New(), OperationID: "echo", Status: engine.StatusRunning, Started: engine.TimestampPtr(time.Now())}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, JobMonitor, JobMonitorPage{ElementID: "job-1", Job: job}))
	require.Contains(t, buf.String(), job.ID.String())
	require.Contains(t, buf.String(), `hx-trigger="load delay:1s"`)
	require.NotContains(t, buf.String(), "queue-position")

	pos := int64(3)
	buf.Reset()
	job.Status = engine.StatusQueued
	require.NoError(t, r.Render(&buf, JobMonitor, JobMonitorPage{ElementID: "job-1", Job: job, Position: &pos}))
	require.Contains(t, buf.String(), `<span class="queue-position">3 ahead in queue</span>`)

	msg := "<boom>"
	job.Status = engine.StatusFailed
	buf.Reset()
	require.NoError(t, r.Render(&buf, JobFinished, JobFinishedPage{ElementID: "job-1", Job: job, Error: &msg}))
	require.Contains(t, buf.String(), "&lt;boom&gt;")
	require.NotContains(t, buf.String(), "<table")

	job.Status = engine.StatusSuccess
	valueID := uuid.New()
	buf.Reset()
	require.NoError(t, r.Render(&buf, JobFinished, JobFinishedPage{
		ElementID: "job-1",
		Job:       job,
		Results:   engine.ValueMap{"text": {ID: valueID, DataType: "string"}},
	}))
	require.Contains(t, buf.String(), valueID.String())
}

func TestInputsFormKeepsFragmentsVerbatim(t *testing.T) {
	r, err := Embedded()
	require.NoError(t, err)
	field := r.Fragment("values/inputs/boolean.html", InputField{FieldName: "a", DataType: "boolean"})
	require.Contains(t, string(field), `type="checkbox"`)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, InputsForm, InputsFormPage{
		ElementID:   "op",
		OperationID: "logic.and",
		Fields:      map[string]template.HTML{"a": field},
	}))
	require.Contains(t, buf.String(), `type="checkbox"`)
	require.Contains(t, buf.String(), `value="logic.and"`)
}

func TestDirReloadsChangedTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.html")
	require.NoError(t, os.WriteFile(path, []byte(`hello {{.}}`), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	r, err := Dir(dir, true, nil)
	require.NoError(t, err)
	require.Equal(t, "hello x", string(r.Fragment("greeting.html", "x")))

	require.NoError(t, os.WriteFile(path, []byte(`bye {{.}}`), 0o644))
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now()))
	require.Equal(t, "bye x", string(r.Fragment("greeting.html", "x")))

	// a broken edit keeps serving the last good set
	require.NoError(t, os.WriteFile(path, []byte(`{{.Broken`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.Equal(t, "bye x", string(r.Fragment("greeting.html", "x")))
}

func TestDirWithoutReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(`{{if}}`), 0o644))
	_, err := Dir(dir, false, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoTemplate))
}
