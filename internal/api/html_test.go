package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHTMLQueueAndMonitor(t *testing.T) {
	f := newFixture(t)

	rec := f.form(t, "/html/operations/queue_job", url.Values{
		"operation_id": {"logic.and"},
		"element_id":   {"run-1"},
		"a":            {"on"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `class="job job-queued"`)
	require.Contains(t, rec.Body.String(), `hx-trigger="load delay:1s"`)
	require.Contains(t, rec.Body.String(), `<span class="queue-position">0 ahead in queue</span>`)

	ready, err := f.redis.List("queue:ready:default")
	require.NoError(t, err)
	require.Len(t, ready, 1)
	id := ready[0]

	job, err := f.store.GetJob(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	require.Equal(t, true, job.Inputs["a"])
	require.Equal(t, false, job.Inputs["b"], "unchecked boxes submit false")

	monitor := url.Values{"job_id": {id}, "element_id": {"run-1"}}
	rec = f.form(t, "/html/operations/monitor_job", monitor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "job-queued")
	require.Contains(t, rec.Body.String(), "0 ahead in queue")

	f.runNext(t)

	rec = f.form(t, "/html/operations/monitor_job", monitor)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "job-success")
	require.Contains(t, body, `class="results"`)
	require.NotContains(t, body, "load delay")
}

func TestHTMLQueueJobFailureStaysInline(t *testing.T) {
	f := newFixture(t)

	rec := f.form(t, "/html/operations/queue_job", url.Values{"operation_id": {"nope"}, "element_id": {"x"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<div>Can't submit job: ")
	require.Contains(t, rec.Body.String(), "invalid operation")

	rec = f.form(t, "/html/operations/queue_job", url.Values{"operation_id": {"echo"}, "element_id": {"x"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Can't submit job")

	rec = f.form(t, "/html/operations/queue_job", url.Values{"operation_id": {"echo"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "render-error")
}

func TestHTMLMonitorUnknownJob(t *testing.T) {
	f := newFixture(t)
	rec := f.form(t, "/html/operations/monitor_job", url.Values{"job_id": {uuid.NewString()}, "element_id": {"x"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `class="render-error"`)
}

func TestHTMLOperationPages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/html/operations/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "logic.and")
	require.NotContains(t, rec.Body.String(), "render.table.as.html")

	rec = f.form(t, "/html/operations/operation_info", url.Values{"operation_id": {"echo"}, "element_id": {"op"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `id="op"`)
	require.Contains(t, rec.Body.String(), "The text to echo.")

	rec = f.form(t, "/html/operations/operation_info", url.Values{"operation_id": {"missing"}, "element_id": {"op"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "render-error")
}

func TestHTMLInputsForm(t *testing.T) {
	f := newFixture(t)

	rec := f.form(t, "/html/operations/inputs_form", url.Values{"operation_id": {"logic.and"}, "element_id": {"op"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `type="checkbox" id="a" name="a"`)
	require.Contains(t, body, `name="operation_id" value="logic.and"`)
	require.Contains(t, body, `id="op-job"`)

	rec = f.form(t, "/html/operations/inputs_form", url.Values{"operation_id": {"table.filter.select_columns"}, "element_id": {"op"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	require.Contains(t, body, `<option value="alias:demo.people">`)
	// "list" is not a registered data type; only that widget degrades
	require.Contains(t, body, `class="render-error"`)
}

func TestHTMLValues(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/html/values/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "demo.greeting")
	require.Contains(t, rec.Body.String(), "demo.people")

	rec = f.form(t, "/html/values/select", url.Values{"data_type": {"table"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="__no_field_name__"`)
	require.Contains(t, rec.Body.String(), "alias:demo.people")
	require.NotContains(t, rec.Body.String(), "demo.greeting")

	rec = f.form(t, "/html/values/render", url.Values{"field_name": {"value"}, "value": {"alias:demo.greeting"}, "target_id": {"preview"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hello world")
	require.Contains(t, rec.Body.String(), `id="preview"`)

	rec = f.form(t, "/html/values/render", url.Values{
		"field_name":  {"value"},
		"value":       {"demo.people"},
		"render_conf": {`{"number_of_rows": 1}`},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ada")
	require.NotContains(t, rec.Body.String(), "grace")
	require.Contains(t, rec.Body.String(), ">Next</button>")

	rec = f.form(t, "/html/values/render", url.Values{"field_name": {"value"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Request is missing the value attribute")

	rec = f.form(t, "/html/values/render", url.Values{"field_name": {"value"}, "value": {"alias:nobody"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTMLInputWidget(t *testing.T) {
	f := newFixture(t)

	rec := f.form(t, "/html/values/input_widget", url.Values{"data_type": {"boolean"}, "field_name": {"flag"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `type="checkbox" id="flag"`)

	rec = f.form(t, "/html/values/input_widget", url.Values{"data_type": {"float"}, "field_name": {"ratio"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "(float)")

	rec = f.form(t, "/html/values/input_widget", url.Values{"field_name": {"flag"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "data_type")
}
