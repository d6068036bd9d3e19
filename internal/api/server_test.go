package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"dataflow-gateway/internal/backend"
	"dataflow-gateway/internal/blob"
	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/openapi"
	"dataflow-gateway/internal/queue"
	"dataflow-gateway/internal/store"
	"dataflow-gateway/internal/templates"
)

type fixture struct {
	handler http.Handler
	store   store.Store
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	require.NoError(t, st.RunMigrations(ctx))
	require.NoError(t, store.SeedDemo(ctx, st))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	q := queue.NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil, "default")

	engines := engine.NewProvider(func(context.Context) (engine.API, error) {
		return backend.New(backend.Options{
			Registry: st,
			Intake:   q,
			Blobs:    blob.NewLocalFS(t.TempDir()),
			Closers:  []func() error{q.Close},
		})
	})
	t.Cleanup(func() { _ = engines.Close() })

	return &fixture{handler: newServer(t, engines, false).Router(), store: st, redis: mr}
}

func newServer(t *testing.T, engines *engine.Provider, dev bool) *Server {
	t.Helper()
	tmpl, err := templates.Embedded()
	require.NoError(t, err)
	return New(Options{Engines: engines, Templates: tmpl, DevMode: dev})
}

// runNext plays the engine runner for the next queued job, echoing its
// inputs back as outputs.
func (f *fixture) runNext(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	raw, err := f.redis.Lpop("queue:ready:default")
	require.NoError(t, err)
	id := uuid.MustParse(raw)
	require.NoError(t, f.store.StartJob(ctx, id))
	job, err := f.store.GetJob(ctx, id)
	require.NoError(t, err)
	results := map[string]uuid.UUID{}
	for field, v := range job.Inputs {
		valueID := uuid.New()
		require.NoError(t, f.store.PutValue(ctx, engine.Value{ID: valueID, DataType: "string", Data: v}))
		results[field] = valueID
	}
	require.NoError(t, f.store.CompleteJob(ctx, id, results))
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) form(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueueAndMonitorEcho(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"echo","inputs":{"text":"hi"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decode(t, rec)
	require.Equal(t, "queued", job["status"])
	require.Nil(t, job["finished"])
	require.Nil(t, job["error"])
	id := job["job_id"].(string)

	rec = f.do(t, http.MethodGet, "/jobs/monitor_job/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	polled := decode(t, rec)
	require.Equal(t, "queued", polled["status"])
	require.NotContains(t, polled, "results")

	f.runNext(t)

	rec = f.do(t, http.MethodGet, "/jobs/monitor_job/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode(t, rec)
	require.Equal(t, "success", done["status"])
	require.NotNil(t, done["finished"])
	results := done["results"].(map[string]any)
	require.Equal(t, "hi", results["text"].(map[string]any)["data"])

	rec = f.do(t, http.MethodPost, "/jobs/monitor_job", `{"job_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, done["results"], decode(t, rec)["results"])
}

func TestQueueJobWithConfigUsesManifest(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"echo","operation_config":{"unused":1},"inputs":{"text":"hi"},"client":"cli"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decode(t, rec)
	require.NotContains(t, job, "operation_id")
	manifest := job["manifest"].(map[string]any)
	require.Equal(t, "echo", manifest["module_type"])
}

func TestQueueJobErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"does_not_exist","inputs":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	require.EqualValues(t, 400, body["status"])
	require.Contains(t, body["msg"], "invalid operation")
	require.Contains(t, body, "exception")
	require.False(t, f.redis.Exists("queue:ready:default"))

	rec = f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"logic.and","inputs":{"a":true}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	invalid := decode(t, rec)["exception"].(map[string]any)["invalid_inputs"].(map[string]any)
	require.Contains(t, invalid, "b")

	rec = f.do(t, http.MethodPost, "/jobs/queue_job", `{"inputs":{}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, decode(t, rec), "detail")

	rec = f.do(t, http.MethodPost, "/jobs/queue_job", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode(t, rec)["detail"], "invalid json")
}

func TestMonitorUnknownJob(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/jobs/monitor_job/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.EqualValues(t, 404, decode(t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/jobs/monitor_job/not-a-uuid", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitorFailedJob(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"echo","inputs":{"text":"hi"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := uuid.MustParse(decode(t, rec)["job_id"].(string))
	require.NoError(t, f.store.MarkJobFailed(context.Background(), id, "runner crashed"))

	rec = f.do(t, http.MethodGet, "/jobs/monitor_job/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)
	require.Equal(t, "failed", job["status"])
	require.Equal(t, "runner crashed", job["error"])
	require.NotContains(t, job, "results")
}

// failedJobEngine reports one failed job whose error column was never set.
type failedJobEngine struct {
	engine.API
	job engine.Job
}

func (e failedJobEngine) GetJob(context.Context, uuid.UUID) (engine.Job, error) {
	return e.job, nil
}

func TestMonitorFailedJobWithoutRecordedError(t *testing.T) {
	now := time.Now()
	job := engine.Job{
		ID:          uuid.New(),
		OperationID: "echo",
		Status:      engine.StatusFailed,
		Submitted:   engine.NewTimestamp(now),
		Finished:    engine.TimestampPtr(now),
	}
	h := newServer(t, engine.Static(failedJobEngine{job: job}), false).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/monitor_job/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "failed", body["status"])
	require.Equal(t, "job failed", body["error"])
	require.NotContains(t, body, "results")
}

func TestOversizedJSONBody(t *testing.T) {
	f := newFixture(t)
	body := `{"filters":["` + strings.Repeat("a", maxBodyBytes) + `"]}`
	rec := f.do(t, http.MethodPost, "/operations/", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, decode(t, rec)["detail"], "body exceeds")

	rec = f.do(t, http.MethodPost, "/jobs/queue_job", `{"operation_id":"echo","inputs":{"text":"`+strings.Repeat("a", maxBodyBytes)+`"}}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.False(t, f.redis.Exists("queue:ready:default"))
}

func TestInternalErrorsAreHidden(t *testing.T) {
	broken := engine.NewProvider(func(context.Context) (engine.API, error) {
		return nil, errors.New("dial tcp 10.0.0.7:5432: connection refused")
	})

	for _, dev := range []bool{false, true} {
		h := newServer(t, broken, dev).Router()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/echo", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		require.EqualValues(t, 500, body["status"])
		require.Nil(t, body["exception"])
		if dev {
			require.Contains(t, body["msg"], "connection refused")
		} else {
			require.Equal(t, "Internal Server Error", body["msg"])
		}
	}
}

func TestPanicsBecomeEnvelope(t *testing.T) {
	// every call on the nil embedded interface panics
	h := newServer(t, engine.Static(struct{ engine.API }{}), false).Router()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations/ids", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"status":500,"msg":"Internal Server Error","exception":null}`, rec.Body.String())
}

func TestOperationRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/operations/", `{"filters":["logic"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ops := decode(t, rec)
	require.Len(t, ops, 2)
	require.Contains(t, ops, "logic.and")

	rec = f.do(t, http.MethodPost, "/operations/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, decode(t, rec), "render.table.as.html")

	rec = f.do(t, http.MethodPost, "/operations/ids", `{"include_internal":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	require.Contains(t, ids, "render.table.as.html")

	rec = f.do(t, http.MethodPost, "/operations/ids", `{"filters":["zzz"]}`)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/operations/logic.and", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "boolean", decode(t, rec)["input_types"].(map[string]any)["a"])

	rec = f.do(t, http.MethodGet, "/operations/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDataRoutes(t *testing.T) {
	f := newFixture(t)
	greeting := store.DemoGreetingID.String()

	rec := f.do(t, http.MethodGet, "/data/ids", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), greeting)

	rec = f.do(t, http.MethodPost, "/data/values", `{"data_types":["string"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decode(t, rec)
	require.Contains(t, values, greeting)
	require.Equal(t, "hello world", values[greeting].(map[string]any)["data"])

	rec = f.do(t, http.MethodPost, "/data/values_info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), store.DemoTableID.String())

	rec = f.do(t, http.MethodGet, "/data/type/table/values_info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec), 1)

	rec = f.do(t, http.MethodGet, "/data/type/string/alias_names", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["demo.greeting"]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/data/aliases", `{"alias_matchers":["people"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "demo.people")

	rec = f.do(t, http.MethodGet, "/data/type/table/aliases_info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "demo.people")

	rec = f.do(t, http.MethodGet, "/data/serialized/demo.greeting", "")
	require.Equal(t, http.StatusOK, rec.Code)
	serialized := decode(t, rec)
	require.Equal(t, "json", serialized["codec"])
	require.Equal(t, greeting, serialized["value_id"])

	rec = f.do(t, http.MethodGet, "/data/serialized/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/data/render/manifest/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "render.table.as.html", decode(t, rec)["operation_id"])

	rec = f.do(t, http.MethodPost, "/data/render/demo.people", `{"number_of_rows":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rendered := decode(t, rec)
	require.Equal(t, "html", rendered["target_format"])
	require.Contains(t, rendered["rendered"], "grace")
	require.NotContains(t, rendered["rendered"], "alan")

	rec = f.do(t, http.MethodPost, "/data/validate/inputs", `{"inputs":{"a":"x"},"inputs_schema":{"a":{"type":"boolean"},"b":{"type":"string","optional":true}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "a")

	rec = f.do(t, http.MethodPost, "/data/validate/inputs", `{"inputs":{"a":true},"inputs_schema":{"a":{"type":"boolean"}}}`)
	require.JSONEq(t, `{}`, rec.Body.String())
}

func TestRenderRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/render/value", `{"value":"demo.greeting","target_format":"string"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	require.Equal(t, "string", out["target_format"])
	require.Equal(t, "hello world", out["rendered"])

	rec = f.do(t, http.MethodPost, "/render/value", `{"value":"demo.people","target_format":["png","html"],"filters":["select_columns"],"render_config":{"columns":["name"]}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotContains(t, decode(t, rec)["rendered"], "1815")

	rec = f.do(t, http.MethodPost, "/render/value", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/render/pipeline", `{"data_type":"table","filters":["drop_columns"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "render.table.as.html", decode(t, rec)["operation_id"])

	rec = f.do(t, http.MethodPost, "/render/pipeline", `{"data_type":"network_graph"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineAndWorkflowRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/pipelines/structure/logic.nand", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["steps"], 2)

	rec = f.do(t, http.MethodGet, "/pipelines/structure/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/workflows/ids", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), store.DemoWorkflowID.String())

	rec = f.do(t, http.MethodPost, "/workflows/aliases", `{"filters":["nand"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "demo.nand_workflow")

	rec = f.do(t, http.MethodGet, "/workflows/workflow_info/demo.nand_workflow", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, store.DemoWorkflowID.String(), decode(t, rec)["workflow_id"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/jobs/queue_job", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteUsesDetailBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())
}

func TestSchemaAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/schema/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3.0.3", decode(t, rec)["openapi"])

	rec = f.do(t, http.MethodGet, "/schema/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gateway_http_responses_total")
}

func TestEveryJSONRouteIsDocumented(t *testing.T) {
	doc, err := openapi.Document()
	require.NoError(t, err)
	router := newFixture(t).handler.(chi.Routes)

	undocumented := map[string]bool{"/healthz": true, "/schema/openapi.json": true, "/schema/openapi.yaml": true}
	err = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/html/") || strings.HasPrefix(route, "/metrics") || undocumented[route] {
			return nil
		}
		item := doc.Paths.Find(route)
		require.NotNil(t, item, "route %s %s is not documented", method, route)
		require.NotNil(t, item.GetOperation(method), "method %s %s is not documented", method, route)
		return nil
	})
	require.NoError(t, err)
}
