// Package api serves the engine over HTTP: JSON routes, HTML fragments and
// the OpenAPI document.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/jobs"
	"dataflow-gateway/internal/telemetry"
	"dataflow-gateway/internal/templates"
)

// Server wires HTTP handlers to the shared engine handle and template set.
type Server struct {
	engines   *engine.Provider
	jobs      *jobs.Controller
	templates *templates.Registry
	log       *slog.Logger
	dev       bool
}

// Options configures a Server.
type Options struct {
	Engines   *engine.Provider
	Templates *templates.Registry
	Logger    *slog.Logger
	// DevMode exposes internal error text to clients.
	DevMode bool
}

// New constructs the API server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engines:   opts.Engines,
		jobs:      jobs.NewController(opts.Engines, log),
		templates: opts.Templates,
		log:       log,
		dev:       opts.DevMode,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Get("/schema/openapi.json", s.handleOpenAPIJSON)
	r.Get("/schema/openapi.yaml", s.handleOpenAPIYAML)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/queue_job", s.handleQueueJob)
		r.Get("/monitor_job/{job_id}", s.handleMonitorJob)
		r.Post("/monitor_job", s.handleMonitorJobBody)
	})

	r.Route("/operations", func(r chi.Router) {
		r.Post("/", s.handleListOperations)
		r.Post("/ids", s.handleListOperationIDs)
		r.Get("/{operation_id}", s.handleGetOperation)
	})

	r.Route("/data", func(r chi.Router) {
		r.Get("/ids", s.handleValueIDs)
		r.Post("/values", s.handleFindValues)
		r.Post("/values_info", s.handleFindValuesInfo)
		r.Get("/type/{data_type}/values", s.handleValuesOfType)
		r.Get("/type/{data_type}/values_info", s.handleValuesInfoOfType)
		r.Post("/alias_names", s.handleAliasNames)
		r.Post("/aliases", s.handleAliases)
		r.Post("/aliases_info", s.handleAliasesInfo)
		r.Get("/type/{data_type}/aliases", s.handleAliasesOfType)
		r.Get("/type/{data_type}/alias_names", s.handleAliasNamesOfType)
		r.Get("/type/{data_type}/aliases_info", s.handleAliasesInfoOfType)
		r.Get("/serialized/{value}", s.handleSerializedData)
		r.Post("/render/manifest/{data_type}", s.handleRenderManifest)
		r.Post("/render/{value}", s.handleRenderData)
		r.Post("/validate/inputs", s.handleValidateInputs)
	})

	r.Route("/render", func(r chi.Router) {
		r.Post("/value", s.handleRenderValue)
		r.Post("/pipeline", s.handleRenderPipeline)
	})

	r.Get("/pipelines/structure/{pipeline}", s.handlePipelineStructure)

	r.Route("/workflows", func(r chi.Router) {
		r.Post("/ids", s.handleWorkflowIDs)
		r.Post("/aliases", s.handleWorkflowAliases)
		r.Get("/workflow_info/{workflow}", s.handleWorkflowInfo)
	})

	r.Route("/html", func(r chi.Router) {
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", s.handleOperationsPage)
			r.Post("/operation_info", s.handleOperationInfoFragment)
			r.Post("/inputs_form", s.handleInputsForm)
			r.Post("/queue_job", s.handleQueueJobForm)
			r.Post("/monitor_job", s.handleMonitorJobFragment)
		})
		r.Route("/values", func(r chi.Router) {
			r.Get("/", s.handleValuesPage)
			r.Post("/select", s.handleValueSelect)
			r.Post("/render", s.handleValueRenderFragment)
			r.Post("/input_widget", s.handleInputWidget)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &HTTPError{Status: http.StatusNotFound, Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &HTTPError{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"})
	})
	return r
}

func (s *Server) engine(ctx context.Context) (engine.API, error) {
	return s.engines.Get(ctx)
}
