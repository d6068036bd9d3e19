package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataflow-gateway/internal/engine"
)

func (s *Server) handlePipelineStructure(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "pipeline")
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetPipelineStructure(ctx, name)
	})
}

func (s *Server) handleWorkflowIDs(w http.ResponseWriter, r *http.Request) {
	var m engine.WorkflowMatcher
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetWorkflowIDs(ctx, m)
	})
}

func (s *Server) handleWorkflowAliases(w http.ResponseWriter, r *http.Request) {
	var m engine.WorkflowMatcher
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetWorkflowAliases(ctx, m)
	})
}

func (s *Server) handleWorkflowInfo(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "workflow")
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetWorkflowInfo(ctx, ref)
	})
}
