package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataflow-gateway/internal/engine"
)

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	var m engine.OperationMatcher
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	infos, err := api.GetOperationsInfo(r.Context(), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListOperationIDs(w http.ResponseWriter, r *http.Request) {
	var m engine.OperationMatcher
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids, err := api.GetOperationIDs(r.Context(), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ids))
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := api.GetOperationInfo(r.Context(), chi.URLParam(r, "operation_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
