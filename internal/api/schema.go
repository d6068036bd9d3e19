package api

import (
	"net/http"

	"dataflow-gateway/internal/openapi"
)

func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	body, err := openapi.JSON()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.oai.openapi+json")
	_, _ = w.Write(body)
}

func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	body, err := openapi.YAML()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.oai.openapi")
	_, _ = w.Write(body)
}
