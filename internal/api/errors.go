package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/templates"
)

// HTTPError is an error with a fixed status. It is written as
// {"detail": ...} with its headers, bypassing the engine error mapping.
type HTTPError struct {
	Status int
	Detail string
	Header http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}

func badRequest(format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

// errorBody is the envelope for every failure not raised as an HTTPError.
type errorBody struct {
	Status    int    `json:"status"`
	Msg       string `json:"msg"`
	Exception any    `json:"exception"`
}

// classify maps an error onto a status code and client-safe envelope. Only
// internal errors hide their text, unless dev is set.
func classify(err error, dev bool) errorBody {
	var (
		invalid *engine.InvalidInputError
		failed  *engine.JobFailedError
	)
	switch {
	case errors.As(err, &invalid):
		return errorBody{
			Status:    http.StatusUnprocessableEntity,
			Msg:       "Invalid inputs",
			Exception: map[string]any{"invalid_inputs": invalid.Invalid},
		}
	case errors.Is(err, engine.ErrNotFound):
		return errorBody{Status: http.StatusNotFound, Msg: err.Error()}
	case errors.Is(err, engine.ErrInvalidOperation):
		return errorBody{Status: http.StatusBadRequest, Msg: err.Error()}
	case errors.As(err, &failed):
		return errorBody{Status: http.StatusConflict, Msg: err.Error(), Exception: map[string]any{"job_id": failed.JobID, "error": failed.Message}}
	case errors.Is(err, engine.ErrNotReady):
		return errorBody{Status: http.StatusConflict, Msg: err.Error()}
	}
	msg := http.StatusText(http.StatusInternalServerError)
	if dev {
		msg = err.Error()
	}
	return errorBody{Status: http.StatusInternalServerError, Msg: msg}
}

// writeError is the one place errors become responses. HTML routes get an
// inline fragment with the same status so the page can still swap it in.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		for k, vs := range httpErr.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if isHTML(r) {
			writeFragment(w, httpErr.Status, templates.ErrorFragment(errors.New(httpErr.Detail)))
			return
		}
		writeJSON(w, httpErr.Status, map[string]string{"detail": httpErr.Detail})
		return
	}

	body := classify(err, s.dev)
	if body.Status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", body.Status, "error", err)
	}
	if isHTML(r) {
		writeFragment(w, body.Status, templates.ErrorFragment(errors.New(body.Msg)))
		return
	}
	writeJSON(w, body.Status, body)
}

func isHTML(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/html/")
}

// clientMessage is the error text safe to show inside an HTML fragment.
func (s *Server) clientMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Detail
	}
	body := classify(err, s.dev)
	if body.Status < http.StatusInternalServerError {
		return err.Error()
	}
	return body.Msg
}
