package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes bounds request bodies; engine inputs are references, not payloads.
const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFragment(w http.ResponseWriter, code int, fragment template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, string(fragment))
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched. Numbers decode as json.Number so large integers survive.
func decodeBody(r *http.Request, v any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return bodyError("read body", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}

// decodeRequiredBody is decodeBody for routes that need a body.
func decodeRequiredBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return badRequest("request body is required")
	}
	return decodeBody(r, v)
}

// readForm parses a url-encoded body into single-valued fields.
func readForm(r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, bodyError("parse form", err)
	}
	return flatten(r.PostForm), nil
}

// bodyError maps an oversized body to 413 and anything else to 400.
func bodyError(what string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &HTTPError{Status: http.StatusRequestEntityTooLarge, Detail: fmt.Sprintf("%s: body exceeds %d bytes", what, tooLarge.Limit)}
	}
	return badRequest("%s: %v", what, err)
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[len(vs)-1]
		}
	}
	return out
}

// requireFields reports every blank field among names.
func requireFields(fields map[string]string, names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &HTTPError{Status: http.StatusUnprocessableEntity, Detail: "missing form fields: " + strings.Join(missing, ", ")}
	}
	return nil
}
