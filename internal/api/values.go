package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/render"
)

// query runs one read-through engine call and writes its result.
func (s *Server) query(w http.ResponseWriter, r *http.Request, call func(context.Context, engine.API) (any, error)) {
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := call(r.Context(), api)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) valueMatcher(w http.ResponseWriter, r *http.Request) (engine.ValueMatcher, bool) {
	var m engine.ValueMatcher
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, r, err)
		return m, false
	}
	return m, true
}

func typeMatcher(r *http.Request, hasAlias bool) engine.ValueMatcher {
	return engine.ValueMatcher{DataTypes: []string{chi.URLParam(r, "data_type")}, HasAlias: hasAlias}
}

func (s *Server) handleValueIDs(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		ids, err := api.GetValueIDs(ctx)
		return nonNil(ids), err
	})
}

func (s *Server) handleFindValues(w http.ResponseWriter, r *http.Request) {
	m, ok := s.valueMatcher(w, r)
	if !ok {
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.ListValues(ctx, m)
	})
}

func (s *Server) handleFindValuesInfo(w http.ResponseWriter, r *http.Request) {
	m, ok := s.valueMatcher(w, r)
	if !ok {
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetValuesInfo(ctx, m)
	})
}

func (s *Server) handleValuesOfType(w http.ResponseWriter, r *http.Request) {
	m := typeMatcher(r, false)
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.ListValues(ctx, m)
	})
}

func (s *Server) handleValuesInfoOfType(w http.ResponseWriter, r *http.Request) {
	m := typeMatcher(r, false)
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetValuesInfo(ctx, m)
	})
}

func (s *Server) handleAliasNames(w http.ResponseWriter, r *http.Request) {
	m, ok := s.valueMatcher(w, r)
	if !ok {
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		names, err := api.GetAliasNames(ctx, m)
		return nonNil(names), err
	})
}

func (s *Server) handleAliases(w http.ResponseWriter, r *http.Request) {
	m, ok := s.valueMatcher(w, r)
	if !ok {
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.ListAliases(ctx, m)
	})
}

func (s *Server) handleAliasesInfo(w http.ResponseWriter, r *http.Request) {
	m, ok := s.valueMatcher(w, r)
	if !ok {
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetAliasesInfo(ctx, m)
	})
}

func (s *Server) handleAliasesOfType(w http.ResponseWriter, r *http.Request) {
	m := typeMatcher(r, true)
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.ListAliases(ctx, m)
	})
}

func (s *Server) handleAliasNamesOfType(w http.ResponseWriter, r *http.Request) {
	m := typeMatcher(r, true)
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		names, err := api.GetAliasNames(ctx, m)
		return nonNil(names), err
	})
}

func (s *Server) handleAliasesInfoOfType(w http.ResponseWriter, r *http.Request) {
	m := typeMatcher(r, true)
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.GetAliasesInfo(ctx, m)
	})
}

func (s *Server) handleSerializedData(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "value")
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.SerializedData(ctx, ref)
	})
}

func (s *Server) handleRenderManifest(w http.ResponseWriter, r *http.Request) {
	dataType := chi.URLParam(r, "data_type")
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.AssembleRenderPipeline(ctx, dataType, render.FormatHTML, []string{render.FilterSelectColumns})
	})
}

func (s *Server) handleRenderData(w http.ResponseWriter, r *http.Request) {
	var renderConfig map[string]any
	if err := decodeBody(r, &renderConfig); err != nil {
		s.writeError(w, r, err)
		return
	}
	ref := chi.URLParam(r, "value")
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		v, err := api.GetValue(ctx, ref)
		if err != nil {
			return nil, err
		}
		return api.RenderValue(ctx, engine.RenderValueRequest{
			Value:         v,
			TargetFormats: []string{render.FormatHTML},
			RenderConfig:  renderConfig,
		})
	})
}

type validateInputsRequest struct {
	Inputs       map[string]any                `json:"inputs"`
	InputsSchema map[string]engine.ValueSchema `json:"inputs_schema"`
}

func (s *Server) handleValidateInputs(w http.ResponseWriter, r *http.Request) {
	var req validateInputsRequest
	if err := decodeRequiredBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		invalid, err := api.ValidateInputs(ctx, req.Inputs, req.InputsSchema)
		if invalid == nil {
			invalid = map[string]string{}
		}
		return invalid, err
	})
}

// formatList accepts either a single format or a list of formats.
type formatList []string

func (f *formatList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*f = formatList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*f = many
	return nil
}

type renderValueRequest struct {
	Value        string         `json:"value"`
	TargetFormat formatList     `json:"target_format"`
	Filters      []string       `json:"filters"`
	RenderConfig map[string]any `json:"render_config"`
}

func (s *Server) handleRenderValue(w http.ResponseWriter, r *http.Request) {
	var req renderValueRequest
	if err := decodeRequiredBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Value == "" {
		s.writeError(w, r, &HTTPError{Status: http.StatusUnprocessableEntity, Detail: "value is required"})
		return
	}
	formats := []string(req.TargetFormat)
	if len(formats) == 0 {
		formats = []string{render.FormatHTML, render.FormatString}
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		v, err := api.GetValue(ctx, req.Value)
		if err != nil {
			return nil, err
		}
		return api.RenderValue(ctx, engine.RenderValueRequest{
			Value:         v,
			TargetFormats: formats,
			Filters:       req.Filters,
			RenderConfig:  req.RenderConfig,
		})
	})
}

type renderPipelineRequest struct {
	DataType     string   `json:"data_type"`
	TargetFormat string   `json:"target_format"`
	Filters      []string `json:"filters"`
}

func (s *Server) handleRenderPipeline(w http.ResponseWriter, r *http.Request) {
	var req renderPipelineRequest
	if err := decodeRequiredBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.DataType == "" {
		s.writeError(w, r, &HTTPError{Status: http.StatusUnprocessableEntity, Detail: "data_type is required"})
		return
	}
	if req.TargetFormat == "" {
		req.TargetFormat = render.FormatHTML
	}
	s.query(w, r, func(ctx context.Context, api engine.API) (any, error) {
		return api.AssembleRenderPipeline(ctx, req.DataType, req.TargetFormat, req.Filters)
	})
}
