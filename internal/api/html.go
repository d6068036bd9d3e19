package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"dataflow-gateway/internal/engine"
	"dataflow-gateway/internal/jobs"
	"dataflow-gateway/internal/render"
	"dataflow-gateway/internal/templates"
)

// renderPage writes a template as a 200 fragment. Template failures are shown
// in place of the fragment.
func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	writeFragment(w, http.StatusOK, s.templates.Fragment(name, data))
}

func (s *Server) handleOperationsPage(w http.ResponseWriter, r *http.Request) {
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ops, err := api.GetOperationsInfo(r.Context(), engine.OperationMatcher{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderPage(w, templates.OperationsIndex, templates.OperationsPage{Operations: ops})
}

func (s *Server) handleOperationInfoFragment(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "element_id", "operation_id")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := api.GetOperationInfo(r.Context(), fields["operation_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderPage(w, templates.OperationView, templates.OperationPage{ElementID: fields["element_id"], Operation: info})
}

func (s *Server) handleInputsForm(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "element_id", "operation_id")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	op, err := api.GetOperation(r.Context(), fields["operation_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	widgets := make(map[string]template.HTML, len(op.InputsSchema))
	for name, schema := range op.InputsSchema {
		widgets[name] = s.inputWidget(r, api, templates.InputField{
			FieldName: name,
			DataType:  schema.Type,
			Desc:      schema.Doc.Description,
			Doc:       schema.Doc.Doc,
			Optional:  schema.Optional,
			Default:   schema.Default,
		})
	}
	s.renderPage(w, templates.InputsForm, templates.InputsFormPage{
		ElementID:   fields["element_id"],
		OperationID: op.ID,
		Fields:      widgets,
	})
}

// inputWidget renders the most specific input template for field.DataType.
// Lookup failures replace the widget with their error text.
func (s *Server) inputWidget(r *http.Request, api engine.API, field templates.InputField) template.HTML {
	ctx := r.Context()
	dt, err := api.GetDataType(ctx, field.DataType)
	if err != nil {
		s.log.Warn("input widget data type", "data_type", field.DataType, "error", err)
		return templates.ErrorFragment(errors.New(s.clientMessage(err)))
	}
	name, err := s.templates.Resolve(templates.InputCandidates(dt.Name, dt.IsScalar)...)
	if err != nil {
		return templates.ErrorFragment(err)
	}
	if !dt.IsScalar {
		aliases, err := api.GetAliasNames(ctx, engine.ValueMatcher{DataTypes: []string{dt.Name}, HasAlias: true})
		if err != nil {
			return templates.ErrorFragment(errors.New(s.clientMessage(err)))
		}
		field.Aliases = aliases
	}
	return s.templates.Fragment(name, field)
}

func (s *Server) handleQueueJobForm(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "element_id", "operation_id")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	operationID, elementID := fields["operation_id"], fields["element_id"]
	delete(fields, "operation_id")
	delete(fields, "element_id")

	job, err := s.jobs.SubmitForm(r.Context(), operationID, fields)
	if err != nil {
		// the caller swaps this into the job element, so it stays a 200
		writeFragment(w, http.StatusOK, template.HTML("<div>Can't submit job: "+template.HTMLEscapeString(s.clientMessage(err))+"</div>"))
		return
	}
	s.renderPage(w, templates.JobMonitor, templates.JobMonitorPage{ElementID: elementID, Job: job, Position: s.queuePosition(r, job)})
}

// queuePosition looks up where a queued job waits. The lookup is best effort:
// any failure leaves the position out of the fragment.
func (s *Server) queuePosition(r *http.Request, job engine.Job) *int64 {
	if job.Status != engine.StatusQueued {
		return nil
	}
	api, err := s.engine(r.Context())
	if err != nil {
		return nil
	}
	pos, err := api.QueuePosition(r.Context(), job.ID)
	if err != nil {
		s.log.Debug("queue position", "job_id", job.ID, "error", err)
		return nil
	}
	return &pos
}

func (s *Server) handleMonitorJobFragment(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "element_id", "job_id")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := jobs.ParseJobID(fields["job_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.jobs.Monitor(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !report.Job.Status.Terminal() {
		s.renderPage(w, templates.JobMonitor, templates.JobMonitorPage{
			ElementID: fields["element_id"],
			Job:       report.Job,
			Position:  s.queuePosition(r, report.Job),
		})
		return
	}
	s.renderPage(w, templates.JobFinished, templates.JobFinishedPage{
		ElementID: fields["element_id"],
		Job:       report.Job,
		Results:   report.Results,
		Error:     report.Error,
	})
}

func (s *Server) handleValuesPage(w http.ResponseWriter, r *http.Request) {
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	aliases, err := api.GetAliasesInfo(r.Context(), engine.ValueMatcher{HasAlias: true})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderPage(w, templates.ValuesIndex, templates.ValuesPage{Aliases: aliases})
}

func (s *Server) handleValueSelect(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var dataTypes []string
	if dt := fields["data_type"]; dt != "" {
		dataTypes = []string{dt}
	}
	fieldName := fields["field_name"]
	if fieldName == "" {
		fieldName = "__no_field_name__"
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	aliases, err := api.GetAliasNames(r.Context(), engine.ValueMatcher{DataTypes: dataTypes, HasAlias: true})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderPage(w, templates.ValueSelect, templates.ValueSelectPage{FieldName: fieldName, DataTypes: dataTypes, Aliases: aliases})
}

func (s *Server) handleValueRenderFragment(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "field_name")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fieldName := fields["field_name"]
	ref, ok := fields[fieldName]
	if !ok || ref == "" {
		s.writeError(w, r, &HTTPError{
			Status: http.StatusUnprocessableEntity,
			Detail: fmt.Sprintf("Request is missing the value attribute '%s'.", fieldName),
		})
		return
	}
	var renderConfig map[string]any
	if raw := fields["render_conf"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &renderConfig); err != nil {
			s.writeError(w, r, badRequest("render_conf: %v", err))
			return
		}
	}

	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := api.GetValue(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := api.RenderValue(r.Context(), engine.RenderValueRequest{
		Value:         v,
		TargetFormats: []string{render.FormatHTML, render.FormatString},
		RenderConfig:  renderConfig,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := templates.ValueViewPage{
		ElementID: fields["target_id"],
		ValueID:   v.ID.String(),
		FieldName: fieldName,
		Result:    result,
	}
	if result.TargetFormat == render.FormatHTML {
		// rendered html is escaped by the renderer
		page.Rendered = template.HTML(result.Rendered)
	}
	s.renderPage(w, templates.ValueView, page)
}

func (s *Server) handleInputWidget(w http.ResponseWriter, r *http.Request) {
	fields, err := readForm(r)
	if err == nil {
		err = requireFields(fields, "data_type", "field_name")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api, err := s.engine(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeFragment(w, http.StatusOK, s.inputWidget(r, api, templates.InputField{
		FieldName: fields["field_name"],
		DataType:  fields["data_type"],
	}))
}
