package templates

import (
	"html/template"

	"dataflow-gateway/internal/engine"
)

// Template names used by the HTML controllers.
const (
	OperationsIndex = "operations/index.html"
	OperationView   = "operations/operation_view.html"
	ValuesIndex     = "values/index.html"
	ValueSelect     = "values/value_select.html"
	ValueView       = "values/value_view.html"
	InputsForm      = "values/value_inputs_form.html"
	JobMonitor      = "jobs/job_monitor.html"
	JobFinished     = "jobs/job_finished.html"
)

// Pages are the templates the HTML routes render directly, plus the last
// input widget fallback.
var Pages = []string{
	OperationsIndex, OperationView, ValuesIndex, ValueSelect, ValueView,
	InputsForm, JobMonitor, JobFinished, "values/inputs/generic.html",
}

type OperationsPage struct {
	Operations map[string]engine.OperationInfo
}

type OperationPage struct {
	ElementID string
	Operation engine.OperationInfo
}

// InputField is the context of a single input widget.
type InputField struct {
	FieldName string
	DataType  string
	Desc      string
	Doc       string
	Optional  bool
	Default   any
	Aliases   []string
}

type InputsFormPage struct {
	ElementID   string
	OperationID string
	Fields      map[string]template.HTML
}

type ValuesPage struct {
	Aliases map[string]engine.ValueInfo
}

type ValueSelectPage struct {
	FieldName string
	DataTypes []string
	Aliases   []string
}

type ValueViewPage struct {
	ElementID string
	ValueID   string
	FieldName string
	Result    engine.RenderResult
	// Rendered is Result.Rendered, trusted when the target format is html.
	Rendered template.HTML
}

type JobMonitorPage struct {
	ElementID string
	Job       engine.Job
	// Position is set while the job waits in the intake.
	Position *int64
}

type JobFinishedPage struct {
	ElementID string
	Job       engine.Job
	Results   engine.ValueMap
	Error     *string
}
