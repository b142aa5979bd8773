package schema

// Strategy tags recognized by the execution dispatcher.
const (
	StrategyAPICall       = "api_call"
	StrategyFileCheck     = "file_check"
	StrategyLog           = "log"
	StrategyCodeExecution = "code_execution"
)

// DataTypeAny is the wildcard handle data type: it accepts whatever the
// upstream node produced.
const DataTypeAny = "any"

// FieldSpec describes one configurable field of a node type.
type FieldSpec struct {
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// HandleSpec describes one typed input or output port of a node type.
type HandleSpec struct {
	ID       string `json:"id"`
	DataType string `json:"dataType"`
}

// StrategySpec is the execution strategy descriptor: the dispatch tag plus
// the strategy-specific template fields. Field values may contain
// `{{path}}` template expressions resolved at execution time.
type StrategySpec struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Field returns the named template field, or nil.
func (s StrategySpec) Field(name string) any {
	if s.Fields == nil {
		return nil
	}
	return s.Fields[name]
}

// StringField returns the named template field as a string, or "" when the
// field is absent or not a string.
func (s StrategySpec) StringField(name string) string {
	v, _ := s.Field(name).(string)
	return v
}

// Definition is the parsed, format-agnostic definition of a node type.
type Definition struct {
	Type          string               `json:"type"`
	Description   string               `json:"description,omitempty"`
	Schema        map[string]FieldSpec `json:"schema,omitempty"`
	Inputs        []HandleSpec         `json:"inputs,omitempty"`
	Outputs       []HandleSpec         `json:"outputs,omitempty"`
	Execution     StrategySpec         `json:"execution"`
	DefaultConfig map[string]any       `json:"defaultConfig,omitempty"`
}

// Input returns the input handle with the given id, or nil.
func (d *Definition) Input(id string) *HandleSpec {
	for i := range d.Inputs {
		if d.Inputs[i].ID == id {
			return &d.Inputs[i]
		}
	}
	return nil
}

// OutputByDataType returns the first output handle declaring the given data
// type, or nil. The wildcard data type matches any declared output.
func (d *Definition) OutputByDataType(dataType string) *HandleSpec {
	for i := range d.Outputs {
		if d.Outputs[i].DataType == dataType || dataType == DataTypeAny {
			return &d.Outputs[i]
		}
	}
	return nil
}

// DeclaresOutput reports whether the definition declares an output handle
// with exactly the given data type.
func (d *Definition) DeclaresOutput(dataType string) bool {
	for i := range d.Outputs {
		if d.Outputs[i].DataType == dataType {
			return true
		}
	}
	return false
}
