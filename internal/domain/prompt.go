package domain

// Attribute is a named, ordered facet of a prompt (Role, Tone, ...).
// Name and Value may contain {{variable}} placeholders.
type Attribute struct {
	ID           AttributeID `json:"id" yaml:"id,omitempty"`
	Name         string      `json:"name" yaml:"name"`
	Value        string      `json:"value" yaml:"value"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	ValueType    ValueType   `json:"valueType,omitempty" yaml:"valueType,omitempty"`
	ValueOptions []string    `json:"valueOptions,omitempty" yaml:"valueOptions,omitempty"`
}

// InputVariable binds a placeholder name (stored without braces) to a test value.
type InputVariable struct {
	ID        VariableID `json:"id" yaml:"id,omitempty"`
	Name      string     `json:"name" yaml:"name"`
	TestValue string     `json:"testValue" yaml:"testValue"`
}

// Template is the reusable, un-substituted form of a prompt.
type Template struct {
	BasePrompt string          `json:"basePrompt" yaml:"basePrompt"`
	Attributes []Attribute     `json:"attributes" yaml:"attributes"`
	Variables  []InputVariable `json:"inputVariables" yaml:"inputVariables"`
}

// Domain narrows the suggested attribute values.
type Domain struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ExamplePrompt is a bundled starting point.
type ExamplePrompt struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Template Template `json:"template"`
}
