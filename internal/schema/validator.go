package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed executor.schema.json
var executorSchemaJSON string

const executorSchemaURI = "fanout://schemas/executor.schema.json"

// Validator handles JSON schema validation of executor configuration
type Validator struct {
	executorSchema *jsonschema.Schema
}

// NewValidator compiles the embedded schemas
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == executorSchemaURI {
			return io.NopCloser(strings.NewReader(executorSchemaJSON)), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	executorSchema, err := compiler.Compile(executorSchemaURI)
	if err != nil {
		return nil, fmt.Errorf("failed to compile executor schema: %w", err)
	}

	return &Validator{executorSchema: executorSchema}, nil
}

// ValidateConfig validates a decoded configuration document
func (v *Validator) ValidateConfig(data interface{}) error {
	if v.executorSchema == nil {
		return fmt.Errorf("executor schema not loaded")
	}
	return v.executorSchema.Validate(data)
}

// ValidateConfigFile loads a YAML or JSON config file and validates it
func (v *Validator) ValidateConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	doc, err := toJSONValue(data)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := v.ValidateConfig(doc); err != nil {
		return fmt.Errorf("config file %s failed validation: %w", path, err)
	}
	return nil
}

// toJSONValue parses YAML (a superset of JSON) and round-trips it through
// encoding/json so the validator sees plain JSON types.
func toJSONValue(data []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
