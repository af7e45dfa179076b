// Package requestschema derives JSON schemas from the request types of the api package
// and validates request documents against them before they are sent.
package requestschema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const (
	CreateRun         = "create-run"
	SubmitToolOutputs = "submit-tool-outputs"
	CreateAnswer      = "create-answer"
)

var ErrInvalidDocument = errors.New("document does not match schema")

var requestTypes = map[string]func() interface{}{
	CreateRun:         func() interface{} { return &api.RunCreateRequest{} },
	SubmitToolOutputs: func() interface{} { return &api.SubmitToolOutputsRequest{} },
	CreateAnswer:      func() interface{} { return &api.CreateAnswerRequest{} },
}

// Names lists the request schemas known to ByName.
func Names() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For reflects the schema of v. Definitions are expanded inline.
func For(v interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	return reflector.Reflect(v)
}

func ByName(name string) (*jsonschema.Schema, error) {
	newRequest, ok := requestTypes[name]
	if !ok {
		return nil, errors.Errorf("unknown request schema %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return For(newRequest()), nil
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid request document:\n- " + strings.Join(e.Violations, "\n- ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Validate checks the JSON document against schema.
func Validate(schema *jsonschema.Schema, document []byte) error {
	// validate against the keywords only, the draft URL is not needed
	s := *schema
	s.Version = ""
	schemaJSON, err := json.Marshal(&s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return errors.Wrap(err, "failed to validate document")
	}
	if result.Valid() {
		return nil
	}

	ret := &ValidationError{}
	for _, desc := range result.Errors() {
		ret.Violations = append(ret.Violations, desc.String())
	}
	return ret
}

// ToJSON converts a YAML or JSON document to JSON.
func ToJSON(document []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(document, &v); err != nil {
		return nil, errors.Wrap(err, "could not parse document")
	}
	if v == nil {
		return nil, errors.New("empty document")
	}
	return json.Marshal(v)
}

// Decode converts document to JSON, validates it against the named schema and decodes it
// into out.
func Decode(name string, document []byte, out interface{}) error {
	schema, err := ByName(name)
	if err != nil {
		return err
	}
	jsonDoc, err := ToJSON(document)
	if err != nil {
		return err
	}
	if err := Validate(schema, jsonDoc); err != nil {
		return err
	}
	if err := json.Unmarshal(jsonDoc, out); err != nil {
		return errors.Wrap(err, "could not decode document")
	}
	return nil
}

// Merge converts document to JSON and sets each override as a top-level key.
// A nil document starts from an empty object. Overrides win over the document.
func Merge(document []byte, overrides map[string]interface{}) ([]byte, error) {
	fields := map[string]interface{}{}
	if document != nil {
		jsonDoc, err := ToJSON(document)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(jsonDoc, &fields); err != nil {
			return nil, errors.Wrap(err, "document is not an object")
		}
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return json.Marshal(fields)
}
