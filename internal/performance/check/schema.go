package check

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/prreview/loadgen/internal/performance"
)

// CompileSchema compiles a JSON Schema document.
func CompileSchema(schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schema)); err != nil {
		return nil, errors.Wrap(err, "invalid schema")
	}

	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, errors.Wrap(err, "invalid schema")
	}
	return compiled, nil
}

// MatchesSchema returns a predicate that passes when the response body is
// JSON valid against schema. The schema is compiled once, here.
func MatchesSchema(schema string) (Predicate, error) {
	compiled, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}

	return func(o *performance.Outcome) bool {
		if o == nil {
			return false
		}
		return ValidateBody(compiled, o.Body) == nil
	}, nil
}

// ValidateBody validates a JSON body against a compiled schema. The error
// lists every violation.
func ValidateBody(schema *jsonschema.Schema, body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "invalid JSON")
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return errors.New(strings.Join(violations(ve), "; "))
		}
		return err
	}
	return nil
}

func violations(err *jsonschema.ValidationError) []string {
	var out []string
	if err.Message != "" && len(err.Causes) == 0 {
		out = append(out, "at '"+err.InstanceLocation+"': "+err.Message)
	}
	for _, cause := range err.Causes {
		out = append(out, violations(cause)...)
	}
	return out
}
