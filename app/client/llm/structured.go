package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var errNoJSON = errors.New("no JSON value found in response")

type compiledSchema struct {
	text   string
	schema *jsonschema.Schema
}

var schemaCache sync.Map

func schemaFor(target any) (*compiledSchema, error) {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}

	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*compiledSchema), nil
	}

	r := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	data, err := json.Marshal(r.Reflect(target))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiled, err := jsonschema.CompileString(t.Elem().Name()+".schema.json", string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	result := &compiledSchema{
		text:   string(data),
		schema: compiled,
	}
	schemaCache.Store(t, result)

	return result, nil
}

func decodeStructured(text string, schema *compiledSchema, target any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}

	var decoded any
	if err = json.Unmarshal([]byte(raw), &decoded); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	if err = schema.schema.Validate(decoded); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}

	if err = json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ExtractJSON pulls the outermost JSON object or array out of model output,
// tolerating markdown fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "`")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSpace(text)

	if json.Valid([]byte(text)) && text != "" && (text[0] == '{' || text[0] == '[') {
		return text, nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start < 0 || end <= start {
			continue
		}

		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", errNoJSON
}
