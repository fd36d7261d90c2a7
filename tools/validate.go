package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lumenstay/copilot/core"
)

// validateInput checks a raw JSON argument payload against a tool's
// declared object schema: payload must be a JSON object, every required
// property must be present, and present properties must match their
// declared primitive type. Nested object schemas are not descended
// into; handlers own any deeper validation.
func validateInput(schema map[string]any, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var payload map[string]any
	if err := json.Unmarshal(args, &payload); err != nil {
		return fmt.Errorf("%w: arguments are not a JSON object: %v", core.ErrSchemaViolation, err)
	}
	if schema == nil {
		return nil
	}

	if required, ok := schema["required"].([]string); ok {
		for _, key := range required {
			if _, present := payload[key]; !present {
				return fmt.Errorf("%w: missing required property %q", core.ErrSchemaViolation, key)
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for key, value := range payload {
		spec, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		want, _ := spec["type"].(string)
		if want == "" {
			continue
		}
		if err := checkType(key, want, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(key, want string, value any) error {
	if value == nil {
		return nil
	}
	ok := false
	switch want {
	case "string":
		_, ok = value.(string)
	case "boolean":
		_, ok = value.(bool)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isNum := value.(float64)
		ok = isNum && f == math.Trunc(f)
	case "array":
		_, ok = value.([]any)
	case "object":
		_, ok = value.(map[string]any)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: property %q is not a %s", core.ErrSchemaViolation, key, want)
	}
	return nil
}
