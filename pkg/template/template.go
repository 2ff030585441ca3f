// Package template provides templating functionality for dynamic node configuration.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/cascade/pkg/models"
)

// RenderWithContext renders input against the execution context document, so
// node configs can reference {{.variables.x}}, {{.trigger.y}},
// {{.nodes.a.output.z}}, {{.execution_id}} and {{.env.NAME}}.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	data := executionCtx.Document()
	data["env"] = getEnvVars()

	return Render(input, data)
}

// Render executes the template and coerces the result: JSON objects/arrays
// are decoded, numbers and booleans are parsed, anything else stays a string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderMap returns a copy of config with every string value rendered against
// the execution context. Nested maps and slices are walked; non-string values
// pass through untouched.
func RenderMap(config map[string]any, executionCtx *models.ExecutionContext) (map[string]any, error) {
	rendered, err := renderValue(config, executionCtx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rendered config is %T, expected map", rendered)
	}

	return result, nil
}

func renderValue(value any, executionCtx *models.ExecutionContext) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}

		return RenderWithContext(v, executionCtx)
	case map[string]any:
		result := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := renderValue(item, executionCtx)
			if err != nil {
				return nil, err
			}

			result[key] = rendered
		}

		return result, nil
	case []any:
		result := make([]any, len(v))

		for i, item := range v {
			rendered, err := renderValue(item, executionCtx)
			if err != nil {
				return nil, err
			}

			result[i] = rendered
		}

		return result, nil
	default:
		return value, nil
	}
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
