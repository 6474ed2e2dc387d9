package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// DefaultConfirmation is used when an operation declares no confirmation
// message of its own.
const DefaultConfirmation = `Performing the operation "{{.Operation}}" on target "{{.Target}}".`

// ConfirmationData is the data a confirmation message template renders with.
type ConfirmationData struct {
	Operation string
	Command   string
	Target    string
	Targets   map[string]string
}

// RenderConfirmation renders tmpl, or DefaultConfirmation when tmpl is empty.
func RenderConfirmation(tmpl string, data ConfirmationData) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultConfirmation
	}

	t, err := template.New("confirm").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse confirmation template: %w", err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render confirmation template: %w", err)
	}
	return sb.String(), nil
}

// ParseParameters decodes a JSON object of named parameters, as carried by
// debug fixtures and CLI --cli-input-json.
func ParseParameters(data string) (map[string]any, error) {
	var result map[string]any
	err := json.Unmarshal([]byte(data), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return result, nil
}
