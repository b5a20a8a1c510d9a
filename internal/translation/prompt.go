package translation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompt.tmpl
var promptTemplateText string

var promptTemplate = template.Must(template.New("translate").Parse(promptTemplateText))

// BuildPrompt renders the instruction sent to the language model.
func BuildPrompt(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// ParseResponse decodes the JSON object the prompt asks for. Code fences
// around the object are tolerated.
func ParseResponse(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}

	if strings.TrimSpace(result.TranslatedContent) == "" {
		return nil, fmt.Errorf("%w: translated_content is empty", ErrInvalidResponse)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidResponse, result.Confidence)
	}

	return &result, nil
}
