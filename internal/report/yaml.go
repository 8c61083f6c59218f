package report

import (
	"bytes"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/pct/models"
)

// YAMLReporter renders the JSON document as YAML.
type YAMLReporter struct {
	opts Options
}

func (r *YAMLReporter) Format() Format { return FormatYAML }

func (r *YAMLReporter) Render(result *models.AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(result, r.opts)); err != nil {
		return nil, fmt.Errorf("encoding yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml report: %w", err)
	}
	return buf.Bytes(), nil
}
