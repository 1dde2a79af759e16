// Package assets provides embedded prompt templates.
//
// Prompt text lives under prompts/ and is embedded at compile time so the
// binary carries no runtime file dependencies.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// PredictionSystemPrompt frames the model as a panel of independent nodes.
//
//go:embed prompts/prediction-system.txt
var PredictionSystemPrompt string

//go:embed prompts/prediction.txt
var predictionTemplate string

// template.Must panics on a malformed template at program start rather than on first use.
var predictionPromptTmpl = template.Must(template.New("prediction").Parse(predictionTemplate))

// PredictionPromptData holds the dynamic data injected into the prediction prompt.
type PredictionPromptData struct {
	Filename        string
	Nodes           []string
	PrivacyBudget   float64
	UseLocalPrivacy bool

	// MetadataContext is a pre-rendered slide metadata section, or "".
	MetadataContext string
}

// RenderPredictionPrompt renders the per-image prediction prompt. Nodes must
// be non-empty.
func RenderPredictionPrompt(data PredictionPromptData) (string, error) {
	var buf bytes.Buffer
	if err := predictionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
