package assets

import (
	"strings"
	"testing"
)

func TestRenderPredictionPrompt(t *testing.T) {
	got, err := RenderPredictionPrompt(PredictionPromptData{
		Filename:        "slide-01.png",
		Nodes:           []string{"hospital_a", "global_model"},
		PrivacyBudget:   0.25,
		UseLocalPrivacy: true,
		MetadataContext: "## SLIDE METADATA\n\n- Scanner: Leica\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"slide-01.png",
		"- hospital_a",
		"- global_model",
		"0.25",
		"Local privacy is ON",
		"Scanner: Leica",
		`{"hospital_a": [`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRenderPredictionPromptLocalPrivacyOff(t *testing.T) {
	got, err := RenderPredictionPrompt(PredictionPromptData{
		Filename:      "x.png",
		Nodes:         []string{"n"},
		PrivacyBudget: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Local privacy is OFF") {
		t.Error("expected local privacy OFF section")
	}
	if strings.Contains(got, "SLIDE METADATA") {
		t.Error("metadata section should be omitted when empty")
	}
}

func TestPredictionSystemPromptEmbedded(t *testing.T) {
	if !strings.Contains(PredictionSystemPrompt, "JSON object") {
		t.Error("system prompt not embedded")
	}
}
