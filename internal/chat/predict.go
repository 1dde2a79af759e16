package chat

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fpang/fedpath/internal/assets"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/jsonutil"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Predictor returns per-node predictions for one image.
type Predictor interface {
	Predict(ctx context.Context, img imaging.Image, s settings.Settings) (prediction.Set, error)
}

// contentGenerator is the subset of *genai.Models used for prediction.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// maxPredictionOutputTokens leaves room for thinking tokens on 2.5 models.
const maxPredictionOutputTokens = 8192

// GeminiPredictor asks a Gemini model to play every active node and return
// each node's ranked labels.
type GeminiPredictor struct {
	models contentGenerator
	model  string
}

// NewGeminiPredictor creates a predictor backed by client. An empty model
// resolves through GetModelName.
func NewGeminiPredictor(client *genai.Client, model string) *GeminiPredictor {
	if model == "" {
		model = GetModelName()
	}
	return &GeminiPredictor{models: client.Models, model: model}
}

// Model returns the Gemini model ID used for prediction calls.
func (p *GeminiPredictor) Model() string {
	return p.model
}

// Predict implements Predictor. It fails with a ConfigurationError when no
// node is active and with a ServiceError when the remote call fails or the
// response is missing any requested node.
func (p *GeminiPredictor) Predict(ctx context.Context, img imaging.Image, s settings.Settings) (prediction.Set, error) {
	s = s.Snapshot()
	names := s.ActiveNames()
	if len(names) == 0 {
		return prediction.Set{}, &ConfigurationError{Message: "No models selected. Enable at least one node in settings."}
	}

	prepared, err := imaging.PrepareForModel(img)
	if err != nil {
		return prediction.Set{}, fmt.Errorf("failed to prepare %s for prediction: %w", img.Name, err)
	}

	prompt, err := BuildPredictionPrompt(img, names, s)
	if err != nil {
		return prediction.Set{}, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: prepared.MIMEType, Data: prepared.Data}},
			{Text: prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.PredictionSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  maxPredictionOutputTokens,
	}

	log.Debug().
		Str("model", p.model).
		Str("file", img.Name).
		Strs("nodes", names).
		Float64("privacy_budget", s.PrivacyBudget).
		Bool("local_privacy", s.UseLocalPrivacy).
		Int("image_bytes", len(prepared.Data)).
		Msg("Starting Gemini API call for slide prediction")

	start := time.Now()
	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "predict").
		Duration("GeminiApiLatencyMs", elapsed).
		Count("GeminiApiCalls").
		Property("model", p.model)
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		metrics.ObservePrediction(elapsed, metrics.OutcomeError)
		log.Error().Err(err).Dur("duration", elapsed).Str("file", img.Name).Msg("Gemini prediction call failed")
		return prediction.Set{}, ClassifyError(err)
	}

	var text string
	if resp != nil {
		text = resp.Text()
	}
	if text == "" {
		metrics.ObservePrediction(elapsed, metrics.OutcomeError)
		log.Warn().Dur("duration", elapsed).Str("file", img.Name).Msg("Received empty response from Gemini")
		return prediction.Set{}, malformed("received empty response from Gemini API", nil)
	}

	set, err := ParsePredictionResponse(text, names)
	if err != nil {
		metrics.ObservePrediction(elapsed, metrics.OutcomeError)
		return prediction.Set{}, err
	}
	metrics.ObservePrediction(elapsed, metrics.OutcomeSuccess)

	log.Info().
		Str("file", img.Name).
		Int("nodes", set.Len()).
		Dur("duration", elapsed).
		Msg("Slide prediction complete")

	return set, nil
}

// BuildPredictionPrompt renders the user prompt for img. Slide metadata is
// included when the image carries any.
func BuildPredictionPrompt(img imaging.Image, names []string, s settings.Settings) (string, error) {
	var metadataContext string
	if meta, err := imaging.ExtractMetadata(img); err != nil {
		log.Debug().Err(err).Str("file", img.Name).Msg("No slide metadata available")
	} else {
		metadataContext = meta.FormatMetadataContext()
	}

	prompt, err := assets.RenderPredictionPrompt(assets.PredictionPromptData{
		Filename:        img.Name,
		Nodes:           names,
		PrivacyBudget:   s.PrivacyBudget,
		UseLocalPrivacy: s.UseLocalPrivacy,
		MetadataContext: metadataContext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prediction prompt: %w", err)
	}
	return prompt, nil
}

// ParsePredictionResponse parses the model's JSON object into a Set holding
// exactly the requested nodes, in the order the response listed them.
// Entries with an empty label are dropped and scores are clamped to [0, 1].
func ParsePredictionResponse(text string, requested []string) (prediction.Set, error) {
	parsed, err := jsonutil.ParseObject[prediction.Set](text)
	if err != nil {
		log.Error().Err(err).Int("response_length", len(text)).Msg("Failed to parse prediction response")
		return prediction.Set{}, malformed("prediction response is not a JSON object", err)
	}

	wanted := make(map[string]bool, len(requested))
	for _, name := range requested {
		if !parsed.Has(name) {
			return prediction.Set{}, malformed(fmt.Sprintf("prediction response is missing node %q", name), nil)
		}
		wanted[name] = true
	}

	out := prediction.NewSet()
	for _, name := range parsed.Names() {
		if !wanted[name] {
			log.Debug().Str("node", name).Msg("Ignoring unrequested node in prediction response")
			continue
		}
		preds, _ := parsed.Get(name)
		out.Put(name, sanitize(preds))
	}
	return out, nil
}

func sanitize(preds []prediction.ModelPrediction) []prediction.ModelPrediction {
	out := make([]prediction.ModelPrediction, 0, len(preds))
	for _, p := range preds {
		if p.Label == "" || math.IsNaN(p.Score) {
			continue
		}
		p.Score = math.Min(1, math.Max(0, p.Score))
		out = append(out, p)
	}
	return out
}
