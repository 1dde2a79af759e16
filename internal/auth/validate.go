package auth

import (
	"context"
	"time"

	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidateAPIKey verifies the API key by making a minimal call to model.
// It returns nil if the key works, or a *chat.ServiceError whose Kind
// describes the failure.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	return validateWith(ctx, client.Models, model)
}

type textGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func validateWith(ctx context.Context, models textGenerator, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	var failure *chat.ServiceError
	switch {
	case err != nil:
		failure = chat.ClassifyError(err)
		result = string(failure.Kind)
	case resp == nil || len(resp.Candidates) == 0:
		failure = &chat.ServiceError{Kind: chat.KindMalformed, Message: "API returned empty response"}
		result = "empty_response"
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	if failure != nil {
		log.Error().Err(failure).Str("result", result).Dur("duration", elapsed).Msg("API key validation failed")
		return failure
	}

	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}
