package cli

import (
	"context"
	"errors"

	"github.com/fpang/fedpath/internal/auth"
	"github.com/fpang/fedpath/internal/chat"
	"github.com/rs/zerolog/log"
)

// InitPredictor creates a Gemini-backed predictor, optionally validating the
// API key first. An empty apiKey falls back to auth.GetAPIKey. Exits fatally
// on failure.
func InitPredictor(ctx context.Context, apiKey, model string, validate bool) *chat.GeminiPredictor {
	if apiKey == "" {
		key, err := auth.GetAPIKey()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to retrieve API key")
		}
		apiKey = key
	}

	client, err := chat.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	predictor := chat.NewGeminiPredictor(client, model)

	log.Info().Str("model", predictor.Model()).Msg("Gemini client initialized")

	if validate {
		if err := auth.ValidateAPIKey(ctx, client, predictor.Model()); err != nil {
			HandleValidationError(err)
		}
	}

	return predictor
}

// HandleValidationError logs a key validation failure with user-facing
// guidance and exits.
func HandleValidationError(err error) {
	var svcErr *chat.ServiceError
	if !errors.As(err, &svcErr) {
		log.Fatal().Err(err).Msg("Unexpected error during API key validation")
	}
	switch svcErr.Kind {
	case chat.KindAuth:
		log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
	case chat.KindNetwork:
		log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
	case chat.KindQuota:
		log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
	default:
		log.Fatal().Err(err).Msg("API key validation failed")
	}
}
