package chat

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ConfigurationError reports a user-correctable setup problem, such as no
// active nodes. Its message is meant to be shown verbatim.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ErrorKind categorizes a ServiceError.
type ErrorKind string

const (
	// KindRemote is a generic failure reported by the remote model.
	KindRemote ErrorKind = "remote"
	// KindQuota means the API quota or rate limit was exceeded.
	KindQuota ErrorKind = "quota"
	// KindAuth means the API key is missing, invalid, or lacks permissions.
	KindAuth ErrorKind = "auth"
	// KindNetwork is a connectivity or upstream availability failure.
	KindNetwork ErrorKind = "network"
	// KindMalformed means the response could not be parsed into predictions.
	KindMalformed ErrorKind = "malformed"
)

// ServiceError reports a failed, rejected, or unparseable call to the remote
// prediction model. Callers may retry at their discretion.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// malformed builds a KindMalformed ServiceError.
func malformed(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindMalformed, Message: message, Err: err}
}

// ClassifyError converts an error from the Gemini SDK into a ServiceError.
// A nil error returns nil; an existing ServiceError is returned unchanged.
func ClassifyError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ServiceError{Kind: KindAuth, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return &ServiceError{Kind: KindQuota, Message: "API quota exceeded or rate limited", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "deadline exceeded") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ServiceError{Kind: KindNetwork, Message: "Network error reaching the prediction service", Err: err}

	default:
		return &ServiceError{Kind: KindRemote, Message: "Prediction service call failed", Err: err}
	}
}

func classifyAPIError(err *genai.APIError) *ServiceError {
	log.Debug().Int("code", err.Code).Str("message", err.Message).Msg("Classifying Gemini API error")

	switch err.Code {
	case 400:
		if strings.Contains(strings.ToLower(err.Message), "api key") {
			return &ServiceError{Kind: KindAuth, Message: "Bad request - API key may be malformed", Err: err}
		}
		return &ServiceError{Kind: KindRemote, Message: "Prediction request was rejected", Err: err}
	case 401, 403:
		return &ServiceError{Kind: KindAuth, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		return &ServiceError{Kind: KindQuota, Message: "API rate limit exceeded - try again later", Err: err}
	case 500, 502, 503, 504:
		return &ServiceError{Kind: KindNetwork, Message: "Gemini API server error - try again later", Err: err}
	default:
		return &ServiceError{Kind: KindRemote, Message: err.Message, Err: err}
	}
}
