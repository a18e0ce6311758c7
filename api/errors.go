package api

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes returned in the error envelope.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBadInput     = "BAD_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeUnavailable  = "UNAVAILABLE"
	CodeInternal     = "INTERNAL"
)

func apiError(message string, category goerrors.Category, status int) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(status).
		WithTextCode(textCode(category))
}

func apiWrapError(source error, category goerrors.Category, message string, status int) *goerrors.Error {
	if source == nil {
		return apiError(message, category, status)
	}
	return goerrors.Wrap(source, category, message).
		WithCode(status).
		WithTextCode(textCode(category))
}

func textCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryAuth:
		return CodeUnauthorized
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return CodeBadInput
	case goerrors.CategoryNotFound:
		return CodeNotFound
	case goerrors.CategoryRateLimit:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string         `json:"code"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// writeError renders err as a JSON envelope. Errors that are not go-errors
// values are reported as internal errors without leaking their text.
func writeError(w http.ResponseWriter, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		rich = apiError("internal server error", goerrors.CategoryInternal, http.StatusInternalServerError)
	}
	status := rich.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:     rich.TextCode,
		Category: string(rich.Category),
		Message:  rich.Message,
		Metadata: rich.Metadata,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
