// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"carnote/internal/core"
	"carnote/internal/exchange"
	"carnote/internal/ports"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// errorBody is the payload of every non-2xx response.
type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// StatusCode returns the status the builder will write.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string, details ...string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(errorBody{Error: message, Details: details})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string, details ...string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message, details...)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// domainErrors are rejections of user input raised by core validation.
var domainErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrEmptyTitle,
	core.ErrEmptyVehicle,
	core.ErrEmptyTemplate,
	core.ErrInvalidMileage,
	core.ErrInvalidLiters,
	core.ErrInvalidInterval,
	core.ErrInvalidCadence,
	core.ErrInvalidFuelType,
	core.ErrInvalidUnit,
	core.ErrInvalidTransmission,
	core.ErrInvalidPartStatus,
	core.ErrInvalidCurrency,
	core.ErrTextTooLong,
	core.ErrEmptyURL,
}

// ErrorFromErr maps err onto a response: malformed bodies are 400, invalid
// input 422 and missing rows 404. Anything else is a 500.
func ErrorFromErr(err error) *JSONResponseBuilder {
	var (
		verrs    validator.ValidationErrors
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, errMalformedBody):
		return BadRequestError(err.Error())
	case errors.As(err, &verrs):
		return UnprocessableEntityError("validation failed", validationDetails(verrs)...)
	case errors.Is(err, exchange.ErrInvalidDocument):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, ports.ErrNotFound):
		return NotFoundError(err.Error())
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError("internal error")
}

func validationDetails(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + ": failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, msg)
	}
	return out
}
