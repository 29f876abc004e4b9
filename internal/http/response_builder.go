// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses. Every
// response has the shape {"message": "...", "data": ...}; data is omitted
// on errors.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charles-997/budge/internal/core"
)

const messageSuccess = "success"

// envelope is the body of every API response.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	message    string
	data       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status
// and a success message.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		message:    messageSuccess,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Message sets the message field.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.message = msg
	return b
}

// Data sets the data field.
func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.data = data
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := json.Marshal(envelope{Message: b.message, Data: b.data})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"failed to encode response"}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, data any) {
	NewJSONResponse().Data(data).Write(w)
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, data any) {
	NewJSONResponse().Status(http.StatusCreated).Data(data).Write(w)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Message(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// FromError maps a ledger error onto a response. Store and unknown failures
// do not echo their cause to the client.
func FromError(err error) *JSONResponseBuilder {
	var bodyErr *malformedBodyError
	if errors.As(err, &bodyErr) {
		return BadRequestError(bodyErr.Error())
	}

	switch core.KindOf(err) {
	case core.ErrNotFound:
		return NotFoundError(err.Error())
	case core.ErrValidation:
		return UnprocessableEntityError(err.Error())
	case core.ErrConflict:
		return ConflictError("concurrent modification, please retry")
	case core.ErrStoreFailure:
		return ServiceUnavailableError("storage unavailable")
	default:
		return InternalServerError("internal server error")
	}
}
