// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies and path values.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/charles-997/budge/internal/core"
)

// maxBodyBytes caps request bodies; ledger payloads are small.
const maxBodyBytes = 1 << 20

// malformedBodyError marks a body that is not valid JSON for the target
// type. It is answered with 400 rather than 422.
type malformedBodyError struct {
	err error
}

func (e *malformedBodyError) Error() string {
	return "malformed request body: " + e.err.Error()
}

func (e *malformedBodyError) Unwrap() error { return e.err }

// DecodeJSON decodes the request body into dst. Unknown fields and trailing
// data are rejected. Field level validation errors (a bad amount, date or
// status) keep their ledger error kind.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if core.KindOf(err) != nil {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &malformedBodyError{err: errors.New("empty body")}
		}
		return &malformedBodyError{err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &malformedBodyError{err: errors.New("unexpected data after JSON object")}
	}
	return nil
}

// PathMonth parses the named path value as a month ("2024-03" or
// "2024-03-01").
func PathMonth(r *http.Request, name string) (core.Month, error) {
	raw := r.PathValue(name)
	m, err := core.ParseMonth(raw)
	if err != nil {
		return core.Month{}, core.Validationf("invalid month %q", raw)
	}
	return m, nil
}

// PathID returns the named path value, trimmed.
func PathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", core.Validationf("missing %s", name)
	}
	return id, nil
}

// nameRequest is the body of every create-by-name endpoint.
type nameRequest struct {
	Name string `json:"name"`
}

func (n nameRequest) clean() (string, error) {
	name := sanitizeInput(n.Name)
	if name == "" {
		return "", core.ErrEmptyName
	}
	if len(name) > 200 {
		return "", core.Validationf("name too long (%d characters, max 200)", len(name))
	}
	return name, nil
}

// categoryRequest is the body of POST /budgets/{budgetId}/categories.
type categoryRequest struct {
	CategoryGroupID string `json:"categoryGroupId"`
	Name            string `json:"name"`
}

// budgetedRequest is the body of PUT .../categories/{categoryId}/{month}.
type budgetedRequest struct {
	Budgeted *core.Money `json:"budgeted"`
}

// accountUpdateRequest renames, reorders and/or reconciles an account.
// Balance is the cleared balance confirmed against the bank.
type accountUpdateRequest struct {
	Name    *string     `json:"name,omitempty"`
	Order   *int        `json:"order,omitempty"`
	Balance *core.Money `json:"balance,omitempty"`
}

func (a accountUpdateRequest) empty() bool {
	return a.Name == nil && a.Order == nil && a.Balance == nil
}

func requireField(ok bool, field string) error {
	if !ok {
		return core.Validationf("%s is required", field)
	}
	return nil
}
