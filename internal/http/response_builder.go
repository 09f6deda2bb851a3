// This file implements a small builder for HTMX responses: HX-Trigger
// headers plus consistently formatted HTML fragments.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"pocketmoney/internal/core"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerLedgerChanged adds the ledger:changed trigger naming the affected
// accounts, so balance and list partials refresh themselves.
func (b *HTMXResponseBuilder) TriggerLedgerChanged(accounts ...core.Account) *HTMXResponseBuilder {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = string(a)
	}
	return b.Trigger("ledger:changed", map[string][]string{"accounts": names})
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

// DomainErrorResponse maps a ledger error to its status code and message.
func DomainErrorResponse(err error) *HTMXResponseBuilder {
	return ErrorResponse(statusForError(err), messageForError(err))
}

// statusForError maps the stable failure reasons of the mutation API to
// HTTP status codes. The mapping lives here, not in the ledger: the core is
// transport-agnostic.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidAccount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrReasonTooLong):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func messageForError(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingField):
		return "Account and amount are required"
	case errors.Is(err, core.ErrInvalidAccount):
		return "Unknown account"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Invalid amount"
	case errors.Is(err, core.ErrReasonTooLong):
		return "Reason too long (max 200 characters)"
	case errors.Is(err, core.ErrUnauthorized):
		return "Wrong or missing secret"
	case errors.Is(err, core.ErrNotFound):
		return "Transaction not found"
	default:
		return "Something went wrong, try again"
	}
}

// MethodNotAllowedError creates a 405 Method Not Allowed response.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
