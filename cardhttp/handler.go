// Package cardhttp adapts the card execution contract onto net/http: it
// normalizes request parameters, runs a user handler, validates what the
// handler produced, and writes JSON responses with the standard status
// mapping (200, 400 on client errors, 500 otherwise).
package cardhttp

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adimis-ai/cereon-sdk/card"
	"github.com/adimis-ai/cereon-sdk/params"
)

const tracerName = "github.com/adimis-ai/cereon-sdk/cardhttp"

// Request carries the inputs a handler works with.
type Request struct {
	// HTTP is the underlying request.
	HTTP *http.Request
	// Params is the normalized parameter mapping.
	Params map[string]any
	// Filters is the params "filters" value, nil when absent.
	Filters any
}

// Handler produces the card payload(s) for one request. It may return a
// single payload or a slice; slices are validated item by item.
type Handler func(ctx context.Context, req *Request) (any, error)

// StreamHandler emits card payloads incrementally. Each emitted item is
// validated and written as one NDJSON line.
type StreamHandler func(ctx context.Context, req *Request, emit func(item any) error) error

// NewHandler returns an http.Handler implementing the one-shot card
// contract. A nil handler or validator is a programming error and panics at
// construction so misconfigured routes fail during development.
func NewHandler(handler Handler, validator card.Validator) http.Handler {
	if handler == nil {
		panic("cardhttp: handler is required")
	}
	if validator == nil {
		panic("cardhttp: validator is required")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r, "cards.handle")
		defer span.End()

		req, err := newRequest(r)
		if err != nil {
			span.RecordError(err)
			writeError(w, err)
			return
		}

		result, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
			writeError(w, err)
			return
		}

		validated, err := validateResult(result, validator)
		if err != nil {
			span.RecordError(err)
			writeError(w, err)
			return
		}

		span.SetAttributes(attribute.Int("cards.count", countItems(validated)))
		writeJSON(w, http.StatusOK, validated)
	})
}

// NewStreamHandler returns an http.Handler that streams validated payloads
// as NDJSON, flushing after every item. A validation failure terminates the
// stream after one error line.
func NewStreamHandler(handler StreamHandler, validator card.Validator) http.Handler {
	if handler == nil {
		panic("cardhttp: handler is required")
	}
	if validator == nil {
		panic("cardhttp: validator is required")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r, "cards.stream")
		defer span.End()

		req, err := newRequest(r)
		if err != nil {
			span.RecordError(err)
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		encoder := json.NewEncoder(w)

		sent := 0
		wrote := false
		emit := func(item any) error {
			validated, err := validator.Validate(item)
			if err != nil {
				wrote = true
				_ = encoder.Encode(map[string]any{"detail": err.Error()})
				return err
			}
			wrote = true
			if err := encoder.Encode(validated); err != nil {
				return err
			}
			sent++
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		}

		if err := handler(ctx, req, emit); err != nil && ctx.Err() == nil {
			span.RecordError(err)
			if !wrote {
				// nothing written yet, a status line is still possible
				writeError(w, card.Newf(card.CodeHandlerFailed, "%v", err))
				return
			}
			log.Printf("cardhttp: stream handler: %v", err)
		}
		span.SetAttributes(attribute.Int("cards.count", sent))
	})
}

func newRequest(r *http.Request) (*Request, error) {
	parsed, err := params.FromRequest(r)
	if err != nil {
		return nil, err
	}
	return &Request{
		HTTP:    r,
		Params:  parsed,
		Filters: parsed["filters"],
	}, nil
}

// validateResult materializes slice results and validates every item.
func validateResult(result any, validator card.Validator) (any, error) {
	value := reflect.ValueOf(result)
	if result != nil && (value.Kind() == reflect.Slice || value.Kind() == reflect.Array) {
		if _, isBytes := result.([]byte); !isBytes {
			validated := make([]any, 0, value.Len())
			for i := 0; i < value.Len(); i++ {
				item, err := validator.Validate(value.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				validated = append(validated, item)
			}
			return validated, nil
		}
	}
	return validator.Validate(result)
}

func countItems(validated any) int {
	if items, ok := validated.([]any); ok {
		return len(items)
	}
	return 1
}

func startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), name)
	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("url.path", r.URL.Path),
	)
	return ctx, span
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("cardhttp: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, card.HTTPStatus(err), map[string]any{"detail": err.Error()})
}
