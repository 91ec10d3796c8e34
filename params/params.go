// Package params normalizes the heterogeneous parameter encodings dashboard
// clients send (query string, JSON body, form body, double-JSON-encoded
// strings) into one canonical mapping.
package params

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adimis-ai/cereon-sdk/card"
)

// decodeRounds caps the percent-decode/JSON-decode recovery passes used on
// double-encoded values.
const decodeRounds = 3

// wsNumericKeys are the handshake query keys coerced to numbers.
var wsNumericKeys = map[string]struct{}{
	"resumeSeq":            {},
	"reconnectDelay":       {},
	"maxReconnectAttempts": {},
	"heartbeatInterval":    {},
}

// wsMappingKeys is the allow-list of top-level WebSocket handshake query keys
// mapped into the payload.
var wsMappingKeys = []string{
	"url",
	"topic",
	"resumeSeq",
	"subscriptionId",
	"ackPolicy",
	"compression",
	"protocols",
	"reconnectDelay",
	"maxReconnectAttempts",
	"heartbeatInterval",
}

// DecodeMaybeJSON decodes a JSON string that may have been percent-encoded or
// JSON-encoded more than once. Values that never parse are returned unchanged.
func DecodeMaybeJSON(value string) any {
	v := strings.TrimSpace(value)

	for i := 0; i < decodeRounds; i++ {
		if looksLikeJSON(v) {
			var out any
			if err := json.Unmarshal([]byte(v), &out); err == nil {
				return out
			}
			if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
				inner := v[1 : len(v)-1]
				if err := json.Unmarshal([]byte(inner), &out); err == nil {
					return out
				}
			}
		}
		unescaped, err := url.QueryUnescape(v)
		if err != nil || unescaped == v {
			break
		}
		v = unescaped
	}

	var out any
	if err := json.Unmarshal([]byte(v), &out); err == nil {
		return out
	}
	return value
}

func looksLikeJSON(v string) bool {
	if v == "" {
		return false
	}
	switch v[0] {
	case '{', '[', '"':
		return true
	}
	if v == "true" || v == "false" || v == "null" {
		return true
	}
	return v[0] >= '0' && v[0] <= '9'
}

// FromRequest normalizes the parameters of an HTTP request.
//
// A params query key wins when present. Mutating methods prefer a JSON body,
// then a form body, then the query string. Malformed JSON in an explicit
// params value is a client error; every other failure degrades to a partial
// mapping.
func FromRequest(r *http.Request) (map[string]any, error) {
	normalized := normalizeQuery(r.URL.Query())

	if raw, ok := normalized["params"]; ok {
		if value, ok := raw.(string); ok {
			return decodeParamsValue(value)
		}
		// repeated params keys never carry a JSON payload
		return map[string]any{"params": raw}, nil
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return normalized, nil
	}

	body, err := readBody(r)
	if err != nil || len(body) == 0 {
		return normalized, nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		form, err := url.ParseQuery(string(body))
		if err != nil || len(form) == 0 {
			return normalized, nil
		}
		decoded = normalizeQuery(form)
	}

	if mapping, ok := decoded.(map[string]any); ok {
		if raw, ok := mapping["params"]; ok {
			return decodeParamsField(raw)
		}
		return mapping, nil
	}

	if value, ok := decoded.(string); ok {
		return map[string]any{"params": DecodeMaybeJSON(value)}, nil
	}
	return map[string]any{"params": decoded}, nil
}

// FromQuery normalizes the parameters of a WebSocket handshake query string.
//
// A params key wins when present. Otherwise the allow-listed top-level keys
// are mapped with numeric coercion, and headers.<name> keys are collected
// into a nested headers mapping.
func FromQuery(query url.Values) (map[string]any, error) {
	if raw := query.Get("params"); raw != "" || query.Has("params") {
		return decodeParamsValue(raw)
	}

	payload := map[string]any{}
	for _, key := range wsMappingKeys {
		if !query.Has(key) {
			continue
		}
		value := query.Get(key)
		if _, numeric := wsNumericKeys[key]; numeric {
			payload[key] = coerceNumber(value)
			continue
		}
		payload[key] = DecodeMaybeJSON(value)
	}

	headers := map[string]any{}
	for key, values := range query {
		name, ok := strings.CutPrefix(key, "headers.")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}
	if len(headers) > 0 {
		payload["headers"] = headers
	}

	return payload, nil
}

// FromInitialMessage interprets the first socket message as a params payload
// for callers that opted into blocking for one. Non-JSON input is preserved
// under initialMessage rather than rejected.
func FromInitialMessage(raw []byte) map[string]any {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"initialMessage": string(raw)}
	}

	mapping, ok := decoded.(map[string]any)
	if !ok {
		return map[string]any{"initialMessage": decoded}
	}

	rawParams, ok := mapping["params"]
	if !ok {
		return mapping
	}
	if value, ok := rawParams.(string); ok {
		rawParams = DecodeMaybeJSON(value)
	}
	if inner, ok := rawParams.(map[string]any); ok {
		return inner
	}
	return map[string]any{"params": rawParams}
}

// decodeParamsValue decodes an explicit params string value. A value that
// still reads as a bare string after every decode round is malformed client
// JSON.
func decodeParamsValue(raw string) (map[string]any, error) {
	decoded := DecodeMaybeJSON(raw)
	if _, stillString := decoded.(string); stillString {
		return nil, card.Newf(card.CodeParamsInvalidJSON, "invalid JSON in params value %q", raw)
	}
	return unwrapParams(decoded), nil
}

// decodeParamsField decodes a params value taken from a decoded JSON body,
// where the value may already be structured.
func decodeParamsField(raw any) (map[string]any, error) {
	if value, ok := raw.(string); ok {
		return decodeParamsValue(value)
	}
	return unwrapParams(raw), nil
}

// unwrapParams strips exactly one level of accidental {"params": {...}}
// nesting left behind by lenient clients.
func unwrapParams(decoded any) map[string]any {
	mapping, ok := decoded.(map[string]any)
	if !ok {
		return map[string]any{"params": decoded}
	}
	if inner, ok := mapping["params"].(map[string]any); ok {
		return inner
	}
	return mapping
}

func normalizeQuery(values url.Values) map[string]any {
	normalized := make(map[string]any, len(values))
	for key, list := range values {
		if len(list) == 1 {
			normalized[key] = list[0]
			continue
		}
		normalized[key] = list
	}
	return normalized
}

func coerceNumber(value string) any {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
