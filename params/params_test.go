package params

import (
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/adimis-ai/cereon-sdk/card"
)

func TestDecodeMaybeJSON(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  any
	}{
		{"object", `{"topic":"sales"}`, map[string]any{"topic": "sales"}},
		{"list", `[1,2]`, []any{float64(1), float64(2)}},
		{"double encoded", `"{\"topic\":\"sales\"}"`, map[string]any{"topic": "sales"}},
		{"percent encoded", `%7B%22topic%22%3A%22sales%22%7D`, map[string]any{"topic": "sales"}},
		{"bool", "true", true},
		{"number", "42", float64(42)},
		{"plain string", "hello", "hello"},
		{"broken json", `{"topic":`, `{"topic":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeMaybeJSON(tc.value)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("DecodeMaybeJSON(%q) = %#v, want %#v", tc.value, got, tc.want)
			}
		})
	}
}

func TestFromRequestQueryParamsKeyWins(t *testing.T) {
	query := url.Values{}
	query.Set("params", `{"topic":"sales","limit":10}`)
	query.Set("ignored", "yes")
	r := httptest.NewRequest("GET", "/cards?"+query.Encode(), nil)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales", "limit": float64(10)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromRequestPlainQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/cards?topic=sales&limit=10", nil)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales", "limit": "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromRequestRepeatedQueryKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/cards?tag=a&tag=b", nil)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if !reflect.DeepEqual(got["tag"], []string{"a", "b"}) {
		t.Fatalf("tag = %#v, want [a b]", got["tag"])
	}
}

func TestFromRequestMalformedParamsValue(t *testing.T) {
	query := url.Values{}
	query.Set("params", "not json at all")
	r := httptest.NewRequest("GET", "/cards?"+query.Encode(), nil)

	_, err := FromRequest(r)
	if card.CodeOf(err) != card.CodeParamsInvalidJSON {
		t.Fatalf("code = %q, want %q", card.CodeOf(err), card.CodeParamsInvalidJSON)
	}
}

func TestFromRequestJSONBody(t *testing.T) {
	body := strings.NewReader(`{"topic":"sales","window":5}`)
	r := httptest.NewRequest("POST", "/cards", body)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales", "window": float64(5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromRequestDoubleEncodedBodyParams(t *testing.T) {
	body := strings.NewReader(`{"params": "{\"topic\":\"sales\"}"}`)
	r := httptest.NewRequest("POST", "/cards", body)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
	if _, ok := got["filters"]; ok {
		t.Fatal("filters key must be absent")
	}
}

func TestFromRequestNestedParamsUnwrapsOneLevel(t *testing.T) {
	body := strings.NewReader(`{"params":{"params":{"topic":"sales"}}}`)
	r := httptest.NewRequest("POST", "/cards", body)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromRequestFormBody(t *testing.T) {
	body := strings.NewReader("topic=sales&limit=3")
	r := httptest.NewRequest("POST", "/cards", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	want := map[string]any{"topic": "sales", "limit": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromRequestEmptyBodyFallsBackToQuery(t *testing.T) {
	r := httptest.NewRequest("POST", "/cards?topic=sales", nil)

	got, err := FromRequest(r)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if got["topic"] != "sales" {
		t.Fatalf("topic = %v, want sales", got["topic"])
	}
}

func TestFromQueryAllowListAndCoercion(t *testing.T) {
	query := url.Values{}
	query.Set("topic", "metrics")
	query.Set("resumeSeq", "5")
	query.Set("reconnectDelay", "1.5")
	query.Set("ackPolicy", "manual")
	query.Set("unlisted", "dropped")

	got, err := FromQuery(query)
	if err != nil {
		t.Fatalf("from query: %v", err)
	}
	if got["topic"] != "metrics" {
		t.Fatalf("topic = %v, want metrics", got["topic"])
	}
	if got["resumeSeq"] != 5 {
		t.Fatalf("resumeSeq = %#v, want int 5", got["resumeSeq"])
	}
	if got["reconnectDelay"] != 1.5 {
		t.Fatalf("reconnectDelay = %#v, want 1.5", got["reconnectDelay"])
	}
	if got["ackPolicy"] != "manual" {
		t.Fatalf("ackPolicy = %v, want manual", got["ackPolicy"])
	}
	if _, ok := got["unlisted"]; ok {
		t.Fatal("unlisted key must be dropped")
	}
}

func TestFromQueryCollectsHeaders(t *testing.T) {
	query := url.Values{}
	query.Set("headers.Authorization", "Bearer tok")
	query.Set("headers.X-Tenant", "acme")

	got, err := FromQuery(query)
	if err != nil {
		t.Fatalf("from query: %v", err)
	}
	headers, ok := got["headers"].(map[string]any)
	if !ok {
		t.Fatalf("headers = %#v, want mapping", got["headers"])
	}
	if headers["Authorization"] != "Bearer tok" {
		t.Fatalf("Authorization = %v", headers["Authorization"])
	}
	if headers["X-Tenant"] != "acme" {
		t.Fatalf("X-Tenant = %v", headers["X-Tenant"])
	}
}

func TestFromQueryParamsKeyWins(t *testing.T) {
	query := url.Values{}
	query.Set("params", `{"topic":"sales"}`)
	query.Set("resumeSeq", "5")

	got, err := FromQuery(query)
	if err != nil {
		t.Fatalf("from query: %v", err)
	}
	want := map[string]any{"topic": "sales"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %#v, want %#v", got, want)
	}
}

func TestFromInitialMessage(t *testing.T) {
	got := FromInitialMessage([]byte(`{"params":{"topic":"sales"}}`))
	if !reflect.DeepEqual(got, map[string]any{"topic": "sales"}) {
		t.Fatalf("params = %#v", got)
	}

	got = FromInitialMessage([]byte(`{"params":"{\"topic\":\"sales\"}"}`))
	if !reflect.DeepEqual(got, map[string]any{"topic": "sales"}) {
		t.Fatalf("double encoded params = %#v", got)
	}

	got = FromInitialMessage([]byte(`{"topic":"sales"}`))
	if !reflect.DeepEqual(got, map[string]any{"topic": "sales"}) {
		t.Fatalf("bare mapping = %#v", got)
	}

	got = FromInitialMessage([]byte("not json"))
	if got["initialMessage"] != "not json" {
		t.Fatalf("non-JSON message = %#v", got)
	}
}
