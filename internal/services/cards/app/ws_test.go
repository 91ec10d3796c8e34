package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	gorilla "github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

// readDataFrames collects count data frames, skipping heartbeat pings.
func readDataFrames(t *testing.T, read func() map[string]any, count int) []map[string]any {
	t.Helper()
	frames := make([]map[string]any, 0, count)
	for len(frames) < count {
		frame := read()
		if frame["action"] == "ping" {
			continue
		}
		if _, ok := frame["data"]; !ok {
			t.Fatalf("frame = %#v, want data frame", frame)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestWSCardsSubscribeStreamsSamples(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "/ws/cards?topic=sales")

	writeFrame(t, conn, map[string]any{
		"action":         "subscribe",
		"subscriptionId": "sub-1",
		"topic":          "sales",
	})

	frame := readFrame(t, conn)
	if frame["action"] != "subscribed" {
		t.Fatalf("action = %v, want subscribed", frame["action"])
	}
	if frame["subscriptionId"] != "sub-1" {
		t.Fatalf("subscriptionId = %v, want sub-1", frame["subscriptionId"])
	}

	frames := readDataFrames(t, func() map[string]any { return readFrame(t, conn) }, demoSampleCount)
	for i, frame := range frames {
		record := frame["data"].(map[string]any)
		if record["cardId"] != "sales-kpi" {
			t.Fatalf("cardId = %v, want sales-kpi", record["cardId"])
		}
		payload := record["data"].(map[string]any)
		if payload["value"] != float64(i+1) {
			t.Fatalf("sample %d value = %v, want %d", i, payload["value"], i+1)
		}
		ids, ok := frame["subscriptionIds"].([]any)
		if !ok || len(ids) != 1 || ids[0] != "sub-1" {
			t.Fatalf("subscriptionIds = %#v, want [sub-1]", frame["subscriptionIds"])
		}
	}
}

func TestWSCardsPingPong(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "/ws/cards")

	writeFrame(t, conn, map[string]any{"action": "ping"})

	for {
		frame := readFrame(t, conn)
		if frame["action"] == "pong" {
			return
		}
		if frame["action"] != "ping" {
			t.Fatalf("action = %v, want pong", frame["action"])
		}
	}
}

func TestWSGorillaSubscribeStreamsSamples(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/gorilla?topic=ops"
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if err := conn.WriteJSON(map[string]any{
		"action":         "subscribe",
		"subscriptionId": "sub-1",
		"topic":          "ops",
	}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	readGorilla := func() map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read server frame: %v", err)
		}
		return frame
	}

	frame := readGorilla()
	if frame["action"] != "subscribed" {
		t.Fatalf("action = %v, want subscribed", frame["action"])
	}

	frames := readDataFrames(t, readGorilla, demoSampleCount)
	record := frames[0]["data"].(map[string]any)
	if record["cardId"] != "ops-kpi" {
		t.Fatalf("cardId = %v, want ops-kpi", record["cardId"])
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	t.Cleanup(srv.Close)

	t.Run("up", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/up")
		if err != nil {
			t.Fatalf("get /up: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("number", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/cards/number?topic=sales")
		if err != nil {
			t.Fatalf("get /cards/number: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var record map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if record["kind"] != "number" {
			t.Fatalf("kind = %v, want number", record["kind"])
		}
		if record["cardId"] != "sales-kpi" {
			t.Fatalf("cardId = %v, want sales-kpi", record["cardId"])
		}
	})

	t.Run("table", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/cards/table")
		if err != nil {
			t.Fatalf("get /cards/table: %v", err)
		}
		defer resp.Body.Close()
		var records []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("records = %d, want 1", len(records))
		}
		if records[0]["kind"] != "table" {
			t.Fatalf("kind = %v, want table", records[0]["kind"])
		}
	})

	t.Run("stream", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/cards/stream?topic=sales")
		if err != nil {
			t.Fatalf("get /cards/stream: %v", err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Fatalf("content type = %q", ct)
		}
		decoder := json.NewDecoder(resp.Body)
		lines := 0
		for decoder.More() {
			var record map[string]any
			if err := decoder.Decode(&record); err != nil {
				t.Fatalf("decode line %d: %v", lines, err)
			}
			if record["cardId"] != "sales-kpi" {
				t.Fatalf("cardId = %v, want sales-kpi", record["cardId"])
			}
			lines++
		}
		if lines != demoSampleCount {
			t.Fatalf("lines = %d, want %d", lines, demoSampleCount)
		}
	})
}

func TestNewServerRequiresAddress(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected address error")
	}
}
