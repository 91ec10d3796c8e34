// Package card defines the dashboard card contract shared by every transport
// adapter: record envelopes, per-kind payload validation, open query
// metadata, and the machine-readable error codes surfaced to clients.
package card

import (
	"encoding/json"
	"strings"
)

// Kind selects the variant-specific payload shape of a card record.
type Kind string

const (
	KindChart    Kind = "chart"
	KindTable    Kind = "table"
	KindNumber   Kind = "number"
	KindHTML     Kind = "html"
	KindIframe   Kind = "iframe"
	KindMarkdown Kind = "markdown"
)

// Kinds lists every supported card kind.
func Kinds() []Kind {
	return []Kind{KindChart, KindTable, KindNumber, KindHTML, KindIframe, KindMarkdown}
}

// KnownKind reports whether kind names a supported card variant.
func KnownKind(kind Kind) bool {
	switch kind {
	case KindChart, KindTable, KindNumber, KindHTML, KindIframe, KindMarkdown:
		return true
	}
	return false
}

// Payload is a kind-specific card data payload.
type Payload interface {
	// Validate checks the payload's per-kind constraints.
	Validate() error
}

// Record is the envelope every dashboard card travels in. Clients send both
// camelCase and snake_case identifier keys; decoding accepts either and
// encoding always emits camelCase.
type Record struct {
	Kind     Kind          `json:"kind"`
	ReportID string        `json:"reportId"`
	CardID   string        `json:"cardId"`
	Data     Payload       `json:"data,omitempty"`
	Meta     QueryMetadata `json:"meta,omitempty"`
}

// rawRecord captures the envelope before the kind-specific data decode. The
// snake_case fields accept the alternate key spelling some clients send.
type rawRecord struct {
	Kind          Kind            `json:"kind"`
	ReportID      string          `json:"reportId"`
	ReportIDSnake string          `json:"report_id"`
	CardID        string          `json:"cardId"`
	CardIDSnake   string          `json:"card_id"`
	Data          json.RawMessage `json:"data"`
	Meta          json.RawMessage `json:"meta"`
}

// DecodeRecord decodes a raw JSON object into a typed Record. The kind field
// is required and must name a supported variant.
func DecodeRecord(raw []byte) (*Record, error) {
	return decodeRecord(raw, "")
}

// DecodeRecordForKind decodes like DecodeRecord but defaults a missing kind
// to the given one and rejects records of a different kind.
func DecodeRecordForKind(kind Kind, raw []byte) (*Record, error) {
	return decodeRecord(raw, kind)
}

func decodeRecord(raw []byte, defaultKind Kind) (*Record, error) {
	var env rawRecord
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Newf(CodeRecordNotObject, "record payload must be an object")
	}

	kind := env.Kind
	if kind == "" {
		kind = defaultKind
	}
	if !KnownKind(kind) {
		return nil, Newf(CodeRecordKindUnknown, "unknown card kind %q", kind)
	}
	if defaultKind != "" && kind != defaultKind {
		return nil, Newf(CodeRecordKindMismatch, "record kind %q, want %q", kind, defaultKind)
	}

	record := &Record{
		Kind:     kind,
		ReportID: firstNonEmpty(env.ReportID, env.ReportIDSnake),
		CardID:   firstNonEmpty(env.CardID, env.CardIDSnake),
	}

	if len(env.Meta) > 0 && !isJSONNull(env.Meta) {
		meta, err := decodeMetadata(env.Meta)
		if err != nil {
			return nil, err
		}
		record.Meta = meta
	}

	if len(env.Data) > 0 && !isJSONNull(env.Data) {
		data, err := decodePayload(kind, env.Data)
		if err != nil {
			return nil, err
		}
		record.Data = data
	}

	return record, nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	switch kind {
	case KindChart:
		return decodeChartData(raw)
	case KindTable:
		return decodeTableData(raw)
	case KindNumber:
		return decodeNumberData(raw)
	case KindHTML:
		return decodeHTMLData(raw)
	case KindIframe:
		return decodeIframeData(raw)
	case KindMarkdown:
		return decodeMarkdownData(raw)
	}
	return nil, Newf(CodeRecordKindUnknown, "unknown card kind %q", kind)
}

// Validate checks the envelope fields and the kind-specific payload.
func (r *Record) Validate() error {
	if r == nil {
		return Newf(CodeRecordNotObject, "record is nil")
	}
	if !KnownKind(r.Kind) {
		return Newf(CodeRecordKindUnknown, "unknown card kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ReportID) == "" {
		return Newf(CodeRecordReportIDEmpty, "reportId is required")
	}
	if strings.TrimSpace(r.CardID) == "" {
		return Newf(CodeRecordCardIDEmpty, "cardId is required")
	}
	if r.Data != nil {
		if err := r.Data.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Flatten renders the record in the flat shape the dashboard client consumes:
// identifier fields in camelCase, meta JSON-stringified, and mapping-shaped
// data merged into the top level.
func (r *Record) Flatten() (map[string]any, error) {
	if r == nil {
		return nil, Newf(CodeRecordNotObject, "record is nil")
	}

	out := map[string]any{
		"kind":     string(r.Kind),
		"cardId":   r.CardID,
		"reportId": r.ReportID,
		"meta":     nil,
	}

	if r.Meta != nil {
		encoded, err := json.Marshal(r.Meta)
		if err != nil {
			return nil, Newf(CodeMetadataNotObject, "encode meta: %v", err)
		}
		out["meta"] = string(encoded)
	}

	if r.Data == nil {
		return out, nil
	}

	encoded, err := json.Marshal(r.Data)
	if err != nil {
		return nil, Newf(CodeRecordNotObject, "encode data: %v", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		out["data"] = r.Data
		return out, nil
	}
	for k, v := range asMap {
		out[k] = v
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
