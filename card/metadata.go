package card

import "encoding/json"

// QueryMetadata is an open mapping of diagnostic fields attached to a card
// record. The well-known keys (startedAt, finishedAt, elapsedMs) have typed
// accessors; every other key passes through untouched.
type QueryMetadata map[string]any

// StartedAt returns the startedAt field when present and a string.
func (m QueryMetadata) StartedAt() (string, bool) {
	return m.stringField("startedAt")
}

// FinishedAt returns the finishedAt field when present and a string.
func (m QueryMetadata) FinishedAt() (string, bool) {
	return m.stringField("finishedAt")
}

// ElapsedMs returns the elapsedMs field coerced to an integer.
func (m QueryMetadata) ElapsedMs() (int64, bool) {
	return m.intField("elapsedMs")
}

// Unit returns the unit field used by number card metadata.
func (m QueryMetadata) Unit() (string, bool) {
	return m.stringField("unit")
}

// Format returns the format field used by number card metadata.
func (m QueryMetadata) Format() (string, bool) {
	return m.stringField("format")
}

func (m QueryMetadata) stringField(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m QueryMetadata) intField(key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// decodeMetadata rejects non-object metadata while leaving the mapping open.
func decodeMetadata(raw json.RawMessage) (QueryMetadata, error) {
	var meta QueryMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, Newf(CodeMetadataNotObject, "meta must be a mapping")
	}
	return meta, nil
}
