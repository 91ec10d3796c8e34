package card

import "encoding/json"

// Validator checks a single handler-produced item and returns its normalized
// form. Transports run one per emitted item before writing it to a client.
type Validator interface {
	Validate(item any) (any, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(item any) (any, error)

// Validate calls f.
func (f ValidatorFunc) Validate(item any) (any, error) {
	return f(item)
}

// ForKind returns a Validator that coerces maps, JSON bytes, or Record values
// into a validated record of the given kind. A missing kind field defaults to
// kind; a conflicting one is rejected.
func ForKind(kind Kind) Validator {
	return ValidatorFunc(func(item any) (any, error) {
		return normalizeRecord(item, kind)
	})
}

// ForAnyKind returns a Validator like ForKind except the item must carry its
// own kind field.
func ForAnyKind() Validator {
	return ValidatorFunc(func(item any) (any, error) {
		return normalizeRecord(item, "")
	})
}

func normalizeRecord(item any, kind Kind) (*Record, error) {
	if record, ok := item.(*Record); ok {
		if kind != "" && record.Kind == "" {
			record.Kind = kind
		}
		if kind != "" && record.Kind != kind {
			return nil, Newf(CodeRecordKindMismatch, "record kind %q, want %q", record.Kind, kind)
		}
		if err := record.Validate(); err != nil {
			return nil, err
		}
		return record, nil
	}

	raw, err := rawJSON(item)
	if err != nil {
		return nil, err
	}
	record, err := decodeRecord(raw, kind)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

func rawJSON(item any) (json.RawMessage, error) {
	switch value := item.(type) {
	case json.RawMessage:
		return value, nil
	case []byte:
		return value, nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, Newf(CodeRecordNotObject, "item is not JSON-encodable: %v", err)
		}
		return encoded, nil
	}
}
