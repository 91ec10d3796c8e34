package card

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code surfaced to dashboard clients.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Record envelope errors
	CodeRecordNotObject     Code = "RECORD_NOT_OBJECT"
	CodeRecordKindUnknown   Code = "RECORD_KIND_UNKNOWN"
	CodeRecordKindMismatch  Code = "RECORD_KIND_MISMATCH"
	CodeRecordReportIDEmpty Code = "RECORD_REPORT_ID_EMPTY"
	CodeRecordCardIDEmpty   Code = "RECORD_CARD_ID_EMPTY"
	CodeMetadataNotObject   Code = "METADATA_NOT_OBJECT"

	// Kind payload errors
	CodeChartDataMissing    Code = "CHART_DATA_MISSING"
	CodeTableRowsMissing    Code = "TABLE_ROWS_MISSING"
	CodeTableColumnsMissing Code = "TABLE_COLUMNS_MISSING"
	CodeNumberValueMissing  Code = "NUMBER_VALUE_MISSING"
	CodeNumberInvalidTrend  Code = "NUMBER_INVALID_TREND"
	CodeIframeURLEmpty      Code = "IFRAME_URL_EMPTY"

	// Parameter errors
	CodeParamsInvalidJSON Code = "PARAMS_INVALID_JSON"

	// Handler errors
	CodeHandlerFailed Code = "HANDLER_FAILED"
)

// Error pairs a code with a human-readable message so transports can map
// failures onto their wire formats without string matching.
type Error struct {
	Code    Code
	Message string
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the card code from err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	var cardErr *Error
	if errors.As(err, &cardErr) {
		return cardErr.Code
	}
	return CodeUnknown
}

// IsValidation reports whether err represents a client input failure rather
// than a handler or infrastructure failure.
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code != CodeUnknown && code != CodeHandlerFailed
}

// HTTPStatus maps an error to the HTTP status transports respond with.
// Client input failures map to 400, everything else to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
