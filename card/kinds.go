package card

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Chart
// ---------------------------------------------------------------------------

// ChartData carries the series rows rendered by a chart card.
type ChartData struct {
	Data []map[string]any `json:"data"`
}

func decodeChartData(raw json.RawMessage) (*ChartData, error) {
	var data ChartData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeChartDataMissing, "chart data must be a list of objects")
	}
	return &data, nil
}

// Validate checks that the series rows are present.
func (d *ChartData) Validate() error {
	if d == nil || d.Data == nil {
		return Newf(CodeChartDataMissing, "chart data is required")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

// TableData carries tabular rows plus the ordered column names.
type TableData struct {
	Rows       []map[string]any `json:"rows"`
	Columns    []string         `json:"columns"`
	TotalCount *int64           `json:"totalCount,omitempty"`
}

// UnmarshalJSON accepts both totalCount and total_count spellings.
func (d *TableData) UnmarshalJSON(raw []byte) error {
	type alias TableData
	aux := struct {
		*alias
		TotalCountSnake *int64 `json:"total_count"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	if d.TotalCount == nil {
		d.TotalCount = aux.TotalCountSnake
	}
	return nil
}

func decodeTableData(raw json.RawMessage) (*TableData, error) {
	var data TableData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeTableRowsMissing, "table data must be an object with rows and columns")
	}
	return &data, nil
}

// Validate checks that rows and columns are present.
func (d *TableData) Validate() error {
	if d == nil || d.Rows == nil {
		return Newf(CodeTableRowsMissing, "table rows are required")
	}
	if d.Columns == nil {
		return Newf(CodeTableColumnsMissing, "table columns are required")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Number / KPI
// ---------------------------------------------------------------------------

// Trend values accepted by number cards.
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// NumberData carries a single KPI value with optional trend context.
type NumberData struct {
	Value           *float64 `json:"value"`
	PreviousValue   *float64 `json:"previousValue,omitempty"`
	Trend           string   `json:"trend,omitempty"`
	TrendPercentage *float64 `json:"trendPercentage,omitempty"`
	Label           string   `json:"label,omitempty"`
}

func decodeNumberData(raw json.RawMessage) (*NumberData, error) {
	var data NumberData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeNumberValueMissing, "number data must be an object with a numeric value")
	}
	return &data, nil
}

// Validate checks the required value and the trend choice.
func (d *NumberData) Validate() error {
	if d == nil || d.Value == nil {
		return Newf(CodeNumberValueMissing, "number value is required")
	}
	switch d.Trend {
	case "", TrendUp, TrendDown, TrendNeutral:
	default:
		return Newf(CodeNumberInvalidTrend, "trend %q must be one of up, down, neutral", d.Trend)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Html
// ---------------------------------------------------------------------------

// HTMLData carries raw or pre-rendered HTML content.
type HTMLData struct {
	Content string `json:"content,omitempty"`
	RawHTML string `json:"rawHtml,omitempty"`
	Styles  string `json:"styles,omitempty"`
}

func decodeHTMLData(raw json.RawMessage) (*HTMLData, error) {
	var data HTMLData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeRecordNotObject, "html data must be an object")
	}
	return &data, nil
}

// Validate accepts any combination of optional fields.
func (d *HTMLData) Validate() error {
	return nil
}

// ---------------------------------------------------------------------------
// Iframe
// ---------------------------------------------------------------------------

// IframeData embeds an external page by URL.
type IframeData struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// UnmarshalJSON coerces numeric width/height values to strings.
func (d *IframeData) UnmarshalJSON(raw []byte) error {
	aux := struct {
		URL    string `json:"url"`
		Title  string `json:"title"`
		Width  any    `json:"width"`
		Height any    `json:"height"`
	}{}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	d.URL = aux.URL
	d.Title = aux.Title
	d.Width = coerceDimension(aux.Width)
	d.Height = coerceDimension(aux.Height)
	return nil
}

func coerceDimension(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%v", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func decodeIframeData(raw json.RawMessage) (*IframeData, error) {
	var data IframeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeIframeURLEmpty, "iframe data must be an object with a url")
	}
	return &data, nil
}

// Validate checks the required url.
func (d *IframeData) Validate() error {
	if d == nil || strings.TrimSpace(d.URL) == "" {
		return Newf(CodeIframeURLEmpty, "iframe url is required")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Markdown
// ---------------------------------------------------------------------------

// MarkdownData carries raw or pre-rendered markdown content.
type MarkdownData struct {
	Content     string `json:"content,omitempty"`
	RawMarkdown string `json:"rawMarkdown,omitempty"`
	Styles      string `json:"styles,omitempty"`
}

func decodeMarkdownData(raw json.RawMessage) (*MarkdownData, error) {
	var data MarkdownData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, Newf(CodeRecordNotObject, "markdown data must be an object")
	}
	return &data, nil
}

// Validate accepts any combination of optional fields.
func (d *MarkdownData) Validate() error {
	return nil
}
