package server

import (
	"context"
	"time"

	"github.com/adimis-ai/cereon-sdk/card"
	"github.com/adimis-ai/cereon-sdk/cardhttp"
	"github.com/adimis-ai/cereon-sdk/stream"
)

// demoSampleCount bounds the demo stream so connections drain on their own.
const demoSampleCount = 3

const demoReportID = "demo-report"

// numberCard serves a single KPI record for the topic named in the request
// parameters.
func numberCard(_ context.Context, req *cardhttp.Request) (any, error) {
	return numberRecord(topicOf(req.Params), 42, ""), nil
}

// tableCards serves a small table slice so list responses are exercised.
func tableCards(_ context.Context, req *cardhttp.Request) (any, error) {
	topic := topicOf(req.Params)
	total := int64(2)
	return []any{
		&card.Record{
			Kind:     card.KindTable,
			ReportID: demoReportID,
			CardID:   topic + "-table",
			Data: &card.TableData{
				Rows: []map[string]any{
					{"name": "north", "value": 12},
					{"name": "south", "value": 30},
				},
				Columns:    []string{"name", "value"},
				TotalCount: &total,
			},
		},
	}, nil
}

// streamNumbersHTTP backs the NDJSON route.
func streamNumbersHTTP(ctx context.Context, req *cardhttp.Request, emit func(item any) error) error {
	return emitNumbers(ctx, req.Params, emit)
}

// streamNumbersWS backs both WebSocket routes.
func streamNumbersWS(ctx context.Context, req *stream.Request, emit func(item any) error) error {
	return emitNumbers(ctx, req.Params, emit)
}

// emitNumbers emits a short series of KPI samples for the requested topic.
func emitNumbers(ctx context.Context, params map[string]any, emit func(item any) error) error {
	topic := topicOf(params)
	for i := 0; i < demoSampleCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		trend := card.TrendUp
		if i == 0 {
			trend = ""
		}
		if err := emit(numberRecord(topic, float64(i+1), trend)); err != nil {
			return err
		}
	}
	return nil
}

func numberRecord(topic string, value float64, trend string) *card.Record {
	started := time.Now().UTC().Format(time.RFC3339)
	return &card.Record{
		Kind:     card.KindNumber,
		ReportID: demoReportID,
		CardID:   topic + "-kpi",
		Data: &card.NumberData{
			Value: &value,
			Trend: trend,
			Label: topic,
		},
		Meta: card.QueryMetadata{"startedAt": started},
	}
}

func topicOf(params map[string]any) string {
	if topic, ok := params["topic"].(string); ok && topic != "" {
		return topic
	}
	return "metrics"
}
