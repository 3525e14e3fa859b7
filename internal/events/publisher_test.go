package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimentpipe/backend-go/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByRun(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "sentiment.analysis"}
	res := models.AnalysisResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Degraded:    true,
		Failures:    []models.SourceFailure{{Source: "news", Code: "timeout"}},
	}

	require.NoError(t, p.Publish(context.Background(), res))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "run-1", string(w.msgs[0].Key))

	var ev AnalysisEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.True(t, ev.Degraded)
	assert.Equal(t, "timeout", ev.Failures[0].Code)
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, topic: "t"}
	err := p.Publish(context.Background(), models.AnalysisResult{RunID: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(nil, "t")
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), models.AnalysisResult{}))
	assert.NoError(t, p.Close())
}
