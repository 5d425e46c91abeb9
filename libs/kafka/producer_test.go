package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSyncProducerPublishesJSON(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	var got map[string]string
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &got)
	})

	metrics := NewProducerMetrics(prometheus.NewRegistry())
	p := NewSyncProducerFrom(mock, nil, metrics)
	defer p.Close()

	if _, _, err := p.PublishJSON(context.Background(), "quota.denied", "key-1", map[string]string{"class": "chat"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got["class"] != "chat" {
		t.Fatalf("expected payload to round trip, got %v", got)
	}
	if v := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("quota.denied", "success")); v != 1 {
		t.Fatalf("expected one success, got %v", v)
	}
}

func TestSyncProducerReportsFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	metrics := NewProducerMetrics(prometheus.NewRegistry())
	p := NewSyncProducerFrom(mock, nil, metrics)
	defer p.Close()

	_, _, err := p.PublishJSON(context.Background(), "quota.denied", "key-1", map[string]string{})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
	if v := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("quota.denied", "error")); v != 1 {
		t.Fatalf("expected one error, got %v", v)
	}
}

func TestSyncProducerHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewSyncProducerFrom(mock, nil, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := p.PublishJSON(ctx, "quota.denied", "k", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	env, err := NewEnvelope("quota.denied", 1, "req-1", at)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if env.EventID == "" || env.Timestamp.Location() != time.UTC {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if _, err := NewEnvelope("", 1, "", at); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := NewEnvelope("x", 0, "", at); err == nil {
		t.Fatalf("expected error for version 0")
	}
}
