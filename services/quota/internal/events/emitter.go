// Package events publishes quota denials for abuse analysis.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/libs/kafka"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
)

const (
	DeniedEventType    = "quota.denied"
	DeniedEventVersion = 1

	publishTimeout = 5 * time.Second
)

type DeniedEvent struct {
	kafka.Envelope
	Class          string `json:"class"`
	Path           string `json:"path"`
	Subject        string `json:"subject"`
	Limit          int    `json:"limit"`
	ResetInSeconds int64  `json:"reset_in_seconds"`
}

// Emitter hands denials to a single background publisher so request handling never
// waits on the broker. When the buffer is full the event is dropped.
type Emitter struct {
	publisher kafka.Publisher
	topic     string
	logger    *slog.Logger
	onDrop    func()

	// mu guards closed and the send on queue against Close.
	mu     sync.RWMutex
	closed bool
	queue  chan DeniedEvent
	wg     sync.WaitGroup
}

func NewEmitter(publisher kafka.Publisher, topic string, buffer int, logger *slog.Logger, onDrop func()) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	e := &Emitter{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		onDrop:    onDrop,
		queue:     make(chan DeniedEvent, buffer),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Denied queues an event. subject is the account id or the fingerprint key; it is also
// the partition key so one client's denials stay ordered.
func (e *Emitter) Denied(class limiter.Class, path limiter.Path, subject, requestID string, d limiter.Decision, at time.Time) {
	env, err := kafka.NewEnvelope(DeniedEventType, DeniedEventVersion, requestID, at)
	if err != nil {
		e.logger.Error("build denial event", "error", err)
		return
	}
	evt := DeniedEvent{
		Envelope: env,
		Class:    string(class),
		Path:     string(path),
		Subject:  subject,
		Limit:    d.Limit,
	}
	if d.ResetInSeconds != nil {
		evt.ResetInSeconds = *d.ResetInSeconds
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.onDrop()
		e.logger.Warn("denial event dropped, emitter closed", "class", evt.Class)
		return
	}
	select {
	case e.queue <- evt:
	default:
		e.onDrop()
		e.logger.Warn("denial event dropped, buffer full", "class", evt.Class)
	}
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for evt := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if _, _, err := e.publisher.PublishJSON(ctx, e.topic, evt.Subject, evt); err != nil {
			e.logger.Warn("publish denial event failed", "event_id", evt.EventID, "error", err)
		}
		cancel()
	}
}

// Close drains queued events and closes the publisher. Events passed to Denied after
// Close are dropped.
func (e *Emitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
	return e.publisher.Close()
}
