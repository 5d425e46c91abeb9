package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/fingerprint"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/storage"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const accountKeyPrefix = "account:"

// WindowStore is the persisted hit log. Each call must be atomic per (key, class).
type WindowStore interface {
	ReadAndPrune(ctx context.Context, key, class string, now time.Time, lookback time.Duration) ([]time.Time, error)
	Append(ctx context.Context, key, class string, ts time.Time) error
}

// Observer receives every decision and every fail-open event.
type Observer interface {
	Decided(class Class, path Path, d Decision, elapsed time.Duration)
	FailedOpen(class Class, path Path, err error)
}

type nopObserver struct{}

func (nopObserver) Decided(Class, Path, Decision, time.Duration) {}
func (nopObserver) FailedOpen(Class, Path, error)                {}

// Engine holds no counters of its own; the store is the only shared state. Two
// concurrent requests for one client can both read a total under the limit before
// either appends, so a burst may be admitted once past the limit per racing request.
type Engine struct {
	Store        WindowStore
	Policy       Policy
	Logger       *slog.Logger
	Observer     Observer
	StoreTimeout time.Duration

	tracer trace.Tracer
}

func NewEngine(store WindowStore, policy Policy, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidPolicy)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Store:    store,
		Policy:   policy,
		Logger:   logger,
		Observer: nopObserver{},
		tracer:   otel.Tracer("quota/limiter"),
	}, nil
}

// Check runs the anonymous path and records the hit when it is admitted.
func (e *Engine) Check(ctx context.Context, signal fingerprint.Signal, class Class, now time.Time) (Decision, error) {
	return e.anonymous(ctx, signal, class, now, true)
}

// Peek reports what Check would decide without recording anything.
func (e *Engine) Peek(ctx context.Context, signal fingerprint.Signal, class Class, now time.Time) (Decision, error) {
	return e.anonymous(ctx, signal, class, now, false)
}

// CheckAuthenticated runs the single-record account path and records the hit when it
// is admitted.
func (e *Engine) CheckAuthenticated(ctx context.Context, accountID string, class Class, now time.Time) (Decision, error) {
	return e.authenticated(ctx, accountID, class, now, true)
}

func (e *Engine) PeekAuthenticated(ctx context.Context, accountID string, class Class, now time.Time) (Decision, error) {
	return e.authenticated(ctx, accountID, class, now, false)
}

// AccountKey is the record key of an account. Derived identifier keys are always
// prefixed with their kind, so the two paths never share a record.
func AccountKey(accountID string) string {
	return accountKeyPrefix + accountID
}

func (e *Engine) anonymous(ctx context.Context, signal fingerprint.Signal, class Class, now time.Time, commit bool) (Decision, error) {
	limits, err := e.Policy.limits(class)
	if err != nil {
		return Decision{}, err
	}
	start := time.Now()
	ctx, span := e.startSpan(ctx, class, PathAnonymous, commit)
	defer span.End()

	limit := limits.Anonymous
	ids := fingerprint.Expand(signal)

	hits, err := e.readAll(ctx, ids, class, now)
	if err != nil {
		return e.failOpen(class, PathAnonymous, limit, commit, err), nil
	}

	total, soonest := weigh(ids, hits, now, e.Policy.Lookback)
	span.SetAttributes(attribute.Float64("quota.weighted_total", total.InexactFloat64()))

	var d Decision
	limitDec := decimal.NewFromInt(int64(limit))
	switch {
	case total.GreaterThanOrEqual(limitDec):
		reset := e.Policy.Lookback
		if soonest != nil {
			reset = *soonest
		}
		d = deny(limit, reset)
	case !commit:
		d = allow(limit, int(limitDec.Sub(total).Ceil().IntPart()), soonest)
	default:
		if err := e.appendAll(ctx, ids, class, now); err != nil {
			e.reportFailure(class, PathAnonymous, err)
		}
		d = allow(limit, int(limitDec.Sub(total).Floor().IntPart())-1, soonest)
	}

	e.finish(span, class, PathAnonymous, d, start)
	return d, nil
}

func (e *Engine) authenticated(ctx context.Context, accountID string, class Class, now time.Time, commit bool) (Decision, error) {
	if accountID == "" {
		return Decision{}, ErrMissingAccount
	}
	limits, err := e.Policy.limits(class)
	if err != nil {
		return Decision{}, err
	}
	start := time.Now()
	ctx, span := e.startSpan(ctx, class, PathAuthenticated, commit)
	defer span.End()

	limit := limits.Authenticated
	key := AccountKey(accountID)

	hits, err := e.read(ctx, key, class, now)
	if err != nil {
		return e.failOpen(class, PathAuthenticated, limit, commit, err), nil
	}

	var soonest *time.Duration
	if reset, ok := storage.ResetIn(hits, now, e.Policy.Lookback); ok {
		soonest = &reset
	}

	var d Decision
	used := len(hits)
	switch {
	case used >= limit:
		d = deny(limit, *soonest)
	case !commit:
		d = allow(limit, limit-used, soonest)
	default:
		if err := e.append(ctx, key, class, now); err != nil {
			e.reportFailure(class, PathAuthenticated, err)
		}
		d = allow(limit, limit-used-1, soonest)
	}

	e.finish(span, class, PathAuthenticated, d, start)
	return d, nil
}

// weigh sums each identifier's hit count times its weight and finds the soonest time
// at which any counted hit ages out.
func weigh(ids []fingerprint.Identifier, hits [][]time.Time, now time.Time, lookback time.Duration) (decimal.Decimal, *time.Duration) {
	total := decimal.Zero
	var soonest *time.Duration
	for i, id := range ids {
		if len(hits[i]) == 0 {
			continue
		}
		total = total.Add(id.Weight.Mul(decimal.NewFromInt(int64(len(hits[i])))))
		if reset, ok := storage.ResetIn(hits[i], now, lookback); ok && (soonest == nil || reset < *soonest) {
			r := reset
			soonest = &r
		}
	}
	return total, soonest
}

func (e *Engine) readAll(ctx context.Context, ids []fingerprint.Identifier, class Class, now time.Time) ([][]time.Time, error) {
	hits := make([][]time.Time, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			h, err := e.read(gctx, id.Key, class, now)
			if err != nil {
				return fmt.Errorf("read %s: %w", id.Kind, err)
			}
			hits[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits, nil
}

// appendAll records the hit on every identifier so no granularity drifts. Appends do
// not share a cancellable context: one failed record must not abort the others.
func (e *Engine) appendAll(ctx context.Context, ids []fingerprint.Identifier, class Class, now time.Time) error {
	errs := make([]error, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := e.append(ctx, id.Key, class, now); err != nil {
				errs[i] = fmt.Errorf("append %s: %w", id.Kind, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (e *Engine) read(ctx context.Context, key string, class Class, now time.Time) ([]time.Time, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.Store.ReadAndPrune(ctx, key, string(class), now, e.Policy.Lookback)
}

func (e *Engine) append(ctx context.Context, key string, class Class, now time.Time) error {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.Store.Append(ctx, key, string(class), now)
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.StoreTimeout)
}

// failOpen admits the request when the store cannot answer. An outage of the counter
// store must not turn into a denial for everyone.
func (e *Engine) failOpen(class Class, path Path, limit int, commit bool, err error) Decision {
	e.reportFailure(class, path, err)
	if commit {
		return allow(limit, limit-1, nil)
	}
	return allow(limit, limit, nil)
}

func (e *Engine) reportFailure(class Class, path Path, err error) {
	e.logger().Warn("quota store unavailable, failing open",
		"class", string(class),
		"path", string(path),
		"error", err,
	)
	e.observer().FailedOpen(class, path, err)
}

func (e *Engine) startSpan(ctx context.Context, class Class, path Path, commit bool) (context.Context, trace.Span) {
	name := "limiter.Check"
	if !commit {
		name = "limiter.Peek"
	}
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer("quota/limiter")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("quota.class", string(class)),
		attribute.String("quota.path", string(path)),
	))
}

func (e *Engine) finish(span trace.Span, class Class, path Path, d Decision, start time.Time) {
	span.SetAttributes(
		attribute.Bool("quota.allowed", d.Allowed),
		attribute.Int("quota.remaining", d.Remaining),
	)
	e.observer().Decided(class, path, d, time.Since(start))
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) observer() Observer {
	if e.Observer == nil {
		return nopObserver{}
	}
	return e.Observer
}
