package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultDeliveryTimeout = 12 * time.Second
	cleanupTimeout         = 5 * time.Second
)

// EndpointRegistry is the subset of the subscription store the engine needs.
type EndpointRegistry interface {
	ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	ListActive(ctx context.Context) ([]models.Subscription, error)
	Delete(ctx context.Context, id string) error
}

// Deliverer transmits one serialized payload to one endpoint. A returned
// *DeliveryError carries the push service classification; any other error is
// treated as transient.
type Deliverer interface {
	Send(ctx context.Context, sub models.Subscription, payload []byte, priority models.Priority) error
}

// DeliveryRecorder observes per-endpoint results.
type DeliveryRecorder interface {
	RecordDelivery(delivered bool)
	RecordPrune()
}

// EngineConfig tunes the fan-out engine.
type EngineConfig struct {
	// DeliveryTimeout bounds each individual delivery attempt.
	DeliveryTimeout time.Duration
	// MaxConcurrent caps in-flight deliveries across all requests. Zero means unbounded.
	MaxConcurrent int
	Payload       PayloadOptions
}

// Engine fans one notification out to every active endpoint of the
// addressed users. Every level of fan-out waits for all of its targets;
// nothing short-circuits on the first success or failure.
type Engine struct {
	registry  EndpointRegistry
	deliverer Deliverer
	cfg       EngineConfig
	logger    *slog.Logger
	recorder  DeliveryRecorder
	sem       *semaphore.Weighted
	now       func() time.Time
}

// NewEngine wires the engine to its registry and delivery client.
func NewEngine(registry EndpointRegistry, deliverer Deliverer, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		registry:  registry,
		deliverer: deliverer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return e
}

// SetRecorder attaches a metrics recorder.
func (e *Engine) SetRecorder(r DeliveryRecorder) {
	e.recorder = r
}

// dispatchRun is the state shared by every delivery of one request.
type dispatchRun struct {
	payload *preparedPayload
	// pruned holds subscription ids already deleted during this request so
	// duplicate targets do not delete twice.
	pruned sync.Map
}

type endpointResult struct {
	sub    models.Subscription
	err    *DeliveryError
	pruned bool
}

func (e *Engine) prepare(n models.Notification) (*dispatchRun, error) {
	payload, err := buildPayload(n, e.cfg.Payload, e.now())
	if err != nil {
		return nil, err
	}
	return &dispatchRun{payload: payload}, nil
}

// Validate runs every content check a send performs, payload size included,
// without touching the registry.
func (e *Engine) Validate(n models.Notification) error {
	_, err := e.prepare(n)
	return err
}

// ValidateRecipient rejects a blank user id.
func ValidateRecipient(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalidf("userId is required")
	}
	return nil
}

// ValidateRecipients rejects an empty list or any blank entry.
func ValidateRecipients(userIDs []string) error {
	if len(userIDs) == 0 {
		return invalidf("userIds must not be empty")
	}
	for i, id := range userIDs {
		if strings.TrimSpace(id) == "" {
			return invalidf("userIds[%d] is empty", i)
		}
	}
	return nil
}

// SendToUser delivers n to every active endpoint of userID. A user without
// active endpoints yields an unsuccessful outcome, not an error. The error
// is non-nil for invalid input or a registry failure.
func (e *Engine) SendToUser(ctx context.Context, userID string, n models.Notification) (models.DeliveryOutcome, error) {
	userID = strings.TrimSpace(userID)
	if err := ValidateRecipient(userID); err != nil {
		return models.DeliveryOutcome{}, err
	}
	run, err := e.prepare(n)
	if err != nil {
		return models.DeliveryOutcome{UserID: userID}, err
	}
	outcome := e.sendToUser(ctx, run, userID)
	return outcome, outcome.Err
}

// SendToUsers delivers n to every listed user concurrently. Duplicate ids
// are processed independently. Per-user failures, registry errors included,
// are reported in the outcome and never abort the batch.
func (e *Engine) SendToUsers(ctx context.Context, userIDs []string, n models.Notification) (models.BatchOutcome, error) {
	if err := ValidateRecipients(userIDs); err != nil {
		return models.BatchOutcome{}, err
	}
	run, err := e.prepare(n)
	if err != nil {
		return models.BatchOutcome{}, err
	}

	start := time.Now()
	outcomes := make([]models.DeliveryOutcome, len(userIDs))
	// Goroutines never return an error, so the group never cancels siblings.
	var g errgroup.Group
	for i, id := range userIDs {
		g.Go(func() error {
			outcomes[i] = e.sendToUser(ctx, run, strings.TrimSpace(id))
			return nil
		})
	}
	_ = g.Wait()

	batch := models.BatchOutcome{Stats: models.DeliveryStats{Total: len(userIDs)}}
	for _, o := range outcomes {
		batch.Pruned += o.Pruned
		if o.Success {
			batch.Stats.Successful++
			continue
		}
		batch.FailedUsers = append(batch.FailedUsers, models.UserFailure{UserID: o.UserID, Reason: o.Reason})
	}
	batch.Stats.Failed = batch.Stats.Total - batch.Stats.Successful

	e.logger.Info("batch push dispatched",
		slog.Int("users", batch.Stats.Total),
		slog.Int("successful", batch.Stats.Successful),
		slog.Int("failed", batch.Stats.Failed),
		slog.Int("pruned", batch.Pruned),
		slog.Duration("took", time.Since(start)),
	)
	return batch, nil
}

// SendToAllActive delivers n to every active endpoint in the registry. The
// stats count endpoints, not users.
func (e *Engine) SendToAllActive(ctx context.Context, n models.Notification) (models.BatchOutcome, error) {
	run, err := e.prepare(n)
	if err != nil {
		return models.BatchOutcome{}, err
	}
	subs, err := e.registry.ListActive(ctx)
	if err != nil {
		return models.BatchOutcome{}, fmt.Errorf("list active subscriptions: %w", err)
	}

	start := time.Now()
	batch := models.BatchOutcome{Stats: models.DeliveryStats{Total: len(subs)}}
	for _, r := range e.dispatch(ctx, run, subs) {
		if r.err == nil {
			batch.Stats.Successful++
		} else {
			batch.Stats.Failed++
		}
		if r.pruned {
			batch.Pruned++
		}
	}

	e.logger.Info("broadcast push dispatched",
		slog.Int("endpoints", batch.Stats.Total),
		slog.Int("successful", batch.Stats.Successful),
		slog.Int("failed", batch.Stats.Failed),
		slog.Int("pruned", batch.Pruned),
		slog.Duration("took", time.Since(start)),
	)
	return batch, nil
}

func (e *Engine) sendToUser(ctx context.Context, run *dispatchRun, userID string) models.DeliveryOutcome {
	outcome := models.DeliveryOutcome{UserID: userID}

	subs, err := e.registry.ListActiveByUser(ctx, userID)
	if err != nil {
		e.logger.Error("subscription lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		outcome.Reason = "subscription lookup failed"
		outcome.Err = fmt.Errorf("lookup subscriptions for %s: %w", userID, err)
		return outcome
	}
	outcome.Endpoints = len(subs)
	if len(subs) == 0 {
		e.logger.Debug("user has no active subscriptions", slog.String("user_id", userID))
		outcome.Reason = ErrNoActiveSubscriptions.Error()
		return outcome
	}

	for _, r := range e.dispatch(ctx, run, subs) {
		if r.err == nil {
			outcome.Delivered++
		} else {
			outcome.Failed++
		}
		if r.pruned {
			outcome.Pruned++
		}
	}
	outcome.Success = outcome.Delivered > 0
	if !outcome.Success {
		outcome.Reason = fmt.Sprintf("delivery failed for all %d subscriptions", len(subs))
	}
	return outcome
}

// dispatch delivers to every subscription concurrently and returns one
// result per subscription, in input order, once all have settled.
func (e *Engine) dispatch(ctx context.Context, run *dispatchRun, subs []models.Subscription) []endpointResult {
	results := make([]endpointResult, len(subs))
	var g errgroup.Group
	for i := range subs {
		g.Go(func() error {
			results[i] = e.deliver(ctx, run, subs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) deliver(ctx context.Context, run *dispatchRun, sub models.Subscription) endpointResult {
	res := endpointResult{sub: sub}
	defer e.observe(&res)

	if err := e.acquire(ctx); err != nil {
		res.err = classifyDeliveryError(err)
		return res
	}
	err := e.attempt(ctx, run, sub)
	e.release()
	if err == nil {
		return res
	}

	res.err = classifyDeliveryError(err)
	if res.err.Permanent {
		res.pruned = e.prune(ctx, run, sub)
	}
	e.logger.Warn("push delivery failed",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", sub.UserID),
		slog.String("endpoint", sub.EndpointOrigin()),
		slog.Int("status", res.err.StatusCode),
		slog.Bool("permanent", res.err.Permanent),
		slog.Any("error", res.err),
	)
	return res
}

// attempt runs one bounded delivery. A deliverer that ignores cancellation
// is abandoned once the deadline passes.
func (e *Engine) attempt(ctx context.Context, run *dispatchRun, sub models.Subscription) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.deliverer.Send(attemptCtx, sub, run.payload.body, run.payload.priority)
	}()
	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return attemptCtx.Err()
	}
}

// prune deletes a subscription proven gone. It runs detached from the
// request context so a finished request cannot abandon the cleanup.
func (e *Engine) prune(ctx context.Context, run *dispatchRun, sub models.Subscription) bool {
	if _, seen := run.pruned.LoadOrStore(sub.ID, struct{}{}); seen {
		return false
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := e.registry.Delete(cctx, sub.ID); err != nil {
		e.logger.Error("failed to delete expired subscription",
			slog.String("subscription_id", sub.ID),
			slog.String("user_id", sub.UserID),
			slog.Any("error", err),
		)
		return false
	}
	e.logger.Info("deleted expired subscription",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", sub.UserID),
		slog.String("endpoint", sub.EndpointOrigin()),
	)
	return true
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.sem == nil {
		return nil
	}
	return e.sem.Acquire(ctx, 1)
}

func (e *Engine) release() {
	if e.sem != nil {
		e.sem.Release(1)
	}
}

func (e *Engine) observe(res *endpointResult) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordDelivery(res.err == nil)
	if res.pruned {
		e.recorder.RecordPrune()
	}
}
