package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/aggregate"
	"finboard/internal/backend"
	"finboard/internal/core"
	"finboard/internal/credential"
	"finboard/internal/cutoff"
	"finboard/internal/log"
	"finboard/internal/normalize"
)

// Triggers recorded with each pass.
const (
	TriggerActivate = "activate"
	TriggerTimer    = "timer"
	TriggerManual   = "manual"
)

const (
	minRequestedInterval = 10 * time.Second
	fallbackInterval     = 30 * time.Second
	recordTimeout        = 5 * time.Second
)

var (
	ErrAlreadyActive = errors.New("refresh controller is already active")
	ErrInactive      = errors.New("refresh controller is not active")
	ErrNoExporter    = errors.New("no exporter configured")
)

// TokenSource yields the current bearer token, "" when none is stored.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Subscriber delivers credential change events until unsubscribed.
type Subscriber interface {
	Subscribe(fn func(credential.Event)) (unsubscribe func())
}

// Recorder keeps a history of passes.
type Recorder interface {
	RecordRefresh(ctx context.Context, run core.RefreshRun) error
}

// Exporter publishes the collections somewhere outside the process.
type Exporter interface {
	Export(ctx context.Context, views core.Views) error
}

// Config holds controller settings.
type Config struct {
	// Interval between silent refreshes; see EffectiveInterval.
	Interval time.Duration
	// ExportOnRefresh runs the exporter after every successful pass.
	ExportOnRefresh bool
}

func DefaultConfig() Config {
	return Config{Interval: fallbackInterval}
}

// EffectiveInterval applies the floor: requests under 10s run every 30s.
func EffectiveInterval(requested time.Duration) time.Duration {
	if requested < minRequestedInterval {
		return fallbackInterval
	}
	return requested
}

// Controller keeps the published collections in step with the backend.
// It loads on activation, refreshes silently on a timer while the
// credential is valid, and reacts to credential events at once.
type Controller struct {
	source     backend.Source
	tokens     TokenSource
	events     Subscriber
	config     Config
	normalizer normalize.Normalizer
	recorder   Recorder
	exporter   Exporter
	logger     *log.Logger
	structured *log.StructuredLogger
	now        func() time.Time
	// tick overrides the timer period; zero means EffectiveInterval.
	tick time.Duration

	snap atomic.Pointer[Snapshot]

	mu          sync.Mutex
	active      bool
	epoch       uint64
	version     uint64
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithExporter(e Exporter) Option {
	return func(c *Controller) { c.exporter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l.WithComponent(log.ComponentRefresh) }
}

// WithClock replaces time.Now for timestamps and normalization.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
		c.normalizer.Now = now
	}
}

// New creates an inactive controller. events may be nil, in which case
// only the timer and explicit calls drive refreshes.
func New(source backend.Source, tokens TokenSource, events Subscriber, config Config, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		tokens: tokens,
		events: events,
		config: config,
		now:    time.Now,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.structured = log.NewStructuredLogger(c.logger)
	c.snap.Store(&Snapshot{State: StateIdle, Views: aggregate.Aggregate(nil)})
	return c
}

// Snapshot returns the current published state.
func (c *Controller) Snapshot() Snapshot {
	return *c.snap.Load()
}

// Interval returns the effective silent refresh period.
func (c *Controller) Interval() time.Duration {
	return EffectiveInterval(c.config.Interval)
}

func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Activate subscribes to credential events, starts the timer and runs the
// initial load. The load happens in the background.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.active = true
	c.epoch++
	c.ctx, c.cancel = context.WithCancel(ctx)
	if c.events != nil {
		c.unsubscribe = c.events.Subscribe(c.onCredentialEvent)
	}
	period := c.tick
	if period <= 0 {
		period = c.Interval()
	}
	lifecycle := c.ctx
	c.wg.Add(1)
	go c.tickLoop(lifecycle, period)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Refresh controller activated", "interval", period)
	c.evaluate(lifecycle, TriggerActivate)
	return nil
}

// Deactivate stops the timer, drops the event subscription and waits for
// in-flight passes. Their results are discarded.
func (c *Controller) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.epoch++
	c.cancel()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.mu.Lock()
		if cur := *c.snap.Load(); cur.State.transient() {
			cur.State = settle(cur.State, cur)
			c.snap.Store(&cur)
		}
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "Refresh controller deactivated")
		return nil
	case <-ctx.Done():
		c.logger.WarnContext(ctx, "Refresh controller stop timed out")
		return ctx.Err()
	}
}

// Refresh runs a non-silent pass and waits for it.
func (c *Controller) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return c.Snapshot(), ErrInactive
	}
	epoch := c.epoch
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.run(ctx, epoch, false, TriggerManual)
	return c.Snapshot(), nil
}

// Export sends the current collections to the exporter.
func (c *Controller) Export(ctx context.Context) error {
	if c.exporter == nil {
		return ErrNoExporter
	}
	return c.exporter.Export(ctx, c.Snapshot().Views)
}

func (c *Controller) tickLoop(ctx context.Context, period time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			token, err := c.tokens.Token(ctx)
			if err != nil {
				c.logger.WarnContext(ctx, "Failed to read credential", "error", err)
				continue
			}
			if !credential.ValidAt(token, c.now()) {
				c.clear(ctx, c.currentEpoch())
				continue
			}
			c.start(true, TriggerTimer)
		}
	}
}

func (c *Controller) onCredentialEvent(e credential.Event) {
	if e.Key != credential.TokenKey {
		return
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	// Passes started for the previous credential must not publish.
	c.epoch++
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Credential changed", log.FieldKey, e.Key, "signal", e.Signal, log.FieldOrigin, e.Origin)
	c.evaluate(ctx, string(e.Signal))
}

// evaluate clears state synchronously when no valid credential exists and
// otherwise starts a non-silent pass in the background.
func (c *Controller) evaluate(ctx context.Context, trigger string) {
	token, err := c.tokens.Token(ctx)
	if err == nil && !credential.ValidAt(token, c.now()) {
		c.clear(ctx, c.currentEpoch())
		return
	}
	c.start(false, trigger)
}

func (c *Controller) start(silent bool, trigger string) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	epoch, ctx := c.epoch, c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.run(ctx, epoch, silent, trigger)
	}()
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// clear publishes the empty idle snapshot.
func (c *Controller) clear(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || epoch != c.epoch {
		return
	}
	if cur := c.snap.Load(); cur.State == StateIdle && cur.Views.Len() == 0 {
		return
	}
	c.commitLocked(Snapshot{State: StateIdle, Views: aggregate.Aggregate(nil)})
	c.logger.InfoContext(ctx, "No valid credential, cleared transactions")
}

func (c *Controller) run(ctx context.Context, epoch uint64, silent bool, trigger string) {
	started := c.now()

	token, err := c.tokens.Token(ctx)
	if err == nil && !credential.ValidAt(token, c.now()) {
		c.clear(ctx, epoch)
		return
	}

	prev, ok := c.begin(epoch, silent)
	if !ok {
		return
	}

	var (
		views core.Views
		cut   cutoff.Cutoff
	)
	if err == nil {
		views, cut, err = c.fetch(ctx, token)
	}
	c.finish(ctx, epoch, prev, silent, trigger, started, views, cut, err)
}

// begin marks the pass in the published state and returns the state it
// replaced.
func (c *Controller) begin(epoch uint64, silent bool) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || epoch != c.epoch {
		return "", false
	}
	next := *c.snap.Load()
	prev := next.State
	if silent {
		next.State = StateSilentRefreshing
	} else {
		next.State = StateLoading
	}
	c.snap.Store(&next)
	return prev, true
}

func (c *Controller) fetch(ctx context.Context, token string) (core.Views, cutoff.Cutoff, error) {
	var rawConns, rawManual []json.RawMessage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawConns, err = c.source.ListConnections(gctx, token)
		if err != nil {
			return fmt.Errorf("list connections: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rawManual, err = c.source.ListTransactions(gctx, token)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Views{}, cutoff.Cutoff{}, err
	}

	views, cut := Project(ctx, c.normalizer, rawConns, rawManual)
	return views, cut, nil
}

func (c *Controller) finish(ctx context.Context, epoch uint64, prev State, silent bool, trigger string, started time.Time, views core.Views, cut cutoff.Cutoff, err error) {
	outcome := core.OutcomeSuccess

	c.mu.Lock()
	switch {
	case !c.active || epoch != c.epoch:
		outcome = core.OutcomeDiscarded
	case err == nil:
		next := Snapshot{State: StateReady, Views: views, LastRefresh: c.now()}
		if day, ok := cut.Date(); ok {
			next.Cutoff = &day
		}
		c.commitLocked(next)
	case backend.IsAuthFailure(err):
		// Re-authentication is handled outside; keep what is shown.
		outcome = core.OutcomeAuthFailure
		cur := *c.snap.Load()
		cur.State = settle(prev, cur)
		c.snap.Store(&cur)
	case silent:
		outcome = core.OutcomeError
		cur := *c.snap.Load()
		cur.State = settle(prev, cur)
		c.snap.Store(&cur)
	default:
		outcome = core.OutcomeError
		cur := c.snap.Load()
		c.commitLocked(Snapshot{
			State:       StateError,
			Views:       aggregate.Aggregate(nil),
			Error:       fmt.Sprintf("failed to load transactions: %v", err),
			LastRefresh: cur.LastRefresh,
		})
	}
	c.mu.Unlock()

	finished := c.now()
	if outcome != core.OutcomeSuccess {
		views = core.Views{}
	}
	logErr := err
	if outcome == core.OutcomeDiscarded {
		logErr = nil
	}
	c.structured.LogRefresh(ctx, trigger, silent, outcome, len(views.Income), len(views.Expense), finished.Sub(started), logErr)

	c.record(ctx, core.RefreshRun{
		StartedAt:    started,
		FinishedAt:   finished,
		Trigger:      trigger,
		Silent:       silent,
		Outcome:      outcome,
		IncomeCount:  len(views.Income),
		ExpenseCount: len(views.Expense),
		Error:        errorText(err),
	})

	if outcome == core.OutcomeSuccess && c.config.ExportOnRefresh && c.exporter != nil {
		if err := c.exporter.Export(ctx, views); err != nil {
			c.logger.WarnContext(ctx, "Export after refresh failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		}
	}
}

// commitLocked stores s as a new version. c.mu must be held.
func (c *Controller) commitLocked(s Snapshot) {
	c.version++
	s.Version = c.version
	c.snap.Store(&s)
}

func (c *Controller) record(ctx context.Context, run core.RefreshRun) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.recorder.RecordRefresh(ctx, run); err != nil {
		c.logger.WarnContext(ctx, "Failed to record refresh", log.FieldError, err)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
