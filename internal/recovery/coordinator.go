// Package recovery reconciles intended playback state with actual
// hardware state after events that can desynchronize them: foreground
// return, platform-issued resume, long backgrounding.
package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/castkit/castkit/internal/log"
)

// Target is the set of session operations the fallback strategies are
// built from. Implemented by the session controller, which remains the
// sole owner of the audio primitive.
type Target interface {
	// DirectResume issues a plain resume on the existing primitive.
	DirectResume() error

	// Reload reloads the current source, waits (bounded) for a
	// ready-to-play signal, restores the last known position, and
	// resumes. It proceeds to the resume even if the wait times out.
	Reload(ctx context.Context) error

	// HardReset detaches the source, briefly clears the primitive,
	// reattaches, then performs the Reload sequence.
	HardReset(ctx context.Context) error

	// HardwarePlaying reads the actual hardware playing state.
	HardwarePlaying() bool

	// ReportPaused records the truthful paused state after all
	// strategies failed.
	ReportPaused()

	// CondemnPrimitive marks the primitive instance unrecoverable; the
	// session discards and recreates it on the next initialization.
	CondemnPrimitive()
}

// Strategy is one rung of the fallback ladder.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, t Target) error
}

// DefaultLadder is the ordered fallback ladder: direct resume, reload,
// hard reset. The coordinator stops at the first rung that verifies.
func DefaultLadder() []Strategy {
	return []Strategy{
		{Name: "direct-resume", Run: func(_ context.Context, t Target) error {
			return t.DirectResume()
		}},
		{Name: "reload", Run: func(ctx context.Context, t Target) error {
			return t.Reload(ctx)
		}},
		{Name: "hard-reset", Run: func(ctx context.Context, t Target) error {
			return t.HardReset(ctx)
		}},
	}
}

// Outcome classifies a single strategy attempt.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeRejected Outcome = "rejected" // command returned an error
	OutcomeSilent   Outcome = "silent"   // command accepted, probe found no audio
	OutcomeAborted  Outcome = "aborted"  // canceled before verification
)

// Attempt is one entry in the ephemeral recovery log. Not persisted.
type Attempt struct {
	RunID         string
	StrategyIndex int
	Strategy      string
	Outcome       Outcome
	At            time.Time
}

const (
	// DefaultSettleDelay is how long hardware gets to start producing
	// audio before the verification probe reads its state.
	DefaultSettleDelay = 200 * time.Millisecond

	// DefaultEscalationThreshold: divergence after a background stretch
	// longer than this, with every strategy failed, condemns the
	// primitive. Long suspensions leave some platforms' audio
	// primitives in an unrecoverable internal state.
	DefaultEscalationThreshold = 30 * time.Second
)

// Coordinator executes the fallback ladder. It is idempotent: a
// Recover call while a run is in flight is a no-op until that run
// resolves. A run is abandoned, not awaited, when Cancel is called.
type Coordinator struct {
	target    Target
	ladder    []Strategy
	settle    time.Duration
	threshold time.Duration
	onDone    func(playing bool)
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
	attempts []Attempt
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLadder replaces the default strategy ladder.
func WithLadder(ladder []Strategy) Option {
	return func(c *Coordinator) { c.ladder = ladder }
}

// WithSettleDelay sets the verification probe delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settle = d }
}

// WithEscalationThreshold sets the backgrounded-duration escalation cutoff.
func WithEscalationThreshold(d time.Duration) Option {
	return func(c *Coordinator) { c.threshold = d }
}

// New creates a coordinator over the target. onDone is invoked once per
// completed (not canceled) run with the verified playing state.
func New(target Target, onDone func(playing bool), opts ...Option) *Coordinator {
	c := &Coordinator{
		target:    target,
		ladder:    DefaultLadder(),
		settle:    DefaultSettleDelay,
		threshold: DefaultEscalationThreshold,
		onDone:    onDone,
		logger:    log.WithComponent("recovery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recover starts a recovery run in the background. backgroundedFor is
// how long the process was suspended before the divergence was seen;
// it drives the escalation rule. Returns false if a run was already in
// flight.
func (c *Coordinator) Recover(backgroundedFor time.Duration) bool {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Debug().Msg("recovery already in flight, ignoring")
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.inFlight = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, backgroundedFor)
	return true
}

// Cancel abandons any in-flight run. The canceled run does not invoke
// onDone. Safe to call when no run is active.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// InFlight reports whether a recovery run is active.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Attempts returns a copy of the attempt log.
func (c *Coordinator) Attempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Attempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}

func (c *Coordinator) run(ctx context.Context, backgroundedFor time.Duration) {
	runID := uuid.NewString()
	logger := c.logger.With().Str("run", runID).Logger()
	logger.Info().Dur("backgrounded_for", backgroundedFor).Msg("recovery started")

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	recovered := false
	for i, strategy := range c.ladder {
		if ctx.Err() != nil {
			c.record(runID, i, strategy.Name, OutcomeAborted)
			logger.Info().Str("strategy", strategy.Name).Msg("recovery canceled")
			return
		}

		err := strategy.Run(ctx, c.target)
		if ctx.Err() != nil {
			c.record(runID, i, strategy.Name, OutcomeAborted)
			return
		}
		if err != nil {
			c.record(runID, i, strategy.Name, OutcomeRejected)
			logger.Warn().Err(err).Str("strategy", strategy.Name).Msg("strategy rejected")
			continue
		}

		if c.verify(ctx) {
			c.record(runID, i, strategy.Name, OutcomeVerified)
			logger.Info().Str("strategy", strategy.Name).Msg("playback recovered")
			recovered = true
			break
		}
		if ctx.Err() != nil {
			c.record(runID, i, strategy.Name, OutcomeAborted)
			return
		}
		c.record(runID, i, strategy.Name, OutcomeSilent)
		logger.Warn().Str("strategy", strategy.Name).Msg("strategy produced no audio")
	}

	if !recovered {
		// Report the truth: never claim playing against hardware
		// disagreement.
		c.target.ReportPaused()
		if backgroundedFor > c.threshold {
			logger.Warn().Msg("long suspension, condemning primitive")
			c.target.CondemnPrimitive()
		}
		logger.Warn().Msg("recovery exhausted, reporting paused")
	}

	if c.onDone != nil {
		c.onDone(recovered)
	}
}

// verify is the settle-and-check probe: give hardware a beat to start
// producing audio, then read its actual state.
func (c *Coordinator) verify(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.settle):
	}
	return c.target.HardwarePlaying()
}

func (c *Coordinator) record(runID string, index int, name string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, Attempt{
		RunID:         runID,
		StrategyIndex: index,
		Strategy:      name,
		Outcome:       outcome,
		At:            time.Now(),
	})
}
