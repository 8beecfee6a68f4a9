// Package session owns the lifecycle of the single currently-playing
// episode. The Controller is the sole authority over the audio
// primitive; the media surface, recovery coordinator, sleep timer, and
// UI all route their intents through it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/castkit/castkit/internal/audio"
	"github.com/castkit/castkit/internal/core"
	castErrors "github.com/castkit/castkit/internal/errors"
	"github.com/castkit/castkit/internal/log"
	"github.com/castkit/castkit/internal/mediasurface"
	"github.com/castkit/castkit/internal/position"
	"github.com/castkit/castkit/internal/recovery"
	"github.com/castkit/castkit/internal/sleeptimer"
	"github.com/castkit/castkit/internal/speed"
)

// PrimitiveFactory creates a fresh audio primitive. The controller
// invokes it at startup and again whenever a condemned primitive must
// be replaced after an unrecoverable suspension.
type PrimitiveFactory func() audio.Primitive

const (
	// readyWaitTimeout bounds how long a recovery reload waits for the
	// primitive's ready signal before proceeding regardless.
	readyWaitTimeout = 3 * time.Second

	// hardResetClearDelay is the brief detached window during a hard
	// reset, giving the primitive time to release its source.
	hardResetClearDelay = 100 * time.Millisecond

	// tickInterval drives the periodic work that runs only while
	// playing: sleep-timer expiry checks and debounced position saves.
	tickInterval = time.Second

	restoreReadTimeout = 2 * time.Second
)

// Options configures a Controller.
type Options struct {
	SkipBackSeconds    float64
	SkipForwardSeconds float64
	Speeds             []float64
	SleepDurations     []time.Duration
	SaveInterval       time.Duration
	RecoveryOptions    []recovery.Option
}

// Controller is the top-level playback orchestrator and authoritative
// state machine.
type Controller struct {
	factory PrimitiveFactory
	store   position.Store
	saver   *position.Saver
	adapter *mediasurface.Adapter
	speed   *speed.Controller
	sleep   *sleeptimer.Timer
	coord   *recovery.Coordinator
	logger  zerolog.Logger

	skipBack    float64
	skipForward float64

	mu          sync.Mutex
	primitive   audio.Primitive
	pumpDone    chan struct{}
	episode     *core.Episode
	state       core.State
	currentTime float64
	duration    float64
	err         error
	wantPlaying bool
	condemned   bool

	// restore bookkeeping: the saved position is applied to the
	// primitive at most once per episode, and only if no user seek has
	// landed first. The most recently applied value always wins.
	pendingRestore *core.Position
	restored       bool
	userSeeked     bool

	// readyCh is replaced on every load; the event pump closes it when
	// the primitive signals ready, unblocking recovery reload waits.
	readyCh chan struct{}

	// backgroundedFor is the most recent suspension length, feeding the
	// recovery escalation rule.
	backgroundedFor time.Duration

	tickerStop chan struct{}

	subscribers []chan struct{}
	closed      bool
}

// New creates a session controller. The factory is called once
// immediately for the initial primitive.
func New(factory PrimitiveFactory, store position.Store, surface mediasurface.Surface, opts Options) *Controller {
	if opts.SkipBackSeconds == 0 {
		opts.SkipBackSeconds = 10
	}
	if opts.SkipForwardSeconds == 0 {
		opts.SkipForwardSeconds = 30
	}

	c := &Controller{
		factory:     factory,
		store:       store,
		saver:       position.NewSaver(store, opts.SaveInterval),
		adapter:     mediasurface.NewAdapter(surface),
		speed:       speed.New(opts.Speeds),
		sleep:       sleeptimer.New(opts.SleepDurations),
		logger:      log.WithComponent("session"),
		skipBack:    opts.SkipBackSeconds,
		skipForward: opts.SkipForwardSeconds,
		state:       core.StateIdle,
		readyCh:     make(chan struct{}),
	}
	c.coord = recovery.New((*recoveryTarget)(c), c.onRecoveryDone, opts.RecoveryOptions...)

	c.primitive = factory()
	c.startPump()
	c.adapter.Register(c)
	return c
}

// SetEpisode switches the session to a new episode, or tears the
// current one down when ref is nil. Transient playback fields reset
// synchronously with the call, before the asynchronous load completes.
func (c *Controller) SetEpisode(ref *core.Episode) {
	c.coord.Cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	// Final write for the outgoing episode so its progress survives.
	if c.episode != nil && c.state != core.StateEnded {
		c.flushLocked()
	}

	c.stopTickerLocked()
	c.episode = ref
	c.currentTime = 0
	c.duration = 0
	c.err = nil
	c.wantPlaying = false
	c.restored = false
	c.userSeeked = false
	c.pendingRestore = nil
	c.sleep.Reset()

	if ref == nil {
		c.state = core.StateIdle
		c.primitive.Detach()
		c.mu.Unlock()
		c.notify()
		return
	}

	c.state = core.StateLoading
	c.ensurePrimitiveLocked()
	c.readyCh = make(chan struct{})
	c.primitive.Load(ref.AudioURL)
	c.wantPlaying = true
	epID := ref.ID
	c.saver.Forget(epID)
	c.mu.Unlock()

	c.adapter.EpisodeChanged(ref)
	c.notify()

	// One-shot restore read. Failure degrades to starting at zero.
	go c.readSavedPosition(epID)
}

// TogglePlayPause toggles playback intent.
//
// Contractual precondition: when invoked in direct response to a user
// gesture, the resume command is issued synchronously inside this call
// with zero intervening asynchronous steps. The platform's gesture
// policy silently refuses playback started any other way; callers must
// not hop through a queue, timer, or goroutine between the keypress
// and this call.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return
	}

	switch c.state {
	case core.StatePlaying:
		c.pauseLocked()
		c.mu.Unlock()
	case core.StateError:
		// Explicit retry: reload and resume inside the gesture.
		c.err = nil
		c.state = core.StateLoading
		c.restored = false
		c.pendingRestore = nil
		c.readyCh = make(chan struct{})
		c.ensurePrimitiveLocked()
		c.primitive.Load(c.episode.AudioURL)
		c.wantPlaying = true
		epID := c.episode.ID
		c.mu.Unlock()
		go c.readSavedPosition(epID)
	default:
		c.resumeLocked()
		c.mu.Unlock()
	}
	c.notify()
}

// Seek moves the playhead, clamped to [0, duration]. A user seek racing
// an in-flight restore wins: the restore is suppressed.
func (c *Controller) Seek(seconds float64) {
	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return
	}

	if seconds < 0 {
		seconds = 0
	}
	if c.duration > 0 && seconds > c.duration {
		seconds = c.duration
	}

	c.userSeeked = true
	prev := c.state
	c.state = core.StateSeeking
	c.primitive.Seek(seconds)
	c.currentTime = c.primitive.CurrentTime()
	c.state = prev
	c.mu.Unlock()

	c.pushPositionState()
	c.notify()
}

// SkipBackward seeks back by the configured delta (default 10s).
func (c *Controller) SkipBackward() {
	c.mu.Lock()
	target := c.currentTime - c.skipBack
	c.mu.Unlock()
	c.Seek(target)
}

// SkipForward seeks forward by the configured delta (default 30s).
func (c *Controller) SkipForward() {
	c.mu.Lock()
	target := c.currentTime + c.skipForward
	c.mu.Unlock()
	c.Seek(target)
}

// CycleSpeed advances the playback-rate multiplier and applies it.
func (c *Controller) CycleSpeed() float64 {
	rate := c.speed.Cycle()
	c.mu.Lock()
	if !c.closed {
		c.primitive.SetRate(rate)
	}
	c.mu.Unlock()
	c.pushPositionState()
	c.notify()
	return rate
}

// CycleSleepTimer advances the sleep timer through its option ring.
func (c *Controller) CycleSleepTimer() {
	c.sleep.Cycle(time.Now())
	c.notify()
}

// Resume is the media-surface play path. Platform-issued resume
// typically follows a long suspension, so it routes through the
// recovery coordinator instead of a raw primitive play.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return
	}
	c.wantPlaying = true
	c.state = core.StateRecovering
	backgrounded := c.backgroundedFor
	c.mu.Unlock()

	c.notify()
	c.coord.Recover(backgrounded)
}

// Pause is the media-surface pause path.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.closed || c.state != core.StatePlaying {
		c.mu.Unlock()
		return
	}
	c.pauseLocked()
	c.mu.Unlock()
	c.notify()
}

// HandleForeground is called when the process returns to the
// foreground after elapsed time suspended. If intended and actual
// playback state diverge, the recovery ladder runs.
func (c *Controller) HandleForeground(elapsed time.Duration) {
	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return
	}
	c.backgroundedFor = elapsed
	diverged := c.wantPlaying && !c.primitive.Playing()
	if diverged {
		c.state = core.StateRecovering
	}
	c.mu.Unlock()

	if diverged {
		c.logger.Info().Dur("elapsed", elapsed).Msg("foreground divergence detected")
		c.notify()
		c.coord.Recover(elapsed)
	}
}

// Snapshot returns the observable state for the UI layer.
func (c *Controller) Snapshot() core.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := core.Snapshot{
		Episode:         c.episode,
		State:           c.state,
		IsPlaying:       c.state == core.StatePlaying,
		CurrentTime:     c.currentTime,
		Duration:        c.duration,
		IsLoading:       c.state == core.StateLoading,
		HasError:        c.state == core.StateError,
		PlaybackSpeed:   c.speed.Current(),
		SleepTimerLabel: c.sleep.Label(time.Now()),
	}
	if c.state == core.StatePlaying && !c.closed {
		snap.CurrentTime = c.primitive.CurrentTime()
	}
	return snap
}

// Subscribe returns a channel that receives a signal whenever the
// observable state may have changed. Signals coalesce.
func (c *Controller) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// SleepTimer exposes the timer for label rendering.
func (c *Controller) SleepTimer() *sleeptimer.Timer {
	return c.sleep
}

// RecoveryAttempts returns the ephemeral recovery log.
func (c *Controller) RecoveryAttempts() []recovery.Attempt {
	return c.coord.Attempts()
}

// Close tears the session down: cancels recovery, writes the final
// position synchronously, clears surface handlers, and releases the
// primitive.
func (c *Controller) Close() {
	c.coord.Cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.episode != nil && c.state != core.StateEnded {
		c.flushLocked()
	}
	c.stopTickerLocked()
	c.closed = true
	prim := c.primitive
	pumpDone := c.pumpDone
	c.mu.Unlock()

	c.adapter.Teardown()
	prim.Close()
	if pumpDone != nil {
		<-pumpDone
	}
	c.logger.Info().Msg("session closed")
}

// --- internal: intent paths (mu held) ---

// resumeLocked issues the resume command directly, preserving the
// gesture chain.
func (c *Controller) resumeLocked() {
	c.wantPlaying = true

	// A condemned primitive is discarded here, on the next resume
	// attempt: the fresh instance reloads the source and resumes
	// through the normal load path instead of retrying the dead one.
	if c.condemned {
		c.ensurePrimitiveLocked()
		c.state = core.StateLoading
		c.restored = false
		c.userSeeked = false
		c.pendingRestore = &core.Position{
			EpisodeID: c.episode.ID,
			Position:  c.currentTime,
			Duration:  c.duration,
		}
		c.readyCh = make(chan struct{})
		c.primitive.Load(c.episode.AudioURL)
		return
	}

	if err := c.primitive.Play(); err != nil {
		c.err = castErrors.WithSuggestion(castErrors.ErrPlaybackBlocked,
			"Press play again to retry")
		c.state = core.StateError
		c.wantPlaying = false
		c.logger.Warn().Err(err).Msg("play rejected")
		return
	}
	c.state = core.StatePlaying
	c.startTickerLocked()
	c.adapter.PlaybackStateChanged(true)
}

func (c *Controller) pauseLocked() {
	c.primitive.Pause()
	c.wantPlaying = false
	c.state = core.StatePaused
	c.currentTime = c.primitive.CurrentTime()
	c.stopTickerLocked()
	// Synchronous write: the final seconds before a pause are never lost.
	c.flushLocked()
	c.adapter.PlaybackStateChanged(false)
}

// flushLocked writes the current position synchronously, bypassing the
// debounce window.
func (c *Controller) flushLocked() {
	if c.episode == nil {
		return
	}
	c.saver.Flush(context.Background(), c.episode.ID, c.primitive.CurrentTime(), c.duration)
}

// ensurePrimitiveLocked replaces a condemned primitive with a fresh
// instance from the factory.
func (c *Controller) ensurePrimitiveLocked() {
	if !c.condemned {
		return
	}
	c.logger.Warn().Msg("replacing condemned primitive")
	old := c.primitive
	oldPump := c.pumpDone
	c.primitive = c.factory()
	c.condemned = false
	c.startPump()
	go func() {
		old.Close()
		if oldPump != nil {
			<-oldPump
		}
	}()
}

// --- internal: event pump ---

func (c *Controller) startPump() {
	done := make(chan struct{})
	c.pumpDone = done
	events := c.primitive.Events()
	go func() {
		defer close(done)
		for ev := range events {
			c.handleEvent(ev)
		}
	}()
}

// handleEvent consumes primitive events one at a time; no two events
// are processed concurrently.
func (c *Controller) handleEvent(ev audio.Event) {
	switch ev.Type {
	case audio.EventReady:
		c.handleReady()
	case audio.EventCanPlay:
		c.handleCanPlay()
	case audio.EventWaiting:
		c.logger.Debug().Msg("buffering")
	case audio.EventEnded:
		c.handleEnded()
	case audio.EventFailed:
		c.handleFailed(ev.Err)
	}
	c.notify()
}

func (c *Controller) handleReady() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.duration = c.primitive.Duration()

	// Loading a new source resets the primitive's rate; reapply ours.
	c.primitive.SetRate(c.speed.Current())

	// Apply the saved position exactly once, unless a user seek already
	// landed (most recently applied value wins). While the store read
	// is still in flight, restored stays false so the late read can
	// apply the position itself.
	if !c.restored && !c.userSeeked && c.pendingRestore != nil {
		if !c.pendingRestore.Completed {
			c.primitive.Seek(c.pendingRestore.Position)
			c.currentTime = c.primitive.CurrentTime()
			c.logger.Info().Float64("position", c.pendingRestore.Position).Msg("restored saved position")
		}
		c.restored = true
	}

	if c.state == core.StateLoading {
		c.state = core.StateReady
	}

	ready := c.readyCh
	c.mu.Unlock()

	// Unblock any recovery reload waiting on readiness.
	select {
	case <-ready:
	default:
		close(ready)
	}
	c.pushPositionState()
}

func (c *Controller) handleCanPlay() {
	c.mu.Lock()
	if c.closed || !c.wantPlaying || c.state == core.StatePlaying || c.state == core.StateRecovering {
		c.mu.Unlock()
		return
	}
	// Auto-play after load. This path is asynchronous, so a gesture
	// policy may reject it; that surfaces as a blocked error with an
	// explicit retry, never a silent hang.
	c.resumeLocked()
	c.mu.Unlock()
}

func (c *Controller) handleEnded() {
	c.mu.Lock()
	if c.closed || c.episode == nil {
		c.mu.Unlock()
		return
	}
	c.state = core.StateEnded
	c.wantPlaying = false
	c.currentTime = c.duration
	c.stopTickerLocked()
	c.sleep.Reset()
	epID := c.episode.ID
	dur := c.duration
	c.mu.Unlock()

	// Synchronous final record: position=duration marks it completed.
	c.saver.Flush(context.Background(), epID, dur, dur)
	c.adapter.PlaybackStateChanged(false)
	c.logger.Info().Str("episode", epID).Msg("episode ended")
}

func (c *Controller) handleFailed(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = core.StateError
	c.err = castErrors.WithSuggestion(castErrors.ErrLoadFailed, "")
	c.wantPlaying = false // error clears any pending auto-play intent
	c.stopTickerLocked()
	c.mu.Unlock()

	c.adapter.PlaybackStateChanged(false)
	c.logger.Error().Err(cause).Msg("playback failed")
}

// --- internal: periodic work ---

// startTickerLocked begins the 1s loop that runs only while playing:
// sleep-timer checks, debounced position saves, and position pushes.
// It self-cancels as soon as the state leaves Playing.
func (c *Controller) startTickerLocked() {
	if c.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !c.tick() {
					return
				}
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

// tick performs one round of periodic work. Returns false when the
// activating precondition (state == Playing) no longer holds.
func (c *Controller) tick() bool {
	c.mu.Lock()
	if c.closed || c.state != core.StatePlaying {
		c.mu.Unlock()
		return false
	}

	c.currentTime = c.primitive.CurrentTime()

	if c.sleep.Expired(time.Now()) {
		c.logger.Info().Msg("sleep timer expired")
		c.sleep.Reset()
		c.pauseLocked()
		c.mu.Unlock()
		c.notify()
		return false
	}

	epID := c.episode.ID
	pos := c.currentTime
	dur := c.duration
	c.mu.Unlock()

	// Debounced: the saver drops calls inside its window.
	c.saver.Save(context.Background(), epID, pos, dur)
	c.pushPositionState()
	c.notify()
	return true
}

// pushPositionState publishes true hardware values to the surface.
func (c *Controller) pushPositionState() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ps := mediasurface.PositionState{
		Duration: c.primitive.Duration(),
		Rate:     c.primitive.Rate(),
		Position: c.primitive.CurrentTime(),
	}
	c.mu.Unlock()
	c.adapter.PositionChanged(ps)
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := c.subscribers
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// readSavedPosition is the one-shot restore read at episode load.
// Persistence failures degrade silently: no resume for this episode.
func (c *Controller) readSavedPosition(episodeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), restoreReadTimeout)
	defer cancel()

	saved, err := c.store.Get(ctx, episodeID)
	if err != nil {
		if err != position.ErrNotFound {
			c.logger.Warn().Err(err).Str("episode", episodeID).Msg("position read failed")
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode == nil || c.episode.ID != episodeID || c.restored || c.userSeeked {
		return
	}
	if c.duration > 0 || c.state != core.StateLoading {
		// Ready already arrived; apply directly, once.
		if !saved.Completed {
			c.primitive.Seek(saved.Position)
			c.currentTime = c.primitive.CurrentTime()
		}
		c.restored = true
		return
	}
	c.pendingRestore = saved
}

func (c *Controller) onRecoveryDone(playing bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if playing {
		c.state = core.StatePlaying
		c.wantPlaying = true
		c.startTickerLocked()
	}
	c.mu.Unlock()

	c.adapter.PlaybackStateChanged(playing)
	c.notify()
}
