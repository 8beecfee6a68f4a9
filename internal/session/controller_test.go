package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castkit/castkit/internal/audio"
	"github.com/castkit/castkit/internal/core"
	"github.com/castkit/castkit/internal/mediasurface"
	"github.com/castkit/castkit/internal/recovery"
)

func testEpisode(id string) *core.Episode {
	return &core.Episode{
		ID:        id,
		AudioURL:  "https://example.com/" + id + ".mp3",
		Title:     "Episode " + id,
		ShowTitle: "Test Show",
	}
}

func newTestController(prim *fakePrimitive, store *memStore, surface mediasurface.Surface) *Controller {
	return New(func() audio.Primitive { return prim }, store, surface, Options{
		RecoveryOptions: []recovery.Option{recovery.WithSettleDelay(time.Millisecond)},
	})
}

func TestSetEpisodeResetsSynchronously(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	// Snapshot immediately after the call, before any load completes.
	ctl.SetEpisode(testEpisode("ep1"))
	snap := ctl.Snapshot()

	if !snap.IsLoading {
		t.Error("IsLoading = false immediately after SetEpisode, want true")
	}
	if snap.CurrentTime != 0 {
		t.Errorf("CurrentTime = %v immediately after SetEpisode, want 0", snap.CurrentTime)
	}
	if snap.Duration != 0 {
		t.Errorf("Duration = %v immediately after SetEpisode, want 0", snap.Duration)
	}
	if snap.HasError {
		t.Error("HasError = true after SetEpisode, want false")
	}
}

func TestSetEpisodeNilReturnsToIdle(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	ctl.SetEpisode(nil)
	snap := ctl.Snapshot()
	if snap.State != core.StateIdle {
		t.Errorf("State = %v, want idle", snap.State)
	}
	if prim.snapshot().detachCalls == 0 {
		t.Error("primitive not detached on nil episode")
	}
	// Progress of the outgoing episode was flushed.
	if _, ok := store.get("ep1"); !ok {
		t.Error("no position record written during episode teardown")
	}
}

func TestAutoplayAfterLoad(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)

	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying },
		"autoplay never started after load")
	if got := ctl.Snapshot().Duration; got != 600 {
		t.Errorf("Duration = %v, want 600", got)
	}
}

func TestRestoreOnLoad(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	store.Save(context.Background(), "ep1", 120, 600)

	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	// Let the restore read land before the primitive becomes ready.
	time.Sleep(20 * time.Millisecond)
	prim.becomeReady(600)

	waitFor(t, time.Second, func() bool { return prim.CurrentTime() == 120 },
		"saved position not restored")
}

func TestLateRestoreReadStillApplies(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	store.Save(context.Background(), "ep1", 120, 600)
	store.getDelay = 150 * time.Millisecond

	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	// The primitive is ready and playing long before the store read
	// resolves; the saved position must still land, since nothing else
	// has moved the playhead.
	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")
	if got := prim.CurrentTime(); got != 0 {
		t.Fatalf("CurrentTime = %v before the read resolved, want 0", got)
	}

	waitFor(t, time.Second, func() bool { return prim.CurrentTime() == 120 },
		"saved position never applied after the late read")
}

func TestLateRestoreReadYieldsToUserSeek(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	store.Save(context.Background(), "ep1", 120, 600)
	store.getDelay = 100 * time.Millisecond

	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")
	ctl.Seek(50)

	time.Sleep(200 * time.Millisecond)
	if got := prim.CurrentTime(); got != 50 {
		t.Errorf("CurrentTime = %v, want 50 (late restore must not override a seek)", got)
	}
}

func TestCompletedEpisodeStartsFromZero(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	store.Save(context.Background(), "ep1", 590, 600) // completed

	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	time.Sleep(20 * time.Millisecond)
	prim.becomeReady(600)

	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")
	if got := prim.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime = %v, want 0 (completed episodes restart)", got)
	}
}

func TestUserSeekWinsOverRestore(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	store.Save(context.Background(), "ep1", 120, 600)

	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	ctl.Seek(50)
	time.Sleep(20 * time.Millisecond)
	prim.becomeReady(600)

	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")
	if got := prim.CurrentTime(); got != 50 {
		t.Errorf("CurrentTime = %v, want 50 (most recently applied value wins)", got)
	}
}

func TestSeekClamps(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().Duration == 600 }, "load never finished")

	ctl.Seek(1000)
	if got := ctl.Snapshot().CurrentTime; got != 600 {
		t.Errorf("Seek(1000) left CurrentTime = %v, want 600", got)
	}

	ctl.Seek(-10)
	if got := ctl.Snapshot().CurrentTime; got != 0 {
		t.Errorf("Seek(-10) left CurrentTime = %v, want 0", got)
	}
}

func TestSkipDeltas(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().Duration == 600 }, "load never finished")

	ctl.Seek(100)
	ctl.SkipForward()
	if got := prim.CurrentTime(); got != 130 {
		t.Errorf("after SkipForward CurrentTime = %v, want 130", got)
	}
	ctl.SkipBackward()
	if got := prim.CurrentTime(); got != 120 {
		t.Errorf("after SkipBackward CurrentTime = %v, want 120", got)
	}
}

func TestGestureResumeIsSynchronous(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	ctl.TogglePlayPause() // pause
	before := prim.snapshot().playCalls

	// The resume command must have been issued by the time the call
	// returns, with no asynchronous hop in between.
	ctl.TogglePlayPause()
	if got := prim.snapshot().playCalls; got != before+1 {
		t.Errorf("playCalls = %d immediately after toggle, want %d", got, before+1)
	}
	if !ctl.Snapshot().IsPlaying {
		t.Error("not playing immediately after gesture resume")
	}
}

func TestPauseFlushesPositionSynchronously(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	prim.set(func(p *fakePrimitive) { p.current = 250 })
	ctl.TogglePlayPause()

	// The record is durable by the time the pause call returns.
	rec, ok := store.get("ep1")
	if !ok {
		t.Fatal("no record written on pause")
	}
	if rec.Position != 250 {
		t.Errorf("flushed position = %v, want 250", rec.Position)
	}
}

func TestEndedRecordsCompletion(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	// Arm the sleep timer so we can observe it being cleared.
	ctl.CycleSleepTimer()

	prim.set(func(p *fakePrimitive) { p.current = 600; p.playing = false })
	prim.emit(audio.EventEnded)

	waitFor(t, time.Second, func() bool { return ctl.Snapshot().State == core.StateEnded },
		"never reached ended state")

	rec, ok := store.get("ep1")
	if !ok {
		t.Fatal("no record written on episode end")
	}
	if rec.Position != 600 || !rec.Completed {
		t.Errorf("final record = %+v, want position=600 completed=true", rec)
	}
	if got := ctl.Snapshot().SleepTimerLabel; got != "Off" {
		t.Errorf("sleep timer label = %q after end, want Off", got)
	}
}

func TestLoadFailureClearsAutoplayIntent(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.events <- audio.Event{Type: audio.EventFailed, Err: errors.New("404")}

	waitFor(t, time.Second, func() bool { return ctl.Snapshot().HasError },
		"never reached error state")

	// A later can-play must not start playback: the intent was cleared
	// and resuming requires an explicit user retry.
	prim.becomeReady(600)
	time.Sleep(50 * time.Millisecond)
	if ctl.Snapshot().IsPlaying {
		t.Error("playback started without explicit retry after an error")
	}
}

func TestRetryAfterErrorReloads(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.events <- audio.Event{Type: audio.EventFailed, Err: errors.New("404")}
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().HasError }, "never reached error state")

	loadsBefore := prim.snapshot().loadCalls
	ctl.TogglePlayPause() // explicit retry
	if got := prim.snapshot().loadCalls; got != loadsBefore+1 {
		t.Errorf("loadCalls = %d after retry, want %d", got, loadsBefore+1)
	}

	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "retry never resumed playback")
}

func TestCycleSpeedReappliesOnEpisodeChange(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	rate := ctl.CycleSpeed()
	if got := prim.Rate(); got != rate {
		t.Fatalf("rate = %v after cycle, want %v", got, rate)
	}

	// New episode: the primitive resets to 1.0 on load and the session
	// must reapply the multiplier.
	ctl.SetEpisode(testEpisode("ep2"))
	prim.becomeReady(300)
	waitFor(t, time.Second, func() bool { return prim.Rate() == rate },
		"speed multiplier not reapplied after episode change")
}

func TestSurfaceTransportRoutesThroughSession(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	surface := mediasurface.NewMemorySurface()
	ctl := newTestController(prim, store, surface)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	h := surface.Handlers()
	if h.Play == nil || h.Pause == nil || h.SeekBackward == nil || h.SeekForward == nil || h.SeekTo == nil {
		t.Fatal("transport handlers not registered")
	}

	h.SeekTo(42)
	if got := prim.CurrentTime(); got != 42 {
		t.Errorf("CurrentTime = %v after surface seek, want 42", got)
	}

	h.Pause()
	if ctl.Snapshot().IsPlaying {
		t.Error("still playing after surface pause")
	}

	// Surface metadata reflects the episode.
	if got := surface.Metadata().Title; got != "Episode ep1" {
		t.Errorf("surface title = %q, want %q", got, "Episode ep1")
	}
}

func TestPlatformPlayRoutesThroughRecovery(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	surface := mediasurface.NewMemorySurface()
	ctl := newTestController(prim, store, surface)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	h := surface.Handlers()
	h.Pause()

	h.Play()
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying },
		"platform play never recovered playback")

	if len(ctl.RecoveryAttempts()) == 0 {
		t.Error("platform play bypassed the recovery coordinator")
	}
}

func TestForegroundDivergenceRunsRecovery(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	// The platform silently stopped audio while backgrounded.
	prim.set(func(p *fakePrimitive) { p.playing = false })

	ctl.HandleForeground(5 * time.Second)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying },
		"recovery never restored playback")

	attempts := ctl.RecoveryAttempts()
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1 (direct resume succeeds)", len(attempts))
	}
	if attempts[0].Outcome != recovery.OutcomeVerified {
		t.Errorf("outcome = %q, want verified", attempts[0].Outcome)
	}
}

func TestForegroundNoDivergenceNoRecovery(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	ctl.HandleForeground(5 * time.Second)
	time.Sleep(20 * time.Millisecond)

	if len(ctl.RecoveryAttempts()) != 0 {
		t.Error("recovery ran without a divergence")
	}
}

func TestLongSuspensionCondemnsAndReplacesPrimitive(t *testing.T) {
	first := newFakePrimitive()
	second := newFakePrimitive()
	prims := []*fakePrimitive{first, second}
	created := 0
	factory := func() audio.Primitive {
		p := prims[created]
		created++
		return p
	}

	store := newMemStore()
	ctl := New(factory, store, nil, Options{
		RecoveryOptions: []recovery.Option{recovery.WithSettleDelay(time.Millisecond)},
	})
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	first.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")
	ctl.Seek(120)

	// Suspended for 45s; afterwards the hardware is paused and every
	// play command is accepted but produces no audio.
	first.set(func(p *fakePrimitive) { p.playing = false; p.silentPlay = true })

	ctl.HandleForeground(45 * time.Second)

	// All three strategies fail and the session reports paused, never
	// claiming playback it cannot verify.
	waitFor(t, 10*time.Second, func() bool {
		return !ctl.coord.InFlight() && ctl.Snapshot().State == core.StatePaused
	}, "recovery never settled into paused")

	if got := len(ctl.RecoveryAttempts()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if ctl.Snapshot().IsPlaying {
		t.Fatal("session claims playing against hardware disagreement")
	}

	// The next resume attempt starts from a freshly created primitive,
	// not the condemned one.
	ctl.TogglePlayPause()
	if created != 2 {
		t.Fatalf("factory calls = %d, want 2 (condemned primitive replaced)", created)
	}
	waitFor(t, time.Second, func() bool { return second.snapshot().loadCalls == 1 },
		"replacement primitive never loaded the source")

	second.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying },
		"replacement primitive never resumed")
	if got := second.CurrentTime(); got != 120 {
		t.Errorf("resumed at %v, want 120 (last known position)", got)
	}
}

func TestEpisodeChangeCancelsRecovery(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	// Make every strategy slow and fruitless, then diverge.
	prim.set(func(p *fakePrimitive) { p.playing = false; p.silentPlay = true })
	ctl.HandleForeground(5 * time.Second)
	waitFor(t, time.Second, func() bool { return ctl.coord.InFlight() }, "recovery never started")

	// A newer episode change abandons the pending recovery.
	ctl.SetEpisode(testEpisode("ep2"))
	waitFor(t, 10*time.Second, func() bool { return !ctl.coord.InFlight() },
		"recovery still in flight after episode change")

	if got := ctl.Snapshot().Episode.ID; got != "ep2" {
		t.Errorf("current episode = %q, want ep2", got)
	}
}

func TestCloseWritesFinalPosition(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	surface := mediasurface.NewMemorySurface()
	ctl := newTestController(prim, store, surface)

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	prim.set(func(p *fakePrimitive) { p.current = 333 })
	ctl.Close()

	rec, ok := store.get("ep1")
	if !ok {
		t.Fatal("no record written on teardown")
	}
	if rec.Position != 333 {
		t.Errorf("teardown position = %v, want 333", rec.Position)
	}

	// All five transport callbacks were unregistered.
	if h := surface.Handlers(); h.Play != nil || h.Pause != nil || h.SeekTo != nil {
		t.Error("transport handlers not cleared on teardown")
	}
}

func TestCycleSleepTimerWrapsInSixSteps(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := newTestController(prim, store, nil)
	defer ctl.Close()

	if got := ctl.Snapshot().SleepTimerLabel; got != "Off" {
		t.Fatalf("initial sleep label = %q, want Off", got)
	}
	for i := 0; i < 6; i++ {
		ctl.CycleSleepTimer()
	}
	if got := ctl.Snapshot().SleepTimerLabel; got != "Off" {
		t.Errorf("label after 6 cycles = %q, want Off (exact wrap)", got)
	}
}

func TestSleepTimerPausesPlayback(t *testing.T) {
	prim := newFakePrimitive()
	store := newMemStore()
	ctl := New(func() audio.Primitive { return prim }, store, nil, Options{
		SleepDurations:  []time.Duration{50 * time.Millisecond},
		RecoveryOptions: []recovery.Option{recovery.WithSettleDelay(time.Millisecond)},
	})
	defer ctl.Close()

	ctl.SetEpisode(testEpisode("ep1"))
	prim.becomeReady(600)
	waitFor(t, time.Second, func() bool { return ctl.Snapshot().IsPlaying }, "never started playing")

	ctl.CycleSleepTimer() // 50ms duration

	// The 1s check loop crosses the deadline on its first tick.
	waitFor(t, 3*time.Second, func() bool { return !ctl.Snapshot().IsPlaying },
		"sleep timer never paused playback")
	if got := ctl.Snapshot().SleepTimerLabel; got != "Off" {
		t.Errorf("sleep label = %q after expiry, want Off", got)
	}
}
