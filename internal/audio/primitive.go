package audio

// EventType identifies an asynchronous event emitted by a Primitive.
type EventType int

const (
	// EventReady fires once metadata (duration) is known after a load.
	EventReady EventType = iota
	// EventCanPlay fires when enough data is buffered to begin playback.
	EventCanPlay
	// EventWaiting fires when playback stalls on buffering.
	EventWaiting
	// EventEnded fires when playback reaches the end of the source.
	EventEnded
	// EventFailed fires when the source cannot be loaded or played.
	EventFailed
)

// String returns a short name for the event type.
func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventCanPlay:
		return "canplay"
	case EventWaiting:
		return "waiting"
	case EventEnded:
		return "ended"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is an asynchronous notification from the playback hardware.
type Event struct {
	Type EventType
	Err  error // set for EventFailed
}

// Primitive is the host-provided audio playback object. The session
// controller is the sole component permitted to call command methods;
// everything else requests actions through the controller.
//
// Commands are synchronous calls; outcomes that depend on the hardware
// (load completion, end of stream, failures) arrive on Events. Events
// are consumed by a single goroutine; implementations must not require
// concurrent consumption.
type Primitive interface {
	// Load attaches a new source. Any previous source is discarded and
	// the playhead resets to zero.
	Load(url string)

	// Play starts or resumes playback. A non-nil error means the
	// command was rejected outright; a nil error means the command was
	// accepted, not that audio is verifiably flowing. Callers that need
	// certainty must probe Playing after a settle delay.
	Play() error

	// Pause halts playback, keeping the source and playhead.
	Pause()

	// Seek moves the playhead to the given offset in seconds. Values
	// outside [0, Duration] are clamped by the implementation.
	Seek(seconds float64)

	// SetRate sets the playback rate multiplier. Implementations reset
	// the rate to 1.0 whenever a new source is loaded.
	SetRate(rate float64)

	// Detach drops the current source without closing the primitive.
	Detach()

	CurrentTime() float64
	Duration() float64
	Rate() float64
	Playing() bool

	// Events returns the event stream. The channel is closed by Close.
	Events() <-chan Event

	// Close releases the primitive. No methods may be called after.
	Close()
}
