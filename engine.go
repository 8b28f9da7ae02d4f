package mediaparser

import (
	"io"
	"time"
)

// Engine is the boundary to the native, asynchronous graph engine. Every
// callback registered through these interfaces may run on an engine worker
// thread.
type Engine interface {
	// Name returns the backend name used in logs.
	Name() string

	// NewGraph creates an empty top-level graph.
	NewGraph(name string) (Graph, error)
}

// State is a graph run-state.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Graph owns every element created through it. Close releases them all.
type Graph interface {
	// AddElement instantiates a native element by factory name. A missing
	// factory returns an error wrapping ErrMissingElement.
	AddElement(factory, name string) (Element, error)

	// AddSource creates the element that feeds r into the graph. If r also
	// implements io.Seeker the engine may read it randomly.
	AddSource(name string, r io.Reader) (Element, error)

	// AddSink creates a terminal element delivering data and control events
	// to cb.
	AddSink(name string, cb SinkCallbacks) (Sink, error)

	// SetState changes the run-state and returns once the transition has
	// finished or failed.
	SetState(s State) error

	// QueryDuration asks the graph for the stream duration.
	QueryDuration() (time.Duration, bool)

	// Seek issues a flushing seek to position.
	Seek(position time.Duration) error

	// OnMessage registers the handler for asynchronous graph messages.
	OnMessage(fn func(Message))

	Close() error
}

// Element is one native processing stage.
type Element interface {
	Name() string

	// SetProperty sets a property from its string form.
	SetProperty(name, value string) error

	// StaticPad returns a new reference to an always-present pad.
	StaticPad(name string) (Pad, error)

	// Link links the element's default source pad to dst's sink pad.
	Link(dst Element) error

	// SyncState brings an element added to a running graph to the graph's state.
	SyncState() error

	// Reset drops any internal history (e.g. a deinterlacer's field memory).
	Reset() error

	// OnPadAdded hands fn a reference to the new pad that fn must Release
	// when done with it. The pad passed to OnPadRemoved is borrowed.
	OnPadAdded(fn func(Pad))
	OnPadRemoved(fn func(Pad))
	OnNoMorePads(fn func())
	OnAutoplugSelect(fn func(caps Caps, factory string) AutoplugResult)
}

// Pad is a native element's input or output.
type Pad interface {
	Name() string
	CurrentCaps() (Caps, bool)

	// Native returns the identity of the underlying native pad. Two Pad
	// values refer to the same pad iff their Native values are equal.
	Native() uintptr

	// Link links this source pad to sink.
	Link(sink Pad) error
	Unlink(sink Pad) error

	// Release drops the reference held on the pad. It must be called at most
	// once per acquired reference.
	Release()
}

// Sink is the terminal element of one stream. Its "sink" static pad is the
// stream's input.
type Sink interface {
	Element

	// SetCaps restricts the formats the sink accepts and asks upstream to
	// renegotiate.
	SetCaps(c Caps) error
}

// FlowResult is returned to the engine from a data callback.
type FlowResult int

const (
	FlowOK       FlowResult = iota
	FlowFlushing            // Data was discarded because the stream is flushing
	FlowError
)

func (f FlowResult) String() string {
	switch f {
	case FlowOK:
		return "ok"
	case FlowFlushing:
		return "flushing"
	case FlowError:
		return "error"
	default:
		return "unknown"
	}
}

// AutoplugResult is the decision returned for a candidate decoder.
type AutoplugResult int

const (
	AutoplugTry    AutoplugResult = iota // Try the candidate
	AutoplugExpose                       // Expose the pad without plugging
	AutoplugSkip                         // Skip the candidate
)

// SinkEventType identifies an in-band control event.
type SinkEventType int

const (
	SinkEventCaps SinkEventType = iota
	SinkEventSegment
	SinkEventEOS
	SinkEventFlushStart
	SinkEventFlushStop
)

func (t SinkEventType) String() string {
	switch t {
	case SinkEventCaps:
		return "caps"
	case SinkEventSegment:
		return "segment"
	case SinkEventEOS:
		return "eos"
	case SinkEventFlushStart:
		return "flush-start"
	case SinkEventFlushStop:
		return "flush-stop"
	default:
		return "unknown"
	}
}

// SinkEvent is a control event arriving at a stream sink.
type SinkEvent struct {
	Type    SinkEventType
	Caps    Caps    // SinkEventCaps
	Segment Segment // SinkEventSegment
}

// SinkCallbacks are invoked on engine threads for each stream sink.
type SinkCallbacks struct {
	// OnBuffer receives ownership of s.
	OnBuffer func(s *Sample) FlowResult
	OnEvent  func(ev SinkEvent)
}

// MessageType identifies an asynchronous graph message.
type MessageType int

const (
	MessageError MessageType = iota
	MessageWarning
	MessageEOS
	MessageDurationChanged
)

// Message is an asynchronous notification from the graph.
type Message struct {
	Type   MessageType
	Source string
	Err    error
}
