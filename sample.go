package mediaparser

import (
	"sync"
	"time"
)

// Segment describes the valid time range and rate of the data that follows.
// A negative Stop means the segment is open-ended.
type Segment struct {
	Position time.Duration
	Stop     time.Duration
	Rate     float64
}

// Sample is one buffer of stream data. A Sample has exactly one owner at a
// time: the producer until it is published, the mailbox while queued, and
// the reader after Read returns it. Release hands the bytes back for reuse;
// the Sample must not be touched afterwards.
type Sample struct {
	Data      []byte
	PTS       time.Duration
	DTS       time.Duration
	Duration  time.Duration
	HasPTS    bool
	HasDTS    bool
	HasDur    bool
	SyncPoint bool // Decodable without earlier samples
}

var samplePool = sync.Pool{
	New: func() any { return &Sample{} },
}

// NewSample returns a Sample with len(Data) == size.
func NewSample(size int) *Sample {
	s := samplePool.Get().(*Sample)
	if cap(s.Data) < size {
		s.Data = make([]byte, size)
	}
	s.Data = s.Data[:size]
	return s
}

// Release returns s to the pool.
func (s *Sample) Release() {
	if s == nil {
		return
	}
	data := s.Data[:0]
	*s = Sample{Data: data}
	samplePool.Put(s)
}

// EventType identifies the kind of item returned by Read.
type EventType int

const (
	EventNone EventType = iota
	EventBuffer
	EventSegment
	EventEOS
)

func (t EventType) String() string {
	switch t {
	case EventBuffer:
		return "buffer"
	case EventSegment:
		return "segment"
	case EventEOS:
		return "eos"
	default:
		return "none"
	}
}

// Event is one item of a stream: a Buffer carrying a Sample, a Segment, or
// end of stream.
type Event struct {
	Type    EventType
	Sample  *Sample // EventBuffer
	Segment Segment // EventSegment
}

// release frees the payload of an event that will never be delivered.
func (e *Event) release() {
	if e.Sample != nil {
		e.Sample.Release()
		e.Sample = nil
	}
}
