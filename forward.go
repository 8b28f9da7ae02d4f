package mediaparser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// ForwarderState represents the state of a SampleForwarder.
type ForwarderState int

const (
	ForwarderStateIdle    ForwarderState = iota // Not started
	ForwarderStateRunning                       // Forwarding samples
	ForwarderStateEnded                         // Stream reached its end
	ForwarderStateStopped                       // Stopped by the caller
)

func (s ForwarderState) String() string {
	switch s {
	case ForwarderStateIdle:
		return "idle"
	case ForwarderStateRunning:
		return "running"
	case ForwarderStateEnded:
		return "ended"
	case ForwarderStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StreamReader is the part of Parser a SampleForwarder consumes.
type StreamReader interface {
	PreferredFormat(i int) (Format, error)
	Enable(i int, f Format) error
	Read(ctx context.Context, i int) (Event, error)
}

// ForwarderStats provides forwarder statistics.
type ForwarderStats struct {
	SamplesRead    uint64
	SamplesDropped uint64 // Samples without a timestamp
	PacketsSent    uint64
	BytesSent      uint64
	Segments       uint64
	Flushes        uint64
	Reordered      uint64 // Samples whose timestamp precedes the previous one
	Errors         uint64
}

// ForwarderConfig configures a SampleForwarder.
type ForwarderConfig struct {
	Reader      StreamReader // Usually a *Parser
	Stream      int          // Stream index
	Format      Format       // Requested format (Unknown = preferred format)
	Writer      RTPWriter    // Output writer
	SSRC        uint32       // 0 = random
	PayloadType uint8
	MTU         int // 0 = DefaultMTU
	Logger      logrus.FieldLogger
	OnError     func(error) // Error callback
}

// SampleForwarder reads compressed samples from one stream and writes them
// as RTP packets: Stream -> Payloader -> RTPWriter.
type SampleForwarder struct {
	reader    StreamReader
	stream    int
	format    Format
	writer    RTPWriter
	payloader rtp.Payloader
	sequencer rtp.Sequencer
	ssrc      uint32
	pt        uint8
	mtu       int
	clockRate uint32
	log       logrus.FieldLogger

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Timestamp mapping, owned by the forwarding goroutine.
	rebase   bool
	tsOffset uint32
	lastTS   uint32
	sent     bool

	stats   ForwarderStats
	statsMu sync.Mutex

	onError func(error)
	mu      sync.Mutex
}

// NewSampleForwarder creates a forwarder for one stream of a parser.
func NewSampleForwarder(config ForwarderConfig) (*SampleForwarder, error) {
	if config.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if config.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}

	format := config.Format
	if format.IsUnknown() {
		f, err := config.Reader.PreferredFormat(config.Stream)
		if err != nil {
			return nil, fmt.Errorf("stream %d format: %w", config.Stream, err)
		}
		format = f
	}
	payloader, err := NewPayloader(format)
	if err != nil {
		return nil, err
	}

	mtu := config.MTU
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	ssrc := config.SSRC
	if ssrc == 0 {
		ssrc = rand.Uint32()
	}
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	f := &SampleForwarder{
		reader:    config.Reader,
		stream:    config.Stream,
		format:    format,
		writer:    config.Writer,
		payloader: payloader,
		sequencer: rtp.NewRandomSequencer(),
		ssrc:      ssrc,
		pt:        config.PayloadType,
		mtu:       mtu,
		clockRate: format.ClockRate(),
		log: log.WithFields(logrus.Fields{
			"stream": config.Stream,
			"mime":   format.MimeType(),
			"ssrc":   ssrc,
		}),
		tsOffset: rand.Uint32(),
		onError:  config.OnError,
	}
	f.state.Store(int32(ForwarderStateIdle))
	return f, nil
}

// Start enables the stream and starts forwarding.
func (f *SampleForwarder) Start() error {
	if ForwarderState(f.state.Load()) == ForwarderStateRunning {
		return fmt.Errorf("forwarder already running")
	}
	if err := f.reader.Enable(f.stream, f.format); err != nil {
		return fmt.Errorf("enable stream %d: %w", f.stream, err)
	}

	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.state.Store(int32(ForwarderStateRunning))

	f.wg.Add(1)
	go f.forwardLoop()

	f.log.Debug("forwarder started")
	return nil
}

// Stop stops forwarding and waits for the loop to exit.
func (f *SampleForwarder) Stop() error {
	if ForwarderState(f.state.Load()) == ForwarderStateIdle {
		return nil
	}
	f.cancel()
	f.wg.Wait()
	f.state.CompareAndSwap(int32(ForwarderStateRunning), int32(ForwarderStateStopped))
	return nil
}

// Wait blocks until the stream has ended or the forwarder was stopped.
func (f *SampleForwarder) Wait() {
	f.wg.Wait()
}

// State returns the current forwarder state.
func (f *SampleForwarder) State() ForwarderState {
	return ForwarderState(f.state.Load())
}

// Stats returns forwarder statistics.
func (f *SampleForwarder) Stats() ForwarderStats {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	return f.stats
}

func (f *SampleForwarder) forwardLoop() {
	defer f.wg.Done()

	for {
		ev, err := f.reader.Read(f.ctx, f.stream)
		switch {
		case err == nil:
		case errors.Is(err, ErrFlushing):
			f.statsMu.Lock()
			f.stats.Flushes++
			f.statsMu.Unlock()
			// The flush window is short; poll until it closes.
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		case errors.Is(err, ErrEndOfStream):
			f.state.Store(int32(ForwarderStateEnded))
			f.log.Debug("stream ended")
			return
		case f.ctx.Err() != nil:
			return
		default:
			f.handleError(err)
			f.state.Store(int32(ForwarderStateEnded))
			return
		}

		switch ev.Type {
		case EventSegment:
			f.rebase = true
			f.statsMu.Lock()
			f.stats.Segments++
			f.statsMu.Unlock()
		case EventBuffer:
			f.forwardSample(ev.Sample)
			ev.Sample.Release()
		case EventEOS:
			f.state.Store(int32(ForwarderStateEnded))
			f.log.Debug("stream ended")
			return
		}
	}
}

func (f *SampleForwarder) forwardSample(s *Sample) {
	f.statsMu.Lock()
	f.stats.SamplesRead++
	if !s.HasPTS {
		f.stats.SamplesDropped++
		f.statsMu.Unlock()
		return
	}
	f.statsMu.Unlock()

	ts := f.timestamp(s.PTS)
	if f.sent && ts != f.lastTS && IsRTPTimestampOlder(ts, f.lastTS) {
		f.statsMu.Lock()
		f.stats.Reordered++
		f.statsMu.Unlock()
	}
	f.lastTS, f.sent = ts, true

	payloads := f.payloader.Payload(uint16(f.mtu-12), s.Data)
	for i, payload := range payloads {
		pkt := &RTPPacket{
			Header: rtp.Header{
				Version:        2,
				Marker:         f.format.Major == MajorAudio || i == len(payloads)-1,
				PayloadType:    f.pt,
				SequenceNumber: f.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
				SSRC:           f.ssrc,
			},
			Payload: payload,
		}
		if err := f.writer.WriteRTP(pkt); err != nil {
			f.handleError(err)
			continue
		}

		f.statsMu.Lock()
		f.stats.PacketsSent++
		f.stats.BytesSent += uint64(pkt.MarshalSize())
		f.statsMu.Unlock()
	}
}

// timestamp maps a presentation time to an RTP timestamp. After a segment
// the mapping is rebased so timestamps continue from the last one sent.
func (f *SampleForwarder) timestamp(pts time.Duration) uint32 {
	scaled := uint32(uint64(pts) * uint64(f.clockRate) / uint64(time.Second))
	if f.rebase {
		if f.sent {
			f.tsOffset = f.lastTS + 1 - scaled
		} else {
			f.tsOffset -= scaled
		}
		f.rebase = false
	}
	return f.tsOffset + scaled
}

func (f *SampleForwarder) handleError(err error) {
	f.statsMu.Lock()
	f.stats.Errors++
	f.statsMu.Unlock()

	f.log.WithError(err).Warn("forwarding failed")

	f.mu.Lock()
	cb := f.onError
	f.mu.Unlock()

	if cb != nil {
		go cb(err)
	}
}
