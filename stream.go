package mediaparser

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stream is one elementary output of a Parser. Streams are created while
// the graph is built and live until the Parser is closed.
type Stream struct {
	parser *Parser
	index  int
	log    logrus.FieldLogger
	box    *mailbox

	// Guarded by parser.mu.
	hasCaps   bool
	preferred Format
	current   Format

	// Topology, guarded by parser.mu.
	upstream Pad       // Engine output feeding this stream, nil once removed
	entry    Pad       // Pad upstream is linked to
	chain    []Element // Post-processing stages, upstream first
	flip     Element   // Row-order stage within chain, if any
	sink     Sink
}

func newStream(p *Parser, index int) *Stream {
	return &Stream{
		parser: p,
		index:  index,
		log:    p.log.WithField("stream", index),
		box:    newMailbox(&p.mu, &p.progress),
	}
}

// Index returns the stream's position in the parser.
func (s *Stream) Index() int { return s.index }

// PreferredFormat returns the format the engine produces natively. It is
// Unknown until the stream's first caps have arrived.
func (s *Stream) PreferredFormat() Format {
	s.parser.mu.Lock()
	defer s.parser.mu.Unlock()
	return s.preferred
}

// HasCaps reports whether the engine has announced the stream's format.
func (s *Stream) HasCaps() bool {
	s.parser.mu.Lock()
	defer s.parser.mu.Unlock()
	return s.hasCaps
}

// CurrentFormat returns the format requested by the last Enable.
func (s *Stream) CurrentFormat() Format {
	s.parser.mu.Lock()
	defer s.parser.mu.Unlock()
	return s.current
}

// Enabled reports whether buffers are being delivered.
func (s *Stream) Enabled() bool {
	s.parser.mu.Lock()
	defer s.parser.mu.Unlock()
	return s.box.enabled
}

// Enable starts delivery of stream items converted to f. An Unknown f
// accepts whatever the engine produces.
func (s *Stream) Enable(f Format) error {
	s.parser.mu.Lock()
	sink, flip := s.sink, s.flip
	s.parser.mu.Unlock()

	// Nothing is committed until the sink accepts the format.
	if !f.IsUnknown() && sink != nil {
		caps, ok := s.parser.cfg.CapsTable.ToCaps(f)
		if !ok {
			return fmt.Errorf("stream %d: %w: %v", s.index, ErrUnsupportedFormat, f)
		}
		if err := sink.SetCaps(caps); err != nil {
			return fmt.Errorf("stream %d: set caps: %w", s.index, err)
		}
	}

	if f.Major == MajorVideo && flip != nil {
		method := "none"
		if f.Video.Height < 0 {
			method = "vertical-flip"
		}
		if err := flip.SetProperty("method", method); err != nil {
			s.log.WithError(err).Warn("failed to set flip method")
		}
	}

	s.parser.mu.Lock()
	s.current = f
	s.parser.mu.Unlock()

	s.box.setEnabled(true)
	s.log.WithField("format", f.String()).Debug("stream enabled")
	return nil
}

// Disable stops delivery; queued and future buffers are dropped.
func (s *Stream) Disable() {
	s.box.setEnabled(false)
	s.log.Debug("stream disabled")
}

// Read blocks until the next item is available. It returns ErrFlushing
// while a seek is in progress, ErrEndOfStream once the stream has ended,
// and ctx.Err() if ctx is cancelled. The caller owns a returned Sample.
func (s *Stream) Read(ctx context.Context) (Event, error) {
	return s.box.consume(ctx)
}

// flushAndReset discards queued data, resets post-processing history and
// clears end of stream. The engine seek that follows delivers new data.
func (s *Stream) flushAndReset() {
	s.box.flushStart()

	s.parser.mu.Lock()
	chain := s.chain
	s.parser.mu.Unlock()
	for _, e := range chain {
		if err := e.Reset(); err != nil {
			s.log.WithError(err).WithField("element", e.Name()).Warn("failed to reset post-processing stage")
		}
	}

	s.parser.mu.Lock()
	s.box.eos = false
	s.parser.mu.Unlock()
	s.box.flushStop()
}

// releasePads drops the pad references the stream holds. It runs once, at
// parser teardown; an upstream already released on removal is skipped.
func (s *Stream) releasePads() {
	s.parser.mu.Lock()
	upstream, entry := s.upstream, s.entry
	s.upstream, s.entry = nil, nil
	s.parser.mu.Unlock()

	if upstream != nil {
		upstream.Release()
	}
	if entry != nil {
		entry.Release()
	}
}
