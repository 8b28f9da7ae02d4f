package mediaparser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedReader replays a fixed sequence of read results.
type scriptedReader struct {
	format Format

	mu      sync.Mutex
	script  []scriptStep
	enabled Format
	calls   int
}

type scriptStep struct {
	ev  Event
	err error
}

func (r *scriptedReader) PreferredFormat(i int) (Format, error) {
	if i != 0 {
		return Format{}, ErrInvalidStream
	}
	return r.format, nil
}

func (r *scriptedReader) Enable(i int, f Format) error {
	if i != 0 {
		return ErrInvalidStream
	}
	r.mu.Lock()
	r.enabled = f
	r.mu.Unlock()
	return nil
}

func (r *scriptedReader) Read(ctx context.Context, i int) (Event, error) {
	r.mu.Lock()
	if len(r.script) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return Event{}, ctx.Err()
	}
	step := r.script[0]
	r.script = r.script[1:]
	r.calls++
	r.mu.Unlock()
	return step.ev, step.err
}

type packetCollector struct {
	mu      sync.Mutex
	packets []*RTPPacket
	fail    error
}

func (c *packetCollector) WriteRTP(p *RTPPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.packets = append(c.packets, p)
	return nil
}

func (c *packetCollector) all() []*RTPPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*RTPPacket(nil), c.packets...)
}

func opusSample(pts time.Duration) Event {
	s := NewSample(80)
	for i := range s.Data {
		s.Data[i] = byte(i)
	}
	s.PTS, s.HasPTS = pts, true
	return Event{Type: EventBuffer, Sample: s}
}

func runForwarder(t *testing.T, cfg ForwarderConfig) *SampleForwarder {
	t.Helper()
	f, err := NewSampleForwarder(cfg)
	if err != nil {
		t.Fatalf("NewSampleForwarder: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		f.Stop()
		t.Fatal("forwarder did not finish")
	}
	return f
}

func TestSampleForwarder_Opus(t *testing.T) {
	reader := &scriptedReader{
		format: NewAudioFormat(AudioFormatOpus, 2, 48000),
		script: []scriptStep{
			{ev: Event{Type: EventSegment, Segment: Segment{Stop: -1, Rate: 1}}},
			{ev: opusSample(0)},
			{ev: opusSample(20 * time.Millisecond)},
			{ev: opusSample(40 * time.Millisecond)},
			{ev: Event{Type: EventEOS}},
		},
	}
	writer := &packetCollector{}
	f := runForwarder(t, ForwarderConfig{
		Reader:      reader,
		Writer:      writer,
		SSRC:        0x1234,
		PayloadType: 111,
		Logger:      quietLogger(),
	})

	if f.State() != ForwarderStateEnded {
		t.Errorf("Expected ended, got %s", f.State())
	}
	if !Compatible(reader.enabled, reader.format) {
		t.Errorf("Expected stream enabled with preferred format, got %v", reader.enabled)
	}

	packets := writer.all()
	if len(packets) != 3 {
		t.Fatalf("Expected 3 packets, got %d", len(packets))
	}
	for i, p := range packets {
		if p.SSRC != 0x1234 || p.PayloadType != 111 || !p.Marker {
			t.Errorf("packet %d: unexpected header %+v", i, p.Header)
		}
		if i == 0 {
			continue
		}
		if p.SequenceNumber != packets[i-1].SequenceNumber+1 {
			t.Errorf("packet %d: sequence not contiguous", i)
		}
		// 20ms at 48kHz.
		if d := p.Timestamp - packets[i-1].Timestamp; d != 960 {
			t.Errorf("packet %d: expected timestamp delta 960, got %d", i, d)
		}
	}

	stats := f.Stats()
	if stats.SamplesRead != 3 || stats.PacketsSent != 3 || stats.Segments != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestSampleForwarder_SegmentRebase(t *testing.T) {
	reader := &scriptedReader{
		format: NewAudioFormat(AudioFormatOpus, 2, 48000),
		script: []scriptStep{
			{ev: Event{Type: EventSegment, Segment: Segment{Stop: -1, Rate: 1}}},
			{ev: opusSample(time.Second)},
			{err: ErrFlushing},
			{ev: Event{Type: EventSegment, Segment: Segment{Stop: -1, Rate: 1}}},
			{ev: opusSample(0)},
			{err: ErrEndOfStream},
		},
	}
	writer := &packetCollector{}
	f := runForwarder(t, ForwarderConfig{Reader: reader, Writer: writer, Logger: quietLogger()})

	packets := writer.all()
	if len(packets) != 2 {
		t.Fatalf("Expected 2 packets, got %d", len(packets))
	}
	// Timestamps keep increasing across the backwards seek.
	if IsRTPTimestampOlder(packets[1].Timestamp, packets[0].Timestamp) {
		t.Errorf("Expected timestamp %d to follow %d", packets[1].Timestamp, packets[0].Timestamp)
	}
	stats := f.Stats()
	if stats.Flushes != 1 || stats.Segments != 2 || stats.Reordered != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if f.State() != ForwarderStateEnded {
		t.Errorf("Expected ended, got %s", f.State())
	}
}

func TestSampleForwarder_H264Fragments(t *testing.T) {
	s := NewSample(5000)
	copy(s.Data, []byte{0, 0, 0, 1, 0x65})
	s.PTS, s.HasPTS = 0, true

	reader := &scriptedReader{
		format: NewVideoFormat(PixelFormatH264, 1280, 720, 30, 1),
		script: []scriptStep{
			{ev: Event{Type: EventBuffer, Sample: s}},
			{ev: Event{Type: EventEOS}},
		},
	}
	writer := &packetCollector{}
	runForwarder(t, ForwarderConfig{Reader: reader, Writer: writer, MTU: 1200, Logger: quietLogger()})

	packets := writer.all()
	if len(packets) < 2 {
		t.Fatalf("Expected the frame to be fragmented, got %d packets", len(packets))
	}
	for i, p := range packets {
		if p.MarshalSize() > 1200 {
			t.Errorf("packet %d exceeds MTU: %d", i, p.MarshalSize())
		}
		if p.Marker != (i == len(packets)-1) {
			t.Errorf("packet %d: unexpected marker %v", i, p.Marker)
		}
		if p.Timestamp != packets[0].Timestamp {
			t.Errorf("packet %d: fragments must share a timestamp", i)
		}
	}
}

func TestSampleForwarder_DropsUntimed(t *testing.T) {
	s := NewSample(10)
	reader := &scriptedReader{
		format: NewAudioFormat(AudioFormatOpus, 2, 48000),
		script: []scriptStep{
			{ev: Event{Type: EventBuffer, Sample: s}},
			{ev: Event{Type: EventEOS}},
		},
	}
	writer := &packetCollector{}
	f := runForwarder(t, ForwarderConfig{Reader: reader, Writer: writer, Logger: quietLogger()})

	if n := len(writer.all()); n != 0 {
		t.Errorf("Expected no packets, got %d", n)
	}
	if stats := f.Stats(); stats.SamplesDropped != 1 {
		t.Errorf("Expected 1 dropped sample, got %d", stats.SamplesDropped)
	}
}

func TestSampleForwarder_WriteError(t *testing.T) {
	reader := &scriptedReader{
		format: NewAudioFormat(AudioFormatOpus, 2, 48000),
		script: []scriptStep{
			{ev: opusSample(0)},
			{ev: Event{Type: EventEOS}},
		},
	}
	writeErr := errors.New("network down")
	errs := make(chan error, 1)
	f := runForwarder(t, ForwarderConfig{
		Reader:  reader,
		Writer:  &packetCollector{fail: writeErr},
		Logger:  quietLogger(),
		OnError: func(err error) { errs <- err },
	})

	select {
	case err := <-errs:
		if !errors.Is(err, writeErr) {
			t.Errorf("Expected write error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
	if f.Stats().Errors != 1 {
		t.Errorf("Expected 1 error, got %d", f.Stats().Errors)
	}
}

func TestSampleForwarder_Stop(t *testing.T) {
	reader := &scriptedReader{format: NewAudioFormat(AudioFormatOpus, 2, 48000)}
	f, err := NewSampleForwarder(ForwarderConfig{Reader: reader, Writer: &packetCollector{}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewSampleForwarder: %v", err)
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.Start(); err == nil {
		t.Error("Expected second Start to fail")
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.State() != ForwarderStateStopped {
		t.Errorf("Expected stopped, got %s", f.State())
	}
}

func TestNewSampleForwarder_Errors(t *testing.T) {
	if _, err := NewSampleForwarder(ForwarderConfig{Writer: &packetCollector{}}); err == nil {
		t.Error("Expected error without reader")
	}
	reader := &scriptedReader{format: NewAudioFormat(AudioFormatS16, 2, 48000)}
	if _, err := NewSampleForwarder(ForwarderConfig{Reader: reader}); err == nil {
		t.Error("Expected error without writer")
	}
	_, err := NewSampleForwarder(ForwarderConfig{Reader: reader, Writer: &packetCollector{}})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for raw audio, got %v", err)
	}
	_, err = NewSampleForwarder(ForwarderConfig{Reader: reader, Writer: &packetCollector{}, Stream: 3})
	if !errors.Is(err, ErrInvalidStream) {
		t.Errorf("Expected ErrInvalidStream, got %v", err)
	}
}

func TestSampleForwarder_FromParser(t *testing.T) {
	gate := make(chan struct{})
	e := &simEngine{outputs: []simOutput{
		{name: "video_0", caps: testH264Caps, buffers: 10, frameSize: 300},
	}, gate: gate}
	p := newSimParser(t, StrategyDemux, e)

	writer := &packetCollector{}
	f, err := NewSampleForwarder(ForwarderConfig{Reader: p, Writer: writer, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewSampleForwarder: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	close(gate)

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		f.Stop()
		t.Fatal("forwarder did not reach end of stream")
	}

	if f.State() != ForwarderStateEnded {
		t.Errorf("Expected ended, got %s", f.State())
	}
	if got := f.Stats().SamplesRead; got != 10 {
		t.Errorf("Expected 10 samples, got %d", got)
	}
	if n := len(writer.all()); n == 0 {
		t.Error("Expected packets")
	}
}
