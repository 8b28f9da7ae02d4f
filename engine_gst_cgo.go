//go:build cgo && !nogst

// GStreamer engine through the go-gst cgo bindings.

package mediaparser

/*
#cgo pkg-config: gstreamer-1.0

#include <stdlib.h>
#include <gst/gst.h>

extern gint mediaparserAutoplugSelect(GstElement *bin, GstPad *pad, GstCaps *caps, GstElementFactory *factory, gpointer data);
*/
import "C"

import (
	"errors"
	"fmt"
	"io"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
)

var gstInitOnce sync.Once

func init() {
	registerBackend(BackendGoGst, func() (Engine, error) {
		gstInitOnce.Do(func() { gst.Init(nil) })
		return goGstEngine{}, nil
	})
}

type goGstEngine struct{}

func (goGstEngine) Name() string { return BackendGoGst.String() }

func (goGstEngine) NewGraph(name string) (Graph, error) {
	pipeline, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	g := &goGstGraph{
		pipeline: pipeline,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go g.watchBus()
	return g, nil
}

type goGstGraph struct {
	pipeline *gst.Pipeline

	mu        sync.Mutex
	onMessage func(Message)
	handles   []cgo.Handle

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func (g *goGstGraph) AddElement(factory, name string) (Element, error) {
	e, err := gst.NewElementWithName(factory, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingElement, factory, err)
	}
	if err := g.pipeline.Add(e); err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	return &goGstElement{graph: g, elem: e}, nil
}

func (g *goGstGraph) AddSource(name string, r io.Reader) (Element, error) {
	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("%w: appsrc: %v", ErrMissingElement, err)
	}
	src.SetProperty("name", name)
	src.SetProperty("block", true)

	feeder := &goGstFeeder{r: r}
	if s, ok := r.(io.Seeker); ok {
		if size, err := s.Seek(0, io.SeekEnd); err == nil {
			if _, err := s.Seek(0, io.SeekStart); err == nil {
				feeder.seeker = s
				src.SetSize(size)
			}
		}
	}
	if feeder.seeker != nil {
		src.SetStreamType(app.AppStreamTypeRandomAccess)
	} else {
		src.SetStreamType(app.AppStreamTypeStream)
	}
	src.SetCallbacks(&app.SourceCallbacks{
		NeedDataFunc: feeder.needData,
		SeekDataFunc: feeder.seekData,
	})

	if err := g.pipeline.Add(src.Element); err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	return &goGstElement{graph: g, elem: src.Element}, nil
}

func (g *goGstGraph) AddSink(name string, cb SinkCallbacks) (Sink, error) {
	filter, err := gst.NewElementWithName("capsfilter", name+"-filter")
	if err != nil {
		return nil, fmt.Errorf("%w: capsfilter: %v", ErrMissingElement, err)
	}
	sink, err := gst.NewElementWithName("fakesink", name)
	if err != nil {
		return nil, fmt.Errorf("%w: fakesink: %v", ErrMissingElement, err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("async", false)

	if err := g.pipeline.AddMany(filter, sink); err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	if err := filter.Link(sink); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLinkFailed, name, err)
	}

	pad := sink.GetStaticPad("sink")
	if pad == nil {
		return nil, fmt.Errorf("%w: %s has no sink pad", ErrLinkFailed, name)
	}
	mask := gst.PadProbeTypeBuffer | gst.PadProbeTypeEventDownstream | gst.PadProbeTypeEventFlush
	pad.AddProbe(mask, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		// Buffers stop here so the sink never blocks in preroll.
		if buf := info.GetBuffer(); buf != nil {
			cb.OnBuffer(sampleFromGstBuffer(buf))
			return gst.PadProbeDrop
		}
		if ev := info.GetEvent(); ev != nil {
			if sev, ok := sinkEventFromGst(ev); ok {
				cb.OnEvent(sev)
			}
		}
		return gst.PadProbeOK
	})

	return &goGstSink{
		goGstElement: goGstElement{graph: g, elem: sink},
		filter:       filter,
	}, nil
}

func (g *goGstGraph) SetState(s State) error {
	target := goGstState(s)
	if err := g.pipeline.SetState(target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStateChange, s, err)
	}
	if ret, _ := g.pipeline.GetState(target, gst.ClockTimeNone); ret == gst.StateChangeFailure {
		return fmt.Errorf("%w: %s", ErrStateChange, s)
	}
	return nil
}

func (g *goGstGraph) QueryDuration() (time.Duration, bool) {
	ok, d := g.pipeline.QueryDuration(gst.FormatTime)
	if !ok || d < 0 {
		return 0, false
	}
	return time.Duration(d), true
}

func (g *goGstGraph) Seek(position time.Duration) error {
	if !g.pipeline.SeekTime(position, gst.SeekFlagFlush|gst.SeekFlagAccurate) {
		return fmt.Errorf("%w: seek rejected", ErrEngine)
	}
	return nil
}

func (g *goGstGraph) OnMessage(fn func(Message)) {
	g.mu.Lock()
	g.onMessage = fn
	g.mu.Unlock()
}

func (g *goGstGraph) watchBus() {
	defer close(g.stopped)
	bus := g.pipeline.GetPipelineBus()
	for {
		select {
		case <-g.done:
			return
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}
		var m Message
		switch msg.Type() {
		case gst.MessageError:
			m = Message{Type: MessageError, Source: msg.Source(), Err: errors.New(msg.ParseError().Error())}
		case gst.MessageWarning:
			m = Message{Type: MessageWarning, Source: msg.Source(), Err: errors.New(msg.ParseWarning().Error())}
		case gst.MessageEOS:
			m = Message{Type: MessageEOS, Source: msg.Source()}
		case gst.MessageDurationChanged:
			m = Message{Type: MessageDurationChanged, Source: msg.Source()}
		default:
			continue
		}

		g.mu.Lock()
		fn := g.onMessage
		g.mu.Unlock()
		if fn != nil {
			fn(m)
		}
	}
}

func (g *goGstGraph) Close() error {
	g.closeOnce.Do(func() {
		close(g.done)
		<-g.stopped
		g.mu.Lock()
		for _, h := range g.handles {
			h.Delete()
		}
		g.handles = nil
		g.mu.Unlock()
	})
	return nil
}

func (g *goGstGraph) keep(h cgo.Handle) {
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
}

func goGstState(s State) gst.State {
	switch s {
	case StateReady:
		return gst.StateReady
	case StatePaused:
		return gst.StatePaused
	case StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

type goGstElement struct {
	graph *goGstGraph
	elem  *gst.Element
}

func (e *goGstElement) Name() string { return e.elem.GetName() }

func (e *goGstElement) SetProperty(name, value string) error {
	e.elem.SetArg(name, value)
	return nil
}

func (e *goGstElement) StaticPad(name string) (Pad, error) {
	pad := e.elem.GetStaticPad(name)
	if pad == nil {
		return nil, fmt.Errorf("%w: %s has no %q pad", ErrLinkFailed, e.Name(), name)
	}
	return &goGstPad{pad: pad}, nil
}

// linkTarget returns the element upstream elements link into.
func (e *goGstElement) linkTarget() *gst.Element { return e.elem }

func (e *goGstElement) Link(dst Element) error {
	t, ok := dst.(interface{ linkTarget() *gst.Element })
	if !ok {
		return fmt.Errorf("%w: %T is not a go-gst element", ErrLinkFailed, dst)
	}
	if err := e.elem.Link(t.linkTarget()); err != nil {
		return fmt.Errorf("%w: %s to %s: %v", ErrLinkFailed, e.Name(), dst.Name(), err)
	}
	return nil
}

func (e *goGstElement) SyncState() error {
	if !e.elem.SyncStateWithParent() {
		return fmt.Errorf("%w: sync %s", ErrStateChange, e.Name())
	}
	return nil
}

func (e *goGstElement) Reset() error {
	if !e.elem.SendEvent(gst.NewFlushStartEvent()) || !e.elem.SendEvent(gst.NewFlushStopEvent(true)) {
		return fmt.Errorf("%w: flush %s", ErrEngine, e.Name())
	}
	return nil
}

func (e *goGstElement) OnPadAdded(fn func(Pad)) {
	e.elem.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		fn(&goGstPad{pad: pad})
	})
}

func (e *goGstElement) OnPadRemoved(fn func(Pad)) {
	e.elem.Connect("pad-removed", func(_ *gst.Element, pad *gst.Pad) {
		fn(&goGstPad{pad: pad})
	})
}

func (e *goGstElement) OnNoMorePads(fn func()) {
	e.elem.Connect("no-more-pads", func(_ *gst.Element) {
		fn()
	})
}

// OnAutoplugSelect connects through a C callback: the signal returns an
// enum, which the generic closure marshaller cannot produce.
func (e *goGstElement) OnAutoplugSelect(fn func(caps Caps, factory string) AutoplugResult) {
	h := cgo.NewHandle(fn)
	e.graph.keep(h)

	signal := C.CString("autoplug-select")
	defer C.free(unsafe.Pointer(signal))
	C.g_signal_connect_data(
		C.gpointer(e.elem.Unsafe()),
		signal,
		C.GCallback(C.mediaparserAutoplugSelect),
		C.gpointer(unsafe.Pointer(uintptr(h))),
		nil,
		0,
	)
}

//export mediaparserAutoplugSelect
func mediaparserAutoplugSelect(_ *C.GstElement, _ *C.GstPad, caps *C.GstCaps, factory *C.GstElementFactory, data C.gpointer) C.gint {
	fn, ok := cgo.Handle(uintptr(data)).Value().(func(Caps, string) AutoplugResult)
	if !ok {
		return C.gint(AutoplugTry)
	}

	var c Caps
	if caps != nil {
		s := C.gst_caps_to_string(caps)
		c, _ = ParseCaps(C.GoString(s))
		C.g_free(C.gpointer(s))
	}
	key := C.CString("long-name")
	defer C.free(unsafe.Pointer(key))
	name := C.GoString(C.gst_element_factory_get_metadata(factory, key))

	return C.gint(fn(c, name))
}

// goGstSink is a capsfilter in front of a fakesink whose input pad is
// probed for data and events.
type goGstSink struct {
	goGstElement
	filter *gst.Element
}

func (s *goGstSink) linkTarget() *gst.Element { return s.filter }

func (s *goGstSink) StaticPad(name string) (Pad, error) {
	pad := s.filter.GetStaticPad(name)
	if pad == nil {
		return nil, fmt.Errorf("%w: %s has no %q pad", ErrLinkFailed, s.Name(), name)
	}
	return &goGstPad{pad: pad}, nil
}

func (s *goGstSink) SyncState() error {
	if !s.elem.SyncStateWithParent() || !s.filter.SyncStateWithParent() {
		return fmt.Errorf("%w: sync %s", ErrStateChange, s.Name())
	}
	return nil
}

func (s *goGstSink) SetCaps(c Caps) error {
	caps := gst.NewCapsFromString(c.String())
	if caps == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, c)
	}
	return s.filter.SetProperty("caps", caps)
}

type goGstPad struct {
	pad *gst.Pad
}

func (p *goGstPad) Name() string { return p.pad.GetName() }

func (p *goGstPad) Native() uintptr { return uintptr(p.pad.Unsafe()) }

func (p *goGstPad) CurrentCaps() (Caps, bool) {
	caps := p.pad.GetCurrentCaps()
	if caps == nil {
		return Caps{}, false
	}
	c, err := ParseCaps(caps.String())
	if err != nil {
		return Caps{}, false
	}
	return c, true
}

func (p *goGstPad) Link(sink Pad) error {
	other, ok := sink.(*goGstPad)
	if !ok {
		return fmt.Errorf("%w: %T is not a go-gst pad", ErrLinkFailed, sink)
	}
	if ret := p.pad.Link(other.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("%w: %s: %v", ErrLinkFailed, p.Name(), ret)
	}
	return nil
}

func (p *goGstPad) Unlink(sink Pad) error {
	other, ok := sink.(*goGstPad)
	if !ok || !p.pad.Unlink(other.pad) {
		return fmt.Errorf("%w: unlink %s", ErrLinkFailed, p.Name())
	}
	return nil
}

// Release is a no-op: the binding drops its reference when the Go value is
// collected.
func (p *goGstPad) Release() {}

type goGstFeeder struct {
	mu     sync.Mutex
	r      io.Reader
	seeker io.Seeker
}

func (f *goGstFeeder) needData(src *app.Source, length uint) {
	if length == 0 {
		length = 4096
	}
	buf := make([]byte, length)

	f.mu.Lock()
	n, err := io.ReadFull(f.r, buf)
	f.mu.Unlock()

	if n > 0 {
		src.PushBuffer(gst.NewBufferFromBytes(buf[:n]))
	}
	if err != nil {
		src.EndStream()
	}
}

func (f *goGstFeeder) seekData(_ *app.Source, offset uint64) bool {
	if f.seeker == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.seeker.Seek(int64(offset), io.SeekStart)
	return err == nil
}

func sampleFromGstBuffer(buf *gst.Buffer) *Sample {
	data := buf.Bytes()
	s := NewSample(len(data))
	copy(s.Data, data)
	if pts := buf.PresentationTimestamp(); pts != gst.ClockTimeNone {
		s.PTS, s.HasPTS = time.Duration(pts), true
	}
	if dts := buf.DecodingTimestamp(); dts != gst.ClockTimeNone {
		s.DTS, s.HasDTS = time.Duration(dts), true
	}
	if d := buf.Duration(); d != gst.ClockTimeNone {
		s.Duration, s.HasDur = time.Duration(d), true
	}
	s.SyncPoint = !buf.HasFlags(gst.BufferFlagDeltaUnit)
	return s
}

func sinkEventFromGst(ev *gst.Event) (SinkEvent, bool) {
	switch ev.Type() {
	case gst.EventTypeCaps:
		c, err := ParseCaps(ev.ParseCaps().String())
		if err != nil {
			return SinkEvent{}, false
		}
		return SinkEvent{Type: SinkEventCaps, Caps: c}, true
	case gst.EventTypeSegment:
		seg := ev.ParseSegment()
		out := Segment{
			Position: time.Duration(seg.GetStart()),
			Stop:     -1,
			Rate:     seg.GetRate(),
		}
		if stop := seg.GetStop(); stop != uint64(gst.ClockTimeNone) {
			out.Stop = time.Duration(stop)
		}
		return SinkEvent{Type: SinkEventSegment, Segment: out}, true
	case gst.EventTypeEOS:
		return SinkEvent{Type: SinkEventEOS}, true
	case gst.EventTypeFlushStart:
		return SinkEvent{Type: SinkEventFlushStart}, true
	case gst.EventTypeFlushStop:
		return SinkEvent{Type: SinkEventFlushStop}, true
	}
	return SinkEvent{}, false
}
