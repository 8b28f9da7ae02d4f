//go:build (darwin || linux) && !cgo && !nogst

// GStreamer engine loaded at runtime through purego.

package mediaparser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	gstOnce    sync.Once
	gstHandle  uintptr
	gstApp     uintptr
	gstInitErr error
)

// libgstreamer-1.0 / libgstapp-1.0 / GLib function pointers
var (
	gstInit                  func(argc, argv uintptr)
	gstPipelineNew           func(name string) uintptr
	gstPipelineGetBus        func(pipeline uintptr) uintptr
	gstElementFactoryMake    func(factory, name string) uintptr
	gstElementFactoryGetMeta func(factory uintptr, key string) uintptr
	gstBinAdd                func(bin, element uintptr) int32
	gstElementLink           func(src, dst uintptr) int32
	gstElementGetStaticPad   func(element uintptr, name string) uintptr
	gstElementSetState       func(element uintptr, state int32) int32
	gstElementGetState       func(element uintptr, state, pending uintptr, timeout uint64) int32
	gstElementQueryDuration  func(element uintptr, format int32, duration *int64) int32
	gstElementSeekSimple     func(element uintptr, format, flags int32, position int64) int32
	gstElementSyncState      func(element uintptr) int32
	gstElementSendEvent      func(element, event uintptr) int32
	gstEventNewFlushStart    func() uintptr
	gstEventNewFlushStop     func(resetTime int32) uintptr
	gstEventParseCaps        func(event uintptr, caps *uintptr)
	gstEventParseSegment     func(event uintptr, segment *uintptr)
	gstPadLink               func(src, sink uintptr) int32
	gstPadUnlink             func(src, sink uintptr) int32
	gstPadGetCurrentCaps     func(pad uintptr) uintptr
	gstPadAddProbe           func(pad uintptr, mask uint32, cb, data, destroy uintptr) uint64
	gstCapsToString          func(caps uintptr) uintptr
	gstBufferNewAllocate     func(allocator uintptr, size uint64, params uintptr) uintptr
	gstBufferFill            func(buf uintptr, offset uint64, src unsafe.Pointer, size uint64) uint64
	gstBufferExtract         func(buf uintptr, offset uint64, dst unsafe.Pointer, size uint64) uint64
	gstBufferGetSize         func(buf uintptr) uint64
	gstBusTimedPopFiltered   func(bus uintptr, timeout uint64, types uint32) uintptr
	gstMessageParseError     func(msg uintptr, gerr *uintptr, debug *uintptr)
	gstMessageParseWarning   func(msg uintptr, gerr *uintptr, debug *uintptr)
	gstMiniObjectUnref       func(obj uintptr)
	gstObjectRef             func(obj uintptr) uintptr
	gstObjectUnref           func(obj uintptr)
	gstObjectGetName         func(obj uintptr) uintptr
	gstUtilSetObjectArg      func(obj uintptr, name, value string)
	gSignalConnectData       func(instance uintptr, signal string, cb, data, destroy uintptr, flags int32) uint64
	gFree                    func(ptr uintptr)
	gErrorFree               func(err uintptr)
	gstAppSrcPushBuffer      func(src, buf uintptr) int32
	gstAppSrcEndOfStream     func(src uintptr) int32
)

// Constants from gstreamer-1.0 headers
const (
	gstStateNull    = 1
	gstStateReady   = 2
	gstStatePaused  = 3
	gstStatePlaying = 4

	gstStateChangeFailure = 0
	gstPadLinkOK          = 0
	gstFormatTime         = 3
	gstSeekFlagFlush      = 1 << 0
	gstSeekFlagAccurate   = 1 << 1
	gstClockTimeNone      = ^uint64(0)

	gstPadProbeTypeBuffer          = 1 << 4
	gstPadProbeTypeEventDownstream = 1 << 6
	gstPadProbeTypeEventFlush      = 1 << 8
	gstPadProbeDrop                = 0
	gstPadProbeOK                  = 1

	gstMessageEOS             = 1 << 0
	gstMessageError           = 1 << 1
	gstMessageWarning         = 1 << 2
	gstMessageDurationChanged = 1 << 18

	gstEventFlushStart = 10
	gstEventFlushStop  = 20
	gstEventCaps       = 50
	gstEventSegment    = 70
	gstEventEOS        = 90

	gstBufferFlagDeltaUnit = 1 << 13
)

// Field offsets on 64-bit targets. GstMiniObject is 64 bytes.
const (
	gstMiniObjectFlagsOffset = 16
	gstBufferPTSOffset       = 72
	gstBufferDTSOffset       = 80
	gstBufferDurationOffset  = 88
	gstEventTypeOffset       = 64
	gstMessageTypeOffset     = 64
	gstMessageSrcOffset      = 80
	gstSegmentRateOffset     = 8
	gstSegmentStartOffset    = 48
	gstSegmentStopOffset     = 56
	gErrorMessageOffset      = 8
	gstProbeInfoDataOffset   = 16
)

func init() {
	registerBackend(BackendPurego, func() (Engine, error) {
		if err := loadGst(); err != nil {
			return nil, err
		}
		return puregoEngine{}, nil
	})
}

func loadGst() error {
	gstOnce.Do(func() {
		gstInitErr = loadGstLibs()
		if gstInitErr == nil {
			gstInit(0, 0)
			initGstCallbacks()
		}
	})
	return gstInitErr
}

func loadGstLibs() error {
	var err error
	gstHandle, err = dlopenFirst(nativeLibPaths(
		"libgstreamer-1.0.so.0", "libgstreamer-1.0.0.dylib",
		"MEDIAPARSER_GST_LIB_PATH", "GST_SDK_LIB_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load libgstreamer-1.0: %w", err)
	}
	gstApp, err = dlopenFirst(nativeLibPaths(
		"libgstapp-1.0.so.0", "libgstapp-1.0.0.dylib",
		"MEDIAPARSER_GST_APP_LIB_PATH", "GST_SDK_LIB_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load libgstapp-1.0: %w", err)
	}
	loadGstSymbols()
	return nil
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, errors.New("not found in any standard location")
}

func loadGstSymbols() {
	purego.RegisterLibFunc(&gstInit, gstHandle, "gst_init")
	purego.RegisterLibFunc(&gstPipelineNew, gstHandle, "gst_pipeline_new")
	purego.RegisterLibFunc(&gstPipelineGetBus, gstHandle, "gst_pipeline_get_bus")
	purego.RegisterLibFunc(&gstElementFactoryMake, gstHandle, "gst_element_factory_make")
	purego.RegisterLibFunc(&gstElementFactoryGetMeta, gstHandle, "gst_element_factory_get_metadata")
	purego.RegisterLibFunc(&gstBinAdd, gstHandle, "gst_bin_add")
	purego.RegisterLibFunc(&gstElementLink, gstHandle, "gst_element_link")
	purego.RegisterLibFunc(&gstElementGetStaticPad, gstHandle, "gst_element_get_static_pad")
	purego.RegisterLibFunc(&gstElementSetState, gstHandle, "gst_element_set_state")
	purego.RegisterLibFunc(&gstElementGetState, gstHandle, "gst_element_get_state")
	purego.RegisterLibFunc(&gstElementQueryDuration, gstHandle, "gst_element_query_duration")
	purego.RegisterLibFunc(&gstElementSeekSimple, gstHandle, "gst_element_seek_simple")
	purego.RegisterLibFunc(&gstElementSyncState, gstHandle, "gst_element_sync_state_with_parent")
	purego.RegisterLibFunc(&gstElementSendEvent, gstHandle, "gst_element_send_event")
	purego.RegisterLibFunc(&gstEventNewFlushStart, gstHandle, "gst_event_new_flush_start")
	purego.RegisterLibFunc(&gstEventNewFlushStop, gstHandle, "gst_event_new_flush_stop")
	purego.RegisterLibFunc(&gstEventParseCaps, gstHandle, "gst_event_parse_caps")
	purego.RegisterLibFunc(&gstEventParseSegment, gstHandle, "gst_event_parse_segment")
	purego.RegisterLibFunc(&gstPadLink, gstHandle, "gst_pad_link")
	purego.RegisterLibFunc(&gstPadUnlink, gstHandle, "gst_pad_unlink")
	purego.RegisterLibFunc(&gstPadGetCurrentCaps, gstHandle, "gst_pad_get_current_caps")
	purego.RegisterLibFunc(&gstPadAddProbe, gstHandle, "gst_pad_add_probe")
	purego.RegisterLibFunc(&gstCapsToString, gstHandle, "gst_caps_to_string")
	purego.RegisterLibFunc(&gstBufferNewAllocate, gstHandle, "gst_buffer_new_allocate")
	purego.RegisterLibFunc(&gstBufferFill, gstHandle, "gst_buffer_fill")
	purego.RegisterLibFunc(&gstBufferExtract, gstHandle, "gst_buffer_extract")
	purego.RegisterLibFunc(&gstBufferGetSize, gstHandle, "gst_buffer_get_size")
	purego.RegisterLibFunc(&gstBusTimedPopFiltered, gstHandle, "gst_bus_timed_pop_filtered")
	purego.RegisterLibFunc(&gstMessageParseError, gstHandle, "gst_message_parse_error")
	purego.RegisterLibFunc(&gstMessageParseWarning, gstHandle, "gst_message_parse_warning")
	purego.RegisterLibFunc(&gstMiniObjectUnref, gstHandle, "gst_mini_object_unref")
	purego.RegisterLibFunc(&gstObjectRef, gstHandle, "gst_object_ref")
	purego.RegisterLibFunc(&gstObjectUnref, gstHandle, "gst_object_unref")
	purego.RegisterLibFunc(&gstObjectGetName, gstHandle, "gst_object_get_name")
	purego.RegisterLibFunc(&gstUtilSetObjectArg, gstHandle, "gst_util_set_object_arg")

	// GLib symbols resolve through libgstreamer's dependencies.
	purego.RegisterLibFunc(&gSignalConnectData, gstHandle, "g_signal_connect_data")
	purego.RegisterLibFunc(&gFree, gstHandle, "g_free")
	purego.RegisterLibFunc(&gErrorFree, gstHandle, "g_error_free")

	purego.RegisterLibFunc(&gstAppSrcPushBuffer, gstApp, "gst_app_src_push_buffer")
	purego.RegisterLibFunc(&gstAppSrcEndOfStream, gstApp, "gst_app_src_end_of_stream")
}

// Native callbacks are created once; per-connection closures are looked up
// by the handle passed as user data.
var (
	gstCallbacks struct {
		padAdded       uintptr
		padRemoved     uintptr
		noMorePads     uintptr
		autoplugSelect uintptr
		probe          uintptr
		needData       uintptr
		seekData       uintptr
	}
	gstClosures   sync.Map // uintptr -> closure
	gstNextHandle atomic.Uintptr
)

func initGstCallbacks() {
	gstCallbacks.padAdded = purego.NewCallback(func(_, pad, data uintptr) uintptr {
		if fn, ok := gstClosure[func(Pad)](data); ok {
			fn(newPuregoPad(gstObjectRef(pad), true))
		}
		return 0
	})
	gstCallbacks.padRemoved = purego.NewCallback(func(_, pad, data uintptr) uintptr {
		if fn, ok := gstClosure[func(Pad)](data); ok {
			fn(newPuregoPad(pad, false))
		}
		return 0
	})
	gstCallbacks.noMorePads = purego.NewCallback(func(_, data uintptr) uintptr {
		if fn, ok := gstClosure[func()](data); ok {
			fn()
		}
		return 0
	})
	gstCallbacks.autoplugSelect = purego.NewCallback(func(_, _, caps, factory, data uintptr) uintptr {
		fn, ok := gstClosure[func(Caps, string) AutoplugResult](data)
		if !ok {
			return uintptr(AutoplugTry)
		}
		c, _ := capsFromNative(caps)
		return uintptr(fn(c, goStringFromPtr(gstElementFactoryGetMeta(factory, "long-name"))))
	})
	gstCallbacks.probe = purego.NewCallback(func(_, info, data uintptr) uintptr {
		if fn, ok := gstClosure[func(uintptr) uintptr](data); ok {
			return fn(info)
		}
		return gstPadProbeOK
	})
	gstCallbacks.needData = purego.NewCallback(func(src, length, data uintptr) uintptr {
		if fn, ok := gstClosure[func(uintptr, uint)](data); ok {
			fn(src, uint(uint32(length)))
		}
		return 0
	})
	gstCallbacks.seekData = purego.NewCallback(func(_, offset, data uintptr) uintptr {
		if fn, ok := gstClosure[func(uint64) bool](data); ok && fn(uint64(offset)) {
			return 1
		}
		return 0
	})
}

func gstClosure[T any](handle uintptr) (T, bool) {
	v, ok := gstClosures.Load(handle)
	if !ok {
		var zero T
		return zero, false
	}
	fn, ok := v.(T)
	return fn, ok
}

type puregoEngine struct{}

func (puregoEngine) Name() string { return BackendPurego.String() }

func (puregoEngine) NewGraph(name string) (Graph, error) {
	pipeline := gstPipelineNew(name)
	if pipeline == 0 {
		return nil, errors.New("gst_pipeline_new failed")
	}
	g := &puregoGraph{
		pipeline: pipeline,
		bus:      gstPipelineGetBus(pipeline),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go g.watchBus()
	return g, nil
}

type puregoGraph struct {
	pipeline uintptr
	bus      uintptr

	mu        sync.Mutex
	onMessage func(Message)
	handles   []uintptr

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// connect registers fn as user data for a native callback on instance.
func (g *puregoGraph) connect(instance uintptr, signal string, cb uintptr, fn any) {
	h := g.register(fn)
	gSignalConnectData(instance, signal, cb, h, 0, 0)
}

func (g *puregoGraph) register(fn any) uintptr {
	h := gstNextHandle.Add(1)
	gstClosures.Store(h, fn)
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
	return h
}

func (g *puregoGraph) add(factory, name string) (uintptr, error) {
	e := gstElementFactoryMake(factory, name)
	if e == 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingElement, factory)
	}
	if gstBinAdd(g.pipeline, e) == 0 {
		return 0, fmt.Errorf("add %s to pipeline failed", name)
	}
	return e, nil
}

func (g *puregoGraph) AddElement(factory, name string) (Element, error) {
	e, err := g.add(factory, name)
	if err != nil {
		return nil, err
	}
	return &puregoElement{graph: g, ptr: e}, nil
}

func (g *puregoGraph) AddSource(name string, r io.Reader) (Element, error) {
	src, err := g.add("appsrc", name)
	if err != nil {
		return nil, err
	}
	gstUtilSetObjectArg(src, "format", "bytes")
	gstUtilSetObjectArg(src, "block", "true")

	var mu sync.Mutex
	streamType := "stream"
	if s, ok := r.(io.Seeker); ok {
		if size, err := s.Seek(0, io.SeekEnd); err == nil {
			if _, err := s.Seek(0, io.SeekStart); err == nil {
				streamType = "random-access"
				gstUtilSetObjectArg(src, "size", fmt.Sprint(size))
				g.connect(src, "seek-data", gstCallbacks.seekData, func(offset uint64) bool {
					mu.Lock()
					defer mu.Unlock()
					_, err := s.Seek(int64(offset), io.SeekStart)
					return err == nil
				})
			}
		}
	}
	gstUtilSetObjectArg(src, "stream-type", streamType)

	g.connect(src, "need-data", gstCallbacks.needData, func(appsrc uintptr, length uint) {
		if length == 0 {
			length = 4096
		}
		chunk := make([]byte, length)
		mu.Lock()
		n, err := io.ReadFull(r, chunk)
		mu.Unlock()

		if n > 0 {
			buf := gstBufferNewAllocate(0, uint64(n), 0)
			gstBufferFill(buf, 0, unsafe.Pointer(&chunk[0]), uint64(n))
			gstAppSrcPushBuffer(appsrc, buf)
		}
		if err != nil {
			gstAppSrcEndOfStream(appsrc)
		}
	})

	return &puregoElement{graph: g, ptr: src}, nil
}

func (g *puregoGraph) AddSink(name string, cb SinkCallbacks) (Sink, error) {
	filter, err := g.add("capsfilter", name+"-filter")
	if err != nil {
		return nil, err
	}
	sink, err := g.add("fakesink", name)
	if err != nil {
		return nil, err
	}
	gstUtilSetObjectArg(sink, "sync", "false")
	gstUtilSetObjectArg(sink, "async", "false")
	if gstElementLink(filter, sink) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLinkFailed, name)
	}

	pad := gstElementGetStaticPad(sink, "sink")
	if pad == 0 {
		return nil, fmt.Errorf("%w: %s has no sink pad", ErrLinkFailed, name)
	}
	// Buffers stop here so the sink never blocks in preroll.
	h := g.register(func(info uintptr) uintptr {
		typ := *(*uint32)(unsafe.Pointer(info))
		data := *(*uintptr)(unsafe.Pointer(info + gstProbeInfoDataOffset))
		if data == 0 {
			return gstPadProbeOK
		}
		if typ&gstPadProbeTypeBuffer != 0 {
			cb.OnBuffer(sampleFromNativeBuffer(data))
			return gstPadProbeDrop
		}
		if sev, ok := sinkEventFromNative(data); ok {
			cb.OnEvent(sev)
		}
		return gstPadProbeOK
	})
	mask := uint32(gstPadProbeTypeBuffer | gstPadProbeTypeEventDownstream | gstPadProbeTypeEventFlush)
	gstPadAddProbe(pad, mask, gstCallbacks.probe, h, 0)
	gstObjectUnref(pad)

	return &puregoSink{
		puregoElement: puregoElement{graph: g, ptr: sink},
		filter:        filter,
	}, nil
}

func (g *puregoGraph) SetState(s State) error {
	target := puregoState(s)
	if gstElementSetState(g.pipeline, target) == gstStateChangeFailure {
		return fmt.Errorf("%w: %s", ErrStateChange, s)
	}
	if gstElementGetState(g.pipeline, 0, 0, gstClockTimeNone) == gstStateChangeFailure {
		return fmt.Errorf("%w: %s", ErrStateChange, s)
	}
	return nil
}

func (g *puregoGraph) QueryDuration() (time.Duration, bool) {
	d := new(int64)
	if gstElementQueryDuration(g.pipeline, gstFormatTime, d) == 0 || *d < 0 {
		return 0, false
	}
	return time.Duration(*d), true
}

func (g *puregoGraph) Seek(position time.Duration) error {
	if gstElementSeekSimple(g.pipeline, gstFormatTime, gstSeekFlagFlush|gstSeekFlagAccurate, int64(position)) == 0 {
		return fmt.Errorf("%w: seek rejected", ErrEngine)
	}
	return nil
}

func (g *puregoGraph) OnMessage(fn func(Message)) {
	g.mu.Lock()
	g.onMessage = fn
	g.mu.Unlock()
}

func (g *puregoGraph) watchBus() {
	defer close(g.stopped)
	types := uint32(gstMessageEOS | gstMessageError | gstMessageWarning | gstMessageDurationChanged)
	for {
		select {
		case <-g.done:
			return
		default:
		}

		msg := gstBusTimedPopFiltered(g.bus, uint64(100*time.Millisecond), types)
		if msg == 0 {
			continue
		}
		m := messageFromNative(msg)
		gstMiniObjectUnref(msg)

		g.mu.Lock()
		fn := g.onMessage
		g.mu.Unlock()
		if fn != nil {
			fn(m)
		}
	}
}

func (g *puregoGraph) Close() error {
	g.closeOnce.Do(func() {
		close(g.done)
		<-g.stopped
		gstObjectUnref(g.bus)
		gstObjectUnref(g.pipeline)

		g.mu.Lock()
		for _, h := range g.handles {
			gstClosures.Delete(h)
		}
		g.handles = nil
		g.mu.Unlock()
	})
	return nil
}

func puregoState(s State) int32 {
	switch s {
	case StateReady:
		return gstStateReady
	case StatePaused:
		return gstStatePaused
	case StatePlaying:
		return gstStatePlaying
	default:
		return gstStateNull
	}
}

type puregoElement struct {
	graph *puregoGraph
	ptr   uintptr
}

func (e *puregoElement) Name() string { return nativeObjectName(e.ptr) }

func (e *puregoElement) SetProperty(name, value string) error {
	gstUtilSetObjectArg(e.ptr, name, value)
	return nil
}

func (e *puregoElement) StaticPad(name string) (Pad, error) {
	pad := gstElementGetStaticPad(e.ptr, name)
	if pad == 0 {
		return nil, fmt.Errorf("%w: %s has no %q pad", ErrLinkFailed, e.Name(), name)
	}
	return newPuregoPad(pad, true), nil
}

func (e *puregoElement) linkTarget() uintptr { return e.ptr }

func (e *puregoElement) Link(dst Element) error {
	t, ok := dst.(interface{ linkTarget() uintptr })
	if !ok {
		return fmt.Errorf("%w: %T is not a purego element", ErrLinkFailed, dst)
	}
	if gstElementLink(e.ptr, t.linkTarget()) == 0 {
		return fmt.Errorf("%w: %s to %s", ErrLinkFailed, e.Name(), dst.Name())
	}
	return nil
}

func (e *puregoElement) SyncState() error {
	if gstElementSyncState(e.ptr) == 0 {
		return fmt.Errorf("%w: sync %s", ErrStateChange, e.Name())
	}
	return nil
}

func (e *puregoElement) Reset() error {
	if gstElementSendEvent(e.ptr, gstEventNewFlushStart()) == 0 ||
		gstElementSendEvent(e.ptr, gstEventNewFlushStop(1)) == 0 {
		return fmt.Errorf("%w: flush %s", ErrEngine, e.Name())
	}
	return nil
}

func (e *puregoElement) OnPadAdded(fn func(Pad)) {
	e.graph.connect(e.ptr, "pad-added", gstCallbacks.padAdded, fn)
}

func (e *puregoElement) OnPadRemoved(fn func(Pad)) {
	e.graph.connect(e.ptr, "pad-removed", gstCallbacks.padRemoved, fn)
}

func (e *puregoElement) OnNoMorePads(fn func()) {
	e.graph.connect(e.ptr, "no-more-pads", gstCallbacks.noMorePads, fn)
}

func (e *puregoElement) OnAutoplugSelect(fn func(Caps, string) AutoplugResult) {
	e.graph.connect(e.ptr, "autoplug-select", gstCallbacks.autoplugSelect, fn)
}

type puregoSink struct {
	puregoElement
	filter uintptr
}

func (s *puregoSink) linkTarget() uintptr { return s.filter }

func (s *puregoSink) StaticPad(name string) (Pad, error) {
	pad := gstElementGetStaticPad(s.filter, name)
	if pad == 0 {
		return nil, fmt.Errorf("%w: %s has no %q pad", ErrLinkFailed, s.Name(), name)
	}
	return newPuregoPad(pad, true), nil
}

func (s *puregoSink) SyncState() error {
	if gstElementSyncState(s.ptr) == 0 || gstElementSyncState(s.filter) == 0 {
		return fmt.Errorf("%w: sync %s", ErrStateChange, s.Name())
	}
	return nil
}

func (s *puregoSink) SetCaps(c Caps) error {
	gstUtilSetObjectArg(s.filter, "caps", c.String())
	return nil
}

type puregoPad struct {
	ptr      uintptr
	owned    bool
	released atomic.Bool
}

func newPuregoPad(ptr uintptr, owned bool) *puregoPad {
	return &puregoPad{ptr: ptr, owned: owned}
}

func (p *puregoPad) Name() string    { return nativeObjectName(p.ptr) }
func (p *puregoPad) Native() uintptr { return p.ptr }

func (p *puregoPad) CurrentCaps() (Caps, bool) {
	caps := gstPadGetCurrentCaps(p.ptr)
	if caps == 0 {
		return Caps{}, false
	}
	defer gstMiniObjectUnref(caps)
	return capsFromNative(caps)
}

func (p *puregoPad) Link(sink Pad) error {
	if ret := gstPadLink(p.ptr, sink.Native()); ret != gstPadLinkOK {
		return fmt.Errorf("%w: %s: code %d", ErrLinkFailed, p.Name(), ret)
	}
	return nil
}

func (p *puregoPad) Unlink(sink Pad) error {
	if gstPadUnlink(p.ptr, sink.Native()) == 0 {
		return fmt.Errorf("%w: unlink %s", ErrLinkFailed, p.Name())
	}
	return nil
}

func (p *puregoPad) Release() {
	if p.owned && p.released.CompareAndSwap(false, true) {
		gstObjectUnref(p.ptr)
	}
}

func nativeObjectName(obj uintptr) string {
	ptr := gstObjectGetName(obj)
	defer gFree(ptr)
	return goStringFromPtr(ptr)
}

func capsFromNative(caps uintptr) (Caps, bool) {
	if caps == 0 {
		return Caps{}, false
	}
	ptr := gstCapsToString(caps)
	defer gFree(ptr)
	c, err := ParseCaps(goStringFromPtr(ptr))
	if err != nil {
		return Caps{}, false
	}
	return c, true
}

func readU64(ptr uintptr, offset uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(ptr + offset))
}

func sampleFromNativeBuffer(buf uintptr) *Sample {
	size := gstBufferGetSize(buf)
	s := NewSample(int(size))
	if size > 0 {
		gstBufferExtract(buf, 0, unsafe.Pointer(&s.Data[0]), size)
	}
	if pts := readU64(buf, gstBufferPTSOffset); pts != gstClockTimeNone {
		s.PTS, s.HasPTS = time.Duration(pts), true
	}
	if dts := readU64(buf, gstBufferDTSOffset); dts != gstClockTimeNone {
		s.DTS, s.HasDTS = time.Duration(dts), true
	}
	if d := readU64(buf, gstBufferDurationOffset); d != gstClockTimeNone {
		s.Duration, s.HasDur = time.Duration(d), true
	}
	flags := *(*uint32)(unsafe.Pointer(buf + gstMiniObjectFlagsOffset))
	s.SyncPoint = flags&gstBufferFlagDeltaUnit == 0
	return s
}

func sinkEventFromNative(ev uintptr) (SinkEvent, bool) {
	typ := *(*uint32)(unsafe.Pointer(ev + gstEventTypeOffset)) >> 8
	switch typ {
	case gstEventCaps:
		var caps uintptr
		gstEventParseCaps(ev, &caps)
		c, ok := capsFromNative(caps)
		if !ok {
			return SinkEvent{}, false
		}
		return SinkEvent{Type: SinkEventCaps, Caps: c}, true
	case gstEventSegment:
		var seg uintptr
		gstEventParseSegment(ev, &seg)
		if seg == 0 {
			return SinkEvent{}, false
		}
		out := Segment{
			Position: time.Duration(readU64(seg, gstSegmentStartOffset)),
			Stop:     -1,
			Rate:     *(*float64)(unsafe.Pointer(seg + gstSegmentRateOffset)),
		}
		if stop := readU64(seg, gstSegmentStopOffset); stop != gstClockTimeNone {
			out.Stop = time.Duration(stop)
		}
		return SinkEvent{Type: SinkEventSegment, Segment: out}, true
	case gstEventEOS:
		return SinkEvent{Type: SinkEventEOS}, true
	case gstEventFlushStart:
		return SinkEvent{Type: SinkEventFlushStart}, true
	case gstEventFlushStop:
		return SinkEvent{Type: SinkEventFlushStop}, true
	}
	return SinkEvent{}, false
}

func messageFromNative(msg uintptr) Message {
	m := Message{Source: nativeObjectName(*(*uintptr)(unsafe.Pointer(msg + gstMessageSrcOffset)))}
	switch *(*uint32)(unsafe.Pointer(msg + gstMessageTypeOffset)) {
	case gstMessageError:
		m.Type = MessageError
		m.Err = parseNativeError(msg, gstMessageParseError)
	case gstMessageWarning:
		m.Type = MessageWarning
		m.Err = parseNativeError(msg, gstMessageParseWarning)
	case gstMessageEOS:
		m.Type = MessageEOS
	case gstMessageDurationChanged:
		m.Type = MessageDurationChanged
	}
	return m
}

func parseNativeError(msg uintptr, parse func(uintptr, *uintptr, *uintptr)) error {
	var gerr, debug uintptr
	parse(msg, &gerr, &debug)
	defer gFree(debug)
	if gerr == 0 {
		return errors.New("unknown engine error")
	}
	defer gErrorFree(gerr)
	return errors.New(goStringFromPtr(*(*uintptr)(unsafe.Pointer(gerr + gErrorMessageOffset))))
}
