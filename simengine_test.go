package mediaparser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// simOutput describes one output a simulated demuxer exposes.
type simOutput struct {
	name       string
	caps       Caps
	buffers    int
	frameSize  int
	frameDur   time.Duration // 0 = 40ms
	candidates []string      // Decoder names offered to autoplug-select
}

// simEngine is an in-process Engine that behaves like the native one: it
// discovers outputs on its own goroutines, pushes data into sinks from
// worker goroutines, and delivers flushes synchronously on seek.
type simEngine struct {
	outputs    []simOutput
	missing    map[string]bool
	duration   time.Duration // 0 = unknown
	holdPads   bool          // Never signal no-more-pads
	gate       chan struct{} // Workers wait for this before streaming, nil = stream at once
	failPause  bool
	postError  error
	graphFails bool

	mu     sync.Mutex
	graphs []*simGraph
}

func (e *simEngine) Name() string { return "sim" }

func (e *simEngine) NewGraph(name string) (Graph, error) {
	if e.graphFails {
		return nil, errors.New("sim: cannot create graph")
	}
	g := &simGraph{engine: e, name: name}
	e.mu.Lock()
	e.graphs = append(e.graphs, g)
	e.mu.Unlock()
	return g, nil
}

func (e *simEngine) graph() *simGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.graphs) == 0 {
		return nil
	}
	return e.graphs[len(e.graphs)-1]
}

var simPadIDs atomic.Uintptr

type simGraph struct {
	engine *simEngine
	name   string

	mu        sync.Mutex
	elements  []*simElement
	pads      []*simPad
	streams   []*simStream
	onMessage func(Message)
	state     State
	autoplug  map[string]AutoplugResult
	seeks     int
	closed    bool

	wg sync.WaitGroup
}

func (g *simGraph) AddElement(factory, name string) (Element, error) {
	if g.engine.missing[factory] {
		return nil, fmt.Errorf("%w: %s", ErrMissingElement, factory)
	}
	return g.add(factory, name), nil
}

func (g *simGraph) add(factory, name string) *simElement {
	e := &simElement{graph: g, factory: factory, name: name, props: map[string]string{}}
	g.mu.Lock()
	g.elements = append(g.elements, e)
	g.mu.Unlock()
	return e
}

func (g *simGraph) AddSource(name string, r io.Reader) (Element, error) {
	if r == nil {
		return nil, errors.New("sim: nil reader")
	}
	return g.add("source", name), nil
}

func (g *simGraph) AddSink(name string, cb SinkCallbacks) (Sink, error) {
	e := g.add("sink", name)
	e.cb = &cb
	return &simSink{e}, nil
}

func (g *simGraph) SetState(s State) error {
	if s == StatePaused && g.engine.failPause {
		return errors.New("sim: element refused to pause")
	}
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()

	switch {
	case s == StatePaused && prev == StateNull:
		g.start()
	case s == StateNull && prev != StateNull:
		g.stopAll()
	}
	return nil
}

func (g *simGraph) QueryDuration() (time.Duration, bool) {
	if g.engine.duration > 0 {
		return g.engine.duration, true
	}
	return 0, false
}

// Seek mirrors a native flushing seek: flush-start reaches every sink before
// the workers stop, flush-stop follows, and streaming resumes with a new
// segment.
func (g *simGraph) Seek(position time.Duration) error {
	g.mu.Lock()
	var active []*simStream
	for _, ss := range g.streams {
		if !ss.removed {
			active = append(active, ss)
		}
	}
	g.seeks++
	g.mu.Unlock()

	for _, ss := range active {
		close(ss.stop)
		g.pushEvent(ss.pad, SinkEvent{Type: SinkEventFlushStart})
	}
	for _, ss := range active {
		<-ss.done
	}
	for _, ss := range active {
		g.pushEvent(ss.pad, SinkEvent{Type: SinkEventFlushStop})
		g.run(ss, position)
	}
	return nil
}

func (g *simGraph) OnMessage(fn func(Message)) {
	g.mu.Lock()
	g.onMessage = fn
	g.mu.Unlock()
}

func (g *simGraph) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

func (g *simGraph) post(m Message) {
	g.mu.Lock()
	fn := g.onMessage
	g.mu.Unlock()
	if fn != nil {
		go fn(m)
	}
}

func (g *simGraph) start() {
	if g.engine.postError != nil {
		g.post(Message{Type: MessageError, Source: "decoder", Err: g.engine.postError})
	}

	g.mu.Lock()
	elements := append([]*simElement(nil), g.elements...)
	g.mu.Unlock()

	for _, e := range elements {
		if e.padAdded != nil {
			g.wg.Add(1)
			go g.discover(e)
			continue
		}
		if e.srcPad != nil && len(g.engine.outputs) > 0 {
			g.startStream(g.engine.outputs[0], e.srcPad)
		}
	}
}

func (g *simGraph) discover(e *simElement) {
	defer g.wg.Done()
	for _, out := range g.engine.outputs {
		if e.autoplug != nil {
			for _, name := range out.candidates {
				r := e.autoplug(out.caps, name)
				g.mu.Lock()
				if g.autoplug == nil {
					g.autoplug = map[string]AutoplugResult{}
				}
				g.autoplug[name] = r
				g.mu.Unlock()
			}
		}
		pad := g.newPad(e, out.name, out.caps)
		pad.refs.Add(1)
		e.padAdded(pad)
		g.startStream(out, pad)
	}
	if !g.engine.holdPads && e.noMorePads != nil {
		e.noMorePads()
	}
}

func (g *simGraph) newPad(owner *simElement, name string, caps Caps) *simPad {
	p := &simPad{id: simPadIDs.Add(1), name: name, owner: owner, caps: caps}
	g.mu.Lock()
	g.pads = append(g.pads, p)
	g.mu.Unlock()
	return p
}

// startStream announces caps synchronously, as a sticky event reaching the
// sink on link, and starts the pad's worker.
func (g *simGraph) startStream(out simOutput, pad *simPad) {
	if out.frameDur == 0 {
		out.frameDur = 40 * time.Millisecond
	}
	g.pushEvent(pad, SinkEvent{Type: SinkEventCaps, Caps: out.caps})

	ss := &simStream{out: out, pad: pad}
	g.mu.Lock()
	g.streams = append(g.streams, ss)
	g.mu.Unlock()
	g.run(ss, 0)
}

func (g *simGraph) run(ss *simStream, from time.Duration) {
	ss.stop = make(chan struct{})
	ss.done = make(chan struct{})
	g.wg.Add(1)
	go g.stream(ss, from, ss.stop, ss.done)
}

func (g *simGraph) stream(ss *simStream, from time.Duration, stop, done chan struct{}) {
	defer g.wg.Done()
	defer close(done)

	if gate := g.engine.gate; gate != nil {
		select {
		case <-gate:
		case <-stop:
			return
		}
	}

	g.pushEvent(ss.pad, SinkEvent{Type: SinkEventSegment, Segment: Segment{Position: from, Stop: -1, Rate: 1}})
	for i := int(from / ss.out.frameDur); i < ss.out.buffers; i++ {
		select {
		case <-stop:
			return
		default:
		}
		s := NewSample(ss.out.frameSize)
		s.PTS, s.HasPTS = time.Duration(i)*ss.out.frameDur, true
		s.Duration, s.HasDur = ss.out.frameDur, true
		s.SyncPoint = i%10 == 0
		if g.pushBuffer(ss.pad, s) == FlowFlushing {
			return
		}
	}
	select {
	case <-stop:
		return
	default:
	}
	g.pushEvent(ss.pad, SinkEvent{Type: SinkEventEOS})
}

func (g *simGraph) stopAll() {
	g.mu.Lock()
	streams := append([]*simStream(nil), g.streams...)
	g.mu.Unlock()

	for _, ss := range streams {
		select {
		case <-ss.stop:
		default:
			close(ss.stop)
		}
		g.pushEvent(ss.pad, SinkEvent{Type: SinkEventFlushStart})
	}
	g.wg.Wait()
}

// removeOutput stops an output's worker and announces the pad's removal.
func (g *simGraph) removeOutput(name string) bool {
	g.mu.Lock()
	var ss *simStream
	for _, candidate := range g.streams {
		if candidate.pad.name == name && !candidate.removed {
			ss = candidate
			break
		}
	}
	if ss != nil {
		ss.removed = true
	}
	g.mu.Unlock()
	if ss == nil {
		return false
	}

	close(ss.stop)
	if fn := ss.pad.owner.padRemoved; fn != nil {
		fn(ss.pad)
	}
	return true
}

// sinkFor follows the links downstream of pad to the stream sink.
func (g *simGraph) sinkFor(pad *simPad) *simElement {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pad.peer == nil {
		return nil
	}
	e := pad.peer.owner
	for e != nil && e.cb == nil {
		e = e.next
	}
	return e
}

func (g *simGraph) pushBuffer(pad *simPad, s *Sample) FlowResult {
	sink := g.sinkFor(pad)
	if sink == nil {
		s.Release()
		return FlowOK
	}
	return sink.cb.OnBuffer(s)
}

func (g *simGraph) pushEvent(pad *simPad, ev SinkEvent) {
	if sink := g.sinkFor(pad); sink != nil {
		sink.cb.OnEvent(ev)
	}
}

func (g *simGraph) elementsByFactory(factory string) []*simElement {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*simElement
	for _, e := range g.elements {
		if e.factory == factory {
			out = append(out, e)
		}
	}
	return out
}

func (g *simGraph) allPads() []*simPad {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*simPad(nil), g.pads...)
}

func (g *simGraph) autoplugDecision(name string) (AutoplugResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.autoplug[name]
	return r, ok
}

type simStream struct {
	out     simOutput
	pad     *simPad
	stop    chan struct{}
	done    chan struct{}
	removed bool
}

type simElement struct {
	graph   *simGraph
	factory string
	name    string

	next    *simElement
	sinkPad *simPad
	srcPad  *simPad
	cb      *SinkCallbacks
	caps    Caps
	props   map[string]string
	synced  bool
	resets  atomic.Int32

	padAdded   func(Pad)
	padRemoved func(Pad)
	noMorePads func()
	autoplug   func(Caps, string) AutoplugResult
}

func (e *simElement) Name() string { return e.name }

func (e *simElement) SetProperty(name, value string) error {
	e.graph.mu.Lock()
	e.props[name] = value
	e.graph.mu.Unlock()
	return nil
}

func (e *simElement) property(name string) string {
	e.graph.mu.Lock()
	defer e.graph.mu.Unlock()
	return e.props[name]
}

func (e *simElement) StaticPad(name string) (Pad, error) {
	var p *simPad
	switch name {
	case "sink":
		if e.sinkPad == nil {
			e.sinkPad = e.graph.newPad(e, name, Caps{})
		}
		p = e.sinkPad
	case "src":
		if e.srcPad == nil {
			var caps Caps
			if len(e.graph.engine.outputs) > 0 {
				caps = e.graph.engine.outputs[0].caps
			}
			e.srcPad = e.graph.newPad(e, name, caps)
		}
		p = e.srcPad
	default:
		return nil, fmt.Errorf("sim: %s has no pad %q", e.name, name)
	}
	p.refs.Add(1)
	return p, nil
}

func (e *simElement) Link(dst Element) error {
	var d *simElement
	switch v := dst.(type) {
	case *simElement:
		d = v
	case *simSink:
		d = v.simElement
	default:
		return fmt.Errorf("%w: foreign element", ErrLinkFailed)
	}
	e.graph.mu.Lock()
	e.next = d
	e.graph.mu.Unlock()
	return nil
}

func (e *simElement) SyncState() error {
	e.graph.mu.Lock()
	e.synced = true
	e.graph.mu.Unlock()
	return nil
}

func (e *simElement) Reset() error {
	e.resets.Add(1)
	return nil
}

func (e *simElement) OnPadAdded(fn func(Pad))   { e.padAdded = fn }
func (e *simElement) OnPadRemoved(fn func(Pad)) { e.padRemoved = fn }
func (e *simElement) OnNoMorePads(fn func())    { e.noMorePads = fn }
func (e *simElement) OnAutoplugSelect(fn func(Caps, string) AutoplugResult) {
	e.autoplug = fn
}

type simSink struct {
	*simElement
}

func (s *simSink) SetCaps(c Caps) error {
	s.graph.mu.Lock()
	s.caps = c
	s.graph.mu.Unlock()
	return nil
}

type simPad struct {
	id    uintptr
	name  string
	owner *simElement
	caps  Caps

	peer  *simPad // Guarded by owner.graph.mu
	links atomic.Int32

	refs         atomic.Int32 // References held outside the engine
	overReleased atomic.Int32
}

func (p *simPad) Name() string { return p.name }

func (p *simPad) CurrentCaps() (Caps, bool) {
	return p.caps, !p.caps.IsEmpty()
}

func (p *simPad) Native() uintptr { return p.id }

func (p *simPad) Link(sink Pad) error {
	s, ok := sink.(*simPad)
	if !ok {
		return fmt.Errorf("%w: foreign pad", ErrLinkFailed)
	}
	g := p.owner.graph
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.peer != nil {
		return fmt.Errorf("%w: %s already linked", ErrLinkFailed, p.name)
	}
	p.peer = s
	p.links.Add(1)
	return nil
}

func (p *simPad) Unlink(sink Pad) error {
	g := p.owner.graph
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.peer == nil || p.peer.Native() != sink.Native() {
		return fmt.Errorf("sim: %s not linked to %s", p.name, sink.Name())
	}
	p.peer = nil
	p.links.Add(-1)
	return nil
}

func (p *simPad) Release() {
	if p.refs.Add(-1) < 0 {
		p.overReleased.Add(1)
	}
}
