package mediaparser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Parser exposes the outputs of a native decode graph as pull-based streams.
//
// A Parser is created by one of the New*Parser constructors, which return
// only once the graph topology is stable. All methods except Close may be
// called concurrently. Close must not race with Read or Seek.
type Parser struct {
	id       uuid.UUID
	strategy Strategy
	builder  graphBuilder
	cfg      Config
	log      logrus.FieldLogger
	engine   Engine
	graph    Graph

	// Serializes output attachment so stream indices stay dense.
	topoMu sync.Mutex

	mu            sync.Mutex
	progress      sync.Cond // Construction progress
	streams       []*Stream // Append-only
	graphComplete bool
	durationKnown bool
	duration      time.Duration
	err           error // First construction error
	constructed   bool
	closed        bool
}

// NewDecodeBinParser builds a parser that demuxes and decodes any input the
// engine recognizes.
func NewDecodeBinParser(ctx context.Context, cfg Config) (*Parser, error) {
	return New(ctx, StrategyDecodeBin, cfg)
}

// NewDemuxParser builds a parser exposing the undecoded outputs of a
// container demuxer.
func NewDemuxParser(ctx context.Context, cfg Config) (*Parser, error) {
	return New(ctx, StrategyDemux, cfg)
}

// NewFrameParser builds a parser over a raw elementary frame stream.
func NewFrameParser(ctx context.Context, cfg Config) (*Parser, error) {
	return New(ctx, StrategyFrameParser, cfg)
}

// NewContainerParser builds a parser over a raw elementary container.
func NewContainerParser(ctx context.Context, cfg Config) (*Parser, error) {
	return New(ctx, StrategyContainerParser, cfg)
}

// New builds a parser with the given strategy. It blocks until the graph
// topology is stable, construction fails, or ctx is cancelled; there is no
// implicit timeout.
func New(ctx context.Context, strategy Strategy, cfg Config) (*Parser, error) {
	if strategy >= strategyCount {
		return nil, fmt.Errorf("unknown strategy %d", strategy)
	}
	if cfg.Source == nil {
		return nil, errors.New("mediaparser: nil source")
	}
	cfg = cfg.withDefaults()

	engine := cfg.Engine
	if engine == nil {
		var err error
		if engine, err = DefaultEngine(); err != nil {
			return nil, err
		}
	}

	p := &Parser{
		id:       uuid.New(),
		strategy: strategy,
		builder:  strategyInfo[strategy].Builder,
		cfg:      cfg,
		engine:   engine,
	}
	p.progress.L = &p.mu
	p.log = cfg.Logger.WithFields(logrus.Fields{
		"parser":   p.id.String(),
		"strategy": strategy.String(),
	})

	if err := p.construct(ctx); err != nil {
		p.log.WithError(err).Error("parser construction failed")
		if cerr := p.Close(); cerr != nil {
			p.log.WithError(cerr).Warn("teardown after failed construction")
		}
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"engine":  engine.Name(),
		"streams": p.StreamCount(),
	}).Info("parser ready")
	return p, nil
}

func (p *Parser) construct(ctx context.Context) error {
	graph, err := p.engine.NewGraph("mediaparser-" + p.id.String()[:8])
	if err != nil {
		return p.fail(fmt.Errorf("%w: %v", ErrEngine, err))
	}
	p.graph = graph
	graph.OnMessage(p.handleMessage)

	src, err := graph.AddSource("source", p.cfg.Source)
	if err != nil {
		return p.fail(err)
	}
	if err := p.builder.build(p, src); err != nil {
		return p.fail(err)
	}

	if err := graph.SetState(StatePaused); err != nil {
		if !errors.Is(err, ErrStateChange) {
			err = fmt.Errorf("%w: %v", ErrStateChange, err)
		}
		return p.fail(err)
	}
	p.refreshDuration()

	return p.waitReady(ctx)
}

// fail records err unless an earlier error is already recorded, and returns
// the recorded error.
func (p *Parser) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	p.progress.Broadcast()
	return p.err
}

func (p *Parser) waitReady(ctx context.Context) error {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.progress.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.err == nil && !p.builder.readyLocked(p) && ctx.Err() == nil {
		p.progress.Wait()
	}
	if p.err != nil {
		return p.err
	}
	if !p.builder.readyLocked(p) {
		p.err = ctx.Err()
		return p.err
	}
	p.constructed = true
	return nil
}

func (p *Parser) refreshDuration() {
	d, ok := p.graph.QueryDuration()
	if !ok {
		return
	}
	p.mu.Lock()
	p.duration = d
	p.durationKnown = true
	p.progress.Broadcast()
	p.mu.Unlock()
	p.log.WithField("duration", d).Debug("duration known")
}

func (p *Parser) handleMessage(msg Message) {
	log := p.log.WithField("source", msg.Source)
	switch msg.Type {
	case MessageError:
		log.WithError(msg.Err).Error("engine error")
		p.mu.Lock()
		if !p.constructed && p.err == nil {
			p.err = fmt.Errorf("%w: %s: %v", ErrEngine, msg.Source, msg.Err)
			p.progress.Broadcast()
		}
		p.mu.Unlock()
	case MessageWarning:
		log.WithError(msg.Err).Warn("engine warning")
	case MessageEOS:
		log.Debug("graph reached end of stream")
	case MessageDurationChanged:
		p.refreshDuration()
	}
}

// Close tears the graph down and releases every stream. It is safe to call
// on a partially constructed parser and more than once.
func (p *Parser) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	streams := slices.Clone(p.streams)
	p.progress.Broadcast()
	p.mu.Unlock()

	for _, s := range streams {
		s.box.flushStart()
	}

	var result *multierror.Error
	if p.graph != nil {
		if err := p.graph.SetState(StateNull); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, s := range streams {
		s.releasePads()
	}
	if p.graph != nil {
		if err := p.graph.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.log.Debug("parser closed")
	return result.ErrorOrNil()
}

// ID returns the parser's unique id, as used in its log fields.
func (p *Parser) ID() uuid.UUID { return p.id }

// Strategy returns the strategy the parser was built with.
func (p *Parser) Strategy() Strategy { return p.strategy }

// Duration returns the stream duration if the engine reported one.
func (p *Parser) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, p.durationKnown
}

// StreamCount returns the number of streams discovered so far.
func (p *Parser) StreamCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// Stream returns the stream at index i.
func (p *Parser) Stream(i int) (*Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrClosed
	case !p.constructed:
		return nil, ErrNotReady
	case i < 0 || i >= len(p.streams):
		return nil, fmt.Errorf("%w: %d", ErrInvalidStream, i)
	}
	return p.streams[i], nil
}

// PreferredFormat returns the format stream i produces natively. It fails
// with ErrNotReady until the stream's first caps have arrived.
func (p *Parser) PreferredFormat(i int) (Format, error) {
	s, err := p.Stream(i)
	if err != nil {
		return Format{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !s.hasCaps {
		return Format{}, fmt.Errorf("stream %d: %w: no caps yet", i, ErrNotReady)
	}
	return s.preferred, nil
}

// Enable starts delivery on stream i, converted to f where the graph allows.
func (p *Parser) Enable(i int, f Format) error {
	s, err := p.Stream(i)
	if err != nil {
		return err
	}
	return s.Enable(f)
}

// Disable stops delivery on stream i.
func (p *Parser) Disable(i int) error {
	s, err := p.Stream(i)
	if err != nil {
		return err
	}
	s.Disable()
	return nil
}

// Read returns the next item of stream i. See Stream.Read.
func (p *Parser) Read(ctx context.Context, i int) (Event, error) {
	s, err := p.Stream(i)
	if err != nil {
		return Event{}, err
	}
	return s.Read(ctx)
}

// Seek flushes every stream and asks the engine to continue from position.
// New data is observed through Read.
func (p *Parser) Seek(position time.Duration) error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrClosed
	case !p.constructed:
		p.mu.Unlock()
		return ErrNotReady
	}
	streams := slices.Clone(p.streams)
	p.mu.Unlock()

	for _, s := range streams {
		s.flushAndReset()
	}
	if err := p.graph.Seek(position); err != nil {
		return fmt.Errorf("seek to %v: %w", position, err)
	}
	p.log.WithField("position", position).Debug("seek issued")
	return nil
}
