package mediaparser

import "fmt"

// Strategy selects how a Parser builds its native graph.
type Strategy uint8

const (
	StrategyDecodeBin       Strategy = iota // Auto-negotiating demux and decode, any number of outputs
	StrategyDemux                           // Container demuxer only, undecoded outputs
	StrategyFrameParser                     // Raw elementary frames, one output
	StrategyContainerParser                 // Raw elementary container, one output
	strategyCount
)

// strategyMeta contains static metadata about a strategy.
type strategyMeta struct {
	Name    string
	Outputs int // 0 means unbounded
	Builder graphBuilder
}

var strategyInfo = [strategyCount]strategyMeta{
	StrategyDecodeBin:       {"decodebin", 0, decodeBinBuilder{}},
	StrategyDemux:           {"demux", 0, demuxBuilder{}},
	StrategyFrameParser:     {"frame-parser", 1, frameParserBuilder{}},
	StrategyContainerParser: {"container-parser", 1, containerParserBuilder{}},
}

func (s Strategy) String() string {
	if s >= strategyCount {
		return "unknown"
	}
	return strategyInfo[s].Name
}

// Outputs returns the fixed number of streams the strategy produces, or 0
// if it depends on the input.
func (s Strategy) Outputs() int {
	if s >= strategyCount {
		return 0
	}
	return strategyInfo[s].Outputs
}

// graphBuilder assembles the native elements behind the source and decides
// when construction is finished.
type graphBuilder interface {
	// build adds and links the strategy's elements. It runs before the
	// graph is paused and must not block on engine progress.
	build(p *Parser, src Element) error

	// readyLocked reports whether topology is stable. p.mu is held.
	readyLocked(p *Parser) bool
}

type decodeBinBuilder struct{}

func (decodeBinBuilder) build(p *Parser, src Element) error {
	return p.buildMultiOutput(src, p.cfg.DecodeBinFactory, "decoder", true)
}

func (decodeBinBuilder) readyLocked(p *Parser) bool { return p.graphComplete }

type demuxBuilder struct{}

func (demuxBuilder) build(p *Parser, src Element) error {
	return p.buildMultiOutput(src, p.cfg.DemuxFactory, "demuxer", false)
}

func (demuxBuilder) readyLocked(p *Parser) bool { return p.graphComplete }

type frameParserBuilder struct{}

func (frameParserBuilder) build(p *Parser, src Element) error {
	_, err := p.buildSingleOutput(src, p.cfg.FrameParserFactory)
	return err
}

// The frame parser never reports no-more-pads; it is ready once the engine
// knows the duration or the only stream has already ended.
func (frameParserBuilder) readyLocked(p *Parser) bool {
	if p.durationKnown {
		return true
	}
	return len(p.streams) > 0 && p.streams[0].box.eos
}

type containerParserBuilder struct{}

func (containerParserBuilder) build(p *Parser, src Element) error {
	if _, err := p.buildSingleOutput(src, p.cfg.ContainerParserFactory); err != nil {
		return err
	}
	p.markGraphComplete()
	return nil
}

func (containerParserBuilder) readyLocked(p *Parser) bool { return p.graphComplete }

func (p *Parser) buildMultiOutput(src Element, factory, name string, postProcess bool) error {
	e, err := p.graph.AddElement(factory, name)
	if err != nil {
		return err
	}
	p.watchTopology(e, postProcess)
	if err := src.Link(e); err != nil {
		return fmt.Errorf("link source to %s: %w", factory, err)
	}
	return nil
}

// buildSingleOutput links src into a parser element and attaches its one
// static output.
func (p *Parser) buildSingleOutput(src Element, factory string) (*Stream, error) {
	e, err := p.graph.AddElement(factory, "parser")
	if err != nil {
		return nil, err
	}
	if err := src.Link(e); err != nil {
		return nil, fmt.Errorf("link source to %s: %w", factory, err)
	}
	pad, err := e.StaticPad("src")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", factory, err)
	}
	s, err := p.attachOutput(pad, false)
	if err != nil {
		pad.Release()
		return nil, err
	}
	return s, nil
}
