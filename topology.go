package mediaparser

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// watchTopology registers the dynamic topology observers on a multi-output
// element. Decoded outputs get a post-processing chain when postProcess is set.
func (p *Parser) watchTopology(e Element, postProcess bool) {
	e.OnPadAdded(func(pad Pad) {
		if _, err := p.attachOutput(pad, postProcess); err != nil {
			p.log.WithError(err).WithField("pad", pad.Name()).Warn("failed to attach output")
			pad.Release()
		}
	})
	e.OnPadRemoved(p.detachOutput)
	e.OnNoMorePads(p.markGraphComplete)
	e.OnAutoplugSelect(p.autoplugSelect)
}

// postChain returns the factories inserted in front of an output with caps c.
func (p *Parser) postChain(c Caps) []string {
	switch c.Name {
	case "video/x-raw":
		return p.cfg.VideoChain
	case "audio/x-raw":
		return p.cfg.AudioChain
	}
	return nil
}

// attachOutput creates a Stream fed by pad. On success the stream owns pad;
// on failure the caller keeps it. Elements created before a failure stay in
// the graph and are released with it.
func (p *Parser) attachOutput(pad Pad, postProcess bool) (*Stream, error) {
	p.topoMu.Lock()
	defer p.topoMu.Unlock()

	p.mu.Lock()
	index, closed := len(p.streams), p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	s := newStream(p, index)
	log := s.log.WithField("pad", pad.Name())

	var factories []string
	if postProcess {
		if caps, ok := pad.CurrentCaps(); ok {
			factories = p.postChain(caps)
			log = log.WithField("caps", caps.Name)
		}
	}

	var flip Element
	chain := make([]Element, 0, len(factories))
	for i, factory := range factories {
		e, err := p.graph.AddElement(factory, fmt.Sprintf("stream%d-%s%d", index, factory, i))
		if err != nil {
			return nil, fmt.Errorf("post-processing stage %s: %w", factory, err)
		}
		if flip == nil && factory == p.cfg.FlipFactory {
			flip = e
		}
		chain = append(chain, e)
	}

	sink, err := p.graph.AddSink(fmt.Sprintf("stream%d-sink", index), s.callbacks())
	if err != nil {
		return nil, fmt.Errorf("stream sink: %w", err)
	}

	var head Element = sink
	if len(chain) > 0 {
		head = chain[0]
		for i := 0; i+1 < len(chain); i++ {
			if err := chain[i].Link(chain[i+1]); err != nil {
				return nil, fmt.Errorf("link %s to %s: %w", chain[i].Name(), chain[i+1].Name(), err)
			}
		}
		last := chain[len(chain)-1]
		if err := last.Link(sink); err != nil {
			return nil, fmt.Errorf("link %s to sink: %w", last.Name(), err)
		}
	}

	if err := sink.SyncState(); err != nil {
		return nil, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := chain[i].SyncState(); err != nil {
			return nil, err
		}
	}

	entry, err := head.StaticPad("sink")
	if err != nil {
		return nil, err
	}
	if err := pad.Link(entry); err != nil {
		entry.Release()
		return nil, fmt.Errorf("link %s: %w", pad.Name(), err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if err := pad.Unlink(entry); err != nil {
			log.WithError(err).Warn("failed to unlink output of closed parser")
		}
		entry.Release()
		return nil, ErrClosed
	}
	s.upstream = pad
	s.entry = entry
	s.chain = chain
	s.flip = flip
	s.sink = sink
	p.streams = append(p.streams, s)
	p.progress.Broadcast()
	p.mu.Unlock()

	log.WithField("stages", len(chain)).Debug("output attached")
	return s, nil
}

// detachOutput unlinks the stream fed by pad. The stream itself stays in
// the parser.
func (p *Parser) detachOutput(pad Pad) {
	p.mu.Lock()
	var s *Stream
	for _, candidate := range p.streams {
		if candidate.upstream != nil && candidate.upstream.Native() == pad.Native() {
			s = candidate
			break
		}
	}
	var upstream, entry Pad
	if s != nil {
		upstream, entry = s.upstream, s.entry
		s.upstream = nil
	}
	p.mu.Unlock()

	if s == nil {
		p.log.WithField("pad", pad.Name()).Warn("removed pad does not feed any stream")
		return
	}
	if err := upstream.Unlink(entry); err != nil {
		s.log.WithError(err).Warn("failed to unlink removed pad")
	}
	upstream.Release()
	s.log.WithField("pad", pad.Name()).Debug("output detached")
}

func (p *Parser) markGraphComplete() {
	p.mu.Lock()
	p.graphComplete = true
	n := len(p.streams)
	p.progress.Broadcast()
	p.mu.Unlock()
	p.log.WithField("streams", n).Debug("graph complete")
}

func (p *Parser) autoplugSelect(caps Caps, factory string) AutoplugResult {
	r := p.cfg.Autoplug.Select(factory)
	if r == AutoplugSkip {
		p.log.WithFields(logrus.Fields{
			"caps":    caps.Name,
			"factory": factory,
		}).Info("skipping blacklisted decoder")
	}
	return r
}
