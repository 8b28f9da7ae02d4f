package mediaparser

// callbacks returns the data and event handlers the engine invokes on its
// worker threads for this stream's sink.
func (s *Stream) callbacks() SinkCallbacks {
	return SinkCallbacks{
		OnBuffer: s.onBuffer,
		OnEvent:  s.onEvent,
	}
}

func (s *Stream) onBuffer(sample *Sample) FlowResult {
	if s.box.publish(Event{Type: EventBuffer, Sample: sample}) == discarded {
		return FlowFlushing
	}
	return FlowOK
}

func (s *Stream) onEvent(ev SinkEvent) {
	switch ev.Type {
	case SinkEventCaps:
		f := s.parser.cfg.CapsTable.FromCaps(ev.Caps)
		if f.IsUnknown() {
			s.log.WithField("caps", ev.Caps.String()).Debug("unrecognized caps")
		}
		s.parser.mu.Lock()
		s.preferred = f
		s.hasCaps = true
		s.parser.progress.Broadcast()
		s.parser.mu.Unlock()

	case SinkEventSegment:
		s.box.publish(Event{Type: EventSegment, Segment: ev.Segment})

	case SinkEventEOS:
		s.box.publish(Event{Type: EventEOS})

	case SinkEventFlushStart:
		s.box.flushStart()

	case SinkEventFlushStop:
		s.box.flushStop()
	}
}
