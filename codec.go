package mediaparser

import (
	"maps"
	"slices"
	"sync"
)

// CapsFamily describes one compressed capability family: caps with media
// type Name whose Match fields all equal the given values map to Audio or
// Video. Required lists the numeric fields that must be present and fixed for
// the format to be recognized; anything else yields the Unknown format.
type CapsFamily struct {
	Name     string
	Match    map[string]any
	Major    MajorType
	Audio    AudioFormat
	Video    PixelFormat
	Required []string
}

func (f CapsFamily) matches(c Caps) bool {
	if c.Name != f.Name {
		return false
	}
	for k, want := range f.Match {
		got, ok := c.Field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (f CapsFamily) caps() Caps {
	c := NewCaps(f.Name)
	for _, k := range sortedKeys(f.Match) {
		c = c.With(k, f.Match[k])
	}
	return c
}

func (f CapsFamily) extract(c Caps) Format {
	for _, name := range f.Required {
		v, ok := c.Field(name)
		if !ok {
			return Format{}
		}
		// Lists and ranges are kept as strings; the field is not fixed yet.
		if _, unfixed := v.(string); unfixed {
			return Format{}
		}
	}
	switch f.Major {
	case MajorAudio:
		channels, _ := c.Int("channels")
		rate, _ := c.Int("rate")
		return NewAudioFormat(f.Audio, channels, rate)
	case MajorVideo:
		width, _ := c.Int("width")
		height, _ := c.Int("height")
		fps, ok := c.Fraction("framerate")
		if !ok {
			fps = Fraction{Num: 0, Den: 1}
		}
		return NewVideoFormat(f.Video, width, height, fps.Num, fps.Den)
	default:
		return Format{}
	}
}

// CapsTable is an ordered, extensible set of compressed capability families.
// The first matching family wins.
type CapsTable struct {
	mu       sync.RWMutex
	families []CapsFamily
}

// NewCapsTable creates a table from the given families.
func NewCapsTable(families ...CapsFamily) *CapsTable {
	t := &CapsTable{}
	t.families = append(t.families, families...)
	return t
}

// DefaultCapsTable returns a fresh copy of the built-in family table.
func DefaultCapsTable() *CapsTable {
	return NewCapsTable(defaultFamilies...)
}

// Register appends a family to the table.
func (t *CapsTable) Register(f CapsFamily) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.families = append(t.families, f)
}

// Families returns a snapshot of the registered families.
func (t *CapsTable) Families() []CapsFamily {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CapsFamily, len(t.families))
	copy(out, t.families)
	return out
}

func (t *CapsTable) lookup(c Caps) (CapsFamily, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, f := range t.families {
		if f.matches(c) {
			return f, true
		}
	}
	return CapsFamily{}, false
}

func (t *CapsTable) familyForAudio(af AudioFormat) (CapsFamily, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, f := range t.families {
		if f.Major == MajorAudio && f.Audio == af {
			return f, true
		}
	}
	return CapsFamily{}, false
}

func (t *CapsTable) familyForVideo(pf PixelFormat) (CapsFamily, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, f := range t.families {
		if f.Major == MajorVideo && f.Video == pf {
			return f, true
		}
	}
	return CapsFamily{}, false
}

var defaultFamilies = []CapsFamily{
	{Name: "audio/mpeg", Match: map[string]any{"mpegversion": 1, "layer": 1}, Major: MajorAudio,
		Audio: AudioFormatMPEG1Layer1, Required: []string{"rate", "channels"}},
	{Name: "audio/mpeg", Match: map[string]any{"mpegversion": 1, "layer": 2}, Major: MajorAudio,
		Audio: AudioFormatMPEG1Layer2, Required: []string{"rate", "channels"}},
	{Name: "audio/mpeg", Match: map[string]any{"mpegversion": 1, "layer": 3}, Major: MajorAudio,
		Audio: AudioFormatMPEG1Layer3, Required: []string{"rate", "channels"}},
	{Name: "audio/mpeg", Match: map[string]any{"mpegversion": 4}, Major: MajorAudio,
		Audio: AudioFormatAAC, Required: []string{"rate", "channels"}},
	{Name: "audio/x-opus", Major: MajorAudio, Audio: AudioFormatOpus,
		Required: []string{"rate", "channels"}},
	{Name: "audio/x-vorbis", Major: MajorAudio, Audio: AudioFormatVorbis,
		Required: []string{"rate", "channels"}},
	{Name: "video/x-cinepak", Major: MajorVideo, Video: PixelFormatCinepak,
		Required: []string{"width", "height", "framerate"}},
	{Name: "video/x-h264", Major: MajorVideo, Video: PixelFormatH264,
		Required: []string{"width", "height"}},
	{Name: "video/x-vp8", Major: MajorVideo, Video: PixelFormatVP8,
		Required: []string{"width", "height"}},
	{Name: "video/x-vp9", Major: MajorVideo, Video: PixelFormatVP9,
		Required: []string{"width", "height"}},
	{Name: "video/x-av1", Major: MajorVideo, Video: PixelFormatAV1,
		Required: []string{"width", "height"}},
}

// defaultCapsTable backs Format.ToCaps and FormatFromCaps.
var defaultCapsTable = DefaultCapsTable()

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
