package mediaparser

import (
	"fmt"
)

// MajorType selects the active arm of a Format.
type MajorType int

const (
	MajorUnknown MajorType = iota // Not negotiated or not recognized
	MajorAudio
	MajorVideo
)

func (m MajorType) String() string {
	switch m {
	case MajorAudio:
		return "audio"
	case MajorVideo:
		return "video"
	default:
		return "unknown"
	}
}

// AudioParams describes an audio format.
type AudioParams struct {
	Format   AudioFormat
	Channels int
	Rate     int
}

// VideoParams describes a video format. A negative Height means rows are
// stored bottom-up.
type VideoParams struct {
	Format PixelFormat
	Width  int
	Height int
	FPSNum int
	FPSDen int
}

// Format is a neutral media format. Only the arm selected by Major is
// meaningful; the zero value is the Unknown format.
type Format struct {
	Major MajorType
	Audio AudioParams
	Video VideoParams
}

// NewAudioFormat returns an audio Format.
func NewAudioFormat(f AudioFormat, channels, rate int) Format {
	return Format{Major: MajorAudio, Audio: AudioParams{Format: f, Channels: channels, Rate: rate}}
}

// NewVideoFormat returns a video Format.
func NewVideoFormat(f PixelFormat, width, height, fpsNum, fpsDen int) Format {
	return Format{Major: MajorVideo, Video: VideoParams{
		Format: f, Width: width, Height: height, FPSNum: fpsNum, FPSDen: fpsDen,
	}}
}

// IsUnknown reports whether f carries no negotiated format.
func (f Format) IsUnknown() bool { return f.Major == MajorUnknown }

func (f Format) String() string {
	switch f.Major {
	case MajorAudio:
		return fmt.Sprintf("audio %s %dch %dHz", f.Audio.Format, f.Audio.Channels, f.Audio.Rate)
	case MajorVideo:
		return fmt.Sprintf("video %s %dx%d @%d/%d", f.Video.Format, f.Video.Width, f.Video.Height,
			f.Video.FPSNum, f.Video.FPSDen)
	default:
		return "unknown"
	}
}

// Compatible reports whether a and b describe the same format. Frame rates
// are compared by cross-multiplication so 30/1 and 60/2 match.
func Compatible(a, b Format) bool {
	if a.Major != b.Major {
		return false
	}
	switch a.Major {
	case MajorAudio:
		return a.Audio == b.Audio
	case MajorVideo:
		va, vb := a.Video, b.Video
		if va.Format != vb.Format || va.Width != vb.Width || va.Height != vb.Height {
			return false
		}
		return int64(va.FPSNum)*int64(vb.FPSDen) == int64(vb.FPSNum)*int64(va.FPSDen)
	default:
		return true
	}
}

// ToCaps converts f to native caps using the default family table.
func (f Format) ToCaps() (Caps, bool) {
	return defaultCapsTable.ToCaps(f)
}

// FormatFromCaps converts native caps to a Format using the default family
// table. Unrecognized or incomplete caps yield the Unknown format.
func FormatFromCaps(c Caps) Format {
	return defaultCapsTable.FromCaps(c)
}

// ToCaps converts f to native caps. Raw layouts are always representable;
// compressed formats need a family entry in t.
func (t *CapsTable) ToCaps(f Format) (Caps, bool) {
	switch f.Major {
	case MajorAudio:
		a := f.Audio
		if a.Format.Raw() {
			return NewCaps("audio/x-raw").
				With("format", a.Format.nativeName()).
				With("layout", "interleaved").
				With("rate", a.Rate).
				With("channels", a.Channels), true
		}
		fam, ok := t.familyForAudio(a.Format)
		if !ok {
			return Caps{}, false
		}
		c := fam.caps()
		if a.Rate > 0 {
			c = c.With("rate", a.Rate)
		}
		if a.Channels > 0 {
			c = c.With("channels", a.Channels)
		}
		return c, true

	case MajorVideo:
		v := f.Video
		height := v.Height
		if height < 0 {
			height = -height
		}
		var c Caps
		if v.Format.Raw() {
			c = NewCaps("video/x-raw").With("format", v.Format.nativeName())
		} else {
			fam, ok := t.familyForVideo(v.Format)
			if !ok {
				return Caps{}, false
			}
			c = fam.caps()
		}
		c = c.With("width", v.Width).With("height", height)
		if v.FPSDen > 0 {
			c = c.With("framerate", Fraction{Num: v.FPSNum, Den: v.FPSDen})
		}
		return c, true

	default:
		return Caps{}, false
	}
}

// FromCaps converts native caps to a Format.
func (t *CapsTable) FromCaps(c Caps) Format {
	switch c.Name {
	case "audio/x-raw":
		name, _ := c.Str("format")
		af, ok := rawAudioFormats[name]
		if !ok {
			return Format{}
		}
		rate, ok1 := c.Int("rate")
		channels, ok2 := c.Int("channels")
		if !ok1 || !ok2 {
			return Format{}
		}
		return NewAudioFormat(af, channels, rate)

	case "video/x-raw":
		name, _ := c.Str("format")
		pf, ok := rawVideoFormats[name]
		if !ok {
			return Format{}
		}
		width, ok1 := c.Int("width")
		height, ok2 := c.Int("height")
		if !ok1 || !ok2 {
			return Format{}
		}
		fps, ok := c.Fraction("framerate")
		if !ok {
			fps = Fraction{Num: 0, Den: 1}
		}
		return NewVideoFormat(pf, width, height, fps.Num, fps.Den)
	}

	fam, ok := t.lookup(c)
	if !ok {
		return Format{}
	}
	return fam.extract(c)
}
