package mediaparser

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// Kind returns the WebRTC track kind of f.
func (f Format) Kind() RTPCodecType {
	switch f.Major {
	case MajorAudio:
		return RTPCodecTypeAudio
	case MajorVideo:
		return RTPCodecTypeVideo
	default:
		return RTPCodecTypeUnknown
	}
}

// MimeType returns the WebRTC MIME type of a compressed format, or "" if the
// format cannot be sent over WebRTC as is.
func (f Format) MimeType() string {
	switch f.Major {
	case MajorAudio:
		if f.Audio.Format == AudioFormatOpus {
			return webrtc.MimeTypeOpus
		}
	case MajorVideo:
		switch f.Video.Format {
		case PixelFormatH264:
			return webrtc.MimeTypeH264
		case PixelFormatVP8:
			return webrtc.MimeTypeVP8
		case PixelFormatVP9:
			return webrtc.MimeTypeVP9
		case PixelFormatAV1:
			return webrtc.MimeTypeAV1
		}
	}
	return ""
}

// ClockRate returns the RTP clock rate used for f.
func (f Format) ClockRate() uint32 {
	if f.Major == MajorVideo {
		return 90000
	}
	// Opus always signals 48 kHz regardless of the coded rate.
	if f.Audio.Format == AudioFormatOpus || f.Audio.Rate <= 0 {
		return 48000
	}
	return uint32(f.Audio.Rate)
}

// CodecCapability returns the pion codec description for f, suitable for
// webrtc.NewTrackLocalStaticRTP.
func (f Format) CodecCapability() (webrtc.RTPCodecCapability, error) {
	mime := f.MimeType()
	if mime == "" {
		return webrtc.RTPCodecCapability{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	c := webrtc.RTPCodecCapability{
		MimeType:  mime,
		ClockRate: f.ClockRate(),
	}
	switch mime {
	case webrtc.MimeTypeOpus:
		c.Channels = 2
		c.SDPFmtpLine = "minptime=10;useinbandfec=1"
	case webrtc.MimeTypeH264:
		c.SDPFmtpLine = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"
	}
	return c, nil
}
