package mediaparser

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// Re-export pion/rtp types for convenience
type (
	// RTPPacket is an alias to pion's rtp.Packet
	RTPPacket = rtp.Packet

	// RTPHeader is an alias to pion's rtp.Header
	RTPHeader = rtp.Header
)

// Default MTU for RTP packets (UDP safe)
const DefaultMTU = 1200

// RTPWriter is an interface for writing RTP packets.
type RTPWriter interface {
	// WriteRTP writes an RTP packet.
	WriteRTP(packet *RTPPacket) error
}

// NewPayloader returns the pion payloader for a compressed format.
// H.264 samples must be in Annex B byte-stream form.
func NewPayloader(f Format) (rtp.Payloader, error) {
	switch f.Major {
	case MajorAudio:
		if f.Audio.Format == AudioFormatOpus {
			return &codecs.OpusPayloader{}, nil
		}
	case MajorVideo:
		switch f.Video.Format {
		case PixelFormatH264:
			return &codecs.H264Payloader{}, nil
		case PixelFormatVP8:
			return &codecs.VP8Payloader{EnablePictureID: true}, nil
		case PixelFormatVP9:
			return &codecs.VP9Payloader{}, nil
		case PixelFormatAV1:
			return &codecs.AV1Payloader{}, nil
		}
	}
	return nil, fmt.Errorf("%w: no RTP payloader for %v", ErrUnsupportedFormat, f)
}

// IsRTPTimestampOlder returns true if ts1 is older than or equal to ts2,
// handling 32-bit wraparound correctly per RTP timestamp comparison rules.
func IsRTPTimestampOlder(ts1, ts2 uint32) bool {
	if ts1 == ts2 {
		return true
	}
	diff := ts2 - ts1
	return diff < 0x80000000
}
