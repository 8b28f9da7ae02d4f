package mediaparser

import (
	"errors"
	"testing"

	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
)

func TestFormat_WebRTCMapping(t *testing.T) {
	cases := []struct {
		f     Format
		mime  string
		kind  RTPCodecType
		clock uint32
	}{
		{NewAudioFormat(AudioFormatOpus, 2, 24000), webrtc.MimeTypeOpus, RTPCodecTypeAudio, 48000},
		{NewVideoFormat(PixelFormatH264, 1280, 720, 30, 1), webrtc.MimeTypeH264, RTPCodecTypeVideo, 90000},
		{NewVideoFormat(PixelFormatVP8, 640, 480, 30, 1), webrtc.MimeTypeVP8, RTPCodecTypeVideo, 90000},
		{NewVideoFormat(PixelFormatVP9, 640, 480, 30, 1), webrtc.MimeTypeVP9, RTPCodecTypeVideo, 90000},
		{NewVideoFormat(PixelFormatAV1, 640, 480, 30, 1), webrtc.MimeTypeAV1, RTPCodecTypeVideo, 90000},
		{NewAudioFormat(AudioFormatS16, 2, 44100), "", RTPCodecTypeAudio, 44100},
		{Format{}, "", RTPCodecTypeUnknown, 48000},
	}
	for _, tc := range cases {
		if got := tc.f.MimeType(); got != tc.mime {
			t.Errorf("%v: expected mime %q, got %q", tc.f, tc.mime, got)
		}
		if got := tc.f.Kind(); got != tc.kind {
			t.Errorf("%v: expected kind %v, got %v", tc.f, tc.kind, got)
		}
		if got := tc.f.ClockRate(); got != tc.clock {
			t.Errorf("%v: expected clock rate %d, got %d", tc.f, tc.clock, got)
		}
	}
}

func TestFormat_CodecCapability(t *testing.T) {
	c, err := NewAudioFormat(AudioFormatOpus, 2, 48000).CodecCapability()
	if err != nil {
		t.Fatalf("CodecCapability: %v", err)
	}
	if c.MimeType != webrtc.MimeTypeOpus || c.ClockRate != 48000 || c.Channels != 2 {
		t.Errorf("Unexpected capability %+v", c)
	}

	if _, err := NewVideoFormat(PixelFormatI420, 64, 48, 25, 1).CodecCapability(); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for raw video, got %v", err)
	}
}

func TestNewPayloader(t *testing.T) {
	p, err := NewPayloader(NewVideoFormat(PixelFormatVP8, 640, 480, 30, 1))
	if err != nil {
		t.Fatalf("NewPayloader: %v", err)
	}
	if vp8, ok := p.(*codecs.VP8Payloader); !ok || !vp8.EnablePictureID {
		t.Errorf("Expected VP8 payloader with picture IDs, got %T", p)
	}

	for _, f := range []Format{
		NewAudioFormat(AudioFormatMPEG1Layer3, 2, 44100),
		NewVideoFormat(PixelFormatCinepak, 320, 240, 15, 1),
		{},
	} {
		if _, err := NewPayloader(f); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%v: expected ErrUnsupportedFormat, got %v", f, err)
		}
	}
}

func TestIsRTPTimestampOlder(t *testing.T) {
	cases := []struct {
		a, b uint32
		want bool
	}{
		{100, 200, true},
		{200, 100, false},
		{100, 100, true},
		{0xFFFFFF00, 0x00000100, true},
		{0x00000100, 0xFFFFFF00, false},
	}
	for _, tc := range cases {
		if got := IsRTPTimestampOlder(tc.a, tc.b); got != tc.want {
			t.Errorf("IsRTPTimestampOlder(%#x, %#x) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
