package mediaparser

import (
	"testing"
)

func TestAutoplugPolicy_Default(t *testing.T) {
	p := DefaultAutoplugPolicy()
	cases := []struct {
		name string
		want AutoplugResult
	}{
		{"Fluendo Hardware Accelerated Video Decoder", AutoplugSkip},
		{"Windows Media Player protection decoder", AutoplugSkip},
		{"libav H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 decoder", AutoplugTry},
		{"Fluendo Hardware Accelerated Video Decoder v2", AutoplugTry},
		{"", AutoplugTry},
	}
	for _, tc := range cases {
		if got := p.Select(tc.name); got != tc.want {
			t.Errorf("Select(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAutoplugPolicy_Nil(t *testing.T) {
	var p *AutoplugPolicy
	if got := p.Select("Player protection"); got != AutoplugTry {
		t.Errorf("Expected nil policy to try everything, got %v", got)
	}
}

func TestAutoplugPolicy_Custom(t *testing.T) {
	p := &AutoplugPolicy{Substrings: []string{"", "VA-API"}, Names: []string{"Broken Decoder"}}
	if got := p.Select("VA-API H264 decoder"); got != AutoplugSkip {
		t.Errorf("Expected substring match to skip, got %v", got)
	}
	if got := p.Select("Broken Decoder"); got != AutoplugSkip {
		t.Errorf("Expected exact match to skip, got %v", got)
	}
	if got := p.Select("Working Decoder"); got != AutoplugTry {
		t.Errorf("Expected empty substring to be ignored, got %v", got)
	}
}
