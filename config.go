package mediaparser

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Config configures a Parser.
type Config struct {
	Engine Engine    // Native engine (nil = DefaultEngine)
	Source io.Reader // Compressed input; io.Seeker enables random access
	Logger logrus.FieldLogger

	// Element factories per strategy.
	DecodeBinFactory       string // Generic demux+decode
	DemuxFactory           string // Container-specific demuxer
	FrameParserFactory     string // Raw elementary-frame parser
	ContainerParserFactory string // Raw elementary-container parser

	// Post-processing chains inserted in front of decoded outputs.
	VideoChain []string
	AudioChain []string
	// FlipFactory names the stage of VideoChain that corrects row order.
	FlipFactory string

	Autoplug  *AutoplugPolicy
	CapsTable *CapsTable
}

// DefaultConfig returns a configuration with the stock element factories.
func DefaultConfig() Config {
	return Config{
		DecodeBinFactory:       "decodebin",
		DemuxFactory:           "avidemux",
		FrameParserFactory:     "mpegaudioparse",
		ContainerParserFactory: "wavparse",
		VideoChain:             []string{"deinterlace", "videoconvert", "videoflip", "videoconvert"},
		AudioChain:             []string{"audioconvert"},
		FlipFactory:            "videoflip",
		Autoplug:               DefaultAutoplugPolicy(),
		CapsTable:              DefaultCapsTable(),
	}
}

// withDefaults fills every zero field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.DecodeBinFactory == "" {
		c.DecodeBinFactory = d.DecodeBinFactory
	}
	if c.DemuxFactory == "" {
		c.DemuxFactory = d.DemuxFactory
	}
	if c.FrameParserFactory == "" {
		c.FrameParserFactory = d.FrameParserFactory
	}
	if c.ContainerParserFactory == "" {
		c.ContainerParserFactory = d.ContainerParserFactory
	}
	if c.VideoChain == nil {
		c.VideoChain = d.VideoChain
	}
	if c.AudioChain == nil {
		c.AudioChain = d.AudioChain
	}
	if c.FlipFactory == "" {
		c.FlipFactory = d.FlipFactory
	}
	if c.Autoplug == nil {
		c.Autoplug = d.Autoplug
	}
	if c.CapsTable == nil {
		c.CapsTable = d.CapsTable
	}
	return c
}
