// Core raw sample layouts used across the parser.
package mediaparser

// PixelFormat represents video pixel formats, raw and compressed.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatI420                // YUV 4:2:0 planar (Y + U + V)
	PixelFormatYV12                // YUV 4:2:0 planar (Y + V + U)
	PixelFormatNV12                // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatYUY2                // Packed YUV 4:2:2 (Y0 U Y1 V)
	PixelFormatUYVY                // Packed YUV 4:2:2 (U Y0 V Y1)
	PixelFormatYVYU                // Packed YUV 4:2:2 (Y0 V Y1 U)
	PixelFormatAYUV                // Packed YUV 4:4:4 with alpha
	PixelFormatBGRx                // Packed BGR, 4 bytes per pixel, padding byte
	PixelFormatBGRA                // Packed BGRA, 4 bytes per pixel
	PixelFormatBGR                 // Packed BGR, 3 bytes per pixel
	PixelFormatRGB15               // Packed RGB 5-5-5
	PixelFormatRGB16               // Packed RGB 5-6-5

	// Compressed families.
	PixelFormatCinepak
	PixelFormatH264
	PixelFormatVP8
	PixelFormatVP9
	PixelFormatAV1
)

// rawVideoFormats maps the native "format" field of raw video caps.
var rawVideoFormats = map[string]PixelFormat{
	"I420":  PixelFormatI420,
	"YV12":  PixelFormatYV12,
	"NV12":  PixelFormatNV12,
	"YUY2":  PixelFormatYUY2,
	"UYVY":  PixelFormatUYVY,
	"YVYU":  PixelFormatYVYU,
	"AYUV":  PixelFormatAYUV,
	"BGRx":  PixelFormatBGRx,
	"BGRA":  PixelFormatBGRA,
	"BGR":   PixelFormatBGR,
	"RGB15": PixelFormatRGB15,
	"RGB16": PixelFormatRGB16,
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatYV12:
		return "YV12"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatYUY2:
		return "YUY2"
	case PixelFormatUYVY:
		return "UYVY"
	case PixelFormatYVYU:
		return "YVYU"
	case PixelFormatAYUV:
		return "AYUV"
	case PixelFormatBGRx:
		return "BGRx"
	case PixelFormatBGRA:
		return "BGRA"
	case PixelFormatBGR:
		return "BGR"
	case PixelFormatRGB15:
		return "RGB15"
	case PixelFormatRGB16:
		return "RGB16"
	case PixelFormatCinepak:
		return "Cinepak"
	case PixelFormatH264:
		return "H264"
	case PixelFormatVP8:
		return "VP8"
	case PixelFormatVP9:
		return "VP9"
	case PixelFormatAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// Raw returns true for uncompressed pixel layouts.
func (p PixelFormat) Raw() bool {
	return p > PixelFormatUnknown && p < PixelFormatCinepak
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420, PixelFormatYV12:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	case PixelFormatYUY2, PixelFormatUYVY, PixelFormatYVYU, PixelFormatAYUV,
		PixelFormatBGRx, PixelFormatBGRA, PixelFormatBGR, PixelFormatRGB15, PixelFormatRGB16:
		return 1 // Packed
	default:
		return 0
	}
}

// AudioFormat represents audio sample formats, raw and compressed.
type AudioFormat int

const (
	AudioFormatUnknown AudioFormat = iota
	AudioFormatU8                  // Unsigned 8-bit PCM
	AudioFormatS16                 // Signed 16-bit little-endian PCM
	AudioFormatS24                 // Signed 24-bit little-endian PCM
	AudioFormatS32                 // Signed 32-bit little-endian PCM
	AudioFormatF32                 // 32-bit little-endian float
	AudioFormatF64                 // 64-bit little-endian float

	// Compressed families.
	AudioFormatMPEG1Layer1
	AudioFormatMPEG1Layer2
	AudioFormatMPEG1Layer3
	AudioFormatAAC
	AudioFormatOpus
	AudioFormatVorbis
)

// rawAudioFormats maps the native "format" field of raw audio caps.
var rawAudioFormats = map[string]AudioFormat{
	"U8":    AudioFormatU8,
	"S16LE": AudioFormatS16,
	"S24LE": AudioFormatS24,
	"S32LE": AudioFormatS32,
	"F32LE": AudioFormatF32,
	"F64LE": AudioFormatF64,
}

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatU8:
		return "U8"
	case AudioFormatS16:
		return "S16"
	case AudioFormatS24:
		return "S24"
	case AudioFormatS32:
		return "S32"
	case AudioFormatF32:
		return "F32"
	case AudioFormatF64:
		return "F64"
	case AudioFormatMPEG1Layer1:
		return "MPEG1Layer1"
	case AudioFormatMPEG1Layer2:
		return "MPEG1Layer2"
	case AudioFormatMPEG1Layer3:
		return "MPEG1Layer3"
	case AudioFormatAAC:
		return "AAC"
	case AudioFormatOpus:
		return "Opus"
	case AudioFormatVorbis:
		return "Vorbis"
	default:
		return "Unknown"
	}
}

// Raw returns true for PCM layouts.
func (a AudioFormat) Raw() bool {
	return a > AudioFormatUnknown && a < AudioFormatMPEG1Layer1
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatU8:
		return 1
	case AudioFormatS16:
		return 2
	case AudioFormatS24:
		return 3
	case AudioFormatS32, AudioFormatF32:
		return 4
	case AudioFormatF64:
		return 8
	default:
		return 0
	}
}

// nativeName returns the "format" field value used in raw caps.
func (a AudioFormat) nativeName() string {
	for name, f := range rawAudioFormats {
		if f == a {
			return name
		}
	}
	return ""
}

func (p PixelFormat) nativeName() string {
	for name, f := range rawVideoFormats {
		if f == p {
			return name
		}
	}
	return ""
}
