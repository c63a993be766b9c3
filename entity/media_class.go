package entity

import "strings"

// MediaClass selects the segment policy for streaming. It is resolved once
// from the MIME type instead of prefix-matching the string all over the
// handlers.
type MediaClass int

const (
	MediaGeneric MediaClass = iota
	MediaVideo
	MediaAudio
	MediaPDF
)

func MediaClassOf(contentType string) MediaClass {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	case strings.HasPrefix(contentType, "audio/"):
		return MediaAudio
	case contentType == "application/pdf":
		return MediaPDF
	default:
		return MediaGeneric
	}
}

// Streaming reports whether unranged and open-ended requests are answered
// with bounded synthetic segments rather than the whole body.
func (m MediaClass) Streaming() bool {
	return m == MediaVideo || m == MediaAudio
}

// BytesPerSecond is the coarse bitrate estimate used to convert a segment
// duration into a byte count.
func (m MediaClass) BytesPerSecond() int64 {
	switch m {
	case MediaVideo:
		return 1 << 20 // ~1MB/sec for standard quality video
	case MediaAudio:
		return 128 << 10
	default:
		return 0
	}
}

func (m MediaClass) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaPDF:
		return "pdf"
	default:
		return "generic"
	}
}
