package controller

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/lamvt/vaultstream/entity"
)

// Segment durations are picked per request in [7, 10) seconds so a client
// cannot fetch a whole media file with one open-ended range; it has to come
// back for the next segment.
const (
	minSegmentSeconds    = 7
	segmentSecondsJitter = 3
)

type resolvedRange struct {
	Start  int64
	End    int64 // inclusive
	Status int   // 200 or 206
}

func (r resolvedRange) Length() int64 {
	return r.End - r.Start + 1
}

// parseByteRange parses a "bytes=<start>-[<end>]" header. A header this
// server cannot parse is ignored, per RFC 9110, rather than rejected.
func parseByteRange(header string) (start, end int64, hasEnd, ok bool) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false, false
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false, false
	}
	// Suffix ranges ("bytes=-500") are not used by the players this serves.
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, false
	}
	endStr = strings.TrimSpace(endStr)
	if endStr == "" {
		return start, 0, false, true
	}
	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return 0, 0, false, false
	}
	return start, end, true, true
}

// segmentLength converts a randomized duration into bytes for the class.
func segmentLength(class entity.MediaClass) int64 {
	seconds := int64(minSegmentSeconds + rand.Intn(segmentSecondsJitter))
	return seconds * class.BytesPerSecond()
}

// resolveRange applies the range policy for an object of the given total
// length. unsatisfiable=true means the caller must answer 416.
func resolveRange(header string, total int64, class entity.MediaClass) (r resolvedRange, unsatisfiable bool) {
	start, end, hasEnd, ok := parseByteRange(header)

	if !ok {
		if class.Streaming() {
			// Synthetic leading segment instead of the whole body.
			segEnd := segmentLength(class) - 1
			if segEnd > total-1 {
				segEnd = total - 1
			}
			return resolvedRange{Start: 0, End: segEnd, Status: 206}, false
		}
		return resolvedRange{Start: 0, End: total - 1, Status: 200}, false
	}

	if start >= total || (hasEnd && start > end) {
		return resolvedRange{}, true
	}

	if hasEnd {
		// Fully specified ranges are honored exactly, clamped to the body.
		if end > total-1 {
			end = total - 1
		}
		return resolvedRange{Start: start, End: end, Status: 206}, false
	}

	if class.Streaming() {
		end = start + segmentLength(class) - 1
	} else {
		end = total - 1
	}
	if end > total-1 {
		end = total - 1
	}
	return resolvedRange{Start: start, End: end, Status: 206}, false
}
