package controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	for _, n := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			var want []byte
			chunks := make([][]byte, n)
			for i := range chunks {
				chunks[i] = bytes.Repeat([]byte{byte('a' + i)}, 100+i)
				want = append(want, chunks[i]...)
			}
			objectID := env.uploadObject(t, fmt.Sprintf("obj-rt-%d", n), "text/plain", chunks)

			rec := env.getStream(objectID, "", "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, want, rec.Body.Bytes())
			assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
		})
	}
}

func TestStreamReassemblesOutOfOrderUpload(t *testing.T) {
	env := newTestEnv(t)

	chunks := [][]byte{[]byte("HE"), []byte("LL"), []byte("O")}
	for _, i := range []int{1, 2, 0} {
		rec := env.postChunk(t, chunkUpload{
			objectID:    "obj-hello",
			index:       i,
			totalChunks: 3,
			fileType:    "text/plain",
			fileSize:    5,
			chunk:       chunks[i],
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.getStream("obj-hello", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HELLO", rec.Body.String())
}

func TestStreamMiddleChunkPosition(t *testing.T) {
	env := newTestEnv(t)

	chunks := [][]byte{make([]byte, 5), []byte("HELLO"), make([]byte, 5)}
	objectID := env.uploadObject(t, "demo", "application/octet-stream", chunks)

	rec := env.getStream(objectID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	require.Len(t, body, 15)
	assert.Equal(t, []byte("HELLO"), body[5:10])
	assert.Equal(t, make([]byte, 5), body[:5])
	assert.Equal(t, make([]byte, 5), body[10:])
}

func TestStreamExactRange(t *testing.T) {
	env := newTestEnv(t)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	objectID := env.uploadObject(t, "obj-range", "text/plain", [][]byte{data})

	rec := env.getStream(objectID, "bytes=10-19", "")
	require.Equal(t, http.StatusPartialContent, rec.Code, rec.Body.String())
	assert.Equal(t, "bytes 10-19/100", rec.Header().Get("Content-Range"))
	assert.Equal(t, data[10:20], rec.Body.Bytes())
}

func TestStreamRangeClampedToBody(t *testing.T) {
	env := newTestEnv(t)
	objectID := env.uploadObject(t, "obj-clamp", "text/plain", [][]byte{[]byte("0123456789")})

	rec := env.getStream(objectID, "bytes=5-500", "")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 5-9/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "56789", rec.Body.String())
}

func TestStreamRangeUnsatisfiable(t *testing.T) {
	env := newTestEnv(t)
	objectID := env.uploadObject(t, "obj-416", "text/plain", [][]byte{[]byte("0123456789")})

	for _, header := range []string{"bytes=10-", "bytes=100-200", "bytes=8-3"} {
		t.Run(header, func(t *testing.T) {
			rec := env.getStream(objectID, header, "")
			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
			assert.Equal(t, "bytes */10", rec.Header().Get("Content-Range"))
		})
	}
}

func TestStreamMalformedRangeIgnored(t *testing.T) {
	env := newTestEnv(t)
	objectID := env.uploadObject(t, "obj-badrange", "text/plain", [][]byte{[]byte("0123456789")})

	// An unparseable Range header is treated as no Range at all.
	for _, header := range []string{"bytes=abc-def", "items=0-5", "bytes=-500", "bytes=0-5,7-9"} {
		t.Run(header, func(t *testing.T) {
			rec := env.getStream(objectID, header, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "0123456789", rec.Body.String())
		})
	}
}

func TestStreamMediaServesBoundedSegments(t *testing.T) {
	env := newTestEnv(t)

	// 12 MiB of "video": big enough that no 7-9 second segment covers it.
	data := bytes.Repeat([]byte{0xAB}, 12<<20)
	objectID := env.uploadObject(t, "obj-video", "video/mp4", [][]byte{data[:6<<20], data[6<<20:]})

	rec := env.getStream(objectID, "", "")
	require.Equal(t, http.StatusPartialContent, rec.Code)

	// 1 MiB/s for video, 7-9 whole seconds.
	n := int64(rec.Body.Len())
	assert.GreaterOrEqual(t, n, int64(7<<20))
	assert.LessOrEqual(t, n, int64(9<<20))
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", n-1, len(data)), rec.Header().Get("Content-Range"))

	// An open-ended range gets a bounded segment too.
	rec = env.getStream(objectID, "bytes=1048576-", "")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	n = int64(rec.Body.Len())
	assert.GreaterOrEqual(t, n, int64(7<<20))
	assert.LessOrEqual(t, n, int64(9<<20))
}

func TestStreamIncompleteObjectNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postChunk(t, chunkUpload{
		objectID:    "obj-partial",
		index:       0,
		totalChunks: 3,
		fileType:    "text/plain",
		chunk:       []byte("only one"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Indistinguishable from an absent object.
	rec = env.getStream("obj-partial", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.getStream("obj-never-uploaded", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamMissingObjectID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.getStream("", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamCorruptedChunkFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	objectID := env.uploadObject(t, "obj-corrupt", "text/plain",
		[][]byte{[]byte("chunk zero"), []byte("chunk one")})

	obj, err := env.index.GetObject(context.Background(), objectID)
	require.NoError(t, err)
	require.True(t, env.store.Corrupt(obj.Chunks[1].StorageKey))

	// One flipped bit anywhere means no bytes are served at all.
	rec := env.getStream(objectID, "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "integrity")
}

func TestStreamOriginAllowList(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.Config.EnvConfig.Stream.AllowedOrigins = []string{"http://localhost:5173"}

	objectID := env.uploadObject(t, "obj-origin", "text/plain", [][]byte{[]byte("data")})

	t.Run("allowed origin", func(t *testing.T) {
		rec := env.getStream(objectID, "", "http://localhost:5173")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign origin", func(t *testing.T) {
		rec := env.getStream(objectID, "", "http://evil.example.com")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no origin", func(t *testing.T) {
		rec := env.getStream(objectID, "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("allowed referer", func(t *testing.T) {
		req, rec := streamRequest(objectID)
		req.Header.Set("Referer", "http://localhost:5173/player?id="+objectID)
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStreamResponseHeaders(t *testing.T) {
	env := newTestEnv(t)
	objectID := env.uploadObject(t, "obj-headers", "text/plain", [][]byte{[]byte("data")})

	rec := env.getStream(objectID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}
