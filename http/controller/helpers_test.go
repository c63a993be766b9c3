package controller

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/vaultstream/config"
	"github.com/lamvt/vaultstream/infra"
	"github.com/lamvt/vaultstream/repository"
)

type testEnv struct {
	router *gin.Engine
	ctrl   *Controller
	index  *repository.MemoryObjectIndex
	store  *infra.MemoryChunkStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &config.EnvConfig{}
	env.Stream.CacheTTLSec = 600
	env.Stream.CacheMaxBytes = 64 << 20

	index := repository.NewMemoryObjectIndex()
	store := infra.NewMemoryChunkStore()

	ctrl := NewController(
		&config.Config{EnvConfig: env},
		&infra.Infra{
			Logger:     infra.NewLocalLogger(),
			ChunkStore: store,
		},
		&repository.Repository{Objects: index},
	)

	router := gin.New()
	router.POST("/chunks", ctrl.IngestChunk)
	router.GET("/stream", ctrl.StreamObject)
	router.GET("/objects", ctrl.ListObjects)

	return &testEnv{router: router, ctrl: ctrl, index: index, store: store}
}

type chunkUpload struct {
	objectID    string
	index       int
	totalChunks int
	fileName    string
	fileType    string
	fileSize    int64
	meta        string
	chunk       []byte
	omitChunk   bool
}

func (e *testEnv) postChunk(t *testing.T, up chunkUpload) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if up.objectID != "" {
		require.NoError(t, w.WriteField("objectId", up.objectID))
	}
	require.NoError(t, w.WriteField("index", strconv.Itoa(up.index)))
	require.NoError(t, w.WriteField("totalChunks", strconv.Itoa(up.totalChunks)))
	if up.fileName != "" {
		require.NoError(t, w.WriteField("fileName", up.fileName))
	}
	if up.fileType != "" {
		require.NoError(t, w.WriteField("fileType", up.fileType))
	}
	if up.fileSize > 0 {
		require.NoError(t, w.WriteField("fileSize", strconv.FormatInt(up.fileSize, 10)))
	}
	if up.meta != "" {
		require.NoError(t, w.WriteField("meta", up.meta))
	}
	if !up.omitChunk {
		part, err := w.CreateFormFile("chunk", "blob")
		require.NoError(t, err)
		_, err = part.Write(up.chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/chunks", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// uploadObject pushes every chunk of an object and returns the acknowledged
// object id.
func (e *testEnv) uploadObject(t *testing.T, objectID, fileType string, chunks [][]byte) string {
	t.Helper()
	var total int64
	for _, c := range chunks {
		total += int64(len(c))
	}
	for i, chunk := range chunks {
		rec := e.postChunk(t, chunkUpload{
			objectID:    objectID,
			index:       i,
			totalChunks: len(chunks),
			fileName:    "file.bin",
			fileType:    fileType,
			fileSize:    total,
			chunk:       chunk,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		if objectID == "" {
			objectID = decodeIngestResponse(t, rec).ObjectID
		}
	}
	return objectID
}

type ingestResponse struct {
	Success     bool   `json:"success"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"totalChunks"`
	ObjectID    string `json:"objectId"`
}

func decodeIngestResponse(t *testing.T, rec *httptest.ResponseRecorder) ingestResponse {
	t.Helper()
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func streamRequest(objectID string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/stream?objectId="+objectID, nil)
	return req, httptest.NewRecorder()
}

func (e *testEnv) getStream(objectID, rangeHeader, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/stream?objectId="+objectID, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
