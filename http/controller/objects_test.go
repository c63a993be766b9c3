package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamvt/vaultstream/entity"
	"github.com/lamvt/vaultstream/http/controller/dto"
)

func seedObjects(t *testing.T, env *testEnv, n int) {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, created, err := env.index.CreateOrGetObject(context.Background(), &entity.Object{
			ObjectID:    fmt.Sprintf("obj-%03d", i),
			FileName:    fmt.Sprintf("file-%03d.bin", i),
			FileType:    "application/octet-stream",
			FileSize:    int64(i),
			TotalChunks: 1,
			UploadedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, created)
	}
}

func (e *testEnv) getObjects(t *testing.T, query string) (*httptest.ResponseRecorder, dto.ListObjectsResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/objects"+query, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp dto.ListObjectsResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestListObjectsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	seedObjects(t, env, 5)

	rec, resp := env.getObjects(t, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Objects, 5)
	for i := 0; i < len(resp.Objects)-1; i++ {
		assert.False(t, resp.Objects[i].UploadedAt.Before(resp.Objects[i+1].UploadedAt))
	}
	assert.Equal(t, "obj-004", resp.Objects[0].ObjectID)
}

func TestListObjectsDefaultLimit(t *testing.T) {
	env := newTestEnv(t)
	seedObjects(t, env, defaultListLimit+10)

	rec, resp := env.getObjects(t, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Objects, defaultListLimit)
}

func TestListObjectsLimitQuery(t *testing.T) {
	env := newTestEnv(t)
	seedObjects(t, env, 10)

	rec, resp := env.getObjects(t, "?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Objects, 3)

	rec, _ = env.getObjects(t, "?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.getObjects(t, "?limit=notanumber")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListObjectsOmitsKeyMaterial(t *testing.T) {
	env := newTestEnv(t)
	env.uploadObject(t, "obj-secret", "text/plain", [][]byte{[]byte("payload")})

	req := httptest.NewRequest(http.MethodGet, "/objects", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Neither key nor IV may ever appear in a response body.
	assert.NotContains(t, rec.Body.String(), "encryptionKey")
	assert.NotContains(t, rec.Body.String(), "baseIV")
}

func TestListObjectsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.getObjects(t, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, resp.Objects)
	assert.Len(t, resp.Objects, 0)
}
