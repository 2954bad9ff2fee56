package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/pkg/dto"
)

type fakeArtifactStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{objects: make(map[string][]byte)}
}

func (s *fakeArtifactStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	s.objects[key] = data
	return nil
}

func (s *fakeArtifactStore) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func modelsRouter(reg *registry.Registry, store ArtifactStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewModelHandler(reg, store)
	r.POST("/models", h.Upload)
	r.GET("/models", h.List)
	r.DELETE("/models/:id", h.Delete)
	return r
}

func uploadForm(t *testing.T, name, version string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", name))
	if version != "" {
		require.NoError(t, w.WriteField("version", version))
	}
	fw, err := w.CreateFormFile("file", "model.onnx")
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestModelUploadStoresArtifact(t *testing.T) {
	reg := registry.New(nil, nil)
	store := newFakeArtifactStore()
	r := modelsRouter(reg, store)

	body, contentType := uploadForm(t, "custom-v2", "2.0", []byte("weights"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/models", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.ModelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "custom-v2", resp.Name)
	assert.Equal(t, "2.0", resp.Version)
	assert.Equal(t, "inactive", resp.Status)
	assert.Equal(t, "pending", resp.Accuracy)
	assert.Equal(t, string(models.ArtifactCustom), resp.Kind)

	require.Len(t, store.objects, 1)
	d, ok := reg.Get(resp.ID)
	require.True(t, ok)
	assert.Contains(t, store.objects, d.Artifact.Key)
}

func TestModelUploadRequiresNameAndFile(t *testing.T) {
	r := modelsRouter(registry.New(nil, nil), newFakeArtifactStore())

	body, contentType := uploadForm(t, "", "1.0", []byte("weights"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/models", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelDeleteRemovesArtifact(t *testing.T) {
	reg := registry.New(nil, nil)
	store := newFakeArtifactStore()
	r := modelsRouter(reg, store)

	d := reg.Create("custom", "1", models.ArtifactRef{
		Kind: models.ArtifactCustom,
		Key:  "artifacts/abc.onnx",
	})
	store.objects[d.Artifact.Key] = []byte("weights")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/models/%d", d.ID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := reg.Get(d.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{"artifacts/abc.onnx"}, store.deleted, "the blob goes with the descriptor")
	assert.Empty(t, store.objects)
}

func TestModelDeleteBuiltinKeepsStoreUntouched(t *testing.T) {
	reg := registry.New(nil, nil)
	store := newFakeArtifactStore()
	r := modelsRouter(reg, store)

	d := reg.Create("builtin", "1", models.ArtifactRef{Kind: models.ArtifactBuiltIn})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/models/%d", d.ID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.deleted, "built-in models have no stored artifact")
}

func TestModelDeleteUnknownID(t *testing.T) {
	r := modelsRouter(registry.New(nil, nil), newFakeArtifactStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/models/99", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/models/abc", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
