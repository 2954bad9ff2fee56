package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/registry"
	"github.com/your-org/facetrack/pkg/dto"
)

// accuracyDelay simulates the post-upload evaluation step: the descriptor's
// accuracy stays "pending" until it elapses. Placeholder policy, not a real
// training result.
const accuracyDelay = 5 * time.Second

// ArtifactStore holds uploaded model binaries. A descriptor's blob lives
// exactly as long as the descriptor does.
type ArtifactStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

type ModelHandler struct {
	registry  *registry.Registry
	artifacts ArtifactStore
}

func NewModelHandler(reg *registry.Registry, artifacts ArtifactStore) *ModelHandler {
	return &ModelHandler{registry: reg, artifacts: artifacts}
}

// Upload accepts a multipart form with name, version, and a binary model
// file. The descriptor starts inactive; activation is a separate call.
func (h *ModelHandler) Upload(c *gin.Context) {
	name := c.PostForm("name")
	version := c.PostForm("version")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if version == "" {
		version = "1.0"
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read model file: " + err.Error()})
		return
	}

	key := "artifacts/" + uuid.NewString() + ".onnx"
	if err := h.artifacts.PutObject(c.Request.Context(), key, data, "application/octet-stream"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store artifact: " + err.Error()})
		return
	}

	d := h.registry.Create(name, version, models.ArtifactRef{
		Kind: models.ArtifactCustom,
		Key:  key,
		Size: int64(len(data)),
	})

	id := d.ID
	size := d.Artifact.Size
	time.AfterFunc(accuracyDelay, func() {
		h.registry.SetAccuracy(id, simulatedAccuracy(size))
	})

	c.JSON(http.StatusCreated, toModelResponse(d))
}

func (h *ModelHandler) List(c *gin.Context) {
	descriptors := h.registry.List()
	resp := dto.ModelListResponse{Models: make([]dto.ModelResponse, 0, len(descriptors))}
	for _, d := range descriptors {
		resp.Models = append(resp.Models, toModelResponse(d))
	}
	c.JSON(http.StatusOK, resp)
}

// Activate marks the model active and loads it. A load failure is not an
// HTTP error: the descriptor is active but detection stays disabled until a
// working model is activated.
func (h *ModelHandler) Activate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	if err := h.registry.SetActive(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	d, _ := h.registry.Get(id)
	c.JSON(http.StatusOK, toModelResponse(d))
}

// Delete removes the descriptor and, for uploaded models, its stored
// artifact blob.
func (h *ModelHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	d, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("model %d not found", id)})
		return
	}

	if err := h.registry.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if d.Artifact.Kind == models.ArtifactCustom && d.Artifact.Key != "" {
		if err := h.artifacts.DeleteObject(c.Request.Context(), d.Artifact.Key); err != nil {
			slog.Warn("delete model artifact", "model_id", id, "key", d.Artifact.Key, "error", err)
		}
	}

	c.Status(http.StatusNoContent)
}

func toModelResponse(d models.ModelDescriptor) dto.ModelResponse {
	return dto.ModelResponse{
		ID:         d.ID,
		Name:       d.Name,
		Version:    d.Version,
		Status:     string(d.Status),
		Accuracy:   d.Accuracy,
		UploadedAt: d.UploadedAt.Format(time.RFC3339),
		Kind:       string(d.Artifact.Kind),
		Size:       d.Artifact.Size,
	}
}

// simulatedAccuracy derives a stable display value from the artifact size.
func simulatedAccuracy(size int64) string {
	return fmt.Sprintf("%.1f%%", 90.0+float64(size%80)/10.0)
}
