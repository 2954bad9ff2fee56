package dto

// ModelResponse is the API shape of a model descriptor.
type ModelResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Status     string `json:"status"`
	Accuracy   string `json:"accuracy"`
	UploadedAt string `json:"uploaded_at"`
	Kind       string `json:"kind"`
	Size       int64  `json:"size,omitempty"`
}

type ModelListResponse struct {
	Models []ModelResponse `json:"models"`
}
