package dto

// IngestChunkResponse acknowledges one stored chunk.
type IngestChunkResponse struct {
	Success     bool   `json:"success"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"totalChunks"`
	ObjectID    string `json:"objectId"`
}
