package dto

import "time"

type ObjectSummary struct {
	ObjectID   string    `json:"objectId"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type ListObjectsResponse struct {
	Objects []ObjectSummary `json:"objects"`
}
