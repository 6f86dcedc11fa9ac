package dto

// FileResponse represents a stored file
type FileResponse struct {
	Slot     string `json:"slot"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// DeleteFileRequest names the URL to remove from a slot
type DeleteFileRequest struct {
	FileURL string `json:"fileUrl" validate:"required"`
}
