package certificates

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/storage/models"
)

const DefaultMaxFileSize int64 = 10 << 20

// UploadInput is one file plus the metadata entered alongside it.
type UploadInput struct {
	FileName string
	Size     int64
	MimeType string
	Body     io.Reader
	Edit     models.CertificateEdit
}

// DetectMime falls back to the file extension when no type was declared.
func DetectMime(fileName, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
	}
	return declared
}

func AllowedMime(mt string) bool {
	return mt == "application/pdf" || strings.HasPrefix(mt, "image/")
}

// ValidateUpload checks everything that can be checked without the backend.
func ValidateUpload(in UploadInput, maxSize int64) error {
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return &models.ValidationError{Field: "file", Message: "Please select a file"}
	}
	if maxSize > 0 && in.Size > maxSize {
		return &models.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("File must be at most %d MB", maxSize>>20),
			Err:     blob.ErrTooLarge,
		}
	}
	if !AllowedMime(in.MimeType) {
		return &models.ValidationError{Field: "file", Message: "Only PDF and image files are supported"}
	}
	return models.ValidateDates(in.Edit.IssueDate, in.Edit.ExpiryDate)
}
