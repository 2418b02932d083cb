package models

import (
	"strings"
	"time"
)

type Certificate struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	IssuingAuthority string    `json:"issuing_authority"`
	Category         string    `json:"category"`
	Notes            string    `json:"notes"`
	IssueDate        *Date     `json:"issue_date"`
	ExpiryDate       *Date     `json:"expiry_date"`
	IsPrivate        bool      `json:"is_private"`
	StoragePath      string    `json:"storage_path"`
	FileName         string    `json:"file_name"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	cp := *c
	if c.IssueDate != nil {
		d := *c.IssueDate
		cp.IssueDate = &d
	}
	if c.ExpiryDate != nil {
		d := *c.ExpiryDate
		cp.ExpiryDate = &d
	}
	return &cp
}

// DisplayName is the title, falling back to the file name.
func (c *Certificate) DisplayName() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return c.FileName
}

// ApplyEdit overwrites the editable fields. Storage fields are untouched.
func (c *Certificate) ApplyEdit(e CertificateEdit) {
	c.Title = e.Title
	c.IssuingAuthority = e.IssuingAuthority
	c.Category = e.Category
	c.Notes = e.Notes
	c.IssueDate = e.IssueDate
	c.ExpiryDate = e.ExpiryDate
	c.IsPrivate = e.IsPrivate
}

// CertificateEdit is the set of fields a user may change after upload.
type CertificateEdit struct {
	Title            string `json:"title"`
	IssuingAuthority string `json:"issuing_authority"`
	Category         string `json:"category"`
	Notes            string `json:"notes"`
	IssueDate        *Date  `json:"issue_date"`
	ExpiryDate       *Date  `json:"expiry_date"`
	IsPrivate        bool   `json:"is_private"`
}

// Normalize trims free text and canonicalises the category.
func (e CertificateEdit) Normalize() CertificateEdit {
	e.Title = strings.TrimSpace(e.Title)
	e.IssuingAuthority = strings.TrimSpace(e.IssuingAuthority)
	e.Notes = strings.TrimSpace(e.Notes)
	e.Category = NormalizeCategory(e.Category)
	return e
}

func (e CertificateEdit) Validate() error {
	if e.Title == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if err := ValidateCategory(e.Category); err != nil {
		return err
	}
	return ValidateDates(e.IssueDate, e.ExpiryDate)
}

// EditOf extracts the editable view of a record.
func EditOf(c *Certificate) CertificateEdit {
	return CertificateEdit{
		Title:            c.Title,
		IssuingAuthority: c.IssuingAuthority,
		Category:         c.Category,
		Notes:            c.Notes,
		IssueDate:        c.IssueDate,
		ExpiryDate:       c.ExpiryDate,
		IsPrivate:        c.IsPrivate,
	}
}
