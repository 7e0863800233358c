package domain

import (
	"strings"
	"time"
)

type DocumentCategory string

const (
	CategoryFormalLaw            DocumentCategory = "formal_law"
	CategoryCircular             DocumentCategory = "circular"
	CategoryImplementationPolicy DocumentCategory = "implementation_policy"
	CategoryWorkInstruction      DocumentCategory = "work_instruction"
)

func DocumentCategories() []DocumentCategory {
	return []DocumentCategory{
		CategoryFormalLaw,
		CategoryCircular,
		CategoryImplementationPolicy,
		CategoryWorkInstruction,
	}
}

func ParseDocumentCategory(raw string) (DocumentCategory, error) {
	switch c := DocumentCategory(strings.TrimSpace(raw)); c {
	case CategoryFormalLaw, CategoryCircular, CategoryImplementationPolicy, CategoryWorkInstruction:
		return c, nil
	default:
		return "", Failf(ErrInvalidInput, "Invalid category: %s", raw)
	}
}

type DocumentClassification string

const (
	ClassificationPublic     DocumentClassification = "public"
	ClassificationLimitedUse DocumentClassification = "limited_use"
	ClassificationRestricted DocumentClassification = "restricted"
)

func DocumentClassifications() []DocumentClassification {
	return []DocumentClassification{
		ClassificationPublic,
		ClassificationLimitedUse,
		ClassificationRestricted,
	}
}

func ParseDocumentClassification(raw string) (DocumentClassification, error) {
	switch c := DocumentClassification(strings.TrimSpace(raw)); c {
	case ClassificationPublic, ClassificationLimitedUse, ClassificationRestricted:
		return c, nil
	default:
		return "", Failf(ErrInvalidInput, "Invalid classification: %s", raw)
	}
}

// Document is either a stored file or an external reference, never both.
type Document struct {
	ID               string                 `json:"id"`
	SubmissionID     string                 `json:"submission_id"`
	Category         DocumentCategory       `json:"category"`
	Classification   DocumentClassification `json:"classification"`
	ExternalURL      *string                `json:"external_url"`
	ExternalTitle    *string                `json:"external_title"`
	Filename         *string                `json:"filename"`
	OriginalFilename *string                `json:"original_filename"`
	FilePath         *string                `json:"-"`
	FileSize         *int64                 `json:"file_size"`
	MimeType         *string                `json:"mime_type"`
	PageCount        *int                   `json:"page_count"`
	Description      *string                `json:"description"`
	CreatedAt        time.Time              `json:"created_at"`
}

func (d Document) IsFile() bool {
	return d.FilePath != nil
}
