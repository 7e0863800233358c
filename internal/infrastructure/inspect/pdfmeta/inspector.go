package pdfmeta

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

type pathResolver interface {
	Resolve(key string) (string, error)
}

// Inspector reads the page count of stored PDF files. Other MIME types are skipped.
type Inspector struct {
	files pathResolver
}

func NewInspector(files pathResolver) *Inspector {
	return &Inspector{files: files}
}

func (i *Inspector) Inspect(ctx context.Context, key, mimeType string) (out domain.FileInspection, err error) {
	if mimeType != "application/pdf" {
		return domain.FileInspection{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.FileInspection{}, err
	}

	path, err := i.files.Resolve(key)
	if err != nil {
		return domain.FileInspection{}, fmt.Errorf("resolve pdf: %w", err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			out = domain.FileInspection{}
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.FileInspection{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	return domain.FileInspection{PageCount: &pages}, nil
}
