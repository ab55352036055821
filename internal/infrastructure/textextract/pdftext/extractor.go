// Package pdftext extracts raw text from uploaded documents. PDFs are parsed
// directly; image uploads are accepted at the boundary but carry no extractable
// text without OCR, so they surface as unsupported here.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// maxPages caps how much of a PDF is read. Tax forms fit on a page or two;
// anything past this is boilerplate that only inflates the prompt.
const maxPages = 10

// minTextChars is the threshold below which extracted text is useless to the
// field-extraction model.
const minTextChars = 10

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.UploadedDocument, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	var err error
	switch doc.MimeType {
	case "application/pdf":
		text, err = extractPDF(data)
	case "text/plain":
		text = string(data)
	case "image/png", "image/jpeg", "image/jpg":
		return "", domain.WrapError(
			domain.ErrUnsupportedDocument,
			"extract text",
			fmt.Errorf("image upload %s requires OCR, which is not available", doc.Filename),
		)
	default:
		return "", domain.WrapError(
			domain.ErrUnsupportedDocument,
			"extract text",
			fmt.Errorf("unsupported content type %s", doc.MimeType),
		)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", err)
	}

	text = strings.TrimSpace(text)
	if len(text) < minTextChars {
		return "", domain.WrapError(
			domain.ErrInvalidInput,
			"extract text",
			errors.New("document contains too little text for extraction"),
		)
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	var builder strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip a corrupted page rather than failing the document; the
			// length check below catches fully unreadable files.
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
