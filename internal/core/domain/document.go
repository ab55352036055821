package domain

import "strings"

type DocumentType string

const (
	DocTypeW2       DocumentType = "W-2"
	DocType1099INT  DocumentType = "1099-INT"
	DocType1099NEC  DocumentType = "1099-NEC"
	DocType1099DIV  DocumentType = "1099-DIV"
	DocType1099MISC DocumentType = "1099-MISC"
	DocTypeOther    DocumentType = "Other"
)

// ParseDocumentType normalizes an extraction-service document type string.
// Anything outside the supported enum maps to DocTypeOther.
func ParseDocumentType(s string) DocumentType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "W-2", "W2":
		return DocTypeW2
	case "1099-INT":
		return DocType1099INT
	case "1099-NEC":
		return DocType1099NEC
	case "1099-DIV":
		return DocType1099DIV
	case "1099-MISC":
		return DocType1099MISC
	default:
		return DocTypeOther
	}
}

func (t DocumentType) Supported() bool {
	return t != DocTypeOther && t != ""
}

// UploadedDocument describes one request-scoped upload. The raw bytes are
// held by the request's DocumentStore, never on this struct, and the struct
// carries no serialization tags on purpose: it must not outlive the request.
type UploadedDocument struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
}

// AllowedMimeTypes is the upload boundary allow-list.
var AllowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
}
