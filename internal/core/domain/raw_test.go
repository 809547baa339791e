package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRawDocument_Fields tests RawDocument structure fields
func TestRawDocument_Fields(t *testing.T) {
	raw := RawDocument{
		URI:      "/corpus/contract.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("PDF content here"),
		Metadata: map[string]any{"size": 1024},
	}

	assert.Equal(t, "/corpus/contract.pdf", raw.URI)
	assert.Equal(t, "application/pdf", raw.MIMEType)
	assert.Equal(t, []byte("PDF content here"), raw.Content)
	assert.Equal(t, 1024, raw.Metadata["size"])
	assert.Equal(t, KindPDF, raw.Kind())
}

// TestResolveFileKind tests MIME resolution with extension fallback
func TestResolveFileKind(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		path     string
		expected FileKind
	}{
		{"pdf mime", "application/pdf", "doc.bin", KindPDF},
		{"png mime", "image/png", "scan", KindImage},
		{"jpeg mime", "image/jpeg", "", KindImage},
		{"text mime with charset", "text/plain; charset=utf-8", "notes", KindPlainText},
		{"mime is case insensitive", "Application/PDF", "", KindPDF},
		{"mime wins over extension", "text/plain", "act.pdf", KindPlainText},
		{"empty mime uses extension", "", "act.pdf", KindPDF},
		{"octet stream uses extension", "application/octet-stream", "scan.TIFF", KindImage},
		{"unknown mime uses extension", "application/x-unknown", "notes.txt", KindPlainText},
		{"markdown extension", "", "README.md", KindPlainText},
		{"unsupported mime and extension", "application/zip", "bundle.zip", KindUnsupported},
		{"nothing to go on", "", "", KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveFileKind(tt.mimeType, tt.path))
		})
	}
}

// TestFileKind_String tests FileKind names
func TestFileKind_String(t *testing.T) {
	assert.Equal(t, "pdf", KindPDF.String())
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "text", KindPlainText.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
}

// TestMIMETypeForKind tests canonical MIME types round trip through resolution
func TestMIMETypeForKind(t *testing.T) {
	for _, k := range []FileKind{KindPDF, KindImage, KindPlainText} {
		assert.Equal(t, k, ResolveFileKind(MIMETypeForKind(k), ""))
	}
	assert.Equal(t, "application/octet-stream", MIMETypeForKind(KindUnsupported))
}

// TestChangeType_String tests change type names
func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "created", ChangeCreated.String())
	assert.Equal(t, "updated", ChangeUpdated.String())
	assert.Equal(t, "deleted", ChangeDeleted.String())
	assert.Equal(t, "Unknown", ChangeType(99).String())
}
