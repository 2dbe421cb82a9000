package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/pdf-viewer/internal/domain"
)

func TestValidator_ValidateReference(t *testing.T) {
	v := NewValidator()

	valid := []string{"report.pdf", "Report.PDF", "a-b_c.pdf", "my..report.pdf"}
	for _, ref := range valid {
		assert.NoError(t, v.ValidateReference(ref), ref)
	}

	invalid := []string{"", "  ", "notes.txt", "noext", "../x.pdf", "dir/x.pdf", `dir\x.pdf`, "..", "."}
	for _, ref := range invalid {
		err := v.ValidateReference(ref)
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation), "%q", ref)
	}
}

func TestValidator_ValidatePDF(t *testing.T) {
	v := NewValidator()
	err := v.ValidatePDF(strings.NewReader("definitely not a pdf"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":           "report.pdf",
		"my report.pdf":        "my_report.pdf",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\file.pdf`: "file.pdf",
		"..":                   "",
		"résumé 2024.pdf":      "rsum_2024.pdf",
		".hidden.pdf":          "hidden.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestSanitizeFilename_OutputIsAValidReference(t *testing.T) {
	v := NewValidator()
	names := []string{
		"my..report.pdf",
		"report...final.pdf",
		"../../secret..pdf",
		`..\..\draft.pdf`,
		"  spaced  out .pdf",
		"-dash-.pdf",
		"x.pdf",
	}
	for _, name := range names {
		ref := SanitizeFilename(name)
		if ref == "" {
			continue
		}
		assert.NoError(t, v.ValidateReference(ref), "%q sanitised to %q", name, ref)
	}
}
