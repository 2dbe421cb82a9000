package pdf

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/pdf-viewer/internal/domain"
)

var disablePdfcpuConfig sync.Once

// Validator provides input validation for document references and uploads
type Validator struct {
	conf *model.Configuration
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	disablePdfcpuConfig.Do(func() {
		// pdfcpu would otherwise create a config directory in the user's home.
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Validator{conf: conf}
}

// ValidateReference checks that a reference names a PDF file inside the store
func (v *Validator) ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return domain.ValidationError("document reference cannot be empty", nil)
	}

	if strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." {
		return domain.ValidationError(fmt.Sprintf("document reference must be a plain file name: %q", ref), nil)
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}

	return nil
}

// ValidatePDF checks that content is a structurally valid PDF
func (v *Validator) ValidatePDF(rs io.ReadSeeker) error {
	if err := api.Validate(rs, v.conf); err != nil {
		return domain.ValidationError("content is not a valid PDF", err)
	}
	return nil
}

// SanitizeFilename reduces an uploaded file name to a safe base name
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return ""
	}
	return cleaned
}
