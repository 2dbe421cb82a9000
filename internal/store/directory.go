// Package store provides the document sources, listers and upload bookkeeping
// behind the viewer.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spherical/pdf-viewer/internal/domain"
)

// ErrTooLarge is returned by Save when the upload exceeds the size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Directory stores documents as files in a single folder.
type Directory struct {
	root string
}

// NewDirectory creates the folder if needed.
func NewDirectory(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("create upload folder %s", root), err)
	}
	return &Directory{root: root}, nil
}

// Root returns the folder path.
func (d *Directory) Root() string {
	return d.root
}

// List returns every .pdf file in the folder sorted by name.
func (d *Directory) List(ctx context.Context) ([]domain.DocumentInfo, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, domain.IOError("read upload folder", err)
	}

	docs := make([]domain.DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isPDFName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, domain.DocumentInfo{
			Reference:  entry.Name(),
			Size:       info.Size(),
			UploadedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Reference < docs[j].Reference })
	return docs, nil
}

// Fetch opens the referenced file.
func (d *Directory) Fetch(ctx context.Context, reference string) (io.ReadCloser, error) {
	path, err := d.Path(reference)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return f, nil
}

// Path resolves a reference to a file inside the folder.
func (d *Directory) Path(reference string) (string, error) {
	if reference == "" || reference != filepath.Base(reference) || reference == "." || reference == ".." {
		return "", fmt.Errorf("%w: %q", domain.ErrNotFound, reference)
	}
	return filepath.Join(d.root, reference), nil
}

// Save writes r to the folder under name, replacing any existing file. At most
// maxBytes are accepted when maxBytes is positive.
func (d *Directory) Save(ctx context.Context, name string, r io.Reader, maxBytes int64) (domain.DocumentInfo, error) {
	path, err := d.Path(name)
	if err != nil {
		return domain.DocumentInfo{}, err
	}

	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return domain.DocumentInfo{}, domain.IOError("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), src)
	closeErr := tmp.Close()
	if err != nil {
		return domain.DocumentInfo{}, domain.IOError("write upload", err)
	}
	if closeErr != nil {
		return domain.DocumentInfo{}, domain.IOError("close upload", closeErr)
	}
	if maxBytes > 0 && n > maxBytes {
		return domain.DocumentInfo{}, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return domain.DocumentInfo{}, domain.IOError("store upload", err)
	}

	return domain.DocumentInfo{
		Reference:  name,
		Size:       n,
		SHA256:     hex.EncodeToString(hash.Sum(nil)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
