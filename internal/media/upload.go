package media

import (
	"bytes"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// Upload is one client-supplied file.
type Upload interface {
	Filename() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
	// Valid reports whether the transport delivered the file intact.
	Valid() bool
}

type fileHeaderUpload struct {
	header *multipart.FileHeader
}

// FromFileHeader adapts a multipart part to Upload.
func FromFileHeader(header *multipart.FileHeader) Upload {
	return &fileHeaderUpload{header: header}
}

func (u *fileHeaderUpload) Filename() string { return u.header.Filename }

func (u *fileHeaderUpload) ContentType() string { return u.header.Header.Get("Content-Type") }

func (u *fileHeaderUpload) Size() int64 { return u.header.Size }

func (u *fileHeaderUpload) Open() (io.ReadCloser, error) { return u.header.Open() }

func (u *fileHeaderUpload) Valid() bool {
	return u.header != nil && u.header.Size > 0 && strings.TrimSpace(u.header.Filename) != ""
}

// MemoryUpload is an in-memory Upload, used by callers that already hold the bytes.
type MemoryUpload struct {
	Name string
	Type string
	Data []byte
}

func (u *MemoryUpload) Filename() string { return u.Name }

func (u *MemoryUpload) ContentType() string { return u.Type }

func (u *MemoryUpload) Size() int64 { return int64(len(u.Data)) }

func (u *MemoryUpload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(u.Data)), nil
}

func (u *MemoryUpload) Valid() bool {
	return len(u.Data) > 0 && strings.TrimSpace(u.Name) != ""
}

// splitName returns the client file name's stem and lowercase extension without the dot.
// Directory components are discarded.
func splitName(name string) (string, string) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem, strings.ToLower(strings.TrimPrefix(ext, "."))
}
