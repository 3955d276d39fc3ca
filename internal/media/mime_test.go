package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		want        bool
	}{
		{"jpeg by type", "a.jpg", "image/jpeg", true},
		{"type with params", "a.mp4", "video/mp4; codecs=avc1", true},
		{"quicktime", "a.mov", "video/quicktime", true},
		{"generic type falls back to extension", "a.heic", "application/octet-stream", true},
		{"missing type falls back to extension", "clip.WEBM", "", true},
		{"pdf rejected", "a.pdf", "application/pdf", false},
		{"declared type wins over extension", "a.png", "text/html", false},
		{"unknown extension without type", "a.exe", "", false},
		{"markup extension with image type", "evil.html", "image/png", false},
		{"missing extension with image type", "blob", "image/png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.filename, tt.contentType))
		})
	}
}

func TestDetectKind(t *testing.T) {
	kind, mt := DetectKind(&MemoryUpload{Name: "x.mp4", Type: "video/mp4", Data: []byte("x")})
	assert.Equal(t, domain.AttachmentKindVideo, kind)
	assert.Equal(t, "video/mp4", mt)

	kind, _ = DetectKind(&MemoryUpload{Name: "x.bin", Type: "", Data: []byte("plain text")})
	assert.Equal(t, domain.AttachmentKindImage, kind)
}

func TestDetectKindSniffsGenericUploads(t *testing.T) {
	data := pngBytes(t, 4, 4)
	kind, mt := DetectKind(&MemoryUpload{Name: "blob", Type: "application/octet-stream", Data: data})
	assert.Equal(t, domain.AttachmentKindImage, kind)
	assert.Equal(t, "image/png", mt)
}

func TestStoredExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		want     string
	}{
		{"allowed extension kept lowercase", "scan.PNG", []byte("anything"), "png"},
		{"markup renamed to bin", "evil.html", []byte("<html><script>alert(1)</script></html>"), "bin"},
		{"missing extension taken from content", "blob", []byte{0xff, 0xd8, 0xff, 0xe0}, "jpg"},
		{"unknown extension taken from content", "photo.exe", []byte{0xff, 0xd8, 0xff, 0xe0}, "jpg"},
		{"unknown content", "notes.txt", []byte("plain text"), "bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storedExtension(tt.filename, tt.head))
		})
	}
}

func TestServedContentType(t *testing.T) {
	ct, inline := ServedContentType("tickets/1/images/photo-abcdefgh.webp")
	assert.True(t, inline)
	assert.Equal(t, "image/webp", ct)

	ct, inline = ServedContentType("tickets/1/videos/clip-abcdefgh.MOV")
	assert.True(t, inline)
	assert.Equal(t, "video/quicktime", ct)

	ct, inline = ServedContentType("tickets/1/images/evil-abcdefgh.bin")
	assert.False(t, inline)
	assert.Equal(t, "application/octet-stream", ct)
}
