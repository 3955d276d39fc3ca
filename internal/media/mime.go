package media

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

const (
	genericMimeType = "application/octet-stream"
	sniffLength     = 3072
)

// allowedExtensions maps each accepted extension to the type it is served with.
var allowedExtensions = map[string]string{
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png", "webp": "image/webp",
	"heic": "image/heic", "heif": "image/heif",
	"mp4": "video/mp4", "mov": "video/quicktime", "m4v": "video/x-m4v",
	"avi": "video/x-msvideo", "webm": "video/webm",
}

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/pjpeg":     {},
	"image/png":       {},
	"image/webp":      {},
	"image/heic":      {},
	"image/heif":      {},
	"video/mp4":       {},
	"video/quicktime": {},
	"video/x-m4v":     {},
	"video/x-msvideo": {},
	"video/avi":       {},
	"video/msvideo":   {},
	"video/webm":      {},
}

// AllowedExtensions lists accepted file extensions for messages.
func AllowedExtensions() []string {
	return []string{"jpg", "jpeg", "png", "webp", "heic", "heif", "mp4", "mov", "m4v", "avi", "webm"}
}

// IsAllowed reports whether an upload is an accepted image or video. The extension
// must be on the allow-list, and a declared specific type must be on it too.
func IsAllowed(filename, contentType string) bool {
	_, ext := splitName(filename)
	if _, ok := allowedExtensions[ext]; !ok {
		return false
	}
	mt := normalizeMimeType(contentType)
	if mt != "" && mt != genericMimeType {
		_, ok := allowedMimeTypes[mt]
		return ok
	}
	return true
}

// ServedContentType is the Content-Type a stored file is delivered with, chosen from its
// extension alone. The second result is false for anything off the allow-list, which is
// served as an opaque download.
func ServedContentType(name string) (string, bool) {
	_, ext := splitName(name)
	if ct, ok := allowedExtensions[ext]; ok {
		return ct, true
	}
	return genericMimeType, false
}

// storedExtension picks the extension an original is written with. A client extension
// off the allow-list is replaced by the one matching the sniffed content, or bin.
func storedExtension(filename string, head []byte) string {
	if _, ext := splitName(filename); ext != "" {
		if _, ok := allowedExtensions[ext]; ok {
			return ext
		}
	}
	detected := mimetype.Detect(head)
	ext := strings.TrimPrefix(detected.Extension(), ".")
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return "bin"
}

// DetectKind classifies an upload by declared MIME type, sniffing the content when
// the declaration is missing or generic. Anything that is not a video is an image.
func DetectKind(upload Upload) (domain.AttachmentKind, string) {
	mt := normalizeMimeType(upload.ContentType())
	if mt == "" || mt == genericMimeType {
		mt = sniffMimeType(upload)
	}
	if strings.HasPrefix(mt, "video/") {
		return domain.AttachmentKindVideo, mt
	}
	return domain.AttachmentKindImage, mt
}

func sniffMimeType(upload Upload) string {
	r, err := upload.Open()
	if err != nil {
		return genericMimeType
	}
	defer r.Close()
	detected, err := mimetype.DetectReader(io.LimitReader(r, sniffLength))
	if err != nil {
		return genericMimeType
	}
	return normalizeMimeType(detected.String())
}

func normalizeMimeType(contentType string) string {
	mt := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}
