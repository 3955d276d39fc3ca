//go:build !vips

package media

// NewWebPEncoder returns a placeholder when the binary is built without libvips.
// Build with -tags vips (libvips headers required) to get WebP output.
func NewWebPEncoder(bool) ImageEncoder {
	return unavailableEncoder{name: "webp"}
}
