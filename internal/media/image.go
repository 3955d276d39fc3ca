package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

// DefaultMaxPixels bounds the decoded size of a source image.
const DefaultMaxPixels = 50_000_000

// ImageOptions controls re-encoding of still images.
type ImageOptions struct {
	// MaxDimension caps the longer side; smaller images keep their size.
	MaxDimension int
	// Quality applies to lossy output formats, 1-100.
	Quality int
	// MaxPixels caps width*height of the source; zero means DefaultMaxPixels.
	MaxPixels int
}

func (o ImageOptions) pixelBudget() int {
	if o.MaxPixels > 0 {
		return o.MaxPixels
	}
	return DefaultMaxPixels
}

// EncodedImage is a re-encoded image ready to be stored.
type EncodedImage struct {
	Data     []byte
	MimeType string
	Ext      string
	Width    int
	Height   int
}

// ImageEncoder is one codec strategy in the image fallback chain.
type ImageEncoder interface {
	Name() string
	// Available reports whether the codec can run in this process.
	Available() bool
	Encode(src []byte, opts ImageOptions) (*EncodedImage, error)
}

var (
	// ErrNoEncoder is returned when every encoder in the chain is unavailable or failed.
	ErrNoEncoder = errors.New("no image encoder succeeded")
	// ErrImageTooLarge is returned for sources above the pixel budget.
	ErrImageTooLarge = errors.New("image exceeds pixel budget")
)

// checkDimensions rejects sources whose declared size exceeds the pixel budget.
// Only the header is read. A header Go cannot parse is not an error here.
func checkDimensions(src []byte, opts ImageOptions) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil
	}
	return withinBudget(cfg.Width, cfg.Height, opts)
}

func withinBudget(w, h int, opts ImageOptions) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if int64(w)*int64(h) > int64(opts.pixelBudget()) {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, w, h)
	}
	return nil
}

// fitWithin scales w x h down so that neither side exceeds max, preserving aspect ratio.
// The second result is false when no resize is needed.
func fitWithin(w, h, max int) (int, int, bool) {
	if max <= 0 || w <= 0 || h <= 0 || (w <= max && h <= max) {
		return w, h, false
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh, true
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max, true
}

type unavailableEncoder struct {
	name string
}

func (e unavailableEncoder) Name() string { return e.name }

func (e unavailableEncoder) Available() bool { return false }

func (e unavailableEncoder) Encode([]byte, ImageOptions) (*EncodedImage, error) {
	return nil, ErrNoEncoder
}
