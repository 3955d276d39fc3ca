//go:build vips

package media

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsOnce  sync.Once
	vipsReady bool
)

func startVips() bool {
	vipsOnce.Do(func() {
		defer func() {
			if recover() != nil {
				vipsReady = false
			}
		}()
		vips.LoggingSettings(nil, vips.LogLevelError)
		vips.Startup(&vips.Config{ConcurrencyLevel: 1})
		vipsReady = true
	})
	return vipsReady
}

// WebPEncoder uses libvips to produce lossy WebP with Lanczos resampling.
type WebPEncoder struct {
	enabled bool
}

// NewWebPEncoder returns the libvips codec; enabled=false keeps it out of the chain.
func NewWebPEncoder(enabled bool) ImageEncoder {
	return &WebPEncoder{enabled: enabled}
}

func (e *WebPEncoder) Name() string { return "webp" }

func (e *WebPEncoder) Available() bool {
	return e.enabled && startVips()
}

func (e *WebPEncoder) Encode(src []byte, opts ImageOptions) (*EncodedImage, error) {
	ref, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer ref.Close()

	if err := withinBudget(ref.Width(), ref.Height(), opts); err != nil {
		return nil, err
	}
	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto rotate: %w", err)
	}
	w, h := ref.Width(), ref.Height()
	if nw, _, resize := fitWithin(w, h, opts.MaxDimension); resize {
		if err := ref.Resize(float64(nw)/float64(w), vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
	}

	params := vips.NewWebpExportParams()
	params.Quality = opts.Quality
	params.StripMetadata = true
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("export webp: %w", err)
	}
	return &EncodedImage{Data: data, MimeType: "image/webp", Ext: "webp", Width: ref.Width(), Height: ref.Height()}, nil
}
