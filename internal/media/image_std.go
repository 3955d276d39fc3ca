package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the webp decoder
)

// Baseline JPEG ignores ImageOptions.Quality so the fallback stays visually safe.
const baselineJPEGQuality = 85

// PNGEncoder re-encodes images losslessly as PNG after resizing.
type PNGEncoder struct{}

func (PNGEncoder) Name() string { return "png" }

func (PNGEncoder) Available() bool { return true }

func (PNGEncoder) Encode(src []byte, opts ImageOptions) (*EncodedImage, error) {
	img, err := decodeAndFit(src, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return &EncodedImage{Data: buf.Bytes(), MimeType: "image/png", Ext: "png", Width: b.Dx(), Height: b.Dy()}, nil
}

// JPEGEncoder is the baseline fallback.
type JPEGEncoder struct{}

func (JPEGEncoder) Name() string { return "jpeg" }

func (JPEGEncoder) Available() bool { return true }

func (JPEGEncoder) Encode(src []byte, opts ImageOptions) (*EncodedImage, error) {
	img, err := decodeAndFit(src, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: baselineJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return &EncodedImage{Data: buf.Bytes(), MimeType: "image/jpeg", Ext: "jpg", Width: b.Dx(), Height: b.Dy()}, nil
}

func decodeAndFit(src []byte, opts ImageOptions) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := withinBudget(cfg.Width, cfg.Height, opts); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h, resize := fitWithin(b.Dx(), b.Dy(), opts.MaxDimension)
	if !resize {
		return img, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}
