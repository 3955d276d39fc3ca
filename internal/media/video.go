package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoOptions bounds the transcoded output.
type VideoOptions struct {
	MaxWidth  int
	MaxHeight int
	Preset    string
	CRF       int
}

// Transcoder converts the video at inPath into a web-friendly MP4 at outPath.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath string, opts VideoOptions) error
}

// FFmpegTranscoder shells out to the ffmpeg binary.
type FFmpegTranscoder struct {
	Binary string
}

// NewFFmpegTranscoder defaults the binary name to "ffmpeg" on PATH.
func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{Binary: binary}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inPath, outPath string, opts VideoOptions) error {
	cmd := exec.CommandContext(ctx, t.Binary, ffmpegArgs(inPath, outPath, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// ffmpegArgs encodes H.264/AAC scaled to fit the bounds with even dimensions and
// moves the moov atom to the front for progressive playback.
func ffmpegArgs(inPath, outPath string, opts VideoOptions) []string {
	w, h := opts.MaxWidth, opts.MaxHeight
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	preset := opts.Preset
	if preset == "" {
		preset = "veryfast"
	}
	crf := opts.CRF
	if crf <= 0 {
		crf = 26
	}
	scale := fmt.Sprintf(
		"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2",
		w, h)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-vf", scale,
		"-c:v", "libx264", "-preset", preset, "-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
