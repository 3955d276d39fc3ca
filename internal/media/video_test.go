package media

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("/tmp/in.mov", "/tmp/out.mp4", VideoOptions{MaxWidth: 1280, MaxHeight: 720, Preset: "veryfast", CRF: 26})
	joined := strings.Join(args, " ")

	assert.Equal(t, "-y", args[0])
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
	assert.Contains(t, joined, "-i /tmp/in.mov")
	assert.Contains(t, joined, "-c:v libx264 -preset veryfast -crf 26")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-movflags +faststart")
	assert.Contains(t, joined, "min(1280,iw)")
	assert.Contains(t, joined, "min(720,ih)")
}

func TestFFmpegTranscoderMissingBinary(t *testing.T) {
	tr := NewFFmpegTranscoder("/nonexistent/ffmpeg-binary")
	err := tr.Transcode(context.Background(), "in", "out", VideoOptions{})
	assert.Error(t, err)
}
