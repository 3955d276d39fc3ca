package media

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/observability"
	"github.com/spec-kit/grievance-desk/pkg/util/slug"
)

// ErrInvalidUpload marks uploads the transport layer flagged as incomplete.
var ErrInvalidUpload = errors.New("invalid upload")

const (
	outcomeProcessed = "processed"
	outcomeFallback  = "fallback"
	outcomeSkipped   = "skipped"

	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 8
)

// ProcessorDependencies wires the attachment processor.
type ProcessorDependencies struct {
	Store            Store
	Encoders         []ImageEncoder
	Transcoder       Transcoder
	TempDir          string
	Image            ImageOptions
	Video            VideoOptions
	TranscodeTimeout time.Duration
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// Processor turns uploads into stored attachment artifacts.
type Processor struct {
	store            Store
	encoders         []ImageEncoder
	transcoder       Transcoder
	tempDir          string
	image            ImageOptions
	video            VideoOptions
	transcodeTimeout time.Duration
	logger           *zap.Logger
	metrics          *observability.Metrics
}

// NewProcessor constructs a Processor.
func NewProcessor(deps ProcessorDependencies) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tempDir := deps.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Processor{
		store:            deps.Store,
		encoders:         deps.Encoders,
		transcoder:       deps.Transcoder,
		tempDir:          tempDir,
		image:            deps.Image,
		video:            deps.Video,
		transcodeTimeout: deps.TranscodeTimeout,
		logger:           logger,
		metrics:          deps.Metrics,
	}
}

// Process stores one upload under tickets/{ticketID}/{images|videos}/ and returns the
// unsaved attachment record. Codec and transcoder failures degrade to storing the
// original bytes; an error is returned only when nothing could be stored.
func (p *Processor) Process(ctx context.Context, upload Upload, ticketID, ownerID int64) (att *domain.TicketAttachment, err error) {
	if upload == nil || !upload.Valid() {
		p.metrics.RecordAttachment("unknown", outcomeSkipped)
		return nil, ErrInvalidUpload
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("attachment processing panicked",
				zap.Int64("ticket_id", ticketID),
				zap.String("file", upload.Filename()),
				zap.Any("panic", r),
			)
			p.metrics.RecordAttachment("unknown", outcomeSkipped)
			att, err = nil, fmt.Errorf("process attachment: panic: %v", r)
		}
	}()

	kind, mimeType := DetectKind(upload)
	switch kind {
	case domain.AttachmentKindVideo:
		att, err = p.processVideo(ctx, upload, ticketID, mimeType)
	default:
		att, err = p.processImage(ctx, upload, ticketID, mimeType)
	}
	if err != nil {
		p.metrics.RecordAttachment(string(kind), outcomeSkipped)
		return nil, err
	}
	att.TicketID = ticketID
	att.UserID = ownerID
	att.OriginalName = upload.Filename()
	att.Kind = kind
	return att, nil
}

func (p *Processor) processImage(ctx context.Context, upload Upload, ticketID int64, mimeType string) (*domain.TicketAttachment, error) {
	src, err := readAll(upload)
	if err != nil {
		return nil, err
	}

	if err := checkDimensions(src, p.image); err != nil {
		p.logger.Warn("image too large to re-encode, storing original",
			zap.Int64("ticket_id", ticketID),
			zap.String("file", upload.Filename()),
			zap.Error(err),
		)
		return p.storeOriginal(ctx, bytes.NewReader(src), upload, ticketID, domain.AttachmentKindImage, mimeType)
	}

	for _, enc := range p.encoders {
		if !enc.Available() {
			continue
		}
		out, encErr := enc.Encode(src, p.image)
		if encErr != nil {
			p.logger.Warn("image encoder failed",
				zap.String("encoder", enc.Name()),
				zap.Int64("ticket_id", ticketID),
				zap.String("file", upload.Filename()),
				zap.Error(encErr),
			)
			continue
		}
		rel := p.targetPath(ticketID, domain.AttachmentKindImage, upload.Filename(), out.Ext)
		size, putErr := p.store.Put(ctx, rel, bytes.NewReader(out.Data))
		if putErr != nil {
			p.logger.Error("store encoded image failed", zap.String("path", rel), zap.Error(putErr))
			break
		}
		p.metrics.RecordAttachment(string(domain.AttachmentKindImage), outcomeProcessed)
		return &domain.TicketAttachment{Path: rel, MimeType: out.MimeType, Size: size}, nil
	}

	p.logger.Warn("storing original image",
		zap.Int64("ticket_id", ticketID),
		zap.String("file", upload.Filename()),
	)
	return p.storeOriginal(ctx, bytes.NewReader(src), upload, ticketID, domain.AttachmentKindImage, mimeType)
}

func (p *Processor) processVideo(ctx context.Context, upload Upload, ticketID int64, mimeType string) (*domain.TicketAttachment, error) {
	if p.transcoder == nil {
		return p.storeOriginalUpload(ctx, upload, ticketID, domain.AttachmentKindVideo, mimeType)
	}

	_, ext := splitName(upload.Filename())
	if ext == "" {
		ext = "bin"
	}
	id := uuid.NewString()
	inPath := filepath.Join(p.tempDir, "upload-"+id+"."+ext)
	outPath := filepath.Join(p.tempDir, "transcode-"+id+".mp4")
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	if err := writeTemp(upload, inPath); err != nil {
		p.logger.Error("write video temp file failed", zap.String("file", upload.Filename()), zap.Error(err))
		return p.storeOriginalUpload(ctx, upload, ticketID, domain.AttachmentKindVideo, mimeType)
	}

	tctx := ctx
	if p.transcodeTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.transcodeTimeout)
		defer cancel()
	}
	if err := p.transcoder.Transcode(tctx, inPath, outPath, p.video); err != nil {
		p.logger.Warn("video transcode failed, storing original",
			zap.Int64("ticket_id", ticketID),
			zap.String("file", upload.Filename()),
			zap.Error(err),
		)
		return p.storeOriginalUpload(ctx, upload, ticketID, domain.AttachmentKindVideo, mimeType)
	}

	out, err := os.Open(outPath)
	if err != nil {
		p.logger.Warn("transcoded output missing, storing original", zap.String("file", upload.Filename()), zap.Error(err))
		return p.storeOriginalUpload(ctx, upload, ticketID, domain.AttachmentKindVideo, mimeType)
	}
	defer out.Close()

	rel := p.targetPath(ticketID, domain.AttachmentKindVideo, upload.Filename(), "mp4")
	size, err := p.store.Put(ctx, rel, out)
	if err != nil {
		return nil, fmt.Errorf("store transcoded video: %w", err)
	}
	p.metrics.RecordAttachment(string(domain.AttachmentKindVideo), outcomeProcessed)
	return &domain.TicketAttachment{Path: rel, MimeType: "video/mp4", Size: size}, nil
}

func (p *Processor) storeOriginalUpload(ctx context.Context, upload Upload, ticketID int64, kind domain.AttachmentKind, mimeType string) (*domain.TicketAttachment, error) {
	r, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer r.Close()
	return p.storeOriginal(ctx, r, upload, ticketID, kind, mimeType)
}

func (p *Processor) storeOriginal(ctx context.Context, r io.Reader, upload Upload, ticketID int64, kind domain.AttachmentKind, mimeType string) (*domain.TicketAttachment, error) {
	br := bufio.NewReaderSize(r, sniffLength)
	head, err := br.Peek(sniffLength)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read original: %w", err)
	}
	ext := storedExtension(upload.Filename(), head)
	rel := p.targetPath(ticketID, kind, upload.Filename(), ext)
	size, err := p.store.Put(ctx, rel, br)
	if err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}
	if declared := normalizeMimeType(upload.ContentType()); declared != "" {
		mimeType = declared
	}
	p.metrics.RecordAttachment(string(kind), outcomeFallback)
	return &domain.TicketAttachment{Path: rel, MimeType: mimeType, Size: size}, nil
}

// targetPath builds tickets/{id}/{images|videos}/{slug}-{random}.{ext}.
func (p *Processor) targetPath(ticketID int64, kind domain.AttachmentKind, filename, ext string) string {
	stem, _ := splitName(filename)
	base := slug.Make(stem)
	if base == "" {
		base = "file"
	}
	dir := "images"
	if kind == domain.AttachmentKindVideo {
		dir = "videos"
	}
	name := fmt.Sprintf("%s-%s.%s", base, randomSuffix(), ext)
	return path.Join(TicketDir(ticketID), dir, name)
}

// TicketDir is the per-ticket directory relative to the store root.
func TicketDir(ticketID int64) string {
	return fmt.Sprintf("tickets/%d", ticketID)
}

func randomSuffix() string {
	buf := make([]byte, suffixLength)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return uuid.NewString()[:suffixLength]
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return string(buf)
}

func readAll(upload Upload) ([]byte, error) {
	r, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func writeTemp(upload Upload, dst string) error {
	r, err := upload.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// DefaultEncoders is the preferred codec order: WebP via libvips, then PNG, then baseline JPEG.
func DefaultEncoders(vipsEnabled bool) []ImageEncoder {
	return []ImageEncoder{NewWebPEncoder(vipsEnabled), PNGEncoder{}, JPEGEncoder{}}
}
