// Package images re-hosts product images: download, resize, compress to
// JPEG and upload under a key derived from the source URL.
package images

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

var (
	ErrDownload = errors.New("image download failed")
	ErrDecode   = errors.New("image decode failed")
	ErrUpload   = errors.New("image upload failed")
)

// Outcome is the per-image result.
type Outcome string

const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeReused   Outcome = "reused"
	OutcomeFailed   Outcome = "failed"
)

// ObjectStorage is where processed images are kept.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	URL(ctx context.Context, key string) (string, error)
}

// ImageOutcome reports what happened to one source image.
type ImageOutcome struct {
	SourceURL string
	Outcome   Outcome
	StoredURL string
	Key       string
	Width     int
	Height    int
	Bytes     int
	Quality   int
	Error     error
}

// Options tune the compression loop. Zero values take the defaults.
type Options struct {
	Concurrency       int
	MaxDimension      int
	FallbackDimension int
	MaxBytes          int
	StartQuality      int
	MinQuality        int
	QualityStep       int
	MaxDownloadBytes  int64
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 2
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = 1200
	}
	if o.FallbackDimension <= 0 {
		o.FallbackDimension = 800
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 500 * 1024
	}
	if o.StartQuality <= 0 {
		o.StartQuality = 80
	}
	if o.MinQuality <= 0 {
		o.MinQuality = 60
	}
	if o.QualityStep <= 0 {
		o.QualityStep = 10
	}
	if o.MaxDownloadBytes <= 0 {
		o.MaxDownloadBytes = 25 << 20
	}
	return o
}

// Processor downloads, recompresses and uploads images.
type Processor struct {
	storage ObjectStorage
	client  *http.Client
	opts    Options
	logger  *zap.Logger
}

func NewProcessor(storage ObjectStorage, client *http.Client, opts Options, logger *zap.Logger) *Processor {
	if client == nil {
		client = utils.NewDownloadClient(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		storage: storage,
		client:  client,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// ObjectKey is folder/<first 32 hex chars of blake2b-256(sourceURL)>.jpg.
// The same source always maps to the same key.
func ObjectKey(folder, sourceURL string) string {
	sum := blake2b.Sum256([]byte(sourceURL))
	name := hex.EncodeToString(sum[:])[:32] + ".jpg"
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// ProcessImages handles urls concurrently and returns one outcome per url in
// input order. Failures are reported per image and never abort the batch.
func (p *Processor) ProcessImages(ctx context.Context, urls []string, folder string) []ImageOutcome {
	outcomes := make([]ImageOutcome, len(urls))
	semaphore := make(chan struct{}, p.opts.Concurrency)
	var wg sync.WaitGroup

	for i, src := range urls {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[i] = p.processOne(ctx, src, folder)
		}(i, src)
	}
	wg.Wait()

	uploaded, reused, failed := Tally(outcomes)
	p.logger.Info("Processed images",
		zap.String("folder", folder),
		zap.Int("uploaded", uploaded),
		zap.Int("reused", reused),
		zap.Int("failed", failed),
	)
	return outcomes
}

func (p *Processor) processOne(ctx context.Context, src, folder string) ImageOutcome {
	key := ObjectKey(folder, src)
	out := ImageOutcome{SourceURL: src, Key: key}
	fail := func(err error) ImageOutcome {
		out.Outcome = OutcomeFailed
		out.Error = err
		p.logger.Warn("Image failed", zap.String("url", src), zap.Error(err))
		return out
	}

	if exists, err := p.storage.Exists(ctx, key); err != nil {
		p.logger.Debug("Exists check failed, processing anyway", zap.String("key", key), zap.Error(err))
	} else if exists {
		stored, err := p.storage.URL(ctx, key)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrUpload, err))
		}
		out.Outcome = OutcomeReused
		out.StoredURL = stored
		return out
	}

	data, _, err := utils.Download(ctx, p.client, src, p.opts.MaxDownloadBytes)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDownload, err))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDecode, err))
	}

	enc := p.Compress(img)
	stored, err := p.storage.Upload(ctx, key, enc.Data, "image/jpeg")
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUpload, err))
	}

	out.Outcome = OutcomeUploaded
	out.StoredURL = stored
	out.Width, out.Height = enc.Width, enc.Height
	out.Bytes = len(enc.Data)
	out.Quality = enc.Quality
	return out
}

// Encoded is a compressed JPEG and the parameters that produced it.
type Encoded struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
}

// Compress fits img inside MaxDimension and lowers JPEG quality until the
// result fits MaxBytes or MinQuality is reached. If it is still too big it
// re-fits to FallbackDimension at MinQuality. The smallest attempt is
// returned even when it is over budget.
func (p *Processor) Compress(img image.Image) Encoded {
	o := p.opts
	fitted := imaging.Fit(img, o.MaxDimension, o.MaxDimension, imaging.Lanczos)

	var best Encoded
	for q := o.StartQuality; q >= o.MinQuality; q -= o.QualityStep {
		enc := encodeJPEG(fitted, q)
		if best.Data == nil || len(enc.Data) < len(best.Data) {
			best = enc
		}
		if len(enc.Data) <= o.MaxBytes {
			return enc
		}
	}

	smaller := imaging.Fit(img, o.FallbackDimension, o.FallbackDimension, imaging.Lanczos)
	enc := encodeJPEG(smaller, o.MinQuality)
	if len(enc.Data) < len(best.Data) {
		best = enc
	}
	return best
}

func encodeJPEG(img image.Image, quality int) Encoded {
	var buf bytes.Buffer
	// Encoding an in-memory image into a bytes.Buffer cannot fail
	_ = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	b := img.Bounds()
	return Encoded{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), Quality: quality}
}

// StoredURLs returns the stored URLs of successful outcomes in order.
func StoredURLs(outcomes []ImageOutcome) []string {
	urls := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Outcome != OutcomeFailed && o.StoredURL != "" {
			urls = append(urls, o.StoredURL)
		}
	}
	return urls
}

// Tally counts outcomes by kind.
func Tally(outcomes []ImageOutcome) (uploaded, reused, failed int) {
	for _, o := range outcomes {
		switch o.Outcome {
		case OutcomeUploaded:
			uploaded++
		case OutcomeReused:
			reused++
		default:
			failed++
		}
	}
	return
}

// UploadStatus summarizes a batch for the scraped product row: uploaded if
// at least one image is stored, failed otherwise.
func UploadStatus(outcomes []ImageOutcome) models.ImageUploadStatus {
	if len(StoredURLs(outcomes)) > 0 {
		return models.ImagesUploaded
	}
	return models.ImagesFailed
}
