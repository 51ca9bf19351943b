// internal/extraction/extractor.go
package extraction

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"time"

	"template-verifier/internal/common/errors"
	httpclient "template-verifier/internal/common/http"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/models"
)

// Extractor turns a document image into a field set. Partial results are
// normal; only transport failures are errors.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (models.ExtractedFieldSet, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, imagePath string) (models.ExtractedFieldSet, error)

func (f ExtractorFunc) Extract(ctx context.Context, imagePath string) (models.ExtractedFieldSet, error) {
	return f(ctx, imagePath)
}

type Config struct {
	BaseURL      string        `mapstructure:"base_url"`
	Path         string        `mapstructure:"path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FieldMapping FieldMapping  `mapstructure:"field_mapping"`
}

type extractRequest struct {
	ImagePath string `json:"imagePath"`
}

// HTTPExtractor calls an OCR service and maps its JSON response onto the
// canonical field set.
type HTTPExtractor struct {
	client   *httpclient.Client
	endpoint string
	mapper   *Mapper
	logger   logger.Logger
}

func NewHTTPExtractor(cfg Config, log logger.Logger) (*HTTPExtractor, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.NewValidationError("extractor base_url is required", "base_url")
	}
	if cfg.Path == "" {
		cfg.Path = "/extract"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	mapper, err := NewMapper(cfg.FieldMapping)
	if err != nil {
		return nil, err
	}
	return &HTTPExtractor{
		client:   httpclient.NewClient(cfg.Timeout),
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		mapper:   mapper,
		logger:   log.WithFields(map[string]interface{}{"component": "extractor"}),
	}, nil
}

func (e *HTTPExtractor) Extract(ctx context.Context, imagePath string) (models.ExtractedFieldSet, error) {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return models.ExtractedFieldSet{}, errors.NewValidationError("imagePath is required", "imagePath")
	}

	start := time.Now()
	var payload interface{}
	if err := e.client.PostJSON(ctx, e.endpoint, extractRequest{ImagePath: imagePath}, &payload); err != nil {
		if isTimeout(ctx, err) {
			return models.ExtractedFieldSet{}, errors.NewExtractionTimeoutError(imagePath)
		}
		e.logger.WithError(err).Warn("extraction request failed", map[string]interface{}{
			"imagePath": imagePath,
		})
		return models.ExtractedFieldSet{}, errors.NewExtractionFailedError(imagePath, err)
	}

	fs := e.mapper.Apply(payload)
	e.logger.Debug("extraction completed", map[string]interface{}{
		"imagePath":     imagePath,
		"presentFields": fs.PresentFields(),
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return fs, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
