package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mailroom/internal/config"
	"mailroom/internal/fileutil"
	"mailroom/internal/logging"
	"mailroom/internal/queue"
	"mailroom/internal/stage"
)

// supportedTypes lists the document types mailroom files into the archive.
// Order matters: the first matching entry becomes the canonical MIME type
// recorded on the item.
var supportedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/tiff",
	"image/webp",
	"image/gif",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.oasis.opendocument.text",
	"application/vnd.oasis.opendocument.spreadsheet",
	"application/rtf",
	"text/csv",
	"text/html",
	"text/plain",
}

// MatchSupported returns the canonical supported MIME type for a detection
// result, or the empty string when mailroom does not archive the type.
// Ingest uses it to skip unsupported attachments before staging; the
// classify stage uses it to confirm the staged payload.
func MatchSupported(mtype *mimetype.MIME) string {
	if mtype == nil {
		return ""
	}
	for _, candidate := range supportedTypes {
		if mtype.Is(candidate) {
			return candidate
		}
	}
	return ""
}

// Classifier inspects staged attachments and records their detected type.
type Classifier struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewClassifier constructs the classify stage handler.
func NewClassifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{
		cfg:    cfg,
		store:  store,
		logger: logger.With(logging.String(logging.FieldComponent, "classify")),
	}
}

// SetLogger replaces the handler logger for the current item.
func (c *Classifier) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger.With(logging.String(logging.FieldComponent, "classify"))
	}
}

func (c *Classifier) Prepare(ctx context.Context, item *queue.Item) error {
	item.ProgressStage = "Classifying"
	item.ProgressMessage = "Inspecting staged attachment"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	return nil
}

func (c *Classifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)

	staged := strings.TrimSpace(item.StagedPath)
	if staged == "" {
		return stage.Validation("classify", "validate inputs", "item has no staged file; mail ingestion did not record a path", nil)
	}
	info, err := os.Stat(staged)
	if err != nil {
		if os.IsNotExist(err) {
			return stage.Validation("classify", "stat staged file", fmt.Sprintf("staged file missing: %s", staged), err)
		}
		return stage.Transient("classify", "stat staged file", "unable to read staged file", err)
	}
	if info.Size() == 0 {
		return stage.Validation("classify", "validate inputs", "staged file is empty", nil)
	}

	mtype, err := mimetype.DetectFile(staged)
	if err != nil {
		return stage.Transient("classify", "detect type", "content sniffing failed", err)
	}

	detected := MatchSupported(mtype)
	if detected == "" {
		return stage.Unsupported("classify", "detect type", fmt.Sprintf("unsupported document type %s (%s)", mtype.String(), filepath.Base(staged)), nil)
	}

	item.MimeType = detected
	if strings.TrimSpace(item.Title) == "" {
		item.Title = fileutil.Stem(item.OriginalFilename)
	}
	item.SetProgressComplete("Classifying", fmt.Sprintf("Detected %s", detected))

	logger.Info("attachment classified",
		logging.String("mime_type", detected),
		logging.String("staged_file", staged),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

// HealthCheck verifies the classifier can reach the consume directory.
func (c *Classifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "classify"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	consumeDir := strings.TrimSpace(c.cfg.Paths.ConsumeDir)
	if consumeDir == "" {
		return stage.Unhealthy(name, "consume directory not configured")
	}
	if _, err := os.Stat(consumeDir); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("consume directory unavailable: %v", err))
	}
	return stage.Healthy(name)
}
