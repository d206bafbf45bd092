package filing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mailroom/internal/config"
	"mailroom/internal/fileutil"
	"mailroom/internal/logging"
	"mailroom/internal/queue"
	"mailroom/internal/stage"
)

// Filer moves classified attachments into the archive tree.
type Filer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewFiler constructs the file stage handler.
func NewFiler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Filer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Filer{
		cfg:    cfg,
		store:  store,
		logger: logger.With(logging.String(logging.FieldComponent, "filing")),
		now:    time.Now,
	}
}

// SetLogger replaces the handler logger for the current item.
func (f *Filer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		f.logger = logger.With(logging.String(logging.FieldComponent, "filing"))
	}
}

func (f *Filer) Prepare(ctx context.Context, item *queue.Item) error {
	item.ProgressStage = "Filing"
	item.ProgressMessage = "Preparing archive placement"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	return nil
}

func (f *Filer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)

	staged := strings.TrimSpace(item.StagedPath)
	if staged == "" {
		return stage.Validation("file", "validate inputs", "item has no staged file", nil)
	}
	if strings.TrimSpace(item.MimeType) == "" {
		return stage.Validation("file", "validate inputs", "item has no detected type; classification must run first", nil)
	}
	if _, err := os.Stat(staged); err != nil {
		if os.IsNotExist(err) {
			return stage.Validation("file", "stat staged file", fmt.Sprintf("staged file missing: %s", staged), err)
		}
		return stage.Transient("file", "stat staged file", "unable to read staged file", err)
	}

	archiveDir := strings.TrimSpace(f.cfg.Paths.ArchiveDir)
	if archiveDir == "" {
		return stage.Configuration("file", "resolve archive dir", "archive directory not configured; set archive_dir in mailroom.toml", nil)
	}

	targetDir := f.targetDir(archiveDir, item)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return stage.Transient("file", "create archive dir", fmt.Sprintf("unable to create %s", targetDir), err)
	}

	target, err := f.allocateTarget(targetDir, item)
	if err != nil {
		return err
	}

	f.updateProgress(ctx, item, fmt.Sprintf("Moving into %s", filepath.Base(targetDir)), 40)
	if err := moveFile(staged, target); err != nil {
		return stage.Transient("file", "move into archive", fmt.Sprintf("unable to move %s into archive", filepath.Base(staged)), err)
	}
	item.FinalPath = target
	item.StagedPath = ""
	logger.Info("document archived",
		logging.String("final_path", target),
		logging.String("correspondent", item.Correspondent),
	)

	if f.cfg.Filing.ExportCopies {
		f.updateProgress(ctx, item, "Writing export copy", 80)
		if err := f.exportCopy(ctx, item, target); err != nil {
			logger.Warn("export copy failed", logging.Error(err))
		}
	}

	item.SetProgressComplete("Filing", fmt.Sprintf("Archived as %s", filepath.Base(target)))
	return nil
}

// targetDir builds the archive directory for an item following the
// configured layout: archive[/correspondent][/year].
func (f *Filer) targetDir(archiveDir string, item *queue.Item) string {
	dir := archiveDir
	if f.cfg.Filing.ByCorrespondent {
		correspondent := strings.TrimSpace(item.Correspondent)
		if correspondent == "" {
			correspondent = "unsorted"
		}
		dir = filepath.Join(dir, fileutil.SanitizeFilename(correspondent))
	}
	if f.cfg.Filing.ByYear {
		dir = filepath.Join(dir, strconv.Itoa(f.documentYear(item)))
	}
	return dir
}

func (f *Filer) documentYear(item *queue.Item) int {
	if !item.CreatedAt.IsZero() {
		return item.CreatedAt.Year()
	}
	return f.now().Year()
}

func (f *Filer) allocateTarget(dir string, item *queue.Item) (string, error) {
	name := strings.TrimSpace(item.Title)
	if name == "" {
		name = fileutil.Stem(item.OriginalFilename)
	}
	base := fileutil.SanitizeFilename(name)
	ext := extensionFor(item)

	candidate := filepath.Join(dir, base+ext)
	if f.cfg.Filing.OverwriteExisting {
		return candidate, nil
	}
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}
	const maxAttempts = 10000
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%02d%s", base, attempt, ext))
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", stage.Transient("file", "allocate filename", "unable to probe archive filename", err)
		}
	}
	return "", stage.Transient("file", "allocate filename", fmt.Sprintf("exhausted filename slots for %s in %s", base, dir), nil)
}

func (f *Filer) exportCopy(ctx context.Context, item *queue.Item, finalPath string) error {
	exportDir := strings.TrimSpace(f.cfg.Paths.ExportDir)
	if exportDir == "" {
		return errors.New("export directory not configured")
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return err
	}
	return copyFile(finalPath, filepath.Join(exportDir, filepath.Base(finalPath)))
}

func (f *Filer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, f.logger)
	copied := *item
	copied.ProgressMessage = message
	copied.ProgressPercent = percent
	if err := f.store.Update(ctx, &copied); err != nil {
		logger.Warn("failed to persist filing progress", logging.Error(err))
		return
	}
	*item = copied
}

// extensionFor prefers the extension from the original attachment name and
// falls back to one derived from the detected type.
func extensionFor(item *queue.Item) string {
	if ext := strings.ToLower(filepath.Ext(item.OriginalFilename)); ext != "" {
		return ext
	}
	switch item.MimeType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tiff"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "text/csv":
		return ".csv"
	case "text/html":
		return ".html"
	case "text/plain":
		return ".txt"
	case "application/rtf":
		return ".rtf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	case "application/msword":
		return ".doc"
	case "application/vnd.ms-excel":
		return ".xls"
	case "application/vnd.oasis.opendocument.text":
		return ".odt"
	case "application/vnd.oasis.opendocument.spreadsheet":
		return ".ods"
	}
	return ""
}

// moveFile renames src to dst and falls back to copy+remove when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dst); err != nil {
			return err
		}
		return os.Remove(src)
	}
	return renameErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	// Flush to disk before the caller removes the staged source; a crash
	// in between must not leave a torn archive copy as the only copy.
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// HealthCheck verifies the archive destination is reachable.
func (f *Filer) HealthCheck(ctx context.Context) stage.Health {
	const name = "file"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	archiveDir := strings.TrimSpace(f.cfg.Paths.ArchiveDir)
	if archiveDir == "" {
		return stage.Unhealthy(name, "archive directory not configured")
	}
	if _, err := os.Stat(archiveDir); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("archive directory unavailable: %v", err))
	}
	if f.cfg.Filing.ExportCopies && strings.TrimSpace(f.cfg.Paths.ExportDir) == "" {
		return stage.Unhealthy(name, "export copies enabled without export directory")
	}
	return stage.Healthy(name)
}
