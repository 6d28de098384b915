package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mnguyen/mailbridge/internal/graph"
	"github.com/mnguyen/mailbridge/internal/model"
)

// AttachmentSource downloads attachment bytes from the mail provider.
type AttachmentSource interface {
	DownloadAttachment(
		ctx context.Context,
		folderID, messageID, attachmentID string,
		w io.Writer,
	) error
}

// Relay moves eligible attachments from a message onto its destination
// task: download to scratch storage, upload, delete the local copy.
type Relay struct {
	source     AttachmentSource
	tasks      TaskClient
	scratchDir string
	maxBytes   int64
	logger     *slog.Logger
}

// NewRelay creates an attachment relay. maxBytes is the declared-size
// ceiling above which attachments are skipped without downloading.
func NewRelay(
	source AttachmentSource,
	tasks TaskClient,
	scratchDir string,
	maxBytes int64,
	logger *slog.Logger,
) *Relay {
	return &Relay{
		source:     source,
		tasks:      tasks,
		scratchDir: scratchDir,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// RelayAll relays every eligible attachment of msg onto the task.
// Item attachments and oversized attachments are skipped with a log
// line. A download refused by the server as too large degrades to the
// same skip. Any other download failure propagates; an upload failure
// is logged and the remaining attachments still get their chance.
func (r *Relay) RelayAll(
	ctx context.Context, msg model.Message, taskGID string,
) error {
	for _, att := range msg.Attachments {
		if att.IsItem {
			r.logger.Debug("skipping item attachment",
				slog.String("message_id", msg.ID),
				slog.String("name", att.Name),
			)
			continue
		}
		if att.Size > r.maxBytes {
			r.logger.Warn("skipping oversized attachment",
				slog.String("message_id", msg.ID),
				slog.String("name", att.Name),
				slog.Int64("size", att.Size),
				slog.Int64("limit", r.maxBytes),
			)
			continue
		}

		if err := r.relayOne(ctx, msg, att, taskGID); err != nil {
			if errors.Is(err, graph.ErrTooLarge) {
				r.logger.Warn("skipping attachment refused as too large",
					slog.String("message_id", msg.ID),
					slog.String("name", att.Name),
				)
				continue
			}
			return fmt.Errorf("relaying attachment %q: %w", att.Name, err)
		}
	}

	return nil
}

// relayOne moves a single attachment through scratch storage. The
// local copy is removed on every path out, success or failure.
func (r *Relay) relayOne(
	ctx context.Context,
	msg model.Message,
	att model.Attachment,
	taskGID string,
) error {
	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return fmt.Errorf("creating scratch directory %s: %w", r.scratchDir, err)
	}

	local := filepath.Join(
		r.scratchDir,
		uuid.NewString()+"-"+filepath.Base(att.Name),
	)

	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("creating scratch file %s: %w", local, err)
	}
	defer func() {
		f.Close()
		os.Remove(local)
	}()

	err = r.source.DownloadAttachment(ctx, msg.ParentFolderID, msg.ID, att.ID, f)
	if err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding scratch file %s: %w", local, err)
	}

	if err := r.tasks.UploadAttachment(ctx, taskGID, att.Name, f); err != nil {
		// The task survives with this attachment missing.
		r.logger.Warn("attachment upload failed",
			slog.String("message_id", msg.ID),
			slog.String("task_gid", taskGID),
			slog.String("name", att.Name),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
