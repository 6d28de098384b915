package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mnguyen/mailbridge/internal/graph"
	"github.com/mnguyen/mailbridge/internal/ledger"
	"github.com/mnguyen/mailbridge/internal/model"
)

// MailSource is the slice of the Graph client the runner uses.
type MailSource interface {
	ResolveFolderPath(ctx context.Context, segments []string) (string, error)
	ListMessages(
		ctx context.Context,
		folderID string,
		fn func(model.Message) error,
	) error
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	// Processed counts messages turned into tasks this run.
	Processed int

	// AlreadyDone counts messages skipped because the ledger already
	// held their identifier.
	AlreadyDone int

	// Failed counts messages whose processing errored; they stay out of
	// the ledger and are retried on the next run.
	Failed int

	// Skipped counts messages passed over by the dry-run mode.
	Skipped int
}

// Runner walks the configured mail folder and drives each unprocessed
// message through the processor, recording successes in the ledger.
// Processing is strictly sequential, one message at a time, with a
// fixed delay between messages to respect the task API's rate limits.
type Runner struct {
	mail      MailSource
	processor *Processor
	ledger    *ledger.Ledger
	cfg       *model.Config
	logger    *slog.Logger
	dryRun    bool
}

// NewRunner creates a pipeline runner. With dryRun set, messages are
// inspected and logged but no task is created and the ledger is left
// untouched.
func NewRunner(
	mail MailSource,
	processor *Processor,
	ldg *ledger.Ledger,
	cfg *model.Config,
	logger *slog.Logger,
	dryRun bool,
) *Runner {
	return &Runner{
		mail:      mail,
		processor: processor,
		ledger:    ldg,
		cfg:       cfg,
		logger:    logger,
		dryRun:    dryRun,
	}
}

// Run executes one full pass over the configured folder. Folder
// resolution failure is fatal and aborts the run. A transport failure
// mid-pagination stops the walk for this folder but is not fatal:
// messages already yielded have been processed, and the remainder is
// picked up on the next run. Per-message failures are logged, leave
// the ledger untouched, and never abort the run.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	folderID, err := r.mail.ResolveFolderPath(ctx, r.cfg.MailFolderPath)
	if err != nil {
		return stats, fmt.Errorf(
			"resolving folder path %s: %w",
			graph.FolderPathString(r.cfg.MailFolderPath), err,
		)
	}
	r.logger.Info("resolved mail folder",
		slog.String("path", graph.FolderPathString(r.cfg.MailFolderPath)),
		slog.String("folder_id", folderID),
	)

	tags := model.TagsFromFolderPath(r.cfg.MailFolderPath)
	delay := time.Duration(r.cfg.MessageDelayMS) * time.Millisecond

	walkErr := r.mail.ListMessages(ctx, folderID, func(msg model.Message) error {
		if r.ledger.Contains(msg.ID) {
			stats.AlreadyDone++
			return nil
		}

		if r.dryRun {
			stats.Skipped++
			r.logger.Info("dry run: would create task",
				slog.String("message_id", msg.ID),
				slog.String("subject", msg.Subject),
			)
			return nil
		}

		taskGID, err := r.processor.Process(ctx, msg, tags)
		if err != nil {
			stats.Failed++
			r.logger.Error("processing message failed",
				slog.String("message_id", msg.ID),
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
		} else {
			// Record only after the message is fully processed. A ledger
			// write failure is fatal: continuing without durable records
			// would duplicate every remaining message on the next run.
			if err := r.ledger.Record(msg.ID); err != nil {
				return err
			}

			stats.Processed++
			r.logger.Info("created task",
				slog.String("message_id", msg.ID),
				slog.String("task_gid", taskGID),
				slog.String("subject", msg.Subject),
			)
		}

		// A failed attempt issued task API calls too, so it counts
		// against the rate limit just like a success.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		return nil
	})
	if walkErr != nil {
		r.logger.Error("message walk stopped early",
			slog.String("folder_id", folderID),
			slog.String("error", walkErr.Error()),
		)
	}

	r.logger.Info("run complete",
		slog.Int("processed", stats.Processed),
		slog.Int("already_done", stats.AlreadyDone),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
	)

	return stats, nil
}
