// Package bridge contains the mail-to-task pipeline: the per-message
// processor, the attachment relay, and the runner that walks a mail
// folder and drives them under the idempotency ledger.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mnguyen/mailbridge/internal/asana"
	"github.com/mnguyen/mailbridge/internal/htmlstrip"
	"github.com/mnguyen/mailbridge/internal/model"
)

// ErrInvalidJobNumber is returned when the folder path's trailing
// segment cannot be parsed as an integer job number.
var ErrInvalidJobNumber = errors.New("job number is not numeric")

// TaskClient is the slice of the Asana client the pipeline uses.
type TaskClient interface {
	CreateTask(ctx context.Context, task asana.NewTask) (string, error)
	AddTaskToSection(ctx context.Context, sectionGID, taskGID string) error
	UpdateCustomFields(
		ctx context.Context, taskGID string, fields map[string]interface{},
	) error
	UploadAttachment(
		ctx context.Context, taskGID, filename string, file io.Reader,
	) error
}

// Processor turns one mail message into one destination task.
type Processor struct {
	tasks  TaskClient
	relay  *Relay
	cfg    *model.Config
	logger *slog.Logger
}

// NewProcessor creates a message processor.
func NewProcessor(
	tasks TaskClient,
	relay *Relay,
	cfg *model.Config,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		tasks:  tasks,
		relay:  relay,
		cfg:    cfg,
		logger: logger,
	}
}

// Process creates the destination task for msg and returns its GID.
// The task is created first, then filed into a section (non-fatal on
// failure), then given its custom field values, and finally the
// message's attachments are relayed onto it. Any error other than the
// section move propagates to the caller, which must then leave the
// ledger untouched so the message is retried on the next run.
func (p *Processor) Process(
	ctx context.Context, msg model.Message, tags model.RoutingTags,
) (string, error) {
	subject := msg.Subject
	if subject == "" {
		subject = "(No Subject)"
	}

	notes := ComposeNotes(tags, msg)

	taskGID, err := p.tasks.CreateTask(ctx, asana.NewTask{
		Name:      subject,
		Notes:     notes,
		Projects:  []string{p.cfg.ProjectID},
		Workspace: p.cfg.WorkspaceID,
	})
	if err != nil {
		return "", err
	}

	sectionGID := p.routeSection(subject)
	if err := p.tasks.AddTaskToSection(ctx, sectionGID, taskGID); err != nil {
		// The task exists, just unfiled; not worth failing the message.
		p.logger.Warn("filing task into section failed",
			slog.String("task_gid", taskGID),
			slog.String("section_gid", sectionGID),
			slog.String("error", err.Error()),
		)
	}

	fields, err := p.customFields(tags)
	if err != nil {
		return "", err
	}
	if err := p.tasks.UpdateCustomFields(ctx, taskGID, fields); err != nil {
		return "", err
	}

	if err := p.relay.RelayAll(ctx, msg, taskGID); err != nil {
		return "", err
	}

	return taskGID, nil
}

// routeSection picks the destination section by scanning the subject
// for keyword triggers in fixed priority order: budget, then quotation,
// then order confirmation. The first matching trigger whose section is
// configured wins; otherwise the default section is used. Only one
// section is ever chosen, even when several keywords appear.
func (p *Processor) routeSection(subject string) string {
	lower := strings.ToLower(subject)

	routes := []struct {
		keyword string
		section string
	}{
		{"budget", p.cfg.BudgetSectionID},
		{"quotation", p.cfg.QuotationSectionID},
		{"order confirmation", p.cfg.OrderSectionID},
	}
	for _, r := range routes {
		if r.section != "" && strings.Contains(lower, r.keyword) {
			return r.section
		}
	}

	return p.cfg.DefaultSectionID
}

// customFields builds the custom field update payload. The location is
// free text; the job number must parse as an integer.
func (p *Processor) customFields(
	tags model.RoutingTags,
) (map[string]interface{}, error) {
	jobNumber, err := strconv.Atoi(strings.TrimSpace(tags.JobNumber))
	if err != nil {
		return nil, fmt.Errorf("job number %q: %w", tags.JobNumber, ErrInvalidJobNumber)
	}

	return map[string]interface{}{
		p.cfg.LocationFieldID:  tags.Location,
		p.cfg.JobNumberFieldID: jobNumber,
	}, nil
}

// ExtractBody returns the message text under the fixed fallback
// contract: the structured body content when non-empty, otherwise the
// provider's preview text, otherwise the empty string. It never fails.
// Text that looks like markup (leading angle bracket after trimming,
// or a body the provider flagged as HTML) is stripped to plain text.
func ExtractBody(msg model.Message) string {
	text := msg.Body
	usedBody := true
	if strings.TrimSpace(text) == "" {
		text = msg.BodyPreview
		usedBody = false
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<") || (usedBody && msg.BodyIsHTML) {
		return htmlstrip.Strip(text)
	}
	return text
}

// ComposeNotes renders the fixed-format notes block: routing tags,
// sender, received timestamp, blank line, body text.
func ComposeNotes(tags model.RoutingTags, msg model.Message) string {
	received := ""
	if !msg.Received.IsZero() {
		received = msg.Received.Format(time.RFC3339)
	}

	return fmt.Sprintf(
		"**Location:** %s\n**Job #:** %s\n**From:** %s\n**Received:** %s\n\n%s",
		tags.Location,
		tags.JobNumber,
		msg.Sender,
		received,
		ExtractBody(msg),
	)
}
