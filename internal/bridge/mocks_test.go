package bridge_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/mnguyen/mailbridge/internal/asana"
	"github.com/mnguyen/mailbridge/internal/model"
)

// taskClientMock implements bridge.TaskClient with overridable funcs.
type taskClientMock struct {
	CreateTaskFunc         func(ctx context.Context, task asana.NewTask) (string, error)
	AddTaskToSectionFunc   func(ctx context.Context, sectionGID, taskGID string) error
	UpdateCustomFieldsFunc func(ctx context.Context, taskGID string, fields map[string]interface{}) error
	UploadAttachmentFunc   func(ctx context.Context, taskGID, filename string, file io.Reader) error

	created  []asana.NewTask
	sections []string
	fields   []map[string]interface{}
	uploads  []string
}

func (m *taskClientMock) CreateTask(
	ctx context.Context, task asana.NewTask,
) (string, error) {
	m.created = append(m.created, task)
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, task)
	}
	return "task-1", nil
}

func (m *taskClientMock) AddTaskToSection(
	ctx context.Context, sectionGID, taskGID string,
) error {
	m.sections = append(m.sections, sectionGID)
	if m.AddTaskToSectionFunc != nil {
		return m.AddTaskToSectionFunc(ctx, sectionGID, taskGID)
	}
	return nil
}

func (m *taskClientMock) UpdateCustomFields(
	ctx context.Context, taskGID string, fields map[string]interface{},
) error {
	m.fields = append(m.fields, fields)
	if m.UpdateCustomFieldsFunc != nil {
		return m.UpdateCustomFieldsFunc(ctx, taskGID, fields)
	}
	return nil
}

func (m *taskClientMock) UploadAttachment(
	ctx context.Context, taskGID, filename string, file io.Reader,
) error {
	m.uploads = append(m.uploads, filename)
	if m.UploadAttachmentFunc != nil {
		return m.UploadAttachmentFunc(ctx, taskGID, filename, file)
	}
	return nil
}

// attachmentSourceMock implements bridge.AttachmentSource.
type attachmentSourceMock struct {
	DownloadFunc func(
		ctx context.Context,
		folderID, messageID, attachmentID string,
		w io.Writer,
	) error

	downloads []string
}

func (m *attachmentSourceMock) DownloadAttachment(
	ctx context.Context,
	folderID, messageID, attachmentID string,
	w io.Writer,
) error {
	m.downloads = append(m.downloads, attachmentID)
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, folderID, messageID, attachmentID, w)
	}
	_, err := w.Write([]byte("attachment bytes"))
	return err
}

// mailSourceMock implements bridge.MailSource, yielding a fixed set of
// messages from a fixed folder.
type mailSourceMock struct {
	folderID   string
	resolveErr error
	messages   []model.Message
	listErr    error
}

func (m *mailSourceMock) ResolveFolderPath(
	_ context.Context, _ []string,
) (string, error) {
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return m.folderID, nil
}

func (m *mailSourceMock) ListMessages(
	_ context.Context, _ string, fn func(model.Message) error,
) error {
	for _, msg := range m.messages {
		if err := fn(msg); err != nil {
			return err
		}
	}
	return m.listErr
}

// discardLogger returns a logger whose output is thrown away.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config wired for the bridge tests.
func testConfig() *model.Config {
	return &model.Config{
		MailFolderPath:     []string{"Inbox", "2024 Jobs", "Nova", "2411001"},
		WorkspaceID:        "ws-1",
		ProjectID:          "proj-1",
		DefaultSectionID:   "sec-default",
		BudgetSectionID:    "sec-budget",
		QuotationSectionID: "sec-quotation",
		LocationFieldID:    "field-loc",
		JobNumberFieldID:   "field-job",
		AttachmentMaxBytes: 3 * 1024 * 1024,
		MessageDelayMS:     0,
	}
}
