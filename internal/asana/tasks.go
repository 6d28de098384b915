package asana

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// User identifies the authenticated Asana user.
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewTask is the payload for task creation.
type NewTask struct {
	Name      string   `json:"name"`
	Notes     string   `json:"notes"`
	Projects  []string `json:"projects"`
	Workspace string   `json:"workspace"`
}

// taskRef is the slice of a task response the bridge cares about.
type taskRef struct {
	GID string `json:"gid"`
}

// GetMe returns the authenticated user, doubling as a connection and
// token check before the pipeline starts creating tasks.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, fmt.Errorf("fetching authenticated user: %w", err)
	}
	return &user, nil
}

// CreateTask creates a task and returns its GID.
func (c *Client) CreateTask(ctx context.Context, task NewTask) (string, error) {
	var created taskRef
	if err := c.do(ctx, http.MethodPost, "/tasks", task, &created); err != nil {
		return "", fmt.Errorf("creating task %q: %w", task.Name, err)
	}
	return created.GID, nil
}

// AddTaskToSection files an existing task into a section.
func (c *Client) AddTaskToSection(
	ctx context.Context, sectionGID, taskGID string,
) error {
	payload := map[string]string{"task": taskGID}
	path := "/sections/" + url.PathEscape(sectionGID) + "/addTask"
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf(
			"adding task %s to section %s: %w", taskGID, sectionGID, err,
		)
	}
	return nil
}

// UpdateCustomFields sets custom field values on a task. All fields are
// delivered in a single update call, keyed by custom field GID.
func (c *Client) UpdateCustomFields(
	ctx context.Context, taskGID string, fields map[string]interface{},
) error {
	payload := map[string]interface{}{"custom_fields": fields}
	path := "/tasks/" + url.PathEscape(taskGID)
	if err := c.do(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("updating custom fields on task %s: %w", taskGID, err)
	}
	return nil
}

// UploadAttachment attaches a file to a task via multipart upload.
func (c *Client) UploadAttachment(
	ctx context.Context, taskGID, filename string, file io.Reader,
) error {
	fields := map[string]string{"parent": taskGID}
	err := c.upload(ctx, "/attachments", fields, "file", filename, file, nil)
	if err != nil {
		return fmt.Errorf(
			"uploading attachment %q to task %s: %w", filename, taskGID, err,
		)
	}
	return nil
}
