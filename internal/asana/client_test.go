package asana_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnguyen/mailbridge/internal/asana"
)

func TestCreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "Bearer pat-token", r.Header.Get("Authorization"))

		var payload struct {
			Data struct {
				Name      string   `json:"name"`
				Notes     string   `json:"notes"`
				Projects  []string `json:"projects"`
				Workspace string   `json:"workspace"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Budget P1", payload.Data.Name)
		assert.Equal(t, []string{"proj-1"}, payload.Data.Projects)
		assert.Equal(t, "ws-1", payload.Data.Workspace)

		fmt.Fprint(w, `{"data": {"gid": "task-42"}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	gid, err := client.CreateTask(context.Background(), asana.NewTask{
		Name:      "Budget P1",
		Notes:     "notes",
		Projects:  []string{"proj-1"},
		Workspace: "ws-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "task-42", gid)
}

func TestAddTaskToSection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sections/sec-1/addTask", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"data": {"task": "task-42"}}`, string(body))

		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	err := client.AddTaskToSection(context.Background(), "sec-1", "task-42")
	assert.NoError(t, err)
}

func TestUpdateCustomFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tasks/task-42", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t,
			`{"data": {"custom_fields": {"field-loc": "Nova", "field-job": 2411001}}}`,
			string(body),
		)

		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	err := client.UpdateCustomFields(context.Background(), "task-42", map[string]interface{}{
		"field-loc": "Nova",
		"field-job": 2411001,
	})
	assert.NoError(t, err)
}

func TestUploadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attachments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "task-42", r.FormValue("parent"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "quote.pdf", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "fake pdf", string(content))

		fmt.Fprint(w, `{"data": {"gid": "att-7"}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	err := client.UploadAttachment(
		context.Background(), "task-42", "quote.pdf", strings.NewReader("fake pdf"),
	)
	assert.NoError(t, err)
}

func TestUploadRetriesOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		// The retried request carries the full multipart body again.
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "task-42", r.FormValue("parent"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "fake pdf", string(content))

		fmt.Fprint(w, `{"data": {"gid": "att-7"}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	err := client.UploadAttachment(
		context.Background(), "task-42", "quote.pdf", strings.NewReader("fake pdf"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		fmt.Fprint(w, `{"data": {"gid": "u-1", "name": "Sam", "email": "sam@example.com"}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.Name)
	assert.Equal(t, "sam@example.com", user.Email)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors": [{"message": "workspace: Not a valid GID"}]}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	_, err := client.CreateTask(context.Background(), asana.NewTask{Name: "x"})

	var apiErr *asana.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Not a valid GID")
}

func TestRetriesOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data": {"gid": "task-42"}}`)
	}))
	defer srv.Close()

	client := asana.NewClient(srv.URL, "pat-token")

	gid, err := client.CreateTask(context.Background(), asana.NewTask{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "task-42", gid)
	assert.Equal(t, 2, calls)
}
