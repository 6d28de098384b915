package archive_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnguyen/mailbridge/internal/archive"
)

const multipartMessage = "From: sam@vendor.example\r\n" +
	"To: jobs@example.com\r\n" +
	"Subject: Budget P1\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=frontier\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain text body\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>html body</p></body></html>\r\n" +
	"--frontier--\r\n"

const htmlOnlyMessage = "From: sam@vendor.example\r\n" +
	"Subject: Budget P1\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>only html here</p></body></html>\r\n"

func TestTextFromRawPrefersPlainPart(t *testing.T) {
	text, err := archive.TextFromRaw(strings.NewReader(multipartMessage))
	require.NoError(t, err)
	assert.Equal(t, "plain text body", text)
}

func TestTextFromRawStripsHTMLFallback(t *testing.T) {
	text, err := archive.TextFromRaw(strings.NewReader(htmlOnlyMessage))
	require.NoError(t, err)
	assert.Equal(t, "only html here", text)
}

func TestTextFromRawRejectsGarbage(t *testing.T) {
	_, err := archive.TextFromRaw(strings.NewReader("not a mail message"))
	assert.Error(t, err)
}
