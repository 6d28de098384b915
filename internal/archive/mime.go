package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/mnguyen/mailbridge/internal/htmlstrip"
)

// TextFromRaw parses a raw RFC 5322 message and returns its plain-text
// body. A text/plain part is preferred; failing that, the text/html
// part is stripped to plain text. The export path uses this to recover
// readable bodies from messages whose structured body is HTML-only.
func TextFromRaw(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing raw message: %w", err)
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body), nil
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if htmlBody != "" {
		return htmlstrip.Strip(htmlBody), nil
	}
	return "", nil
}
