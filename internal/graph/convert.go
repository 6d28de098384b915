package graph

import (
	"strings"
	"time"

	"github.com/mnguyen/mailbridge/internal/model"
)

// messageToModel converts a wire message to the vendor-independent
// model record. Conversion never fails: absent or malformed fields
// degrade to zero values so a single odd message cannot poison a page.
func messageToModel(m message) model.Message {
	out := model.Message{
		ID:             m.ID,
		Subject:        m.Subject,
		BodyPreview:    m.BodyPreview,
		ParentFolderID: m.ParentFolderID,
	}

	if m.From != nil {
		out.Sender = m.From.EmailAddress.Address
	}

	if ts, err := time.Parse(time.RFC3339, m.ReceivedDateTime); err == nil {
		out.Received = ts
	}

	if m.Body != nil {
		out.Body = m.Body.Content
		out.BodyIsHTML = strings.EqualFold(m.Body.ContentType, "html")
	}

	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, model.Attachment{
			ID:          a.ID,
			Name:        a.Name,
			Size:        a.Size,
			ContentType: a.ContentType,
			IsItem:      strings.HasSuffix(strings.ToLower(a.ODataType), "itemattachment"),
		})
	}

	return out
}
