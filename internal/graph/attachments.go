package graph

import (
	"context"
	"io"
	"net/url"
)

// DownloadAttachment streams one attachment's raw bytes to w via the
// per-attachment content endpoint. An HTTP 413 response surfaces as
// ErrTooLarge so callers can treat it as a skip rather than a failure.
func (c *Client) DownloadAttachment(
	ctx context.Context,
	folderID, messageID, attachmentID string,
	w io.Writer,
) error {
	rawURL := c.userURL(
		"/mailFolders/" + url.PathEscape(folderID) +
			"/messages/" + url.PathEscape(messageID) +
			"/attachments/" + url.PathEscape(attachmentID) + "/$value",
	)
	return c.getStream(ctx, rawURL, w)
}

// FetchRawMessage streams a message's full RFC 5322 representation to
// w. The export path uses this to recover plain-text bodies from
// messages whose JSON body carries only HTML.
func (c *Client) FetchRawMessage(
	ctx context.Context, messageID string, w io.Writer,
) error {
	rawURL := c.userURL("/messages/" + url.PathEscape(messageID) + "/$value")
	return c.getStream(ctx, rawURL, w)
}
