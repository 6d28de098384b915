package graph

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mnguyen/mailbridge/internal/model"
)

// messageSelectFields are the message properties requested from Graph.
// Attachments are expanded in the same call so the pipeline never
// issues a second metadata request per message.
const messageSelectFields = "id,subject,body,bodyPreview,receivedDateTime,from,parentFolderId"

// ListMessages fetches every message in a folder, page by page, and
// invokes fn for each one in page order. The first request carries the
// select/expand/top parameters; continuation links are followed
// verbatim because the server embeds the original query in them.
//
// fn is called as each page arrives, so messages already handed out
// survive a mid-walk HTTP failure; the error then reported covers only
// the unfetched remainder. An error from fn aborts the walk.
func (c *Client) ListMessages(
	ctx context.Context,
	folderID string,
	fn func(model.Message) error,
) error {
	params := url.Values{}
	params.Set("$select", messageSelectFields)
	params.Set("$expand", "attachments")
	params.Set("$top", strconv.Itoa(c.pageSize))

	next := c.userURL("/mailFolders/"+url.PathEscape(folderID)+"/messages") + "?" + params.Encode()

	for next != "" {
		var page messageList
		if err := c.get(ctx, next, &page); err != nil {
			return fmt.Errorf("listing messages in folder %s: %w", folderID, err)
		}

		for _, wire := range page.Value {
			if err := fn(messageToModel(wire)); err != nil {
				return err
			}
		}

		next = page.NextLink
	}

	return nil
}
