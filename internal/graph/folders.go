package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ResolveFolderPath walks the mailbox folder tree one segment at a
// time, exact-matching display names, and returns the identifier of the
// leaf folder. The first segment is looked up in the root folder
// collection, every later one among the previous match's child folders.
// A segment with no exact match fails with ErrNotFound and the walk
// performs no lookups past the miss. Nothing is cached; callers resolve
// once per run.
func (c *Client) ResolveFolderPath(
	ctx context.Context, segments []string,
) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("empty folder path")
	}

	folderID := ""
	for _, segment := range segments {
		listURL := c.userURL("/mailFolders")
		if folderID != "" {
			listURL = c.userURL("/mailFolders/" + url.PathEscape(folderID) + "/childFolders")
		}

		id, err := c.findChildFolder(ctx, listURL, segment)
		if err != nil {
			return "", err
		}
		folderID = id
	}

	return folderID, nil
}

// findChildFolder pages through a folder listing until a folder with
// the given display name is found.
func (c *Client) findChildFolder(
	ctx context.Context, listURL, displayName string,
) (string, error) {
	next := listURL
	for next != "" {
		var page folderList
		if err := c.get(ctx, next, &page); err != nil {
			return "", fmt.Errorf("listing folders at %s: %w", listURL, err)
		}

		for _, folder := range page.Value {
			if folder.DisplayName == displayName {
				return folder.ID, nil
			}
		}

		next = page.NextLink
	}

	return "", fmt.Errorf("folder %q: %w", displayName, ErrNotFound)
}

// FolderPathString renders a folder path for log lines.
func FolderPathString(segments []string) string {
	return strings.Join(segments, "/")
}
