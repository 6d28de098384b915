package model

import "time"

// Message is a single mail message as the pipeline sees it, independent
// of the Graph wire representation. Messages are read-only once fetched.
type Message struct {
	// ID is the opaque, stable identifier assigned by the mail provider.
	ID string

	// Subject is the message subject line.
	Subject string

	// Sender is the address of the originating mailbox.
	Sender string

	// Received is when the message arrived in the mailbox.
	Received time.Time

	// Body is the message body text. When BodyIsHTML is true the text
	// is HTML markup and must be stripped before display.
	Body string

	// BodyIsHTML reports whether Body contains HTML markup.
	BodyIsHTML bool

	// BodyPreview is the provider's short plain-text preview, used as a
	// fallback when Body is absent or empty.
	BodyPreview string

	// ParentFolderID identifies the folder the message lives in. It is
	// required to address the message's attachment content endpoints.
	ParentFolderID string

	// Attachments lists the message's attachment descriptors.
	Attachments []Attachment
}

// Attachment describes a single message attachment. Only file
// attachments can be relayed; item attachments (embedded messages,
// calendar items) have no flat byte representation.
type Attachment struct {
	// ID is the attachment's lookup handle within its message.
	ID string

	// Name is the attachment filename.
	Name string

	// Size is the declared size in bytes.
	Size int64

	// ContentType is the declared MIME type, when the provider sent one.
	ContentType string

	// IsItem marks embedded-item attachments, which are never relayed.
	IsItem bool
}

// RoutingTags are the two positional values derived from the trailing
// segments of a mail folder path: the second-to-last segment is the
// location, the last is the job number. Both are attached to every task
// created from that folder's messages.
type RoutingTags struct {
	Location  string
	JobNumber string
}

// TagsFromFolderPath derives routing tags from a folder path. The path
// must have at least two segments; shorter paths carry no routing
// convention and are rejected at configuration time.
func TagsFromFolderPath(path []string) RoutingTags {
	if len(path) < 2 {
		return RoutingTags{}
	}
	return RoutingTags{
		Location:  path[len(path)-2],
		JobNumber: path[len(path)-1],
	}
}
