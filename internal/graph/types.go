package graph

// Wire types for the Graph mail API. These never leave the package;
// conversion to the model types happens in convert.go.

type mailFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type folderList struct {
	Value    []mailFolder `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	// ContentType is "text" or "html".
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type attachment struct {
	// ODataType discriminates fileAttachment from itemAttachment and
	// referenceAttachment.
	ODataType   string `json:"@odata.type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type message struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	ReceivedDateTime string       `json:"receivedDateTime"`
	From             *recipient   `json:"from"`
	ParentFolderID   string       `json:"parentFolderId"`
	Body             *itemBody    `json:"body"`
	BodyPreview      string       `json:"bodyPreview"`
	Attachments      []attachment `json:"attachments"`
}

type messageList struct {
	Value    []message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}
