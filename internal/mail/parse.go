package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// ParseAttachments walks a raw RFC 822 message and returns every part that
// could become a document. Parts with an attachment disposition are always
// included; inline parts are included when they carry a filename, and the
// caller decides whether to use them.
func ParseAttachments(raw []byte) ([]Attachment, error) {
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open message: %w", err)
	}
	defer reader.Close()

	var attachments []Attachment
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed part should not discard what we already have.
			if gomessage.IsUnknownCharset(err) {
				continue
			}
			if len(attachments) > 0 {
				return attachments, nil
			}
			return nil, fmt.Errorf("read part: %w", err)
		}

		switch header := part.Header.(type) {
		case *gomail.AttachmentHeader:
			filename, _ := header.Filename()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read attachment %q: %w", filename, err)
			}
			attachments = append(attachments, Attachment{Filename: filename, Data: data})
		case *gomail.InlineHeader:
			filename := inlineFilename(header)
			if filename == "" {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read inline part %q: %w", filename, err)
			}
			attachments = append(attachments, Attachment{Filename: filename, Inline: true, Data: data})
		}
	}
	return attachments, nil
}

func inlineFilename(header *gomail.InlineHeader) string {
	if _, params, err := header.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	if _, params, err := header.ContentType(); err == nil {
		if name := params["name"]; name != "" {
			return name
		}
	}
	return ""
}
