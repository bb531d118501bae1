// Package parser extracts plain-text bodies, attachments and headers from
// the MIME part trees returned by the Gmail API.
package parser

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

// DefaultSubject is used when a message carries no Subject header
const DefaultSubject = "(no subject)"

// AttachmentDescriptor identifies one downloadable attachment part
type AttachmentDescriptor struct {
	ID       string // Gmail attachment ID
	Filename string
	MimeType string
	Size     int64 // bytes
}

// ParsedEmail is the immutable result of parsing one fetched message
type ParsedEmail struct {
	ID          string
	ThreadID    string
	Subject     string
	From        string
	To          string
	Date        time.Time
	Body        string
	Attachments []AttachmentDescriptor
	Snippet     string
}

// Parse extracts everything the pipeline needs from a full-format message
func Parse(msg *gmail.Message) ParsedEmail {
	email := ParsedEmail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  DefaultSubject,
		Snippet:  msg.Snippet,
	}

	if msg.Payload != nil {
		if subject := Header(msg.Payload, "Subject"); subject != "" {
			email.Subject = subject
		}
		email.From = Header(msg.Payload, "From")
		email.To = Header(msg.Payload, "To")
		email.Body = normalizeNewlines(ExtractBody(msg.Payload))
		email.Attachments = CollectAttachments(msg.Payload)
	}
	email.Date = ParseDate(msg)

	return email
}

// Header returns the value of the named header, matched case-insensitively,
// or an empty string
func Header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ParseDate parses the Date header, falling back to the server-internal
// timestamp and finally to the current time
func ParseDate(msg *gmail.Message) time.Time {
	if msg.Payload != nil {
		if raw := Header(msg.Payload, "Date"); raw != "" {
			if t, err := mail.ParseDate(raw); err == nil {
				return t
			}
		}
	}
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate)
	}
	return time.Now()
}

// ExtractBody selects a plain-text body from the part tree. A text/plain
// alternative wins over text/html; nested multipart children are searched
// depth-first for the first non-empty result.
func ExtractBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}

	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodePartData(part.Body.Data)
	}
	if len(part.Parts) == 0 {
		return ""
	}

	for _, child := range part.Parts {
		if child.MimeType == "text/plain" && child.Body != nil && child.Body.Data != "" {
			return decodePartData(child.Body.Data)
		}
	}
	for _, child := range part.Parts {
		if child.MimeType == "text/html" && child.Body != nil && child.Body.Data != "" {
			return StripHTML(decodePartData(child.Body.Data))
		}
	}
	for _, child := range part.Parts {
		if strings.HasPrefix(child.MimeType, "multipart/") {
			if body := ExtractBody(child); body != "" {
				return body
			}
		}
	}

	return ""
}

// CollectAttachments walks the whole tree and collects every part that has
// both a filename and an attachment ID, regardless of nesting depth
func CollectAttachments(part *gmail.MessagePart) []AttachmentDescriptor {
	if part == nil {
		return nil
	}

	var attachments []AttachmentDescriptor
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		attachments = append(attachments, AttachmentDescriptor{
			ID:       part.Body.AttachmentId,
			Filename: part.Filename,
			MimeType: part.MimeType,
			Size:     part.Body.Size,
		})
	}
	for _, child := range part.Parts {
		attachments = append(attachments, CollectAttachments(child)...)
	}
	return attachments
}

// decodePartData decodes the base64url body data of a part. Gmail pads
// inconsistently, so both alphabets are tried.
func decodePartData(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
