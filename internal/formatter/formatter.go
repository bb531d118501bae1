// Package formatter builds chat messages from parsed emails. The block
// model is backend-neutral; the chat package renders it for Slack or
// Telegram.
package formatter

import (
	"fmt"
	"strings"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/parser"
)

// Options controls how emails are rendered
type Options struct {
	IncludeAccountHeader  bool
	BodyMaxChars          int
	IncludeGmailPermalink bool
}

// BlockType identifies the semantic role of a block
type BlockType string

const (
	BlockHeader  BlockType = "header"
	BlockMeta    BlockType = "meta"
	BlockSection BlockType = "section"
	BlockContext BlockType = "context"
	BlockDivider BlockType = "divider"
)

// Field is one labeled value in a meta block
type Field struct {
	Label string
	Value string
}

// Block is one unit of a structured chat message. Text and field values are
// already escaped for markup rendering.
type Block struct {
	Type   BlockType
	Text   string
	Fields []Field
}

// Message is a structured chat message plus a plain-text fallback for
// clients that cannot render blocks
type Message struct {
	Blocks   []Block
	Fallback string
}

// Formatter renders parsed emails into chat messages
type Formatter struct {
	opts Options
}

// New creates a formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{opts: opts}
}

// FormatEmail builds the primary chat message for an email. The body is
// escaped first and truncated second, so the rendered length bound is exact
// regardless of entity expansion.
func (f *Formatter) FormatEmail(accountName string, email parser.ParsedEmail) Message {
	var blocks []Block

	if f.opts.IncludeAccountHeader && accountName != "" {
		blocks = append(blocks, Block{Type: BlockContext, Text: "\U0001F4EC " + Escape(accountName)})
	}

	blocks = append(blocks,
		Block{Type: BlockHeader, Text: Escape(email.Subject)},
		Block{Type: BlockMeta, Fields: []Field{
			{Label: "From", Value: Escape(email.From)},
			{Label: "To", Value: Escape(email.To)},
			{Label: "Date", Value: email.Date.Format("2006-01-02 15:04")},
		}},
		Block{Type: BlockDivider},
	)

	body := parser.TruncateBody(Escape(email.Body), f.opts.BodyMaxChars)
	if body == "" {
		body = "(empty body)"
	}
	blocks = append(blocks, Block{Type: BlockSection, Text: body})

	if len(email.Attachments) > 0 {
		blocks = append(blocks, Block{Type: BlockSection, Text: attachmentListing(email.Attachments)})
	}

	if f.opts.IncludeGmailPermalink && email.ID != "" {
		blocks = append(blocks, Block{
			Type: BlockContext,
			Text: "https://mail.google.com/mail/u/0/#inbox/" + email.ID,
		})
	}

	return Message{
		Blocks:   blocks,
		Fallback: fallbackText(accountName, email),
	}
}

// FormatContinuation builds the labeled block for one body chunk beyond the
// first. The chunk must already be escaped; the label's length is reserved
// out of the per-message budget.
func (f *Formatter) FormatContinuation(chunk string, index, total int) Message {
	label := fmt.Sprintf("Continuation (%d/%d)", index, total)

	budget := f.opts.BodyMaxChars - len([]rune(label)) - 1
	text := parser.TruncateBody(chunk, budget)

	return Message{
		Blocks: []Block{
			{Type: BlockContext, Text: label},
			{Type: BlockSection, Text: text},
		},
		Fallback: label,
	}
}

// Escape escapes the markup-special characters shared by both chat backends
func Escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func attachmentListing(attachments []parser.AttachmentDescriptor) string {
	var sb strings.Builder
	sb.WriteString("Attachments:")
	for _, a := range attachments {
		sb.WriteString(fmt.Sprintf("\n\U0001F4CE %s (%s)", Escape(a.Filename), HumanSize(a.Size)))
	}
	return sb.String()
}

// HumanSize renders a byte count as B, rounded KB, or 1-decimal MB
func HumanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%d KB", (n+512)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

// fallbackText is the plain rendering for clients without block support
func fallbackText(accountName string, email parser.ParsedEmail) string {
	var sb strings.Builder
	if accountName != "" {
		sb.WriteString(fmt.Sprintf("[%s] ", accountName))
	}
	sb.WriteString(email.Subject)
	sb.WriteString(fmt.Sprintf("\nFrom: %s\nTo: %s\nDate: %s",
		email.From, email.To, email.Date.Format("2006-01-02 15:04")))
	if email.Snippet != "" {
		sb.WriteString("\n" + email.Snippet)
	}
	for _, a := range email.Attachments {
		sb.WriteString("\nAttachment: " + a.Filename)
	}
	return sb.String()
}
