package chat

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
)

// TelegramPoster posts to one Telegram chat. Message IDs stand in for
// timestamps; replies thread via reply parameters.
type TelegramPoster struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegramPoster creates a poster for the given bot token and chat
func NewTelegramPoster(token string, chatID int64, logger *slog.Logger) (*TelegramPoster, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramPoster{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "telegram_poster"),
	}, nil
}

// PostMessage posts a top-level message and returns its message ID
func (p *TelegramPoster) PostMessage(ctx context.Context, msg formatter.Message) (string, error) {
	return p.post(ctx, 0, msg)
}

// PostReply posts a reply to the message identified by threadTS
func (p *TelegramPoster) PostReply(ctx context.Context, threadTS string, msg formatter.Message) (string, error) {
	replyTo, err := strconv.Atoi(threadTS)
	if err != nil {
		return "", fmt.Errorf("invalid telegram thread id %q: %w", threadTS, err)
	}
	return p.post(ctx, replyTo, msg)
}

func (p *TelegramPoster) post(ctx context.Context, replyTo int, msg formatter.Message) (string, error) {
	params := &bot.SendMessageParams{
		ChatID:    p.chatID,
		Text:      renderTelegramHTML(msg.Blocks),
		ParseMode: tgmodels.ParseModeHTML,
	}
	if replyTo != 0 {
		params.ReplyParameters = &tgmodels.ReplyParameters{MessageID: replyTo}
	}

	sent, err := p.bot.SendMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message: %w", err)
	}
	if sent == nil || sent.ID == 0 {
		return "", ErrNoTimestamp
	}
	return strconv.Itoa(sent.ID), nil
}

// UploadFile sends the file as a document replying to threadTS
func (p *TelegramPoster) UploadFile(ctx context.Context, threadTS, filename, title string, data []byte) error {
	params := &bot.SendDocumentParams{
		ChatID: p.chatID,
		Document: &tgmodels.InputFileUpload{
			Filename: filename,
			Data:     bytes.NewReader(data),
		},
		Caption: title,
	}
	if replyTo, err := strconv.Atoi(threadTS); err == nil && replyTo != 0 {
		params.ReplyParameters = &tgmodels.ReplyParameters{MessageID: replyTo}
	}

	if _, err := p.bot.SendDocument(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return nil
}

// renderTelegramHTML flattens the block model into one HTML message. Block
// text is already entity-escaped by the formatter.
func renderTelegramHTML(blocks []formatter.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		switch b.Type {
		case formatter.BlockHeader:
			sb.WriteString("<b>" + b.Text + "</b>")
		case formatter.BlockMeta:
			for i, f := range b.Fields {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("<b>%s:</b> %s", f.Label, f.Value))
			}
		case formatter.BlockSection:
			sb.WriteString(b.Text)
		case formatter.BlockContext:
			sb.WriteString("<i>" + b.Text + "</i>")
		case formatter.BlockDivider:
			sb.WriteString("———")
		}
	}
	return sb.String()
}
