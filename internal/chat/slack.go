package chat

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
)

// SlackPoster posts to one Slack channel using the Web API
type SlackPoster struct {
	api       *slack.Client
	channelID string
	logger    *slog.Logger
}

// NewSlackPoster creates a poster for the given bot token and channel
func NewSlackPoster(token, channelID string, logger *slog.Logger) *SlackPoster {
	return &SlackPoster{
		api:       slack.New(token),
		channelID: channelID,
		logger:    logger.With("component", "slack_poster"),
	}
}

// PostMessage posts a top-level message and returns its ts
func (p *SlackPoster) PostMessage(ctx context.Context, msg formatter.Message) (string, error) {
	return p.post(ctx, "", msg)
}

// PostReply posts a threaded reply under threadTS
func (p *SlackPoster) PostReply(ctx context.Context, threadTS string, msg formatter.Message) (string, error) {
	return p.post(ctx, threadTS, msg)
}

func (p *SlackPoster) post(ctx context.Context, threadTS string, msg formatter.Message) (string, error) {
	opts := []slack.MsgOption{
		slack.MsgOptionBlocks(renderSlackBlocks(msg.Blocks)...),
		slack.MsgOptionText(msg.Fallback, false),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := p.api.PostMessageContext(ctx, p.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to post slack message: %w", err)
	}
	if ts == "" {
		return "", ErrNoTimestamp
	}
	return ts, nil
}

// UploadFile uploads a file threaded under threadTS
func (p *SlackPoster) UploadFile(ctx context.Context, threadTS, filename, title string, data []byte) error {
	_, err := p.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         p.channelID,
		ThreadTimestamp: threadTS,
		Filename:        filename,
		Title:           title,
		Reader:          bytes.NewReader(data),
		FileSize:        len(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to slack: %w", err)
	}
	return nil
}

// renderSlackBlocks maps the neutral block model to Block Kit. All text is
// pre-escaped for mrkdwn, so headers render as bold sections rather than
// plain_text header blocks.
func renderSlackBlocks(blocks []formatter.Block) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case formatter.BlockHeader:
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, "*"+b.Text+"*", false, false), nil, nil))
		case formatter.BlockMeta:
			var sb strings.Builder
			for i, f := range b.Fields {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("*%s:* %s", f.Label, f.Value))
			}
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false), nil, nil))
		case formatter.BlockSection:
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, b.Text, false, false), nil, nil))
		case formatter.BlockContext:
			out = append(out, slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType, b.Text, false, false)))
		case formatter.BlockDivider:
			out = append(out, slack.NewDividerBlock())
		}
	}
	return out
}
