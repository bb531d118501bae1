// Package mailbox wraps one authenticated Gmail account with the mailbox
// operations the pipeline needs. No retries live here; retry policy belongs
// to the processor.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/auth"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/pkg/models"
)

const gmailUser = "me"

// ErrLabelNotFound is returned when no label matches the requested name
var ErrLabelNotFound = errors.New("label not found")

// MessageRef is one id/thread pair from a message listing
type MessageRef struct {
	ID       string
	ThreadID string
}

// Client wraps one authenticated mailbox
type Client struct {
	account   models.Account
	tokens    *auth.TokenManager
	doneLabel string
	srv       *gmail.Service
	labelID   string // cached id of doneLabel, resolved during Initialize
	logger    *slog.Logger
}

// NewClient creates an uninitialized client for the account
func NewClient(account models.Account, tokens *auth.TokenManager, doneLabel string, logger *slog.Logger) *Client {
	return &Client{
		account:   account,
		tokens:    tokens,
		doneLabel: doneLabel,
		logger:    logger.With("component", "mailbox", "account", account.ID),
	}
}

// Account returns the account this client serves
func (c *Client) Account() models.Account {
	return c.account
}

// Initialize obtains an authenticated Gmail handle and ensures the done
// label exists, caching its id
func (c *Client) Initialize(ctx context.Context) error {
	httpClient, err := c.tokens.Client(ctx, c.account.TokenPath)
	if err != nil {
		return err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create gmail service: %w", err)
	}
	c.srv = srv

	labelID, err := c.ensureLabel(ctx, c.doneLabel)
	if err != nil {
		return err
	}
	c.labelID = labelID

	c.logger.Info("mailbox initialized", "done_label", c.doneLabel, "label_id", labelID)
	return nil
}

// ListMessages returns up to max id/thread pairs matching the search query
func (c *Client) ListMessages(ctx context.Context, query string, max int64) ([]MessageRef, error) {
	resp, err := c.srv.Users.Messages.List(gmailUser).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// GetMessage fetches the full structured content of a message
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := c.srv.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// GetRawMessage fetches the RFC-822 byte stream of a message
func (c *Client) GetRawMessage(ctx context.Context, id string) ([]byte, error) {
	msg, err := c.srv.Users.Messages.Get(gmailUser, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get raw message %s: %w", id, err)
	}
	if msg.Raw == "" {
		return nil, fmt.Errorf("no raw payload for message %s", id)
	}

	data, err := decodeBase64URL(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw message %s: %w", id, err)
	}
	return data, nil
}

// GetAttachment fetches and decodes attachment bytes
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	att, err := c.srv.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s of message %s: %w", attachmentID, messageID, err)
	}
	if att.Data == "" {
		return nil, fmt.Errorf("empty attachment %s of message %s", attachmentID, messageID)
	}

	data, err := decodeBase64URL(att.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

// AddLabel resolves the label name (using the cached id for the done label)
// and applies it to the message
func (c *Client) AddLabel(ctx context.Context, messageID, labelName string) error {
	labelID := c.labelID
	if !strings.EqualFold(labelName, c.doneLabel) || labelID == "" {
		var err error
		labelID, err = c.resolveLabel(ctx, labelName)
		if err != nil {
			return err
		}
	}

	_, err := c.srv.Users.Messages.Modify(gmailUser, messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add label %s to message %s: %w", labelName, messageID, err)
	}
	return nil
}

// ensureLabel finds a label by name (case-insensitive) or creates it. Only
// a confirmed not-found triggers the create; list failures propagate.
func (c *Client) ensureLabel(ctx context.Context, name string) (string, error) {
	id, err := c.resolveLabel(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrLabelNotFound) {
		return "", err
	}

	label, err := c.srv.Users.Labels.Create(gmailUser, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}

	c.logger.Info("created label", "name", name, "id", label.Id)
	return label.Id, nil
}

// resolveLabel looks up a label id by name, case-insensitively
func (c *Client) resolveLabel(ctx context.Context, name string) (string, error) {
	resp, err := c.srv.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			return l.Id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLabelNotFound, name)
}

func decodeBase64URL(data string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
	}
	return b, err
}
