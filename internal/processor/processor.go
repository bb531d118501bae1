// Package processor runs the per-message forwarding pipeline across all
// configured accounts.
package processor

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/api/gmail/v1"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/chat"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/config"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/mailbox"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/parser"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/store"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/pkg/models"
)

// MailClient is the per-account mailbox surface the pipeline consumes
type MailClient interface {
	Account() models.Account
	Initialize(ctx context.Context) error
	ListMessages(ctx context.Context, query string, max int64) ([]mailbox.MessageRef, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	GetRawMessage(ctx context.Context, id string) ([]byte, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	AddLabel(ctx context.Context, messageID, labelName string) error
}

// Outcome classifies one message's trip through the pipeline
type Outcome int

const (
	Errored Outcome = iota
	Processed
	Skipped
)

// Result aggregates one account's counts for a poll cycle
type Result struct {
	Account   string
	Processed int
	Skipped   int
	Errors    int
}

// Processor composes the mailbox clients, parser, formatter, chat poster
// and dedup store into the forwarding pipeline
type Processor struct {
	cfg     *config.Config
	clients []MailClient
	store   *store.Store
	fmtr    *formatter.Formatter
	poster  chat.Poster
	logger  *slog.Logger
}

// Deps dependencies for creating a processor
type Deps struct {
	Config  *config.Config
	Clients []MailClient
	Store   *store.Store
	Fmtr    *formatter.Formatter
	Poster  chat.Poster
	Logger  *slog.Logger
}

// New creates a processor
func New(deps Deps) *Processor {
	return &Processor{
		cfg:     deps.Config,
		clients: deps.Clients,
		store:   deps.Store,
		fmtr:    deps.Fmtr,
		poster:  deps.Poster,
		logger:  deps.Logger.With("component", "processor"),
	}
}

// Initialize initializes every account client. A failing account is logged
// and dropped; the processor as a whole fails only when zero accounts come
// up, since it would have nothing to do.
func (p *Processor) Initialize(ctx context.Context) error {
	ready := make([]MailClient, 0, len(p.clients))
	for _, c := range p.clients {
		if err := c.Initialize(ctx); err != nil {
			p.logger.Error("account initialization failed, skipping account",
				"account", c.Account().ID, "error", err)
			continue
		}
		ready = append(ready, c)
	}
	if len(ready) == 0 {
		return errors.New("no accounts initialized successfully")
	}
	p.clients = ready
	return nil
}

// ProcessAllAccounts runs one poll cycle over every account, strictly
// sequentially
func (p *Processor) ProcessAllAccounts(ctx context.Context) []Result {
	results := make([]Result, 0, len(p.clients))
	for _, c := range p.clients {
		results = append(results, p.processAccount(ctx, c))
	}
	return results
}

// processAccount lists and processes one account's batch. A listing error
// counts as one error for the account and never aborts the other accounts.
func (p *Processor) processAccount(ctx context.Context, client MailClient) Result {
	account := client.Account()
	res := Result{Account: account.ID}

	refs, err := client.ListMessages(ctx, p.cfg.GmailQuery, p.cfg.MaxMessagesPerPoll)
	if err != nil {
		p.logFailure(p.logger.With("account", account.ID), "failed to list messages", err)
		res.Errors++
		return res
	}

	for _, ref := range refs {
		switch p.ProcessMessage(ctx, client, ref.ID) {
		case Processed:
			res.Processed++
		case Skipped:
			res.Skipped++
		default:
			res.Errors++
		}
	}
	return res
}

// ProcessMessage runs the pipeline for a single message. The dedup record
// write is the single commit point: an error before it leaves the message
// unprocessed so the next cycle retries it; after it the message is handled
// for good.
func (p *Processor) ProcessMessage(ctx context.Context, client MailClient, messageID string) Outcome {
	account := client.Account()
	logger := p.logger.With("account", account.ID, "message_id", messageID)

	done, err := p.store.IsProcessed(ctx, account.ID, messageID)
	if err != nil {
		logger.Error("dedup lookup failed", "error", err)
		return Errored
	}
	if done {
		// The label may have been lost if a previous cycle died between
		// the commit point and labeling; re-apply best-effort.
		if err := client.AddLabel(ctx, messageID, p.cfg.DoneLabel); err != nil {
			logger.Debug("failed to re-apply done label", "error", err)
		}
		return Skipped
	}

	msg, err := client.GetMessage(ctx, messageID)
	if err != nil {
		p.logFailure(logger, "failed to fetch message", err)
		return Errored
	}
	email := parser.Parse(msg)

	ts, err := p.poster.PostMessage(ctx, p.fmtr.FormatEmail(account.Name, email))
	if err != nil {
		p.logFailure(logger, "failed to post message", err)
		return Errored
	}
	if ts == "" {
		// Without a timestamp the post cannot be threaded or recorded.
		logger.Error("chat post returned no timestamp")
		return Errored
	}

	if len([]rune(email.Body)) > p.cfg.BodyMaxChars {
		p.handleOversize(ctx, client, ts, email, logger)
	}

	if p.cfg.AttachmentsEnabled && len(email.Attachments) > 0 {
		p.uploadAttachments(ctx, client, ts, email, logger)
	}

	if err := p.store.MarkProcessed(ctx, account.ID, messageID, ts); err != nil {
		logger.Error("failed to record processed mail", "error", err)
		return Errored
	}

	if err := client.AddLabel(ctx, messageID, p.cfg.DoneLabel); err != nil {
		// Past the commit point; the skip path re-applies the label later.
		logger.Warn("failed to apply done label", "error", err)
	}

	logger.Info("message forwarded", "subject", email.Subject, "chat_ts", ts)
	return Processed
}

// handleOversize uploads the full message as a .eml file threaded off the
// post and, when enabled, posts the remaining body chunks as continuation
// replies. Everything here is best-effort.
func (p *Processor) handleOversize(ctx context.Context, client MailClient, ts string, email parser.ParsedEmail, logger *slog.Logger) {
	raw, err := client.GetRawMessage(ctx, email.ID)
	if err != nil {
		logger.Warn("failed to fetch raw message for oversize upload", "error", err)
	} else {
		filename := sanitizeFilename(email.Subject) + ".eml"
		if err := p.poster.UploadFile(ctx, ts, filename, "Full message", raw); err != nil {
			logger.Warn("failed to upload full message", "error", err)
		}
	}

	if !p.cfg.PostContinuations {
		return
	}
	chunks := parser.SplitBody(formatter.Escape(email.Body), p.cfg.BodyMaxChars)
	for i := 1; i < len(chunks); i++ {
		reply := p.fmtr.FormatContinuation(chunks[i], i+1, len(chunks))
		if _, err := p.poster.PostReply(ctx, ts, reply); err != nil {
			logger.Warn("failed to post continuation", "index", i+1, "error", err)
			break
		}
	}
}

// uploadAttachments uploads each attachment threaded off the post. One
// attachment's failure does not block the others.
func (p *Processor) uploadAttachments(ctx context.Context, client MailClient, ts string, email parser.ParsedEmail, logger *slog.Logger) {
	for _, att := range email.Attachments {
		if p.cfg.AttachmentMaxBytes > 0 && att.Size > p.cfg.AttachmentMaxBytes {
			logger.Warn("attachment exceeds size limit, skipping",
				"filename", att.Filename, "size", att.Size)
			continue
		}

		data, err := client.GetAttachment(ctx, email.ID, att.ID)
		if err != nil {
			logger.Warn("failed to fetch attachment", "filename", att.Filename, "error", err)
			continue
		}
		if err := p.poster.UploadFile(ctx, ts, att.Filename, att.Filename, data); err != nil {
			logger.Warn("failed to upload attachment", "filename", att.Filename, "error", err)
		}
	}
}

// logFailure picks the log level from the transient-error heuristic. The
// classification never changes pipeline behavior; the message is left
// unprocessed either way and the next poll cycle is the retry mechanism.
func (p *Processor) logFailure(logger *slog.Logger, msg string, err error) {
	if isRetryable(err) {
		logger.Warn(msg, "error", err, "transient", true)
	} else {
		logger.Error(msg, "error", err)
	}
}
