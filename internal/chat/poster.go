// Package chat delivers formatted messages to the configured chat backend.
package chat

import (
	"context"
	"errors"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
)

// ErrNoTimestamp is returned when the chat API accepts a post but yields no
// message timestamp; without one the pipeline cannot thread follow-ups or
// record the delivery.
var ErrNoTimestamp = errors.New("chat API returned no message timestamp")

// Poster posts formatted messages to a single channel. Delivery is
// at-least-once; idempotency bookkeeping lives in the processor.
type Poster interface {
	// PostMessage posts a top-level message and returns its timestamp.
	PostMessage(ctx context.Context, msg formatter.Message) (string, error)
	// PostReply posts a threaded reply under threadTS.
	PostReply(ctx context.Context, threadTS string, msg formatter.Message) (string, error)
	// UploadFile uploads a file threaded under threadTS.
	UploadFile(ctx context.Context, threadTS, filename, title string, data []byte) error
}
