package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/pkg/models"
)

// newStubClient builds a client whose Gmail service talks to the handler
func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(ts.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("gmail service: %v", err)
	}
	return &Client{
		account:   models.Account{ID: "work"},
		doneLabel: "done",
		srv:       srv,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func labelsHandler(t *testing.T, listBody string, listStatus int, creates *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/labels") {
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(listStatus)
			fmt.Fprint(w, listBody)
		case http.MethodPost:
			if creates != nil {
				*creates++
			}
			fmt.Fprint(w, `{"id": "Label_9", "name": "done"}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestEnsureLabelReturnsExistingID(t *testing.T) {
	var creates int
	c := newStubClient(t, labelsHandler(t,
		`{"labels": [{"id": "Label_7", "name": "Done"}]}`, http.StatusOK, &creates))

	id, err := c.ensureLabel(context.Background(), "done")
	if err != nil {
		t.Fatalf("ensureLabel: %v", err)
	}
	if id != "Label_7" {
		t.Errorf("id = %q, want case-insensitive match on Label_7", id)
	}
	if creates != 0 {
		t.Errorf("creates = %d, existing label must not be recreated", creates)
	}
}

func TestEnsureLabelCreatesMissingLabel(t *testing.T) {
	var creates int
	c := newStubClient(t, labelsHandler(t,
		`{"labels": [{"id": "L1", "name": "other"}]}`, http.StatusOK, &creates))

	id, err := c.ensureLabel(context.Background(), "done")
	if err != nil {
		t.Fatalf("ensureLabel: %v", err)
	}
	if id != "Label_9" {
		t.Errorf("id = %q, want the freshly created label", id)
	}
	if creates != 1 {
		t.Errorf("creates = %d, want 1", creates)
	}
}

func TestEnsureLabelPropagatesListFailure(t *testing.T) {
	var creates int
	c := newStubClient(t, labelsHandler(t,
		`{"error": {"code": 503, "message": "backend error"}}`, http.StatusServiceUnavailable, &creates))

	_, err := c.ensureLabel(context.Background(), "done")
	if err == nil {
		t.Fatal("ensureLabel succeeded despite the listing failure")
	}
	if errors.Is(err, ErrLabelNotFound) {
		t.Errorf("err = %v, a list failure must not classify as not-found", err)
	}
	if creates != 0 {
		t.Errorf("creates = %d, a list failure must not trigger a create", creates)
	}
}

func TestResolveLabelNotFound(t *testing.T) {
	c := newStubClient(t, labelsHandler(t, `{"labels": []}`, http.StatusOK, nil))

	_, err := c.resolveLabel(context.Background(), "done")
	if !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("err = %v, want ErrLabelNotFound", err)
	}
}
