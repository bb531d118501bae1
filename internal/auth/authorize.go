package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// authorizeTimeout caps how long the interactive flow waits for the
// operator to complete the consent screen
const authorizeTimeout = 5 * time.Minute

var (
	// ErrPortInUse is returned when the callback port is already bound
	ErrPortInUse = errors.New("oauth callback port already in use")

	// ErrAuthTimeout is returned when no callback arrives in time
	ErrAuthTimeout = errors.New("authorization timed out")

	// ErrAuthDenied is returned when the consent screen reports an error
	ErrAuthDenied = errors.New("authorization denied")
)

const successPage = `<html><body><h2>Authorization complete</h2>
<p>You can close this window and return to the terminal.</p></body></html>`

const errorPage = `<html><body><h2>Authorization failed</h2>
<p>Check the terminal for details.</p></body></html>`

// Authorize drives the one-time interactive flow for an account: it prints
// the consent URL, waits for exactly one callback on the fixed local port,
// exchanges the code and persists the resulting token at tokenPath.
func (m *TokenManager) Authorize(ctx context.Context, accountName, tokenPath string) error {
	state := uuid.NewString()
	authURL := m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: port %d (stop whatever is listening there or change OAUTH_CALLBACK_PORT)",
				ErrPortInUse, m.port)
		}
		return fmt.Errorf("failed to open callback listener: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, errorPage)
			errCh <- fmt.Errorf("%w: %s", ErrAuthDenied, q.Get("error"))
		case q.Get("code") == "" || q.Get("state") != state:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, errorPage)
			errCh <- fmt.Errorf("%w: callback carried no valid code", ErrAuthDenied)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, successPage)
			codeCh <- q.Get("code")
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Authorize account %q by visiting:\n\n%s\n\n", accountName, authURL)
	m.logger.Info("waiting for oauth callback", "account", accountName, "port", m.port)

	select {
	case code := <-codeCh:
		tok, err := m.config.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		if err := m.SaveToken(tokenPath, tok); err != nil {
			return err
		}
		m.logger.Info("authorization complete", "account", accountName, "token_path", tokenPath)
		return nil
	case err := <-errCh:
		return err
	case <-time.After(authorizeTimeout):
		return ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
