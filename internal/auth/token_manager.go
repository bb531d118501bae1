// Package auth manages the OAuth2 credential and token lifecycle for the
// polled Gmail accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// refreshMargin is how close to expiry a token may get before it is
// refreshed ahead of an API call
const refreshMargin = 60 * time.Second

var (
	// ErrBadCredentials is returned when the credentials file is missing
	// the desktop/web application keys
	ErrBadCredentials = errors.New("invalid oauth credentials file")

	// ErrNoToken is returned when an account has no stored token yet
	ErrNoToken = errors.New("no stored token, run with -authorize first")
)

// TokenManager builds OAuth2 clients from a credentials file and per-account
// token files
type TokenManager struct {
	config *oauth2.Config
	port   int
	logger *slog.Logger
}

// NewTokenManager reads the OAuth client credentials JSON (desktop or web
// application type) and prepares a manager using callbackPort for the
// interactive flow
func NewTokenManager(credentialsPath string, callbackPort int, logger *slog.Logger) (*TokenManager, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", credentialsPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/oauth2callback", callbackPort)

	return &TokenManager{
		config: cfg,
		port:   callbackPort,
		logger: logger.With("component", "token_manager"),
	}, nil
}

// storedToken is the on-disk token layout
type storedToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiryDate   int64  `json:"expiry_date"` // epoch ms
}

// LoadToken reads a token file. A missing file yields (nil, nil).
func (m *TokenManager) LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
	}
	if st.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	return tok, nil
}

// SaveToken persists a token, creating the parent directory if missing
func (m *TokenManager) SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	st := storedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		st.ExpiryDate = tok.Expiry.UnixMilli()
	}

	data, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", path, err)
	}
	return nil
}

// Client returns an authenticated HTTP client for the token at path,
// refreshing the token first when it is within the refresh margin of expiry
// and persisting the refreshed token before returning
func (m *TokenManager) Client(ctx context.Context, path string) (*http.Client, error) {
	tok, err := m.LoadToken(path)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w (token file %s)", ErrNoToken, path)
	}

	if m.expiringSoon(tok) && tok.RefreshToken != "" {
		// TokenSource only refreshes tokens it considers expired, and its
		// internal expiry delta is shorter than the margin here. Hand it a
		// copy forced past expiry so the refresh actually happens.
		stale := *tok
		stale.Expiry = time.Now().Add(-time.Minute)
		fresh, err := m.config.TokenSource(ctx, &stale).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		if err := m.SaveToken(path, fresh); err != nil {
			return nil, err
		}
		m.logger.Info("refreshed oauth token", "token_path", path, "expiry", fresh.Expiry)
		tok = fresh
	}

	return m.config.Client(ctx, tok), nil
}

func (m *TokenManager) expiringSoon(tok *oauth2.Token) bool {
	return !tok.Expiry.IsZero() && time.Until(tok.Expiry) < refreshMargin
}
