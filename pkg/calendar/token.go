package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/peterbourgon/diskv/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

const tokenKey = "google-oauth-token"

var ErrNoCredentials = errors.New("no saved calendar credentials")

// TokenStore persists the remote access token next to the calendar cache.
type TokenStore struct {
	disk *diskv.Diskv
}

// Load returns the saved token. A token that has expired and cannot be
// refreshed counts as absent.
func (t *TokenStore) Load() (*oauth2.Token, error) {
	if !t.disk.Has(tokenKey) {
		return nil, ErrNoCredentials
	}
	raw, err := t.disk.Read(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, ErrNoCredentials
	}
	return tok, nil
}

func (t *TokenStore) Save(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := t.disk.Write(tokenKey, raw); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// OAuthConfig returns the read-only Google Calendar client configuration.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}
}

// TokenSource returns a source built from the saved token that writes every
// refreshed token back to the store.
func (t *TokenStore) TokenSource(ctx context.Context, cfg *oauth2.Config) (oauth2.TokenSource, error) {
	tok, err := t.Load()
	if err != nil {
		return nil, err
	}
	return &persistingSource{base: cfg.TokenSource(ctx, tok), store: t, last: tok.AccessToken}, nil
}

type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store *TokenStore
	last  string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
