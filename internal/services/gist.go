// GitHub Gist backed [Ledger] implementation.
//
// One gist plays the role of a tiny remote document store: each ledger
// document is a file inside the gist, re-read wholesale at run start and
// overwritten wholesale on every checkpoint.
package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// GistLedger implements [Ledger] on top of the GitHub Gist API.
type GistLedger struct {
	cfg        shared.LedgerConfig
	gistID     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewGistLedger creates a ledger bound to one gist identity. The access
// token is carried by an [oauth2] client so every request is bearer-signed.
func NewGistLedger(cfg *shared.Config, token, gistID string, logger *log.Logger) *GistLedger {
	base := &http.Client{}
	if cfg.HTTP.Insecure {
		base.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	return &GistLedger{
		cfg:        cfg.Ledger,
		gistID:     gistID,
		httpClient: client,
		logger:     logger,
	}
}

type gistFile struct {
	Content string `json:"content"`
}

type gistDocument struct {
	Files map[string]gistFile `json:"files"`
}

type gistPatch struct {
	Description string              `json:"description"`
	Files       map[string]gistFile `json:"files"`
}

// Fetch reads the source configuration, session credentials and migration
// index from the gist.
//
// A missing or corrupt index document is reset to an empty index rather
// than failing the run; this trades data-loss risk for availability and is
// logged at error severity so the reset never goes unnoticed.
func (g *GistLedger) Fetch(ctx context.Context) (*models.LedgerState, error) {
	url := fmt.Sprintf("%s/gists/%s", g.cfg.APIBaseURL, g.gistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gist fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", shared.ErrGistNotFound, g.gistID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", shared.ErrBadToken, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("gist fetch failed: status %d", resp.StatusCode)
	}

	var doc gistDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode gist response: %w", err)
	}

	state := &models.LedgerState{Index: models.MigrationIndex{}}

	configRaw, ok := doc.Files[g.cfg.ConfigDocument]
	if !ok {
		return nil, fmt.Errorf("%w: gist missing %s", shared.ErrMissingConfig, g.cfg.ConfigDocument)
	}
	if err := json.Unmarshal([]byte(configRaw.Content), &state.Sources); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidConfig, g.cfg.ConfigDocument, err)
	}
	for _, src := range state.Sources {
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	}

	cookieRaw, ok := doc.Files[g.cfg.CookieDocument]
	if !ok {
		return nil, fmt.Errorf("%w: gist missing %s", shared.ErrMissingConfig, g.cfg.CookieDocument)
	}
	if !json.Valid([]byte(cookieRaw.Content)) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", shared.ErrInvalidConfig, g.cfg.CookieDocument)
	}
	state.Credentials = json.RawMessage(cookieRaw.Content)

	if indexRaw, ok := doc.Files[g.cfg.IndexDocument]; ok {
		if err := json.Unmarshal([]byte(indexRaw.Content), &state.Index); err != nil {
			g.logger.Error("migration index is corrupt, resetting to empty; previously recorded migrations may repeat",
				"document", g.cfg.IndexDocument, "err", err)
			state.Index = models.MigrationIndex{}
		}
	} else {
		g.logger.Error("migration index document missing, starting from an empty index",
			"document", g.cfg.IndexDocument)
	}

	return state, nil
}

// Store overwrites one document in the gist with payload serialized as
// indented JSON.
func (g *GistLedger) Store(ctx context.Context, document string, payload any) error {
	content, err := shared.MarshalJSON(payload, true)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", document, err)
	}

	body, err := json.Marshal(gistPatch{
		Description: g.cfg.Description,
		Files:       map[string]gistFile{document: {Content: string(content)}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal gist patch: %w", err)
	}

	url := fmt.Sprintf("%s/gists/%s", g.cfg.APIBaseURL, g.gistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLedgerWrite, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrGistNotFound, g.gistID)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrBadToken, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrLedgerWrite, resp.StatusCode)
	}

	return nil
}
