// Package voicenotes wraps the Voicenotes sync API: bearer-token lifecycle,
// rate-limit retries, and typed accessors for each remote operation.
package voicenotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/models"
	"github.com/starford/voxsync/internal/storage"
)

const (
	defaultBaseURL     = "https://api.voicenotes.com/api/integrations/sync"
	defaultHTTPTimeout = 45 * time.Second

	// 429 handling: fail on the third consecutive rate-limit response.
	rateLimitRetries = 3
	retryBase        = time.Second
	retryCeiling     = 60 * time.Second
)

// Config describes the client configuration.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client wraps the Voicenotes REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger

	// Injectable for tests.
	sleep func(time.Duration)
	now   func() time.Time

	mu    sync.RWMutex
	token string
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("voicenotes: parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
		sleep:   time.Sleep,
		now:     time.Now,
		token:   strings.TrimSpace(cfg.Token),
	}, nil
}

// SetToken replaces the bearer credential. A blank token clears it, making
// all authenticated operations fail fast without a network call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the current bearer credential ("" when logged out).
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// buildURL joins a relative endpoint to the base URL. Absolute URLs (the
// opaque pagination links the API returns) pass through untouched.
func (c *Client) buildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL.JoinPath(strings.TrimPrefix(endpoint, "/")).String()
}

// doJSON performs an authenticated request and decodes the JSON response
// into out. 429 responses are retried in place; every other failure maps to
// the apperr taxonomy.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	token := c.Token()
	if token == "" {
		return apperr.ErrNotAuthenticated
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("voicenotes: encode request: %w", err)
		}
	}

	target := c.buildURL(endpoint)
	rateLimited := 0
	for {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("voicenotes: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-API-KEY", token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("voicenotes: %s %s: %w", method, endpoint, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("voicenotes: decode response: %w", err)
			}
			return nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			// The credential is dead; clear it so later calls fail fast.
			c.SetToken("")
			return apperr.Request(apperr.ErrAuthExpired, resp.StatusCode,
				"token invalid or expired", string(respBody), resp.Header)

		case http.StatusNotFound:
			return apperr.Request(apperr.ErrNotFound, resp.StatusCode,
				"resource not found", string(respBody), resp.Header)

		case http.StatusBadRequest:
			msg := serverMessage(respBody)
			if msg == "" {
				msg = "bad request"
			}
			return apperr.Request(apperr.ErrBadRequest, resp.StatusCode,
				msg, string(respBody), resp.Header)

		case http.StatusTooManyRequests:
			rateLimited++
			if rateLimited >= rateLimitRetries {
				return apperr.Request(apperr.ErrRateLimited, resp.StatusCode,
					"rate limit retries exhausted", string(respBody), resp.Header)
			}
			wait := c.retryWait(resp.Header.Get("Retry-After"), rateLimited-1)
			c.logger.Debug("voicenotes: rate limited, backing off",
				slog.Duration("wait", wait),
				slog.Int("attempt", rateLimited))
			c.sleep(wait)
			continue

		default:
			return apperr.Request(apperr.ErrTransient, resp.StatusCode,
				"service error", string(respBody), resp.Header)
		}
	}
}

// retryWait computes the backoff before the next attempt after a 429. A
// Retry-After hint wins when present: integer seconds first, then an
// absolute HTTP date. Otherwise exponential backoff seeded at one second.
// The result is clamped to [0, retryCeiling].
func (c *Client) retryWait(hint string, attempt int) time.Duration {
	wait := retryBase << attempt
	if hint = strings.TrimSpace(hint); hint != "" {
		if secs, err := strconv.Atoi(hint); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(hint); err == nil {
			wait = at.Sub(c.now())
		}
	}
	if wait < 0 {
		wait = 0
	}
	if wait > retryCeiling {
		wait = retryCeiling
	}
	return wait
}

// serverMessage extracts the "message" field from an error body.
func serverMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Message)
}

type recordingsRequest struct {
	LastSyncedNoteUpdatedAt string   `json:"last_synced_note_updated_at,omitempty"`
	DeletedRecordingIDs     []string `json:"deleted_recording_ids,omitempty"`
}

// Recordings fetches the first page of recordings newer than the watermark,
// reporting locally deleted recording ids so the server can exclude them.
func (c *Client) Recordings(ctx context.Context, since string, deletedIDs []string) (*models.RecordingPage, error) {
	var page models.RecordingPage
	req := recordingsRequest{
		LastSyncedNoteUpdatedAt: since,
		DeletedRecordingIDs:     deletedIDs,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/recordings", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecordingsFromLink fetches the next page through the opaque continuation
// link returned by the previous page.
func (c *Client) RecordingsFromLink(ctx context.Context, link string) (*models.RecordingPage, error) {
	var page models.RecordingPage
	if err := c.doJSON(ctx, http.MethodPost, link, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SignedURL returns a short-lived download link for a recording's audio.
func (c *Client) SignedURL(ctx context.Context, recordingID string) (*models.SignedURL, error) {
	var signed models.SignedURL
	endpoint := "/recordings/" + url.PathEscape(recordingID) + "/signed-url"
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}

// DeleteRecording asks the remote to delete a recording.
func (c *Client) DeleteRecording(ctx context.Context, recordingID string) (bool, error) {
	endpoint := "/recordings/" + url.PathEscape(recordingID)
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// UserInfo fetches the account profile. It is only a credential-validity
// probe, so every failure maps to nil rather than an error.
func (c *Client) UserInfo(ctx context.Context) *models.User {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/user/info", nil, &user); err != nil {
		c.logger.Debug("voicenotes: user info probe failed", slog.String("error", err.Error()))
		return nil
	}
	return &user
}

// DownloadFile streams the resource at rawURL into the vault at destPath.
// Signed URLs carry their own authorization, so no auth headers are sent.
// Unlike UserInfo this is a side-effecting operation and failures propagate.
func (c *Client) DownloadFile(ctx context.Context, store storage.Provider, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("voicenotes: build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voicenotes: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.Request(apperr.ErrTransient, resp.StatusCode,
			"download failed", string(body), resp.Header)
	}
	if err := store.WriteStream(destPath, resp.Body); err != nil {
		return fmt.Errorf("voicenotes: store download: %w", err)
	}
	return nil
}
