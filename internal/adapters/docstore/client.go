// internal/adapters/docstore/client.go
package docstore

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"winemap/internal/adapters/observability"
	"winemap/internal/domain"
)

// Client adapts the remote document store and its auth provider onto the
// repository's CRUD contract. Collections: "posts" for reports, "users" for
// profiles.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
	now  func() time.Time

	mu   sync.Mutex
	sess *session
}

type session struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
		now:  time.Now,
	}, nil
}

// ---- Auth ----

func (c *Client) SignUp(ctx context.Context, email, password string) error {
	var s session
	err := c.do(ctx, http.MethodPost, c.base+"/auth/accounts",
		map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return &domain.AuthError{Op: "signup", Message: err.Error()}
	}
	c.setSession(&s)
	return nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	var s session
	err := c.do(ctx, http.MethodPost, c.base+"/auth/sessions",
		map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return &domain.AuthError{Op: "signin", Message: err.Error()}
	}
	c.setSession(&s)
	return nil
}

// SignOut drops the client-side session; the provider keeps no server state
// for it.
func (c *Client) SignOut(ctx context.Context) error {
	c.setSession(nil)
	return nil
}

func (c *Client) CurrentUserUID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return "", false
	}
	return c.sess.UID, true
}

func (c *Client) CurrentUserEmail() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return "", false
	}
	return c.sess.Email, true
}

func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	if _, ok := c.CurrentUserUID(); !ok {
		return domain.ErrNotAuthenticated
	}
	err := c.do(ctx, http.MethodPatch, c.base+"/auth/accounts/me",
		map[string]string{"password": newPassword}, nil)
	if err != nil {
		return &domain.AuthError{Op: "update_password", Message: err.Error()}
	}
	return nil
}

func (c *Client) SaveUserProfile(ctx context.Context, uid, email string) error {
	return c.do(ctx, http.MethodPut, c.base+"/collections/users/documents/"+url.PathEscape(uid),
		map[string]string{"uid": uid, "email": email}, nil)
}

func (c *Client) setSession(s *session) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
}

// ---- Reports ----

func (c *Client) SaveReport(ctx context.Context, d domain.ReportDraft) error {
	data := map[string]any{
		"userId":     d.UserID,
		"userName":   d.UserName,
		"wineryName": d.WineryName,
		"content":    d.Content,
		"imageUrl":   d.ImageURL,
		"rating":     d.Rating,
		"createdAt":  c.now().UnixMilli(),
	}
	// Location flattens into three scalar fields, omitted entirely if absent.
	if d.Location != nil {
		data["locationName"] = d.Location.Name
		data["locationLat"] = d.Location.Lat
		data["locationLng"] = d.Location.Lng
	}
	return c.do(ctx, http.MethodPost, c.base+"/collections/posts/documents", data, nil)
}

func (c *Client) GetReportsForUser(ctx context.Context, userID string) ([]domain.Report, error) {
	q := url.Values{"userId": {userID}}
	return c.fetchReports(ctx, c.base+"/collections/posts/documents?"+q.Encode())
}

func (c *Client) GetAllReports(ctx context.Context) ([]domain.Report, error) {
	return c.fetchReports(ctx, c.base+"/collections/posts/documents")
}

func (c *Client) UpdateReport(ctx context.Context, id string, p domain.ReportPatch) error {
	if p.Empty() {
		return nil // nothing to update; no remote call
	}
	data := map[string]any{}
	if p.UserName != nil {
		data["userName"] = *p.UserName
	}
	if p.WineryName != nil {
		data["wineryName"] = *p.WineryName
	}
	if p.Content != nil {
		data["content"] = *p.Content
	}
	if p.ImageURL != nil {
		data["imageUrl"] = *p.ImageURL
	}
	if p.Rating != nil {
		data["rating"] = *p.Rating
	}
	if p.Location != nil {
		data["locationName"] = p.Location.Name
		data["locationLat"] = p.Location.Lat
		data["locationLng"] = p.Location.Lng
	}
	return c.do(ctx, http.MethodPatch, c.base+"/collections/posts/documents/"+url.PathEscape(id), data, nil)
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, c.base+"/collections/posts/documents/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil // idempotent: deleting an absent document succeeds
	}
	return err
}

type documentList struct {
	Documents []document `json:"documents"`
}

type document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) fetchReports(ctx context.Context, url string) ([]domain.Report, error) {
	var list documentList
	if err := c.do(ctx, http.MethodGet, url, nil, &list); err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(list.Documents))
	for _, doc := range list.Documents {
		out = append(out, decodeReport(doc.ID, doc.Data))
	}
	// The remote query guarantees no order; sort newest-first client-side.
	sortByCreatedAtDesc(out)
	return out, nil
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("docstore: not found")
	ErrUnauthorized = errors.New("docstore: unauthorized")
	ErrForbidden    = errors.New("docstore: forbidden")
	ErrConflict     = errors.New("docstore: conflict")
)

// do performs a request with client-side rate limiting, retries, and JSON
// decode into out. Retries on 429 and transient 5xx, honoring Retry-After
// when provided.
func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	start := time.Now()
	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "winemap/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.mu.Lock()
		if c.sess != nil {
			req.Header.Set("Authorization", "Bearer "+c.sess.Token)
		}
		c.mu.Unlock()

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			observability.ObserveRemote(endpointLabel(method, url), resp.StatusCode, time.Since(start))
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			observability.ObserveRemote(endpointLabel(method, url), resp.StatusCode, time.Since(start))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, errBody(resp))

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, errBody(resp))

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			msg := errBody(resp)
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
		}
	}

	return lastErr
}

// errBody reads a small error body for diagnostics and closes it. If the
// body is a JSON object with a "message" field, that field wins.
func errBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &m); err == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(b))
}

func endpointLabel(method, url string) string {
	path := url
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.IndexByte(path, '/'); j >= 0 {
			path = path[j:]
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return method + " " + path
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
