package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// RemoteResolver asks an auth service who the caller is (GET <base>/whoami), forwarding
// the request's Authorization and Cookie headers.
type RemoteResolver struct {
	baseURL  string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
}

type RemoteOption func(*RemoteResolver)

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRetry(max int) RemoteOption {
	return func(r *RemoteResolver) { r.retryMax = max }
}

func NewRemoteResolver(baseURL string, opts ...RemoteOption) *RemoteResolver {
	r := &RemoteResolver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		timeout:  3 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type whoami struct {
	UserID string `json:"user_id"`
}

var forwarded = []string{"Authorization", "Cookie"}

func (r *RemoteResolver) Resolve(ctx context.Context, in *http.Request) (Identity, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(r.baseURL + "/whoami")
	for _, h := range forwarded {
		if v := strings.TrimSpace(in.Header.Get(h)); v != "" {
			req.Header.Set(h, v)
		}
	}

	attempts := r.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := r.http.DoDeadline(req, resp, r.deadline(ctx)); err != nil {
			lastErr = fmt.Errorf("auth request failed: %w", err)
		} else {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
				return Identity{}, ErrUnauthenticated
			case status >= 200 && status < 300:
				var body whoami
				if err := json.Unmarshal(resp.Body(), &body); err != nil {
					return Identity{}, fmt.Errorf("decode whoami: %w", err)
				}
				if strings.TrimSpace(body.UserID) == "" {
					return Identity{}, ErrUnauthenticated
				}
				return Identity{Player: strings.TrimSpace(body.UserID)}, nil
			default:
				lastErr = fmt.Errorf("auth service error: status=%d", status)
				if !shouldRetryStatus(status) {
					return Identity{}, lastErr
				}
			}
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return Identity{}, lastErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return Identity{}, lastErr
}

func (r *RemoteResolver) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(r.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// 100ms, 200ms, 400ms ... capped at 3.2s
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	}
	return false
}
