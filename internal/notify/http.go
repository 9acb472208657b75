// Package notify sends cache invalidation requests after a user's content moves.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hashmove/internal/hm"
)

// MethodBan is the cache purge method understood by Varnish-style caches.
const MethodBan = "BAN"

// DefaultTimeout bounds one ban request.
const DefaultTimeout = 10 * time.Second

// HTTPNotifier sends BAN {baseURL}/{service}/user/{user}.
type HTTPNotifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPNotifier creates a notifier for baseURL. A nil client gets DefaultTimeout.
func NewHTTPNotifier(baseURL string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// URL returns the ban target for a user.
func (n *HTTPNotifier) URL(service, user string) string {
	return n.baseURL + "/" + url.PathEscape(service) + "/user/" + url.PathEscape(user)
}

// Notify sends the ban request. Any 2xx response is success.
func (n *HTTPNotifier) Notify(ctx context.Context, service, user string) error {
	req, err := http.NewRequestWithContext(ctx, MethodBan, n.URL(service, user), nil)
	if err != nil {
		return fmt.Errorf("building ban request: %w", err)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending ban request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ban %s/%s: unexpected status %d", service, user, resp.StatusCode)
	}
	return nil
}

// Compile-time check
var _ hm.Notifier = (*HTTPNotifier)(nil)
