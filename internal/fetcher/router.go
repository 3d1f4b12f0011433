package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Router dispatches downloads to a Fetcher by URL scheme.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter returns a Router serving http and https with h and ftp with f.
// A nil fetcher leaves its schemes unsupported.
func NewRouter(h *HTTPFetcher, f *FTPFetcher) *Router {
	r := &Router{schemes: make(map[string]Fetcher)}
	if h != nil {
		r.Handle("http", h)
		r.Handle("https", h)
	}
	if f != nil {
		r.Handle("ftp", f)
	}
	return r
}

// Handle registers f for scheme.
func (r *Router) Handle(scheme string, f Fetcher) {
	r.schemes[strings.ToLower(scheme)] = f
}

// Download fetches rawURL with the fetcher registered for its scheme.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse url")
	}
	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, eris.Errorf("unsupported url scheme %q in %s", u.Scheme, rawURL)
	}
	return f.Download(ctx, rawURL)
}
