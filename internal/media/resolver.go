// Package media normalizes image references into inline data for the model.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/haasonsaas/parley/internal/agent"
)

// ErrUnknownMediaType reports that no media type could be determined for a
// reference, neither from a hint nor from its extension.
var ErrUnknownMediaType = errors.New("media: unknown media type")

// FetchError reports a failed HTTP fetch of a remote reference.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("media: fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

const fetchTimeout = 10 * time.Second

// Resolver turns an image reference into (media type, bytes). Four reference
// shapes are accepted, dispatched on the string itself:
//
//   - http(s) URL: fetched with a bounded GET
//   - data URI: base64 payload decoded, media type taken from the prefix
//   - local file path: read directly
//   - anything else: decoded as a raw base64 payload (legacy callers submit
//     bare base64 with a media type hint)
type Resolver struct {
	client *http.Client
}

// NewResolver creates a resolver with a bounded HTTP client.
func NewResolver() *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Resolve normalizes ref into inline data. mimeTypeHint is used when the
// reference itself does not carry a media type; a data URI prefix always
// wins over the hint. Results are not cached.
func (r *Resolver) Resolve(ctx context.Context, ref, mimeTypeHint string) (agent.Blob, error) {
	var blob agent.Blob

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err := r.fetch(ctx, ref)
		if err != nil {
			return agent.Blob{}, err
		}
		blob.Data = data

	case strings.HasPrefix(ref, "data:"):
		mimeType, data, err := decodeDataURI(ref)
		if err != nil {
			return agent.Blob{}, err
		}
		blob.Data = data
		mimeTypeHint = mimeType

	default:
		data, err := os.ReadFile(ref)
		switch {
		case err == nil:
			blob.Data = data
		case errors.Is(err, fs.ErrNotExist):
			// Not a file: treat the reference itself as a raw
			// base64 payload.
			decoded, decErr := base64.StdEncoding.DecodeString(ref)
			if decErr != nil {
				return agent.Blob{}, fmt.Errorf("media: reference is neither a readable file nor base64: %w", decErr)
			}
			blob.Data = decoded
		default:
			return agent.Blob{}, fmt.Errorf("media: read %s: %w", ref, err)
		}
	}

	if mimeTypeHint == "" {
		mimeTypeHint = guessMIMEType(ref)
	}
	if mimeTypeHint == "" {
		return agent.Blob{}, fmt.Errorf("%w: %s", ErrUnknownMediaType, ref)
	}
	blob.MIMEType = mimeTypeHint
	return blob, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return data, nil
}

// decodeDataURI parses "data:<mediatype>;base64,<payload>".
func decodeDataURI(ref string) (string, []byte, error) {
	header, payload, ok := strings.Cut(ref, ",")
	if !ok {
		return "", nil, fmt.Errorf("media: malformed data URI")
	}
	mimeType := strings.TrimPrefix(header, "data:")
	if mt, _, ok := strings.Cut(mimeType, ";"); ok {
		mimeType = mt
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("media: decode data URI payload: %w", err)
	}
	return mimeType, data, nil
}

// guessMIMEType derives a media type from the reference's extension.
// Query strings and fragments are dropped first so URLs resolve too.
func guessMIMEType(ref string) string {
	name := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	mimeType := mime.TypeByExtension(ext)
	if mt, _, ok := strings.Cut(mimeType, ";"); ok {
		mimeType = mt
	}
	return mimeType
}
