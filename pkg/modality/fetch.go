package modality

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxFetchBytes bounds the size of a fetched reference.
const DefaultMaxFetchBytes = 50 << 20

var (
	ErrEmptyReference  = errors.New("empty reference")
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
	ErrLocalReference  = errors.New("local file references are disabled")
)

// Payload is the content behind a reference.
type Payload struct {
	Data        []byte
	ContentType string
	Name        string
}

// Fetcher resolves references to bytes. Supported forms are http(s) URLs and
// data: URIs. file:// URLs and bare filesystem paths are only read when the
// fetcher was built with allowLocal.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	allowLocal bool
}

// NewFetcher creates a Fetcher. A nil httpClient uses http.DefaultClient and
// a non-positive maxBytes uses DefaultMaxFetchBytes. Fetchers serving remote
// callers must leave allowLocal off.
func NewFetcher(httpClient *http.Client, maxBytes int64, allowLocal bool) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFetchBytes
	}
	return &Fetcher{httpClient: httpClient, maxBytes: maxBytes, allowLocal: allowLocal}
}

// Fetch loads ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Payload, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, ErrEmptyReference
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)
	case !f.allowLocal:
		return nil, ErrLocalReference
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid file reference: %w", err)
		}
		return f.readFile(u.Path)
	default:
		return f.readFile(ref)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Detail: "fetch " + ref}
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	name := ""
	if u, err := url.Parse(ref); err == nil {
		name = path.Base(u.Path)
	}
	return &Payload{Data: data, ContentType: mediaType(resp.Header.Get("Content-Type"), name), Name: name}, nil
}

func (f *Fetcher) readFile(p string) (*Payload, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer file.Close()

	data, err := f.readLimited(file)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(p)
	return &Payload{Data: data, ContentType: mediaType("", name), Name: name}, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

// decodeDataURI parses data:[<mediatype>][;base64],<data>.
func decodeDataURI(ref string) (*Payload, error) {
	meta, body, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI")
	}

	isBase64 := strings.HasSuffix(meta, ";base64")
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "text/plain"
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data URI: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(body)
		if err != nil {
			return nil, fmt.Errorf("invalid data URI: %w", err)
		}
		data = []byte(unescaped)
	}
	return &Payload{Data: data, ContentType: mediaType(contentType, "")}, nil
}

// mediaType returns the bare media type from header, falling back to the
// file extension of name.
func mediaType(header, name string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return mt
		}
	}
	if ext := filepath.Ext(name); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			if parsed, _, err := mime.ParseMediaType(mt); err == nil {
				return parsed
			}
		}
	}
	return ""
}

// EncodeDataURI renders p as a base64 data: URI.
func EncodeDataURI(p *Payload) string {
	ct := p.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}
