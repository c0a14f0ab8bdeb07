package modality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

// ErrUpstream is matched by every HTTPError.
var ErrUpstream = errors.New("inference service error")

// HTTPError is returned for non-2xx responses from an inference service.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Detail)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUpstream
}

// InferenceClient talks to the remote inference services. Per-call
// deadlines come from the caller's context.
type InferenceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewInferenceClient creates a client for baseURL. A nil httpClient uses a
// client without a global timeout.
func NewInferenceClient(baseURL, apiKey string, httpClient *http.Client) *InferenceClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &InferenceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// PostJSON sends body as JSON to path and decodes the JSON response into out.
func (c *InferenceClient) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, path, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

// PostFile uploads data as a multipart form file named field and decodes the
// JSON response into out.
func (c *InferenceClient) PostFile(ctx context.Context, path, field, filename, contentType string, data []byte, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	resp, err := c.do(ctx, path, mw.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

// PostStream sends body as JSON and passes each chunk of the plain-text
// response body to fn as it arrives.
func (c *InferenceClient) PostStream(ctx context.Context, path string, body interface{}, fn func(chunk string) error) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, path, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := fn(string(buf[:n])); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("stream read failed: %w", readErr)
		}
	}
}

func (c *InferenceClient) do(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiError struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &apiError) != nil || apiError.Detail == "" {
			apiError.Detail = strings.TrimSpace(string(data))
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Detail: apiError.Detail}
	}
	return resp, nil
}

// decodeBody decodes a JSON response, repairing malformed output from
// services that emit trailing commas or truncated objects.
func decodeBody(r io.Reader, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return fmt.Errorf("failed to decode response: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
