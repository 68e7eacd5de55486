package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
)

const contentTypeJSON = "application/json"

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// Envelope is the {"data": ...} wrapper the API puts around resources.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// Client sends JSON requests to one API host.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends in as the JSON body (when not nil) and decodes a 2xx response into
// out (when not nil). Non-2xx responses are returned as *apperrors.APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	req, err := c.NewRequest(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return TransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(apperrors.ErrServer, "decode %s %s response: %v", method, path, err)
	}
	return nil
}

// NewRequest builds a JSON request. Bodies are buffered so the request can be
// replayed after a token refresh.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, in any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.NewRequest] encode body")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.NewRequest] build request")
	}
	req.Header.Set("Accept", contentTypeJSON)
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return req, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeError turns a non-2xx response into an *apperrors.APIError, taking
// the message from the body's "error" or "message" field.
func DecodeError(resp *http.Response) error {
	apiErr := &apperrors.APIError{
		Status: resp.StatusCode,
		Kind:   apperrors.KindForStatus(resp.StatusCode),
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}

// TransportError classifies a failed round trip. The caller's own
// cancellation is returned unchanged, everything else is a network error.
func TransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apperrors.NetworkError(err)
}
