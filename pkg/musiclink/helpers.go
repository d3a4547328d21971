package musiclink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	// commonUserAgent is the user agent string used for all provider requests.
	commonUserAgent = "trackrelay/1.0 (+https://core.telegram.org/bots)"
	// maxPayloadSize limits how much of a provider's JSON answer is read.
	maxPayloadSize = 1 << 20
	// maxHTTPRedirects is the maximum number of HTTP redirects to follow.
	maxHTTPRedirects = 3
	// maxErrorBodySnippet limits how much of an error body ends up in error messages.
	maxErrorBodySnippet = 200
)

var (
	// ErrTooManyRedirects is returned when too many redirects are encountered.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// newHTTPClient creates a new HTTP client with the given timeout and redirect validation.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// StatusError reports a non-2xx provider answer.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s provider request failed with status code %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s provider request failed with status code %d: %s", e.Provider, e.StatusCode, e.Body)
}

// fetchJSON performs a GET request and returns the validated JSON body.
func fetchJSON(
	ctx context.Context,
	client *http.Client,
	endpoint string,
	query url.Values,
	headers http.Header,
	providerName string,
) ([]byte, error) {
	reqURL := endpoint
	if len(query) > 0 {
		reqURL = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", commonUserAgent)
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s provider response: %w", providerName, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s provider: %w", providerName, ErrMalformedPayload)
	}

	return body, nil
}

// snippet shortens body for error messages. The result is always valid UTF-8
// since it may end up in a chat message.
func snippet(body []byte) string {
	if len(body) <= maxErrorBodySnippet {
		return strings.ToValidUTF8(string(body), "")
	}

	cut := maxErrorBodySnippet
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), "") + "..."
}
