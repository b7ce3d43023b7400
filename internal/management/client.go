package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout is the HTTP timeout used when no client is supplied
	DefaultTimeout = 10 * time.Second

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 250 * time.Millisecond

	// DefaultMaxRetryDelay caps exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// DefaultClientID is sent as ClientID on every request
	DefaultClientID = 4242

	// maxBodySize bounds a management response
	maxBodySize = 1 << 20
)

// Management API paths
const (
	PathAPIVersions       = "/management/apiversions"
	PathDescription       = "/management/v1/description"
	PathConfiguredDevices = "/management/v1/configureddevices"
)

// Client talks to the management API of a single Alpaca device.
// A Client is safe for concurrent use.
type Client struct {
	// BaseURL is the device API base (e.g., "http://192.168.1.20:11111")
	BaseURL string

	// HTTPClient is the underlying HTTP client; its Timeout bounds every call
	HTTPClient *http.Client

	// ClientID identifies this client to the device
	ClientID uint32

	// MaxRetries is the number of extra attempts for retryable failures
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff
	MaxRetryDelay time.Duration

	transactionID atomic.Uint32
}

// NewClient creates a client for the device at hostPort using scheme from
// service. httpClient may be shared between clients; nil uses a client with
// DefaultTimeout.
func NewClient(service ServiceType, hostPort string, httpClient *http.Client) *Client {
	return NewClientWithURL(fmt.Sprintf("%s://%s", service.Scheme(), hostPort), httpClient)
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		BaseURL:       baseURL,
		HTTPClient:    httpClient,
		ClientID:      DefaultClientID,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// APIVersions returns the management interface versions the device supports
func (c *Client) APIVersions(ctx context.Context) ([]int, error) {
	var versions []int
	if err := c.get(ctx, PathAPIVersions, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// Description returns the device's self-description
func (c *Client) Description(ctx context.Context) (*ServerDescription, error) {
	var desc ServerDescription
	if err := c.get(ctx, PathDescription, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// ConfiguredDevices returns the ASCOM devices the server exposes
func (c *Client) ConfiguredDevices(ctx context.Context) ([]ConfiguredDevice, error) {
	var devices []ConfiguredDevice
	if err := c.get(ctx, PathConfiguredDevices, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// get performs a GET with retries and decodes the envelope's Value into out
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewNetworkError("request canceled before retry", ctx.Err())
			case <-time.After(currentDelay):
			}

			currentDelay *= 2
			if currentDelay > c.MaxRetryDelay {
				currentDelay = c.MaxRetryDelay
			}
		}

		err := c.getAttempt(ctx, path, out)
		if err == nil {
			return nil
		}
		err.Path = path
		lastErr = err

		if !err.Retryable {
			return err
		}
	}

	return lastErr
}

// getAttempt performs a single GET of path
func (c *Client) getAttempt(ctx context.Context, path string, out any) *DeviceError {
	transactionID := c.transactionID.Add(1)

	query := url.Values{}
	query.Set("ClientID", strconv.FormatUint(uint64(c.ClientID), 10))
	query.Set("ClientTransactionID", strconv.FormatUint(uint64(transactionID), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return NewNetworkError("failed to create GET request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("GET %s failed", path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("GET %s returned status %d: %s", path, resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return NewNetworkError("failed to read response body", err)
	}

	envelope := Response[json.RawMessage]{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return NewParseError(fmt.Sprintf("failed to parse %s response", path), err)
	}
	if envelope.ErrorNumber != 0 {
		return NewRemoteError(envelope.ErrorNumber, envelope.ErrorMessage)
	}
	if len(envelope.Value) == 0 || string(envelope.Value) == "null" {
		return NewParseError(fmt.Sprintf("%s response has no Value", path), nil)
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return NewParseError(fmt.Sprintf("failed to parse %s value", path), err)
	}

	return nil
}
