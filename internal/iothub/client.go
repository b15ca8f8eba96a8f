package iothub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/iot-portal/internal/twin"
)

const (
	// DefaultAPIVersion is the IoT Hub service API version used for queries.
	DefaultAPIVersion = "2021-04-12"

	defaultTimeout = 30 * time.Second

	headerContinuation = "x-ms-continuation"
	headerMaxItemCount = "x-ms-max-item-count"

	// maxErrorBody limits how much of an error response is kept in the error.
	maxErrorBody = 512
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	APIVersion string
	Timeout    time.Duration
	TokenTTL   time.Duration

	// HTTPClient replaces the default *http.Client.
	HTTPClient HTTPClient

	// BaseURL overrides https://<HostName>, for example to point at a test server.
	BaseURL string
}

// Client queries the IoT Hub device registry over its REST API.
// It implements twin.Registry.
type Client struct {
	baseURL    string
	apiVersion string
	http       HTTPClient
	signer     *tokenSigner
}

var _ twin.Registry = (*Client)(nil)

// New creates a Client from an IoT Hub service connection string.
func New(connectionString string, opts Options) (*Client, error) {
	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://" + cs.HostName
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiVersion: opts.APIVersion,
		http:       opts.HTTPClient,
		signer:     newTokenSigner(cs, opts.TokenTTL),
	}, nil
}

// GetAllDevices returns one page of twins matching filter (an IoT Hub query
// WHERE clause; empty selects every twin) along with the total number of
// matching twins. The total is re-counted on every call.
func (c *Client) GetAllDevices(ctx context.Context, continuationToken, filter string, pageSize int) (*twin.Page, error) {
	where := whereClause(filter)

	total, err := c.count(ctx, where)
	if err != nil {
		return nil, err
	}

	var items []twin.Twin
	next, err := c.query(ctx, "SELECT * FROM devices"+where, continuationToken, pageSize, &items)
	if err != nil {
		return nil, err
	}

	return &twin.Page{
		Items:      items,
		TotalItems: total,
		NextPage:   next,
	}, nil
}

func (c *Client) count(ctx context.Context, where string) (int, error) {
	var rows []struct {
		TotalNumber int `json:"totalNumber"`
	}
	if _, err := c.query(ctx, "SELECT COUNT() AS totalNumber FROM devices"+where, "", 0, &rows); err != nil {
		return 0, fmt.Errorf("counting twins: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].TotalNumber, nil
}

// query posts one registry query, decodes the JSON array into out and
// returns the continuation token for the next page.
func (c *Client) query(ctx context.Context, sql, continuation string, pageSize int, out any) (string, error) {
	body, err := json.Marshal(map[string]string{"query": sql})
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}

	reqURL := c.baseURL + "/devices/query?api-version=" + url.QueryEscape(c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building query request: %w", err)
	}

	req.Header.Set("Authorization", c.signer.Token())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if pageSize > 0 {
		req.Header.Set(headerMaxItemCount, strconv.Itoa(pageSize))
	}
	if continuation != "" {
		req.Header.Set(headerContinuation, continuation)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort detail
		return "", fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return resp.Header.Get(headerContinuation), nil
}

func whereClause(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ""
	}
	return " WHERE " + filter
}
