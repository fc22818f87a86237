package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tilequest/analytics"
	"tilequest/claims"
	"tilequest/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the tilequest HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithAPIKey adds an X-API-Key header, needed for the admin routes.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// SubmitAddress posts a reward claim. A 409 yields an *APIError matching claims.ErrDuplicate.
func (c *Client) SubmitAddress(ctx context.Context, wallet string, level int, sessionID string) (SubmittedClaim, error) {
	if strings.TrimSpace(wallet) == "" {
		return SubmittedClaim{}, ErrEmptyWallet
	}
	payload, err := json.Marshal(claims.Submission{WalletAddress: wallet, NFTLevel: level, SessionID: sessionID})
	if err != nil {
		return SubmittedClaim{}, err
	}

	var body struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    SubmittedClaim `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/addresses", bytes.NewReader(payload), &body); err != nil {
		return SubmittedClaim{}, err
	}
	if !body.Success {
		return SubmittedClaim{}, errors.New("claim not accepted")
	}
	return body.Data, nil
}

// SubmitClaim lets the client act as the game's remote claim submitter.
func (c *Client) SubmitClaim(ctx context.Context, wallet string, level int, sessionID string) (int64, error) {
	res, err := c.SubmitAddress(ctx, wallet, level, sessionID)
	return res.ID, err
}

// ListAddresses fetches one page of stored claims.
func (c *Client) ListAddresses(ctx context.Context, opts ListOptions) (AddressPage, error) {
	u, err := url.Parse(c.baseURL + "/addresses")
	if err != nil {
		return AddressPage{}, err
	}
	u.RawQuery = opts.query().Encode()

	var body struct {
		Data       []claims.Address `json:"data"`
		Pagination Pagination       `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, u.String(), nil, &body); err != nil {
		return AddressPage{}, err
	}
	return AddressPage{Addresses: body.Data, Pagination: body.Pagination}, nil
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Level != 0 {
		q.Set("level", strconv.Itoa(o.Level))
	}
	if o.Address != "" {
		q.Set("address", o.Address)
	}
	if o.Limit != 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset != 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// Stats fetches aggregate claim statistics.
func (c *Client) Stats(ctx context.Context) (claims.Stats, error) {
	var body struct {
		Data claims.Stats `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/addresses/stats", nil, &body); err != nil {
		return claims.Stats{}, err
	}
	return body.Data, nil
}

// Analytics fetches the event summary of the period containing date.
// A zero date means today on the server.
func (c *Client) Analytics(ctx context.Context, period analytics.AggregationPeriod, date time.Time) (analytics.Summary, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", string(period))
	}
	if !date.IsZero() {
		q.Set("date", date.Format(time.DateOnly))
	}
	target := c.baseURL + "/analytics"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var body struct {
		Data analytics.Summary `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, target, nil, &body); err != nil {
		return analytics.Summary{}, err
	}
	return body.Data, nil
}

// ExportCSV copies the CSV export into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer, opts ListOptions) error {
	u, err := url.Parse(c.baseURL + "/addresses/export.csv")
	if err != nil {
		return err
	}
	opts.Limit, opts.Offset = 0, 0
	u.RawQuery = opts.query().Encode()

	resp, err := c.send(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return readAPIError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally limited to the given types. The returned channel closes when ctx
// is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		target += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, out any) error {
	resp, err := c.send(ctx, method, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) send(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
