// ABOUTME: Web API client for the CRM service (query, create, retrieve).
// ABOUTME: Authenticates with OAuth2 client credentials or a static bearer token.

package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/2389/dataloader/internal/schema"
)

// APIPath is the Web API root relative to the organization URL.
const APIPath = "/api/data/v9.2"

const defaultTimeout = 30 * time.Second

var (
	// ErrNotReady is returned when the service cannot be reached or authenticated.
	ErrNotReady = errors.New("service client is not ready")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("service client is closed")
)

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, code %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout time.Duration
	base    *http.Client
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for token and API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.base = c }
}

// Client talks to one CRM organization. It is owned by a single operation
// group and must be closed when that group finishes.
type Client struct {
	conn       ConnectionString
	base       string
	httpClient *http.Client
	ready      bool
	closed     bool
}

// Connect parses the connection string, builds an authenticated client and
// verifies it with a WhoAmI round trip. Failures wrap ErrNotReady.
func Connect(ctx context.Context, connectionString string, opts ...Option) (*Client, error) {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	base := o.base
	if base == nil {
		base = &http.Client{Timeout: o.timeout}
	}
	if cs.NeedsAuthority() {
		authority, err := discoverAuthority(ctx, base, cs.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
		}
		cs.Authority = authority
	}

	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var ts oauth2.TokenSource
	switch cs.AuthType {
	case AuthClientSecret:
		cc := clientcredentials.Config{
			ClientID:     cs.ClientID,
			ClientSecret: cs.ClientSecret,
			TokenURL:     cs.TokenURL(),
			Scopes:       []string{cs.URL + "/.default"},
		}
		ts = cc.TokenSource(tokenCtx)
	default:
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cs.Token, TokenType: "Bearer"})
	}

	httpClient := oauth2.NewClient(tokenCtx, ts)
	httpClient.Timeout = o.timeout

	c := &Client{
		conn:       cs,
		base:       cs.URL + APIPath,
		httpClient: httpClient,
	}

	if err := c.whoAmI(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	c.ready = true
	return c, nil
}

// Ready reports whether the client authenticated and has not been closed.
func (c *Client) Ready() bool {
	return c != nil && c.ready && !c.closed
}

// Redacted describes the connection without secrets.
func (c *Client) Redacted() string {
	return c.conn.Redacted()
}

// Close releases idle connections. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

// Query returns every record of the given type, following server paging.
func (c *Client) Query(ctx context.Context, logicalName string, cols ColumnSet) ([]*Entity, error) {
	def, err := c.definition(logicalName)
	if err != nil {
		return nil, err
	}

	next := c.base + "/" + def.EntitySet + selectQuery(cols)
	var out []*Entity
	for next != "" {
		var page struct {
			Value    []map[string]any `json:"value"`
			NextLink string           `json:"@odata.nextLink"`
		}
		if err := c.get(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("query %s: %w", logicalName, err)
		}
		for _, raw := range page.Value {
			e, err := decodeEntity(def, raw)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", logicalName, err)
			}
			out = append(out, e)
		}
		next = page.NextLink
	}
	return out, nil
}

// Create persists a new record and returns its id.
func (c *Client) Create(ctx context.Context, e *Entity) (uuid.UUID, error) {
	def, err := c.definition(e.LogicalName)
	if err != nil {
		return uuid.Nil, err
	}

	body, err := encodeEntity(def, e)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s: %w", e.LogicalName, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s: encoding request: %w", e.LogicalName, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.base+"/"+def.EntitySet, bytes.NewReader(payload))
	if err != nil {
		return uuid.Nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s: request failed: %w", e.LogicalName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create %s: %w", e.LogicalName, readAPIError(resp))
	}

	id, err := parseEntityID(resp.Header.Get("OData-EntityId"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s: %w", e.LogicalName, err)
	}
	e.ID = id
	return id, nil
}

// Retrieve fetches one record by id.
func (c *Client) Retrieve(ctx context.Context, logicalName string, id uuid.UUID, cols ColumnSet) (*Entity, error) {
	def, err := c.definition(logicalName)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	u := fmt.Sprintf("%s/%s(%s)%s", c.base, def.EntitySet, id, selectQuery(cols))
	if err := c.get(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("retrieve %s %s: %w", logicalName, id, err)
	}

	e, err := decodeEntity(def, raw)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s %s: %w", logicalName, id, err)
	}
	if e.ID == uuid.Nil {
		e.ID = id
	}
	return e, nil
}

// discoverAuthority sends one anonymous request to the Web API. The 401 reply
// carries a Bearer challenge naming the tenant's authority.
func discoverAuthority(ctx context.Context, hc *http.Client, orgURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orgURL+APIPath+"/", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("authority discovery: request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	challenge := resp.Header.Get("WWW-Authenticate")
	if resp.StatusCode != http.StatusUnauthorized || challenge == "" {
		return "", fmt.Errorf("authority discovery: expected a 401 challenge, got status %d", resp.StatusCode)
	}
	return AuthorityFromChallenge(challenge)
}

func (c *Client) whoAmI(ctx context.Context) error {
	var resp struct {
		UserID string `json:"UserId"`
	}
	return c.get(ctx, c.base+"/WhoAmI", &resp)
}

func (c *Client) definition(logicalName string) (*schema.Definition, error) {
	if c.closed {
		return nil, ErrClosed
	}
	def, ok := schema.Get(logicalName)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", logicalName)
	}
	return def, nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newRequest creates a Web API request with the OData headers set.
func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	req.Header.Set("Prefer", `odata.include-annotations="*"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	return req, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func selectQuery(cols ColumnSet) string {
	if cols.AllColumns || len(cols.Columns) == 0 {
		return ""
	}
	return "?" + url.Values{"$select": {strings.Join(cols.Columns, ",")}}.Encode()
}
