package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"zetafin/internal/core"
	"zetafin/internal/log"
)

const (
	tableTransactions = "transactions"
	tableCategories   = "categories"
	tableUsers        = "users"

	maxErrorBody = 4 << 10
)

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	// Tokens authenticates requests; usually a *Session, or
	// oauth2.StaticTokenSource for service tokens.
	Tokens  oauth2.TokenSource
	UserID  string
	Timeout time.Duration
	Logger  *log.Logger
}

// RESTClient implements Store over a PostgREST-style collection API.
type RESTClient struct {
	base   *url.URL
	apiKey string
	userID string
	http   *http.Client
	logger *log.Logger
}

var _ Store = (*RESTClient)(nil)

func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("remote token source is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &RESTClient{
		base:   base,
		apiKey: cfg.APIKey,
		userID: cfg.UserID,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: cfg.Tokens, Base: http.DefaultTransport},
		},
		logger: logger.WithComponent(log.ComponentRemote),
	}, nil
}

func (c *RESTClient) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "transaction_date.desc,created_at.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var rows []TransactionRow
	if err := c.do(ctx, http.MethodGet, c.restPath(tableTransactions), q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.Transaction()
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed transaction row", log.FieldEntityID, string(r.ID), log.FieldError, err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *RESTClient) GetTransaction(ctx context.Context, id core.ID) (core.Transaction, error) {
	var rows []TransactionRow
	if err := c.do(ctx, http.MethodGet, c.restPath(tableTransactions), eqID(id.Normalize()), nil, &rows); err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if len(rows) == 0 {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return rows[0].Transaction()
}

func (c *RESTClient) ListCategories(ctx context.Context) ([]core.Category, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "name.asc")
	var rows []CategoryRow
	if err := c.do(ctx, http.MethodGet, c.restPath(tableCategories), q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Category())
	}
	return out, nil
}

func (c *RESTClient) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var rows []TransactionRow
	q := url.Values{"select": {"*"}}
	if err := c.do(ctx, http.MethodPost, c.restPath(tableTransactions), q, TransactionToRow(t, c.owner()), &rows); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if len(rows) == 0 {
		return t.Normalize(), nil
	}
	return rows[0].Transaction()
}

func (c *RESTClient) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row := TransactionToRow(t, "")
	row.CreatedAt = nil
	var rows []TransactionRow
	if err := c.do(ctx, http.MethodPatch, c.restPath(tableTransactions), eqID(row.ID), row, &rows); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if len(rows) == 0 {
		return core.Transaction{}, core.NotFound("transaction", t.ID)
	}
	return rows[0].Transaction()
}

func (c *RESTClient) DeleteTransaction(ctx context.Context, id core.ID) error {
	if err := c.do(ctx, http.MethodDelete, c.restPath(tableTransactions), eqID(id.Normalize()), nil, nil); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (c *RESTClient) InsertCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	var rows []CategoryRow
	q := url.Values{"select": {"*"}}
	if err := c.do(ctx, http.MethodPost, c.restPath(tableCategories), q, CategoryToRow(cat), &rows); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if len(rows) == 0 {
		return cat, nil
	}
	return rows[0].Category(), nil
}

func (c *RESTClient) UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	row := CategoryToRow(cat)
	row.CreatedAt = nil
	var rows []CategoryRow
	if err := c.do(ctx, http.MethodPatch, c.restPath(tableCategories), eqID(row.ID), row, &rows); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if len(rows) == 0 {
		return core.Category{}, core.NotFound("category", cat.ID)
	}
	return rows[0].Category(), nil
}

// Ping performs a cheap authenticated read.
func (c *RESTClient) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.restPath(tableCategories), q, nil, &rows); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

// CurrentUser resolves the token owner through the auth endpoint and
// enriches it with the profile row from the users collection when present.
func (c *RESTClient) CurrentUser(ctx context.Context) (User, error) {
	var au authUser
	if err := c.do(ctx, http.MethodGet, "auth/v1/user", nil, nil, &au); err != nil {
		return User{}, fmt.Errorf("current user: %w", err)
	}
	u := User{ID: au.ID, Email: au.Email, Name: au.UserMetadata.Name}
	if u.Name == "" {
		u.Name = au.UserMetadata.FullName
	}

	var profiles []User
	q := url.Values{"select": {"id,email,name"}, "id": {"eq." + au.ID}}
	if err := c.do(ctx, http.MethodGet, c.restPath(tableUsers), q, nil, &profiles); err != nil {
		c.logger.DebugContext(ctx, "User profile lookup failed", log.FieldError, err)
	} else if len(profiles) > 0 && profiles[0].Name != "" {
		u.Name = profiles[0].Name
	}
	return u, nil
}

func (c *RESTClient) owner() string {
	return c.userID
}

func (c *RESTClient) restPath(table string) string {
	return "rest/v1/" + table
}

func eqID(id core.ID) url.Values {
	return url.Values{"id": {"eq." + id.String()}, "select": {"*"}}
}

// do sends one request and decodes the JSON response into out when non-nil.
func (c *RESTClient) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, ErrUnauthorized) {
			return ErrUnauthorized
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Remote request",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decode response: %w: %v", method, path, core.ErrNetwork, err)
	}
	return nil
}

func statusError(method, path string, status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, core.ErrNotFound)
	default:
		return fmt.Errorf("%s %s: status %d: %s: %w", method, path, status, body, core.ErrNetwork)
	}
}
