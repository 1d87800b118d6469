// Package client is a typed Go client for the sweet shop HTTP API.
//
// The client keeps no session. Authenticated calls take the bearer token
// returned by Login as an explicit argument.
package client

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

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Sweet struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Purchase struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	SweetID   string          `json:"sweetId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type SweetPage struct {
	Sweets     []Sweet
	Pagination Pagination
}

type NewSweet struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
}

// SweetUpdate sends only the non-nil fields.
type SweetUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

type ListOptions struct {
	Page      int
	Limit     int
	Category  string
	SortBy    string
	SortOrder string
}

type SearchOptions struct {
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

// APIError is returned for every non-2xx answer.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sweetshop: %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", body, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Login returns a bearer token for the other calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, *User, error) {
	var out struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

func (c *Client) ListSweets(ctx context.Context, token string, opts ListOptions) (*SweetPage, error) {
	q := url.Values{}
	setInt(q, "page", opts.Page)
	setInt(q, "limit", opts.Limit)
	setString(q, "category", opts.Category)
	setString(q, "sortBy", opts.SortBy)
	setString(q, "sortOrder", opts.SortOrder)

	var out struct {
		Sweets     []Sweet    `json:"sweets"`
		Pagination Pagination `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/sweets", q), token, nil, &out); err != nil {
		return nil, err
	}
	return &SweetPage{Sweets: out.Sweets, Pagination: out.Pagination}, nil
}

func (c *Client) SearchSweets(ctx context.Context, token string, opts SearchOptions) (*SweetPage, error) {
	q := url.Values{}
	q.Set("q", opts.Q)
	setString(q, "category", opts.Category)
	if opts.MinPrice != nil {
		q.Set("minPrice", opts.MinPrice.String())
	}
	if opts.MaxPrice != nil {
		q.Set("maxPrice", opts.MaxPrice.String())
	}
	setInt(q, "page", opts.Page)
	setInt(q, "limit", opts.Limit)

	var out struct {
		Results    []Sweet    `json:"results"`
		Pagination Pagination `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/api/sweets/search", q), token, nil, &out); err != nil {
		return nil, err
	}
	return &SweetPage{Sweets: out.Results, Pagination: out.Pagination}, nil
}

// Purchase buys quantity units and returns the purchase with the stock left.
func (c *Client) Purchase(ctx context.Context, token, sweetID string, quantity int) (*Purchase, int, error) {
	var out struct {
		Purchase       *Purchase `json:"purchase"`
		RemainingStock int       `json:"remainingStock"`
	}
	body := map[string]int{"quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/sweets/"+url.PathEscape(sweetID)+"/purchase", token, body, &out); err != nil {
		return nil, 0, err
	}
	return out.Purchase, out.RemainingStock, nil
}

func (c *Client) CreateSweet(ctx context.Context, token string, in NewSweet) (*Sweet, error) {
	return c.sweetCall(ctx, http.MethodPost, "/api/sweets", token, in)
}

func (c *Client) UpdateSweet(ctx context.Context, token, id string, in SweetUpdate) (*Sweet, error) {
	return c.sweetCall(ctx, http.MethodPut, "/api/sweets/"+url.PathEscape(id), token, in)
}

func (c *Client) DeleteSweet(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sweets/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) Restock(ctx context.Context, token, id string, quantity int) (*Sweet, error) {
	return c.sweetCall(ctx, http.MethodPost, "/api/sweets/"+url.PathEscape(id)+"/restock", token, map[string]int{"quantity": quantity})
}

func (c *Client) sweetCall(ctx context.Context, method, path, token string, body any) (*Sweet, error) {
	var out struct {
		Sweet *Sweet `json:"sweet"`
	}
	if err := c.do(ctx, method, path, token, body, &out); err != nil {
		return nil, err
	}
	return out.Sweet, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func setInt(q url.Values, key string, v int) {
	if v != 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
