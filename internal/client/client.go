// Package client is a Go client for the Ephemera HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"

	"github.com/welldanyogia/ephemera-backend/internal/api/response"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
)

const (
	postPath       = "/api/v1/post"
	postsPath      = "/api/v1/posts"
	attachmentPath = "/api/v1/attachments/"
	sweepPath      = "/api/v1/admin/sweep"
)

// DefaultTimeout bounds a single request, uploads included
const DefaultTimeout = 60 * time.Second

// Config configures a Client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	ResponseMiddlewares []resty.ResponseMiddleware
}

// Client talks to one Ephemera server
type Client struct {
	client *resty.Client
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("ephemera: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ephemera: %d %s: %s", e.Status, e.Code, e.Message)
}

// Attachment is a file to upload alongside a post
type Attachment struct {
	Name   string
	Reader io.Reader
}

// ListOptions selects a page of posts. Empty fields are omitted.
type ListOptions struct {
	Cursor string
	Author string
	Limit  int
}

// Page is one page of posts
type Page struct {
	Posts      []signal.Signal
	NextCursor *string
}

// New creates a new Client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	for _, m := range cfg.ResponseMiddlewares {
		c.AddResponseMiddleware(m)
	}

	return &Client{client: c}
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// CreatePost publishes a signed create_post signal with its attachment files
// and returns the post id.
func (c *Client) CreatePost(ctx context.Context, sig signal.Signal, attachments ...Attachment) (string, error) {
	raw, err := json.Marshal(sig)
	if err != nil {
		return "", err
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	req := c.r(ctx).SetResult(&created)
	if len(attachments) == 0 {
		req.SetHeader("Content-Type", "application/json").
			SetBody(envelope{Post: raw})
	} else {
		req.SetMultipartFormData(map[string]string{"post": string(raw)})
		for _, a := range attachments {
			req.SetFileReader("attachments", a.Name, a.Reader)
		}
	}

	res, err := req.Post(postPath)
	if err != nil {
		return "", err
	}
	if err := checkStatus(res); err != nil {
		return "", err
	}
	return created.Data.ID, nil
}

// ListPosts returns one page of posts, newest first
func (c *Client) ListPosts(ctx context.Context, opts ListOptions) (*Page, error) {
	req := c.r(ctx).SetResult(&response.PostsPage{})
	if opts.Cursor != "" {
		req.SetQueryParam("cursor", opts.Cursor)
	}
	if opts.Author != "" {
		req.SetQueryParam("author", opts.Author)
	}
	if opts.Limit != 0 {
		req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
	}

	res, err := req.Get(postsPath)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(res); err != nil {
		return nil, err
	}

	page := res.Result().(*response.PostsPage)
	return &Page{Posts: page.Posts, NextCursor: page.NextCursor}, nil
}

// DeletePost submits a signed delete_post signal
func (c *Client) DeletePost(ctx context.Context, sig signal.Signal) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}

	res, err := c.r(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(envelope{Post: raw}).
		Delete(postPath)
	if err != nil {
		return err
	}
	return checkStatus(res)
}

// Attachment downloads a stored attachment and its server-assigned type
func (c *Client) Attachment(ctx context.Context, id string) ([]byte, string, error) {
	res, err := c.r(ctx).Get(attachmentPath + id)
	if err != nil {
		return nil, "", err
	}
	if err := checkStatus(res); err != nil {
		return nil, "", err
	}
	return []byte(res.String()), res.Header().Get("Content-Type"), nil
}

// Sweep runs an orphan sweep on the server. Requires the API key.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	var swept struct {
		Data struct {
			Reclaimed int `json:"reclaimed"`
		} `json:"data"`
	}

	res, err := c.r(ctx).SetResult(&swept).Post(sweepPath)
	if err != nil {
		return 0, err
	}
	if err := checkStatus(res); err != nil {
		return 0, err
	}
	return swept.Data.Reclaimed, nil
}

type envelope struct {
	Post json.RawMessage `json:"post"`
}

func checkStatus(res *resty.Response) error {
	if !res.IsError() && res.StatusCode() < http.StatusBadRequest {
		return nil
	}

	apiErr := &APIError{Status: res.StatusCode(), Message: http.StatusText(res.StatusCode())}

	var body response.ErrorResponse
	if err := json.Unmarshal([]byte(res.String()), &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	}
	return apiErr
}
