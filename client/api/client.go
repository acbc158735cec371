// Package api is the HTTP client for the taskhub server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/api/transport"
	"github.com/fastygo/taskhub/domain"
)

const (
	DefaultServer  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
	apiPrefix      = "/api/v1"
)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the network dialer. Tests use it to reach an in-memory listener.
func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client talks to the JSON API and decodes envelopes. Failures are returned as *domain.Error
// carrying the server's code and message.
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

func New(server string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", server)
	}

	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &fasthttp.Client{
			Name:         "taskhub-cli",
			ReadTimeout:  defaultTimeout,
			WriteTimeout: defaultTimeout,
		},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Register(ctx context.Context, input domain.Registration) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, fasthttp.MethodPost, "/auth/register", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Credential, error) {
	var cred domain.Credential
	req := transport.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, fasthttp.MethodPost, "/auth/login", req, &cred); err != nil {
		return nil, err
	}
	c.SetToken(cred.Token)
	return &cred, nil
}

func (c *Client) Logout(ctx context.Context) error {
	var out transport.LogoutResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/auth/logout", nil, &out); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, fasthttp.MethodGet, "/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, fasthttp.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, input domain.NewTask) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodPost, "/tasks", input, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask sends only the fields set on patch.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, fasthttp.MethodPut, "/tasks/"+url.PathEscape(id), patch, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	var out transport.DeleteResponse
	return c.do(ctx, fasthttp.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &out)
}

func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	var out transport.ChatResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/ai/chat", transport.ChatRequest{Prompt: prompt}, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + apiPrefix + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
	}

	started := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(started)),
	)

	return decodeEnvelope(resp.StatusCode(), resp.Body(), out)
}

func decodeEnvelope(status int, body []byte, out interface{}) error {
	var env transport.RawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= fasthttp.StatusBadRequest {
			return domain.NewError(codeForStatus(status), fmt.Sprintf("server returned %d", status))
		}
		return domain.WrapError(domain.ErrCodeInternal, "malformed response", err)
	}

	if env.Status != transport.StatusSuccess || status >= fasthttp.StatusBadRequest {
		code := domain.ErrorCode(env.Code)
		if code == "" {
			code = codeForStatus(status)
		}
		message := env.Error
		if message == "" {
			message = fmt.Sprintf("server returned %d", status)
		}
		return domain.NewError(code, message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "malformed response data", err)
	}
	return nil
}

func codeForStatus(status int) domain.ErrorCode {
	switch status {
	case fasthttp.StatusBadRequest:
		return domain.ErrCodeInvalid
	case fasthttp.StatusUnauthorized:
		return domain.ErrCodeUnauthorized
	case fasthttp.StatusForbidden:
		return domain.ErrCodeForbidden
	case fasthttp.StatusNotFound:
		return domain.ErrCodeNotFound
	case fasthttp.StatusConflict:
		return domain.ErrCodeConflict
	default:
		return domain.ErrCodeInternal
	}
}
