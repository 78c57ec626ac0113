// Package chatapi is the HTTP client for the chat completion backend.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// RequestsPerSecond limits outgoing calls; 0 disables the limiter.
	RequestsPerSecond float64
	Tokens            TokenSource
	Logger            *zap.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: opts.RequestTimeout},
		tokens:  opts.Tokens,
		logger:  opts.Logger.With(zap.String("component", "chat_client")),
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// SendChatRequest posts the ordered history and returns the assistant's
// reply. A negative temperature or a non-positive maxTokens selects the
// default. Failures are never retried.
func (c *Client) SendChatRequest(ctx context.Context, messages []Message, modelID string, temperature float64, maxTokens int) result.Result[ChatResponse] {
	if temperature < 0 {
		temperature = models.DefaultTemperature
	}
	if maxTokens <= 0 {
		maxTokens = models.DefaultMaxTokens
	}
	req := ChatRequest{
		Messages:    messages,
		ModelID:     modelID,
		Temperature: &temperature,
		MaxTokens:   maxTokens,
	}
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat/chat", req, &resp)
	return result.Of(resp, err)
}

func (c *Client) ListModels(ctx context.Context) result.Result[[]string] {
	var ids []string
	err := c.do(ctx, http.MethodGet, "/chat/models", nil, &ids)
	return result.Of(ids, err)
}

func (c *Client) Captcha(ctx context.Context) result.Result[Captcha] {
	var captcha Captcha
	err := c.do(ctx, http.MethodGet, "/auth/captcha", nil, &captcha)
	return result.Of(captcha, err)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) result.Result[LoginResponse] {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp)
	return result.Of(resp, err)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) result.Result[models.User] {
	var user models.User
	err := c.do(ctx, http.MethodPost, "/auth/register", req, &user)
	return result.Of(user, err)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return result.Network(fmt.Sprintf("network error: %v", err), 0)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return result.Network(fmt.Sprintf("network error: %v", err), 0)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		classified := classifyTransportError(err)
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return classified
	}
	defer resp.Body.Close()

	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		c.logger.Warn("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return result.Network(fmt.Sprintf("network error: decoding response: %v", err), 0)
	}
	c.logger.Debug("request complete",
		zap.String("method", method),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// classifyStatus maps non-2xx statuses onto the network error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout:
		return result.Network("timeout", http.StatusRequestTimeout)
	case code >= 400 && code < 500:
		return result.Network("request error: "+statusText(code), code)
	case code >= 500:
		return result.Network("server error", code)
	default:
		return result.Network(fmt.Sprintf("network error: unexpected status %d", code), code)
	}
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", code)
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return result.Network("timeout", http.StatusRequestTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return result.Network("timeout", http.StatusRequestTimeout)
	}
	return result.Network(fmt.Sprintf("network error: %v", err), 0)
}
