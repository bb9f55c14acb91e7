package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/trackforge/postback-engine/internal/domain"
)

const (
	// DefaultTimeout bounds one attempt end to end (connect + response).
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "postback-engine/1.0"
)

// Result is the outcome of a single delivery attempt. Exactly one of
// ResponseCode or ErrorMessage is meaningfully populated: any received HTTP
// response (including 4xx/5xx) yields a code and body, a transport failure
// yields only an error message.
type Result struct {
	ResponseCode *int
	ResponseBody string
	ErrorMessage string
}

// Client performs one outbound delivery attempt per invocation. It never
// retries internally and never persists state; retry orchestration belongs to
// the dispatcher.
type Client interface {
	Attempt(ctx context.Context, postback domain.Postback) Result
}

// HTTPClient delivers postbacks over plain HTTP using resty.
type HTTPClient struct {
	client    *resty.Client
	userAgent string
}

func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return newHTTPClient(client, userAgent)
}

// NewHTTPClientWithResty wraps a caller-provided resty client (tests inject
// one pointed at a local server).
func NewHTTPClientWithResty(client *resty.Client, userAgent string) (*HTTPClient, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
	client.SetRetryCount(0)

	return newHTTPClient(client, userAgent), nil
}

func newHTTPClient(client *resty.Client, userAgent string) *HTTPClient {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPClient{client: client, userAgent: userAgent}
}

func (c *HTTPClient) Attempt(ctx context.Context, postback domain.Postback) Result {
	if c == nil || c.client == nil {
		return Result{ErrorMessage: "delivery client is not initialized"}
	}

	req := c.client.R().SetContext(ctx)
	for key, value := range postback.Headers {
		req.SetHeader(key, value)
	}
	if !hasHeader(postback.Headers, "User-Agent") {
		req.SetHeader("User-Agent", c.userAgent)
	}

	var response *resty.Response
	var err error

	switch postback.Method {
	case domain.MethodGet:
		if len(postback.Payload) > 0 {
			req.SetQueryParams(postback.Payload)
		}
		response, err = req.Get(postback.URL)
	case domain.MethodPost:
		if !hasHeader(postback.Headers, "Content-Type") {
			req.SetHeader("Content-Type", "application/json")
		}
		response, err = req.SetBody(bodyPayload(postback.Payload)).Post(postback.URL)
	case domain.MethodPut:
		if !hasHeader(postback.Headers, "Content-Type") {
			req.SetHeader("Content-Type", "application/json")
		}
		response, err = req.SetBody(bodyPayload(postback.Payload)).Put(postback.URL)
	default:
		return Result{ErrorMessage: fmt.Sprintf("unsupported method %q", postback.Method)}
	}

	if err != nil {
		return Result{ErrorMessage: classifyTransportError(err)}
	}
	if response == nil {
		return Result{ErrorMessage: "empty response"}
	}

	statusCode := response.StatusCode()
	return Result{
		ResponseCode: &statusCode,
		ResponseBody: strings.TrimSpace(response.String()),
	}
}

func bodyPayload(payload map[string]string) map[string]string {
	if payload == nil {
		return map[string]string{}
	}
	return payload
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// classifyTransportError maps a transport failure to a stable message class.
// The error never propagates past this boundary.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns failure: %s", dnsErr.Err)
	}

	return err.Error()
}
