package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
)

// Messages API defaults.
const (
	DefaultMessagesBaseURL = "https://api.anthropic.com"
	DefaultMessagesModel   = "claude-sonnet-4-5"
	DefaultAPIVersion      = "2023-06-01"
	DefaultTimeout         = 120 * time.Second

	maxErrorBody = 4096
)

// MessagesConfig configures a MessagesClient.
type MessagesConfig struct {
	// BaseURL is the API root. Default: DefaultMessagesBaseURL
	BaseURL string
	// Model is the model name. Default: DefaultMessagesModel
	Model string
	// APIVersion is sent as the anthropic-version header. Default: DefaultAPIVersion
	APIVersion string
	// Timeout bounds one call, including reading the body. Default: DefaultTimeout
	Timeout time.Duration
	// HTTPClient overrides the transport. Default: an otelhttp-instrumented client.
	HTTPClient *http.Client
}

// MessagesClient calls an Anthropic-style Messages endpoint.
type MessagesClient struct {
	config     MessagesConfig
	credential *Credential
	httpClient *http.Client
	timeout    *resilience.Timeout
}

// NewMessagesClient creates a client. The credential is resolved on the first call.
func NewMessagesClient(config MessagesConfig, credential *Credential) *MessagesClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultMessagesBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultMessagesModel
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &MessagesClient{
		config:     config,
		credential: credential,
		httpClient: httpClient,
		timeout:    resilience.NewTimeout(resilience.TimeoutConfig{Timeout: config.Timeout}),
	}
}

type messagesRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []messagesMessage `json:"messages"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Call sends exactly one request.
func (c *MessagesClient) Call(ctx context.Context, req Request) (Response, error) {
	apiKey, err := c.credential.Value(ctx)
	if err != nil {
		return Response{}, err
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	payload, err := json.Marshal(messagesRequest{
		Model:     c.config.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []messagesMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("gateway: marshal request: %w", err)
	}

	var resp Response
	err = c.timeout.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.do(ctx, apiKey, payload, req.ExpectStructured)
		return callErr
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (c *MessagesClient) do(ctx context.Context, apiKey string, payload []byte, structured bool) (Response, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", c.config.APIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("gateway: read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return Response{}, &StatusError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Response{}, fmt.Errorf("gateway: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return newResponse(text.String(), decoded.Usage.InputTokens, decoded.Usage.OutputTokens, structured), nil
}

var _ Gateway = (*MessagesClient)(nil)
