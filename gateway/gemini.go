package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	// Model is the model name. Default: DefaultGeminiModel
	Model string
	// Timeout bounds one call. Default: DefaultTimeout
	Timeout time.Duration
	// HTTPClient overrides the transport. Default: an otelhttp-instrumented client.
	HTTPClient *http.Client
}

// GeminiClient calls the Gemini API through the GenAI SDK.
type GeminiClient struct {
	config     GeminiConfig
	credential *Credential
	timeout    *resilience.Timeout

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a client. The SDK client is built lazily once the
// credential resolves.
func NewGeminiClient(config GeminiConfig, credential *Credential) *GeminiClient {
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &GeminiClient{
		config:     config,
		credential: credential,
		timeout:    resilience.NewTimeout(resilience.TimeoutConfig{Timeout: config.Timeout}),
	}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	apiKey, err := g.credential.Value(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.config.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: create genai client: %w", err)
	}
	g.client = cli
	return cli, nil
}

// Call sends exactly one GenerateContent request.
func (g *GeminiClient) Call(ctx context.Context, req Request) (Response, error) {
	cli, err := g.sdk(ctx)
	if err != nil {
		return Response{}, err
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.ExpectStructured {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	var resp Response
	err = g.timeout.Execute(ctx, func(ctx context.Context) error {
		out, callErr := cli.Models.GenerateContent(ctx, g.config.Model, contents, cfg)
		if callErr != nil {
			var apiErr genai.APIError
			if errors.As(callErr, &apiErr) {
				return &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
			}
			return fmt.Errorf("gateway: request failed: %w", callErr)
		}

		text := out.Text()
		var in, outUnits int
		if out.UsageMetadata != nil {
			in = int(out.UsageMetadata.PromptTokenCount)
			outUnits = int(out.UsageMetadata.CandidatesTokenCount)
		}
		resp = newResponse(text, in, outUnits, req.ExpectStructured)
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

var _ Gateway = (*GeminiClient)(nil)
