package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/metrics"
)

// defaultTimeout bounds a whole completion, and only connection setup of a stream.
const defaultTimeout = 60 * time.Second

// Config holds the provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// OpenAIProvider is a Provider for any OpenAI-compatible chat completion API
// (e.g. Mistral).
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(cfg *Config) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai-compatible"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Model implements Provider.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) request(prompt Prompt) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	}
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.request(prompt))
	metrics.LLMDuration.WithLabelValues(p.model).Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("Chat completion failed", zap.String("model", p.model), zap.Error(err))
		return "", p.parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", internalErrors.NewUpstreamError(p.provider, 0, errors.New("empty completion response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements Provider. The timeout covers the request until the response
// headers arrive; the body then streams for as long as the caller's context allows.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt Prompt) (ChunkStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	setup := time.AfterFunc(p.timeout, cancel)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(prompt))
	if !setup.Stop() {
		// The timer fired, so ctx is cancelled even if the request got through.
		if err == nil {
			_ = stream.Close()
		}
		cancel()
		p.logger.Warn("Chat completion stream timed out", zap.String("model", p.model), zap.Duration("timeout", p.timeout))
		return nil, internalErrors.NewUpstreamError(p.provider, 0,
			fmt.Errorf("no response within %s: %w", p.timeout, context.DeadlineExceeded))
	}
	if err != nil {
		cancel()
		p.logger.Warn("Chat completion stream failed", zap.String("model", p.model), zap.Error(err))
		return nil, p.parseAPIError(err)
	}
	return &openAIStream{provider: p, stream: stream, cancel: cancel, start: time.Now()}, nil
}

type openAIStream struct {
	provider *OpenAIProvider
	stream   *openai.ChatCompletionStream
	cancel   context.CancelFunc
	start    time.Time
	once     sync.Once
}

// Recv skips increments without content, such as the initial role announcement.
func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			metrics.LLMDuration.WithLabelValues(s.provider.model).Observe(time.Since(s.start).Seconds())
			return "", io.EOF
		}
		if err != nil {
			return "", s.provider.parseAPIError(err)
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			return resp.Choices[0].Delta.Content, nil
		}
	}
}

func (s *openAIStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.stream.Close()
		s.cancel()
	})
	return err
}

// parseAPIError translates a client error into an UpstreamError carrying the
// provider's HTTP status. Cancellation by the caller is returned unchanged.
func (p *OpenAIProvider) parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return internalErrors.NewUpstreamError(p.provider, apiErr.HTTPStatusCode, errors.New(apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return internalErrors.NewUpstreamError(p.provider, reqErr.HTTPStatusCode, errors.New(detail))
	}

	upstreamErr := internalErrors.NewUpstreamError(p.provider, 0, err)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		upstreamErr.Timeout = true
	}
	return upstreamErr
}

// extractDetail extracts the message of a JSON error body, in either the
// {"message": ...} or the {"detail": ...} layout.
func extractDetail(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Detail
}
