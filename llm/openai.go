package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/mcuadros/go-defaults"

	"github.com/warriorguo/canvasflow/types"
)

var (
	_ types.ChatCompleter = &OpenAIClient{}
)

const DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

type OpenAIConfig struct {
	Endpoint string `default:"https://api.openai.com/v1/chat/completions"`
	APIKey   string
	// whole request, stream included
	Timeout     time.Duration `default:"120s"`
	Temperature float64       `default:"0.7"`
}

func NewOpenAIConfig() *OpenAIConfig {
	config := &OpenAIConfig{}
	defaults.SetDefaults(config)
	return config
}

/**
 * OpenAIClient streams chat completions from any OpenAI compatible endpoint
 * using server sent events.
 */
type OpenAIClient struct {
	config *OpenAIConfig
	client *http.Client
}

func NewOpenAIClient(config *OpenAIConfig) *OpenAIClient {
	if config == nil {
		config = NewOpenAIConfig()
	}
	return &OpenAIClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type chatPayload struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	Stream      bool                `json:"stream"`
}

func (c *OpenAIClient) StreamChat(ctx context.Context, req *types.ChatRequest) (types.ChatStream, error) {
	data, err := json.Marshal(&chatPayload{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: c.config.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Trace(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Annotatef(err, "request %s", c.config.Endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, errors.Errorf("chat completion failed: status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return newSSEStream(resp.Body), nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Recv skips keep-alives and empty deltas, io.EOF follows "data: [DONE]".
func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		chunk := &streamChunk{}
		if err := json.Unmarshal([]byte(payload), chunk); err != nil {
			return "", errors.Annotatef(err, "decode stream chunk %q", payload)
		}
		if chunk.Error != nil {
			return "", errors.New(chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", errors.Trace(err)
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
