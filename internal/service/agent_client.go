package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"projecthub/pkg/circuitbreaker"
	"projecthub/pkg/metrics"
	"projecthub/pkg/trace"
)

const defaultAgentTimeout = 30 * time.Second

// GenerateRequest is the body sent to POST {agent}/generate.
type GenerateRequest struct {
	DeliverableID int64  `json:"deliverable_id"`
	Prompt        string `json:"prompt"`
}

type generateResponse struct {
	Content string `json:"content"`
}

// AgentClient calls the document generation service through a circuit
// breaker. Only transport failures and 5xx responses count against it.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewAgentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *AgentClient {
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	cfg := circuitbreaker.DefaultConfig("agent")
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &AgentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.NewCircuitBreaker(cfg),
		logger:     logger,
	}
}

// Generate returns the generated document body. ErrAgentUnavailable covers
// an open breaker, transport errors and 5xx; ErrAgentRejected covers 4xx.
func (c *AgentClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var (
		content  string
		rejected error
	)
	start := time.Now()
	status := "error"

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if traceID := trace.FromContext(ctx); traceID != "" {
			httpReq.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = strconv.Itoa(resp.StatusCode)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("agent service 5xx: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// 4xx 是请求问题，不计入熔断
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			rejected = fmt.Errorf("%w: %d %s", ErrAgentRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
			return nil
		}

		var out generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode agent response: %w", err)
		}
		content = out.Content
		return nil
	})
	metrics.RecordAgentCallLatency("generate", status, time.Since(start))

	if err != nil {
		c.logger.Warn("Agent call failed",
			zap.Int64("deliverable_id", req.DeliverableID),
			zap.String("status", status),
			zap.Error(err),
		)
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	if rejected != nil {
		return "", rejected
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrAgentRejected)
	}
	return content, nil
}
