package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"RegulatoryRadar/internal/config"
	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

const systemPrompt = "You are a compliance analyst. Respond with a single JSON object and nothing else."

// Oracle classifies candidates and extracts profile attributes through a chat model.
type Oracle struct {
	chat    model.BaseChatModel
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ ports.ClassificationOracle = (*Oracle)(nil)
	_ ports.ProfileExtractor     = (*Oracle)(nil)
)

// NewOracle builds the OpenAI-compatible chat model and the request pacer from configuration.
func NewOracle(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Oracle, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, errors.New("llm client misconfigured: apiKey and model are required")
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	o := NewOracleWithModel(chatModel, newLimiter(cfg.RPM, cfg.Burst), logger)
	o.timeout = cfg.Timeout
	return o, nil
}

// NewOracleWithModel wires an existing chat model. A nil limiter means no pacing.
func NewOracleWithModel(chat model.BaseChatModel, limiter *rate.Limiter, logger *slog.Logger) *Oracle {
	return &Oracle{chat: chat, limiter: limiter, logger: logger}
}

func newLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// Classify asks the model whether the candidate matters to the tenant. Model
// output that cannot be interpreted is returned as a Malformed verdict, not
// as an error; errors are reserved for transport failures.
func (o *Oracle) Classify(ctx context.Context, profile domain.TenantProfile, item domain.CandidateItem) (domain.Verdict, error) {
	content, err := o.generate(ctx, classificationPrompt(profile, item))
	if err != nil {
		return domain.Verdict{}, err
	}

	verdict := ParseVerdict(content)
	if verdict.Kind == domain.VerdictMalformed {
		o.debug("malformed verdict", "tenant", profile.TenantID, "identity", item.Identity, "reason", verdict.Reason)
	}
	return verdict, nil
}

// ExtractAttributes structures a free-text business description.
func (o *Oracle) ExtractAttributes(ctx context.Context, description string) (domain.ProfileAttributes, error) {
	content, err := o.generate(ctx, extractionPrompt(description))
	if err != nil {
		return domain.ProfileAttributes{}, err
	}
	return ParseAttributes(content)
}

func (o *Oracle) generate(ctx context.Context, prompt string) (string, error) {
	if o == nil || o.chat == nil {
		return "", errors.New("llm oracle is not configured")
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	resp, err := o.chat.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate: empty response")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (o *Oracle) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
