package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/finstream-guard/dashboard/internal/models"
)

const systemPrompt = `You are a financial-compliance officer monitoring live-stream transcripts.
Score the excerpt and answer with a single JSON object with exactly these keys:
"summary" (one sentence, Chinese), "sentimentScore" (0-100, 100 = extremely bullish),
"riskScore" (0-100, 100 = illegal, fraudulent or extremely high risk),
"complianceIssues" (array of short Chinese findings such as 承诺保本收益, 诱导性喊单, 虚假内幕消息),
"investmentAdviceDetected" (boolean). Return JSON only.`

// OpenAIConfig configures the LLM analyzer.
type OpenAIConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	RatePerMinute int
}

// OpenAI scores excerpts with a chat-completion model in JSON mode.
type OpenAI struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// llmVerdict is the JSON object the model is asked to return.
type llmVerdict struct {
	Summary                  string   `json:"summary"`
	SentimentScore           *float64 `json:"sentimentScore"`
	RiskScore                *float64 `json:"riskScore"`
	ComplianceIssues         []string `json:"complianceIssues"`
	InvestmentAdviceDetected bool     `json:"investmentAdviceDetected"`
}

// NewOpenAI creates an LLM analyzer. RatePerMinute <= 0 disables rate limiting.
func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1)
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// New picks the analyzer for the configured credentials: the LLM when a key is present, Demo otherwise.
func New(cfg OpenAIConfig, logger *zap.Logger) Gateway {
	if strings.TrimSpace(cfg.APIKey) == "" {
		if logger != nil {
			logger.Warn("no LLM API key configured, using demo analyzer")
		}
		return NewDemo()
	}
	return NewOpenAI(cfg, logger)
}

// Analyze implements Gateway.
func (o *OpenAI) Analyze(ctx context.Context, excerpt, subject string) (models.AnalysisResult, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Streamer: %s\nTranscript excerpt: %q", subject, excerpt)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.AnalysisResult{}, errors.New("chat completion: no choices")
	}
	o.logger.Debug("analysis response", zap.String("model", o.model), zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return parseVerdict(resp.Choices[0].Message.Content, o.now())
}

func parseVerdict(content string, now time.Time) (models.AnalysisResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.AnalysisResult{}, errors.New("empty analysis response")
	}
	var v llmVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	if v.SentimentScore == nil || v.RiskScore == nil {
		return models.AnalysisResult{}, errors.New("decode analysis: missing scores")
	}
	issues := v.ComplianceIssues
	if issues == nil {
		issues = []string{}
	}
	return models.AnalysisResult{
		Timestamp:                now.UnixMilli(),
		Summary:                  v.Summary,
		SentimentScore:           models.ClampScore(int(math.Round(*v.SentimentScore))),
		RiskScore:                models.ClampScore(int(math.Round(*v.RiskScore))),
		ComplianceIssues:         issues,
		InvestmentAdviceDetected: v.InvestmentAdviceDetected,
	}, nil
}
