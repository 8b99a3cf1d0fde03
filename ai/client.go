// Package ai is the boundary to the external text-generation service.
// It turns symptom and profile data into prompts, requests JSON-shaped
// replies, and parses them defensively. There is no local rules engine:
// the prompt is the sole channel of domain knowledge, so the reply is
// always treated as untrusted input.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/carelens-app/carelens/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	symptomSystemPrompt = "You are a medical assistant. Analyze symptoms and provide potential conditions and recommendations in JSON format with the following structure: { \"conditions\": [{ \"name\": string, \"confidence\": number, \"severity\": \"low\" | \"medium\" | \"high\" }], \"recommendations\": [string], \"emergencyWarning\": string (optional) }"
	riskSystemPrompt    = "You are a health risk assessment expert. Analyze the health profile and provide risk assessment in JSON format with the following structure: { \"riskFactors\": [{ \"condition\": string, \"risk\": number, \"factors\": [string], \"recommendations\": [string] }], \"overallHealth\": { \"score\": number, \"summary\": string } }"
)

// AnalysisError is the single failure kind for the AI boundary: network or
// service errors, empty replies, and unparseable content all normalize to
// it. The underlying cause is kept for logs and never shown to end users.
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("ai: %s failed: %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Config holds configuration for the analysis client.
type Config struct {
	// BaseURL is the base URL of an OpenAI-compatible API.
	BaseURL string

	// Model is the chat model used for all analyses.
	Model string

	// APIKey authenticates against the service.
	APIKey string
}

// ConfigFromEnv creates a Config from environment variables.
//
// Environment variables:
//   - AIBASEURL: Base URL (default: https://api.openai.com/v1)
//   - AIMODEL: Model name (default: gpt-4o)
//   - OPENAI_API_KEY: API key
func ConfigFromEnv() Config {
	baseURL := os.Getenv("AIBASEURL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	m := os.Getenv("AIMODEL")
	if m == "" {
		m = "gpt-4o"
	}
	return Config{
		BaseURL: baseURL,
		Model:   m,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
}

// Client issues one outbound call per analysis and never retries; a slow
// service blocks only the request that invoked it, and cancellation is
// caller-driven through ctx.
type Client struct {
	llm llms.Model
}

// NewClient builds a client against an OpenAI-compatible endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: API key is required")
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("ai: create llm client: %w", err)
	}
	return &Client{llm: llm}, nil
}

// NewClientWithModel wraps an existing llms.Model. Used by tests to stub
// the external service.
func NewClientWithModel(m llms.Model) *Client {
	return &Client{llm: m}
}

// AnalyzeSymptoms sends the symptom list (and, when given, the profile
// context) to the service and parses the JSON reply. Returns
// *AnalysisError on any failure.
func (c *Client) AnalyzeSymptoms(ctx context.Context, symptoms []string, profile *ProfileContext) (*SymptomAnalysis, error) {
	prompt := fmt.Sprintf("Analyze these symptoms: %s", strings.Join(symptoms, ", "))
	if profile != nil {
		prompt += profile.promptLines()
	}

	content, err := c.generate(ctx, symptomSystemPrompt, prompt)
	if err != nil {
		return nil, &AnalysisError{Op: "analyze symptoms", Err: err}
	}

	var analysis SymptomAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, &AnalysisError{Op: "analyze symptoms", Err: fmt.Errorf("parse response: %w", err)}
	}
	return &analysis, nil
}

// AssessHealthRisks serializes the full profile into the prompt and parses
// the JSON reply into a RiskAssessment. Returns *AnalysisError on any
// failure.
func (c *Client) AssessHealthRisks(ctx context.Context, user *model.User) (*RiskAssessment, error) {
	profileJSON, err := json.Marshal(user)
	if err != nil {
		return nil, &AnalysisError{Op: "assess health risks", Err: fmt.Errorf("serialize profile: %w", err)}
	}

	prompt := fmt.Sprintf("Analyze this health profile: %s", profileJSON)
	content, err := c.generate(ctx, riskSystemPrompt, prompt)
	if err != nil {
		return nil, &AnalysisError{Op: "assess health risks", Err: err}
	}

	var assessment RiskAssessment
	if err := json.Unmarshal([]byte(content), &assessment); err != nil {
		return nil, &AnalysisError{Op: "assess health risks", Err: fmt.Errorf("parse response: %w", err)}
	}
	return &assessment, nil
}

// generate performs one chat completion in JSON mode and returns the raw
// text content of the first choice.
func (c *Client) generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, system),
			llms.TextParts(schema.ChatMessageTypeHuman, user),
		},
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Content
	if content == "" {
		return "", fmt.Errorf("no response content")
	}
	return content, nil
}
