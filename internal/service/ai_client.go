package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"livepoll/internal/config"
	"livepoll/internal/logger"
	"livepoll/internal/model"

	"google.golang.org/genai"
)

// Summarizer produces a structured diagnosis of a set of free-text responses
type Summarizer interface {
	Summarize(ctx context.Context, question string, responses []string) (*model.SynthesisResult, error)
}

// Drafter suggests a new activity for a topic
type Drafter interface {
	Draft(ctx context.Context, topic string, typ model.ActivityType) (*model.Draft, error)
}

// AIClient talks to Gemini. It implements Summarizer and Drafter.
type AIClient struct {
	config *config.AIConfig
	client *genai.Client
}

// NewAIClient creates a Gemini-backed client, or nil with no error when AI is disabled
func NewAIClient(ctx context.Context, cfg *config.AIConfig) (*AIClient, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &AIClient{config: cfg, client: client}, nil
}

// Summarize asks the synthesis model to diagnose the responses
func (c *AIClient) Summarize(ctx context.Context, question string, responses []string) (*model.SynthesisResult, error) {
	encoded, err := json.Marshal(responses)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(synthesisPrompt, question, encoded)

	var result model.SynthesisResult
	if err := c.generateJSON(ctx, c.config.Models.Synthesis, prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Draft asks the draft model for a single question on topic
func (c *AIClient) Draft(ctx context.Context, topic string, typ model.ActivityType) (*model.Draft, error) {
	var out struct {
		Title   string              `json:"title"`
		Prompt  string              `json:"prompt"`
		Options []model.DraftOption `json:"options"`
	}
	prompt := fmt.Sprintf(draftPrompt, topic, typ)
	if err := c.generateJSON(ctx, c.config.Models.Draft, prompt, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Prompt) == "" {
		return nil, errors.New("draft has no prompt")
	}
	if !typ.HasOptions() {
		out.Options = nil
	}
	return &model.Draft{
		Type:    typ,
		Title:   out.Title,
		Prompt:  out.Prompt,
		Options: out.Options,
		Source:  "ai",
	}, nil
}

func (c *AIClient) generateJSON(ctx context.Context, modelName, prompt string, dst interface{}) error {
	log := logger.WithContext(ctx).WithField("model", modelName)
	if c.config.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	result, err := c.client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		log.WithError(err).Error("gemini request failed")
		return fmt.Errorf("generate content: %w", err)
	}

	raw := result.Text()
	if raw == "" {
		return errors.New("empty response from model")
	}
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.Trim(clean, "`")

	if err := json.Unmarshal([]byte(clean), dst); err != nil {
		log.WithError(err).Debugf("undecodable model output:\n%s", clean)
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

const synthesisPrompt = `You are an expert pedagogical consultant. Analyze these student responses. Do not summarize; diagnose.
Identify the distribution of sentiment or fact patterns, and draw deep inferences about student understanding given the question.

Question: %q
Student Responses: %s

Output JSON only matching this schema:
{
  "consensus": "String (1 sentence high-level summary)",
  "distribution_analysis": "String (how responses are distributed, e.g. '60%% focused on X, while 20%% argued Y')",
  "key_inferences": ["String (why students answered this way)"],
  "confusion_points": ["String (specific misunderstandings)"],
  "outlier_insight": "String (quote a unique perspective)",
  "recommended_action": "String (specific 2-minute classroom intervention)"
}`

const draftPrompt = `You are an expert professor authoring a question for a class activity.
Topic: %q
Question Type: %q
Create a single high-quality, thought-provoking question.
If the type is "multiple_choice", "competition" or "ranking", provide 2-4 distinct options and mark the correct ones.
Otherwise options must be an empty array.

Output JSON matching this schema:
{
  "title": "String (short title)",
  "prompt": "String (the question prompt, Markdown allowed)",
  "options": [{"text": "String", "isCorrect": false}]
}`

// MockAI is the offline collaborator used when no API key is configured
type MockAI struct{}

// Summarize returns a deterministic synthesis built from the responses themselves
func (MockAI) Summarize(ctx context.Context, question string, responses []string) (*model.SynthesisResult, error) {
	words := WordFrequencies(responses)
	top := make([]string, 0, 3)
	for i := 0; i < len(words) && i < 3; i++ {
		top = append(top, words[i].Text)
	}
	outlier := ""
	if len(responses) > 0 {
		outlier = responses[len(responses)-1]
	}
	return &model.SynthesisResult{
		Consensus:            fmt.Sprintf("[MOCK] %d responses to %q.", len(responses), question),
		DistributionAnalysis: fmt.Sprintf("Most frequent terms: %s.", strings.Join(top, ", ")),
		KeyInferences:        []string{"AI synthesis is disabled; configure GEMINI_API_KEY for a real diagnosis."},
		ConfusionPoints:      []string{},
		OutlierInsight:       outlier,
		RecommendedAction:    "Ask two students with different answers to explain their reasoning.",
	}, nil
}

// Draft returns a placeholder question for topic
func (MockAI) Draft(ctx context.Context, topic string, typ model.ActivityType) (*model.Draft, error) {
	d := &model.Draft{
		Type:   typ,
		Title:  topic,
		Prompt: fmt.Sprintf("[MOCK] Why is **%s** important?", topic),
		Source: "mock",
	}
	if typ.HasOptions() {
		d.Options = []model.DraftOption{
			{Text: "Reason 1", IsCorrect: true},
			{Text: "Reason 2"},
			{Text: "Reason 3"},
		}
	}
	return d, nil
}
