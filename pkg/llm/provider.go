package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

// Provider types accepted in Config.Provider.
const (
	ProviderGemini           = "gemini"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenAICompatible = "openai-compatible"
)

// GeminiOpenAIEndpoint is Gemini's OpenAI-compatible chat completions endpoint.
const GeminiOpenAIEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai/"

const defaultMaxOutputTokens = 2048

var (
	// ErrMissingAPIKey is returned by New when no key is configured.
	ErrMissingAPIKey = errors.New("model api key is empty")
	// ErrEmptyResponse is returned when the model answered with no text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Config selects and configures a model provider.
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	Endpoint        string
	SystemPrompt    string
	MaxOutputTokens int
}

// Model is a single-shot text completion client.
type Model struct {
	provider     string
	modelID      string
	systemPrompt string
	maxTokens    int

	language jetapi.LanguageModel
	chat     *openaiclient.Client
}

// New builds a Model for cfg. Gemini and generic OpenAI-compatible endpoints
// go through chat completions; OpenAI and Anthropic go through jetify's language models.
func New(cfg Config) (*Model, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	m := &Model{
		provider:     normalizeProvider(cfg.Provider),
		modelID:      strings.TrimSpace(cfg.Model),
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxOutputTokens,
	}
	if m.maxTokens <= 0 {
		m.maxTokens = defaultMaxOutputTokens
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	switch m.provider {
	case ProviderAnthropic:
		if m.modelID == "" {
			m.modelID = "claude-haiku-4-5-20251001"
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(endpoint))
		}
		client := anthropicclient.NewClient(opts...)
		m.language = jetanthropic.NewLanguageModel(m.modelID, jetanthropic.WithClient(client))

	case ProviderOpenAI:
		if m.modelID == "" {
			m.modelID = "gpt-4o-mini"
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, openaioption.WithBaseURL(endpoint+"/"))
		}
		client := openaiclient.NewClient(opts...)
		m.language = jetopenai.NewLanguageModel(m.modelID, jetopenai.WithClient(client))

	case ProviderGemini, ProviderOpenAICompatible:
		if m.provider == ProviderGemini {
			if m.modelID == "" {
				m.modelID = "gemini-2.5-flash"
			}
			if endpoint == "" {
				endpoint = strings.TrimRight(GeminiOpenAIEndpoint, "/")
			}
		}
		if endpoint == "" {
			return nil, fmt.Errorf("%s provider requires an endpoint", m.provider)
		}
		if m.modelID == "" {
			return nil, fmt.Errorf("%s provider requires a model", m.provider)
		}
		client := openaiclient.NewClient(
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
			openaioption.WithBaseURL(endpoint+"/"),
		)
		m.chat = &client

	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	return m, nil
}

// Name identifies the provider and model, for logs.
func (m *Model) Name() string {
	return m.provider + "/" + m.modelID
}

// Complete sends prompt as a single user message and returns the response text.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	if m.chat != nil {
		return m.completeChat(ctx, prompt)
	}

	resp, err := jetai.GenerateText(
		ctx,
		buildMessages(m.systemPrompt, prompt),
		jetai.WithModel(m.language),
		jetai.WithMaxOutputTokens(m.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (m *Model) completeChat(ctx context.Context, prompt string) (string, error) {
	messages := make([]openaiclient.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(m.systemPrompt) != "" {
		messages = append(messages, openaiclient.SystemMessage(m.systemPrompt))
	}
	messages = append(messages, openaiclient.UserMessage(prompt))

	completion, err := m.chat.Chat.Completions.New(ctx, openaiclient.ChatCompletionNewParams{
		Model:     openaiclient.ChatModel(m.modelID),
		Messages:  messages,
		MaxTokens: openaiclient.Int(int64(m.maxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

func buildMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func normalizeProvider(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	switch p {
	case "", "google", ProviderGemini:
		return ProviderGemini
	case "openaicompatible", "openai_compatible":
		return ProviderOpenAICompatible
	default:
		return p
	}
}
