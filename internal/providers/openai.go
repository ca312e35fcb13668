package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

// Prompt profiles
const (
	PromptSupportive = "supportive"
	PromptClinical   = "clinical"
)

const supportivePrompt = `You are an empathetic and supportive AI mental health assistant. Your responses should be:
1. Compassionate and understanding
2. Non-judgmental and professional
3. Focused on active listening and validation
4. Clear about your limitations (not a replacement for professional help)
5. Ready to suggest professional help when necessary

Respond with understanding while maintaining appropriate boundaries. If you detect serious mental health concerns, always recommend seeking professional help.`

const clinicalPrompt = `Eres un asistente especializado en Psicología Clínica y Escolar. Basa tus respuestas en modelos teóricos reconocidos, literatura científica actual y guías diagnósticas como el DSM-5-TR y la CIE-11.

Ajusta la complejidad del lenguaje al usuario (profesional, docente o familia). Cuando expliques un concepto incluye una introducción breve, una explicación con ejemplos aplicados, estrategias de intervención basadas en evidencia y los límites éticos de la orientación.

Si la pregunta es demasiado amplia, pide más detalles. Indica siempre cuándo un caso requiere evaluación profesional o tratamiento especializado.`

// OpenAIChat implements conversation.Assistant on the chat completions API
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	prompt      string
}

// NewOpenAIChat creates an assistant from configuration
func NewOpenAIChat(cfg config.LLMConfig) *OpenAIChat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	prompt := supportivePrompt
	if cfg.PromptProfile == PromptClinical {
		prompt = clinicalPrompt
	}

	return &OpenAIChat{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		prompt:      prompt,
	}
}

// Complete sends the system prompt, the prior turns and the new message and
// returns the assistant's reply
func (o *OpenAIChat) Complete(ctx context.Context, history conversation.Turns, message string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: o.prompt,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.SpeakerAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		metrics.RecordLLMRequest(o.model, "error", time.Since(start))
		return "", fmt.Errorf("chat completion: %w", err)
	}
	metrics.RecordLLMRequest(o.model, "ok", time.Since(start))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat completion: empty reply")
	}
	return reply, nil
}
