package ai

import (
	"context"
	"fmt"
	"net/http"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/metrics"
)

// Client is the interface for cover letter providers
type Client interface {
	// GenerateCoverLetter writes a short letter for the vacancy given the
	// applicant's resume summary.
	GenerateCoverLetter(ctx context.Context, jobDescription, resumeSummary string) (string, error)
}

// New picks the provider named in cfg. m may be nil.
func New(cfg config.AIConfig, m *metrics.Metrics) (Client, error) {
	switch cfg.Provider {
	case "", "template":
		return NewTemplateClient(cfg.FallbackLetter), nil
	case "groq":
		return NewGroqClient(cfg.APIKey, cfg.Model, cfg.BaseURL, &http.Client{}, m), nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
}

// buildSystemPrompt creates the system instruction for the AI model
func buildSystemPrompt() string {
	return `Ты опытный HR и пишешь сопроводительные письма на русском языке.
Правила:
1. Пиши кратко: 3-5 предложений, без заголовков и подписи.
2. Опирайся только на опыт из резюме, ничего не выдумывай.
3. Свяжи 1-2 ключевых навыка кандидата с требованиями вакансии.
4. Верни только текст письма, без кавычек и markdown.`
}

// buildUserPrompt combines the vacancy and the resume summary
func buildUserPrompt(jobDescription, resumeSummary string) string {
	return fmt.Sprintf("Вакансия:\n%s\n\nРезюме:\n%s", jobDescription, resumeSummary)
}
