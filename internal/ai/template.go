package ai

import "context"

// DefaultLetter is used when no generator is configured.
const DefaultLetter = "Здравствуйте! Я внимательно изучил(а) вашу вакансию и вижу, " +
	"что мой опыт и навыки хорошо подходят для решения описанных задач. " +
	"Буду рад(а) обсудить детали сотрудничества и ответить на вопросы!"

type templateClient struct {
	letter string
}

// NewTemplateClient returns a generator that always answers with letter
// (DefaultLetter when empty).
func NewTemplateClient(letter string) Client {
	if letter == "" {
		letter = DefaultLetter
	}
	return &templateClient{letter: letter}
}

func (c *templateClient) GenerateCoverLetter(ctx context.Context, jobDescription, resumeSummary string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.letter, nil
}
