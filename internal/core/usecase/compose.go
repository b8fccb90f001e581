package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const followUpSeparator = "---FOLLOW_UP_QUESTIONS---"

const answerPromptTemplate = `You are an expert research assistant. Your task is to answer the user's question based *only* on the provided context.

Follow these rules strictly:
1. Answer the question using only the information found in the context below. Do not use any outside knowledge.
2. For every statement you make, cite the source document and page number in the form [Source: <document_id>, Page: <page_number>]. A statement supported by several passages may carry several citations.
3. If the context does not contain enough information to answer, say clearly that the answer cannot be found in the provided documents.
4. After the answer, write the separator line %s on its own line.
5. After the separator, write exactly 3 relevant follow-up questions the user could ask next, one per line, without numbering.

Context:
%s

Question: %s

Answer:
`

// AnswerComposer turns retrieved chunks into a cited answer with follow-up
// questions.
type AnswerComposer struct {
	generator ports.AnswerGenerator
}

func NewAnswerComposer(generator ports.AnswerGenerator) *AnswerComposer {
	return &AnswerComposer{generator: generator}
}

func (c *AnswerComposer) Compose(ctx context.Context, question string, results []domain.RetrievedChunk) (*domain.Answer, error) {
	prompt := buildAnswerPrompt(question, results)

	output, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnswerGeneration, "generate answer", err)
	}

	text, followUps := parseAnswer(output)
	sources := make([]domain.RetrievedChunk, len(results))
	copy(sources, results)

	return &domain.Answer{
		Text:              text,
		Sources:           sources,
		FollowUpQuestions: followUps,
	}, nil
}

func buildAnswerPrompt(question string, results []domain.RetrievedChunk) string {
	return fmt.Sprintf(answerPromptTemplate, followUpSeparator, formatContext(results), strings.TrimSpace(question))
}

func formatContext(results []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Source: %s, Page: %d\nContent: %s", r.Source, r.Chunk.PageNumber, r.Chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// parseAnswer splits model output at the first separator line. Output
// without a separator is treated as a bare answer.
func parseAnswer(output string) (string, []string) {
	before, after, found := strings.Cut(output, followUpSeparator)
	if !found {
		return strings.TrimSpace(output), []string{}
	}

	followUps := make([]string, 0, 3)
	for _, line := range strings.Split(after, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		followUps = append(followUps, line)
	}
	return strings.TrimSpace(before), followUps
}
