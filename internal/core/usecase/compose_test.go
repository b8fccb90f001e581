package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func TestParseAnswerSplitsAtSeparator(t *testing.T) {
	output := "The answer [Source: a_pdf, Page: 2].\n---FOLLOW_UP_QUESTIONS---\nQ1?\n\n  Q2?  \nQ3?\n"

	text, followUps := parseAnswer(output)
	if text != "The answer [Source: a_pdf, Page: 2]." {
		t.Fatalf("unexpected answer %q", text)
	}
	if len(followUps) != 3 || followUps[0] != "Q1?" || followUps[1] != "Q2?" || followUps[2] != "Q3?" {
		t.Fatalf("unexpected follow-ups %#v", followUps)
	}
}

func TestParseAnswerWithoutSeparator(t *testing.T) {
	text, followUps := parseAnswer("  just an answer \n")
	if text != "just an answer" {
		t.Fatalf("unexpected answer %q", text)
	}
	if followUps == nil || len(followUps) != 0 {
		t.Fatalf("expected empty follow-ups, got %#v", followUps)
	}
}

func TestParseAnswerUsesFirstSeparatorOnly(t *testing.T) {
	text, followUps := parseAnswer("A\n---FOLLOW_UP_QUESTIONS---\nQ1\n---FOLLOW_UP_QUESTIONS---\nQ2")
	if text != "A" {
		t.Fatalf("unexpected answer %q", text)
	}
	if len(followUps) != 3 || followUps[1] != "---FOLLOW_UP_QUESTIONS---" {
		t.Fatalf("unexpected follow-ups %#v", followUps)
	}
}

func TestComposeBuildsPromptWithContext(t *testing.T) {
	gen := &generatorFake{output: "Answer\n---FOLLOW_UP_QUESTIONS---\nA?\nB?\nC?"}
	composer := NewAnswerComposer(gen)
	results := []domain.RetrievedChunk{
		{Source: "a_pdf", Chunk: domain.Chunk{PageNumber: 3, Text: "alpha text"}, Score: 0.9},
		{Source: "b_pdf", Chunk: domain.Chunk{PageNumber: 1, Text: "beta text"}, Score: 0.5},
	}

	answer, err := composer.Compose(context.Background(), "  what?  ", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantContext := "Source: a_pdf, Page: 3\nContent: alpha text\n\nSource: b_pdf, Page: 1\nContent: beta text"
	if !strings.Contains(gen.prompt, wantContext) {
		t.Fatalf("prompt missing context block:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "Question: what?") {
		t.Fatalf("prompt missing question:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, followUpSeparator) {
		t.Fatalf("prompt missing separator instruction")
	}
	if answer.Text != "Answer" || len(answer.FollowUpQuestions) != 3 {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if len(answer.Sources) != 2 || answer.Sources[0].Source != "a_pdf" {
		t.Fatalf("unexpected sources %+v", answer.Sources)
	}
}

func TestComposeWrapsGeneratorFailure(t *testing.T) {
	errLLM := errors.New("model unavailable")
	gen := &generatorFake{err: errLLM}
	composer := NewAnswerComposer(gen)

	_, err := composer.Compose(context.Background(), "q", []domain.RetrievedChunk{{Source: "a_pdf"}})
	if !domain.IsKind(err, domain.ErrAnswerGeneration) || !errors.Is(err, errLLM) {
		t.Fatalf("expected answer generation error, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected a single generate call, got %d", gen.calls)
	}
}
