package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const (
	answerNoDocumentsSelected = "Please select at least one document to chat with."
	answerNoValidDocuments    = "Could not find any valid documents to search."
)

type QueryUseCase struct {
	retrieval *RetrievalEngine
	composer  *AnswerComposer
}

func NewQueryUseCase(retrieval *RetrievalEngine, composer *AnswerComposer) *QueryUseCase {
	return &QueryUseCase{
		retrieval: retrieval,
		composer:  composer,
	}
}

func (uc *QueryUseCase) Ask(ctx context.Context, question string, documentIDs []string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errQuestionRequired)
	}
	if len(documentIDs) == 0 {
		return emptyAnswer(answerNoDocumentsSelected), nil
	}

	results, err := uc.retrieval.Retrieve(ctx, question, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return emptyAnswer(answerNoValidDocuments), nil
	}

	return uc.composer.Compose(ctx, question, results)
}

func emptyAnswer(text string) *domain.Answer {
	return &domain.Answer{
		Text:              text,
		Sources:           []domain.RetrievedChunk{},
		FollowUpQuestions: []string{},
	}
}
