package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

const (
	pathRandomQuestion = "/random_question"
	pathNamedQuestion  = "/named_question"
	pathSubmitAnswers  = "/submit_answers"
)

// QueryManager fetches comparison questions, never asking for the same
// question twice in a session.
type QueryManager struct {
	transport Transport

	mu   sync.Mutex
	used []domain.QuestionID
}

// NewQueryManager creates a new query manager.
func NewQueryManager(transport Transport) *QueryManager {
	return &QueryManager{transport: transport}
}

// RequestRandomQuestion asks the backend for a question not seen yet in this
// session and records its id. Errors are returned as is; there is no retry.
func (q *QueryManager) RequestRandomQuestion(ctx context.Context, filter domain.FilterOptions) (*domain.Question, error) {
	filter = filter.WithDefaults()
	req := &domain.RandomQuestionRequest{
		Env:        filter.Env,
		Lengths:    filter.Lengths,
		Types:      filter.Types,
		ExcludeIDs: q.UsedIDs(),
	}
	return q.request(ctx, pathRandomQuestion, req)
}

// RequestQuestionByName asks the backend for a named question and records its id.
func (q *QueryManager) RequestQuestionByName(ctx context.Context, name string) (*domain.Question, error) {
	return q.request(ctx, pathNamedQuestion, &domain.NamedQuestionRequest{Name: name})
}

func (q *QueryManager) request(ctx context.Context, path string, body interface{}) (*domain.Question, error) {
	resp, err := q.transport.Post(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to request question: %w", err)
	}

	var question domain.Question
	if err := resp.JSON(&question); err != nil {
		return nil, fmt.Errorf("failed to decode question: %w", err)
	}

	q.mu.Lock()
	q.used = append(q.used, question.ID)
	q.mu.Unlock()

	return &question, nil
}

// NQuestionsUsed returns how many questions have been received so far.
func (q *QueryManager) NQuestionsUsed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.used)
}

// UsedIDs returns the received ids in receipt order.
func (q *QueryManager) UsedIDs() []domain.QuestionID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QuestionID, len(q.used))
	copy(out, q.used)
	return out
}
