package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

// AnswerManager batches answers and flushes them to the backend in one request.
type AnswerManager struct {
	transport Transport

	mu         sync.Mutex
	answers    []domain.Answer
	questionID domain.QuestionID
	pending    bool
}

// NewAnswerManager creates a new answer manager.
func NewAnswerManager(transport Transport) *AnswerManager {
	return &AnswerManager{transport: transport}
}

// SetQuestionID sets the question the next answer belongs to. It is ignored
// while a previous id is still waiting for its answer.
func (a *AnswerManager) SetQuestionID(id domain.QuestionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending {
		a.questionID = id
		a.pending = true
	}
}

// PendingID returns the id waiting for an answer, if any.
func (a *AnswerManager) PendingID() (domain.QuestionID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.questionID, a.pending
}

// AddAnswer appends an answer for the pending question and clears it.
func (a *AnswerManager) AddAnswer(side domain.Side, timer *Timer, maxSteps []int) {
	answer := domain.Answer{Answer: side, MaxSteps: maxSteps}
	if start, ok := timer.StartTime(); ok {
		ms := start.UnixMilli()
		answer.StartTime = &ms
	}
	if stop, ok := timer.StopTime(); ok {
		ms := stop.UnixMilli()
		answer.StopTime = &ms
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	answer.ID = a.questionID
	a.answers = append(a.answers, answer)
	a.questionID = domain.QuestionID{}
	a.pending = false
}

// Answers returns the unsubmitted answers in selection order.
func (a *AnswerManager) Answers() []domain.Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Answer, len(a.answers))
	copy(out, a.answers)
	return out
}

// SubmitAnswers posts the batch, if any, and clears it whatever the outcome.
// Delivery is at most once: a failed batch is not retried.
func (a *AnswerManager) SubmitAnswers(ctx context.Context) error {
	a.mu.Lock()
	batch := a.answers
	a.answers = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if _, err := a.transport.Post(ctx, pathSubmitAnswers, batch); err != nil {
		return fmt.Errorf("failed to submit %d answers: %w", len(batch), err)
	}
	return nil
}
