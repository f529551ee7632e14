package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replay/internal/domain"
)

func TestSetQuestionIDIgnoredWhilePending(t *testing.T) {
	am := NewAnswerManager(newFakeTransport())

	am.SetQuestionID(domain.NumberID(1))
	am.SetQuestionID(domain.NumberID(2))

	id, ok := am.PendingID()
	assert.True(t, ok)
	assert.Equal(t, domain.NumberID(1), id)
}

func TestAddAnswerClearsPendingID(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)
	timer.Start()
	clock.Advance(1500 * time.Millisecond)
	timer.Stop()

	am := NewAnswerManager(newFakeTransport())
	am.SetQuestionID(domain.NumberID(17))
	am.AddAnswer(domain.SideRight, timer, []int{3, 5})

	_, ok := am.PendingID()
	assert.False(t, ok)

	answers := am.Answers()
	require.Len(t, answers, 1)
	a := answers[0]
	assert.Equal(t, domain.NumberID(17), a.ID)
	assert.Equal(t, domain.SideRight, a.Answer)
	require.NotNil(t, a.StartTime)
	require.NotNil(t, a.StopTime)
	assert.Equal(t, int64(1500), *a.StopTime-*a.StartTime)
	assert.Equal(t, []int{3, 5}, a.MaxSteps)

	am.SetQuestionID(domain.NumberID(18))
	id, ok := am.PendingID()
	assert.True(t, ok)
	assert.Equal(t, domain.NumberID(18), id)
}

func TestSubmitAnswersPostsBatch(t *testing.T) {
	transport := newFakeTransport()
	am := NewAnswerManager(transport)
	timer := NewTimer(newFakeClock())

	for _, side := range []domain.Side{domain.SideLeft, domain.SideRight} {
		timer.Start()
		timer.Stop()
		am.SetQuestionID(domain.StringID(string(side)))
		am.AddAnswer(side, timer, nil)
		timer.Reset()
	}

	require.NoError(t, am.SubmitAnswers(context.Background()))

	calls := transport.Calls(pathSubmitAnswers)
	require.Len(t, calls, 1)
	var sent []domain.Answer
	require.NoError(t, json.Unmarshal(calls[0].Body, &sent))
	require.Len(t, sent, 2)
	assert.Equal(t, domain.SideLeft, sent[0].Answer)
	assert.Equal(t, domain.SideRight, sent[1].Answer)
	assert.Empty(t, am.Answers())
}

func TestSubmitAnswersEmptyBatchSkipsRequest(t *testing.T) {
	transport := newFakeTransport()
	am := NewAnswerManager(transport)

	require.NoError(t, am.SubmitAnswers(context.Background()))
	assert.Empty(t, transport.Calls(pathSubmitAnswers))
}

func TestSubmitAnswersClearsBatchOnError(t *testing.T) {
	transport := newFakeTransport()
	transport.Handle(pathSubmitAnswers, failing)
	am := NewAnswerManager(transport)
	am.SetQuestionID(domain.NumberID(1))
	am.AddAnswer(domain.SideLeft, NewTimer(newFakeClock()), nil)

	err := am.SubmitAnswers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Empty(t, am.Answers())

	// Nothing left to resend.
	require.NoError(t, am.SubmitAnswers(context.Background()))
	assert.Len(t, transport.Calls(pathSubmitAnswers), 1)
}

func TestAnswerWithoutTimesEncodesNulls(t *testing.T) {
	am := NewAnswerManager(newFakeTransport())
	am.SetQuestionID(domain.NumberID(5))
	am.AddAnswer(domain.SideLeft, NewTimer(newFakeClock()), nil)

	out, err := json.Marshal(am.Answers())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":5,"answer":"left","startTime":null,"stopTime":null}]`, string(out))
}
