package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replay/internal/adapter/backend"
	"github.com/xiaot623/gogo/replay/internal/domain"
)

func TestRequestRandomQuestionExcludesPreviousIDs(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	ids := []interface{}{7, "q-b", 9}
	n := 0
	transport.Handle(pathRandomQuestion, func(json.RawMessage) (*backend.Response, error) {
		id := ids[n]
		n++
		return backend.NewResponse(200, questionJSON(id, []int{1}, []int{2})), nil
	})
	qm := NewQueryManager(transport)

	for range ids {
		_, err := qm.RequestRandomQuestion(ctx, domain.FilterOptions{})
		require.NoError(t, err)
	}

	calls := transport.Calls(pathRandomQuestion)
	require.Len(t, calls, 3)
	assert.JSONEq(t, `{"env":"miner","lengths":[],"types":["traj","traj"],"exclude_ids":[]}`, string(calls[0].Body))
	assert.JSONEq(t, `{"env":"miner","lengths":[],"types":["traj","traj"],"exclude_ids":[7]}`, string(calls[1].Body))
	assert.JSONEq(t, `{"env":"miner","lengths":[],"types":["traj","traj"],"exclude_ids":[7,"q-b"]}`, string(calls[2].Body))

	assert.Equal(t, 3, qm.NQuestionsUsed())
	assert.Equal(t, []domain.QuestionID{domain.NumberID(7), domain.StringID("q-b"), domain.NumberID(9)}, qm.UsedIDs())
}

func TestRequestRandomQuestionUsesFilter(t *testing.T) {
	transport := newFakeTransport()
	transport.Handle(pathRandomQuestion, questionSequence([]int{1}, []int{2}))
	qm := NewQueryManager(transport)

	_, err := qm.RequestRandomQuestion(context.Background(), domain.FilterOptions{
		Env:     "maze",
		Lengths: []int{10, 20},
		Types:   []string{"traj", "state"},
	})
	require.NoError(t, err)

	calls := transport.Calls(pathRandomQuestion)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"env":"maze","lengths":[10,20],"types":["traj","state"],"exclude_ids":[]}`, string(calls[0].Body))
}

func TestRequestRandomQuestionError(t *testing.T) {
	transport := newFakeTransport()
	transport.Handle(pathRandomQuestion, failing)
	qm := NewQueryManager(transport)

	_, err := qm.RequestRandomQuestion(context.Background(), domain.FilterOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, 0, qm.NQuestionsUsed())
}

func TestRequestRandomQuestionDoubleWrapped(t *testing.T) {
	transport := newFakeTransport()
	transport.Handle(pathRandomQuestion, func(json.RawMessage) (*backend.Response, error) {
		wrapped, err := json.Marshal(string(questionJSON(42, []int{5}, []int{5, 5})))
		if err != nil {
			return nil, err
		}
		return backend.NewResponse(200, wrapped), nil
	})
	qm := NewQueryManager(transport)

	q, err := qm.RequestRandomQuestion(context.Background(), domain.FilterOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.NumberID(42), q.ID)
	require.Len(t, q.Trajs, 2)
	assert.Equal(t, []domain.Action{5, 5}, q.Trajs[1].Actions)
}

func TestRequestQuestionByName(t *testing.T) {
	transport := newFakeTransport()
	transport.Handle(pathNamedQuestion, func(json.RawMessage) (*backend.Response, error) {
		return backend.NewResponse(200, questionJSON("tutorial", []int{1}, []int{2})), nil
	})
	qm := NewQueryManager(transport)

	q, err := qm.RequestQuestionByName(context.Background(), "tutorial")
	require.NoError(t, err)
	assert.Equal(t, domain.StringID("tutorial"), q.ID)

	calls := transport.Calls(pathNamedQuestion)
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"name":"tutorial"}`, string(calls[0].Body))
	assert.Equal(t, 1, qm.NQuestionsUsed())
}
