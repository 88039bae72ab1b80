package scripthost_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/scripthost"
)

func TestRunReturnsValue(t *testing.T) {
	h := scripthost.New(nil)
	result, err := h.Run(context.Background(), "input * 2", float64(21), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

func TestRunNullSuppressesEmission(t *testing.T) {
	h := scripthost.New(nil)
	result, err := h.Run(context.Background(), "null", float64(1), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRunPersistsStateAcrossCalls(t *testing.T) {
	h := scripthost.New(nil)
	state := make(map[string]interface{})

	_, err := h.Run(context.Background(), "state.count = (state.count || 0) + 1; state.count", nil, state)
	require.NoError(t, err)
	result, err := h.Run(context.Background(), "state.count = (state.count || 0) + 1; state.count", nil, state)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)
}

func TestRunTimesOutOnInfiniteLoop(t *testing.T) {
	h := scripthost.New(nil)
	h.Timeout = 50 * time.Millisecond

	_, err := h.Run(context.Background(), "while (true) {}", nil, nil)
	assert.Error(t, err)
}

func TestStatementBudgetExceeded(t *testing.T) {
	h := scripthost.New(nil)
	h.MaxStatements = 2

	_, err := h.Run(context.Background(), "var a = 1; var b = 2; var c = 3;", nil, nil)
	require.Error(t, err)
	var budgetErr *scripthost.ErrStatementBudgetExceeded
	assert.ErrorAs(t, err, &budgetErr)
}
