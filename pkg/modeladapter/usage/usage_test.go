package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalAccumulates(t *testing.T) {
	var tr Tracker

	tr.Add(TokenCount{PromptTokens: 10, CompletionTokens: 5})
	tr.Add(TokenCount{PromptTokens: 10, CompletionTokens: 5})

	total := tr.Total()
	assert.Equal(t, 20, total.PromptTokens)
	assert.Equal(t, 10, total.CompletionTokens)
	assert.Equal(t, 30, total.Total())
	assert.Equal(t, 2, tr.Count())
}

func TestLast(t *testing.T) {
	var tr Tracker

	_, ok := tr.Last()
	assert.False(t, ok)

	tr.Add(TokenCount{PromptTokens: 1})
	tr.Add(TokenCount{PromptTokens: 2})

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.PromptTokens)
}

func TestReset(t *testing.T) {
	var tr Tracker
	tr.Add(TokenCount{PromptTokens: 1})

	tr.Reset()

	assert.Equal(t, 0, tr.Count())
	assert.Equal(t, TokenCount{}, tr.Total())
}

func TestConcurrentAdd(t *testing.T) {
	var tr Tracker
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(TokenCount{PromptTokens: 1, CompletionTokens: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Total().Total())
}
