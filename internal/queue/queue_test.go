package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, q.Pop())
	assert.Equal(t, 2, q.Pop())
	assert.Equal(t, 3, q.Pop())
	assert.True(t, q.Empty())
}

func TestPopEmptyReturnsZero(t *testing.T) {
	q := New[string]()
	assert.Equal(t, "", q.Pop())
}

func TestGetAndEmpty(t *testing.T) {
	q := New[int]()
	q.Push(10, 20, 30)

	got := q.GetAndEmpty()
	require.Equal(t, []int{10, 20, 30}, got)
	assert.True(t, q.Empty())
	assert.Empty(t, q.GetAndEmpty())
}

func TestConcurrentPush(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
	assert.Len(t, q.GetAndEmpty(), 1000)
}
