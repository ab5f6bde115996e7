// FILE: src/internal/stream/queue_test.go
package stream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendQueue_PushPop(t *testing.T) {
	t.Run("FIFOWithinPriority", func(t *testing.T) {
		q := newSendQueue(10)

		q.Push([]byte("a"), PriorityNormal)
		q.Push([]byte("b"), PriorityNormal)
		q.Push([]byte("c"), PriorityNormal)

		assert.Equal(t, "a", string(q.Pop()))
		assert.Equal(t, "b", string(q.Pop()))
		assert.Equal(t, "c", string(q.Pop()))
		assert.Nil(t, q.Pop())
	})

	t.Run("HigherPriorityDrainsFirst", func(t *testing.T) {
		q := newSendQueue(10)

		q.Push([]byte("retry"), PriorityRetry)
		q.Push([]byte("log-1"), PriorityNormal)
		q.Push([]byte("control"), PriorityControl)
		q.Push([]byte("log-2"), PriorityNormal)

		assert.Equal(t, "control", string(q.Pop()))
		assert.Equal(t, "log-1", string(q.Pop()))
		assert.Equal(t, "log-2", string(q.Pop()))
		assert.Equal(t, "retry", string(q.Pop()))
	})

	t.Run("PushFailsAtCapacity", func(t *testing.T) {
		q := newSendQueue(2)

		assert.True(t, q.Push([]byte("a"), PriorityNormal))
		assert.True(t, q.Push([]byte("b"), PriorityNormal))
		assert.False(t, q.Push([]byte("c"), PriorityNormal))
		assert.Equal(t, 2, q.Len())
	})
}

func TestSendQueue_Trim(t *testing.T) {
	t.Run("KeepsHighestPriorityMostRecent", func(t *testing.T) {
		q := newSendQueue(10)

		for i := 0; i < 6; i++ {
			q.Push([]byte(fmt.Sprintf("log-%d", i)), PriorityNormal)
		}
		q.Push([]byte("control"), PriorityControl)
		q.Push([]byte("retry"), PriorityRetry)

		dropped := q.Trim(3)
		assert.Equal(t, 5, dropped)
		assert.Equal(t, 3, q.Len())

		// Control survives along with the two newest normal entries
		assert.Equal(t, "control", string(q.Pop()))
		assert.Equal(t, "log-4", string(q.Pop()))
		assert.Equal(t, "log-5", string(q.Pop()))
	})

	t.Run("NoopBelowThreshold", func(t *testing.T) {
		q := newSendQueue(10)
		q.Push([]byte("a"), PriorityNormal)

		assert.Equal(t, 0, q.Trim(5))
		assert.Equal(t, 1, q.Len())
	})
}

func TestSendQueue_Clear(t *testing.T) {
	q := newSendQueue(10)
	q.Push([]byte("a"), PriorityNormal)
	q.Push([]byte("b"), PriorityControl)

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Pop())
}
