// Package handlers queuing.go holds the outbound message backlog of one
// client. Messages leave in the order they were queued.
package handlers

import (
	"errors"
	"sync"
)

var ErrBacklogFull = errors.New("outbound backlog full")

type MessageQueue struct {
	mu       sync.Mutex
	messages [][]byte
	limit    int
}

// NewMessageQueue returns a queue holding at most limit messages; limit <= 0
// means unbounded.
func NewMessageQueue(limit int) *MessageQueue {
	return &MessageQueue{limit: limit}
}

func (mq *MessageQueue) Enqueue(message []byte) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.limit > 0 && len(mq.messages) >= mq.limit {
		return ErrBacklogFull
	}
	mq.messages = append(mq.messages, message)
	return nil
}

// DequeueAll removes and returns every queued message, oldest first.
func (mq *MessageQueue) DequeueAll() [][]byte {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	messages := mq.messages
	mq.messages = nil
	return messages
}

func (mq *MessageQueue) QueueSize() int {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	return len(mq.messages)
}

func (mq *MessageQueue) ClearQueue() {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	mq.messages = nil
}
