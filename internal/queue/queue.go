package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue is closed")

type TaskKind string

const (
	TaskListing TaskKind = "listing"
	TaskDetail  TaskKind = "detail"
)

type Task struct {
	ID         string
	Kind       TaskKind
	URL        string
	CatalogURL string
	Page       int
	Priority   int
	Retries    int
	CreatedAt  time.Time
	seq        uint64
}

type Queue interface {
	Push(task *Task) error
	PushBatch(tasks []*Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue orders tasks by descending priority, FIFO within a priority.
type InMemoryQueue struct {
	tasks  []*Task
	mu     sync.Mutex
	notify chan struct{}
	closed bool
	seq    uint64
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks:  make([]*Task, 0),
		notify: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.add(task)
	q.sortByPriority()
	q.wake()

	return nil
}

// PushBatch enqueues tasks in order under one lock. Nothing is enqueued when
// the queue is closed.
func (q *InMemoryQueue) PushBatch(tasks []*Task) error {
	if len(tasks) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for _, task := range tasks {
		q.add(task)
	}
	q.sortByPriority()
	q.wake()

	return nil
}

func (q *InMemoryQueue) add(task *Task) {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	q.seq++
	task.seq = q.seq
	q.tasks = append(q.tasks, task)
}

// Pop blocks until a task is available, the queue is closed and drained, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.wake()
	}

	return nil
}

// wake releases every blocked Pop. Callers hold q.mu.
func (q *InMemoryQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

func (q *InMemoryQueue) sortByPriority() {
	sort.SliceStable(q.tasks, func(i, j int) bool {
		if q.tasks[i].Priority != q.tasks[j].Priority {
			return q.tasks[i].Priority > q.tasks[j].Priority
		}
		return q.tasks[i].seq < q.tasks[j].seq
	})
}
