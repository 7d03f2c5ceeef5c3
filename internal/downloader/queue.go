package downloader

import "sync"

// TaskQueue distributes deduplicated tasks to workers. Take is
// non-blocking: an empty queue means no more work.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []Task
	next  int
}

// NewTaskQueue builds a queue from raw URLs, dropping duplicates while
// preserving first-seen order. The duplicate count is returned for
// reporting; duplicates are not an error.
func NewTaskQueue(urls []string) (*TaskQueue, int) {
	seen := make(map[string]struct{}, len(urls))
	tasks := make([]Task, 0, len(urls))
	duplicates := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			duplicates++
			continue
		}
		seen[u] = struct{}{}
		tasks = append(tasks, Task{URL: u})
	}
	return &TaskQueue{tasks: tasks}, duplicates
}

// Take pops the next task. The second return is false once the queue is
// drained.
func (q *TaskQueue) Take() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.tasks) {
		return Task{}, false
	}
	t := q.tasks[q.next]
	q.next++
	return t, true
}

// Len reports the number of tasks enqueued at construction.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Remaining reports how many tasks have not yet been taken.
func (q *TaskQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) - q.next
}
