package comments

import (
	"context"
	"sync"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/google/uuid"
)

// Observer fans newly added comments out to per-task subscribers.
type Observer struct {
	mu sync.RWMutex
	//   map[taskID] map[subscriberID] channel
	subs   map[string]map[string]chan *domain.Comment
	buffer int
}

// NewObserver creates an observer whose subscriber channels hold buffer comments.
func NewObserver(buffer int) *Observer {
	if buffer < 1 {
		buffer = 1
	}
	return &Observer{
		subs:   make(map[string]map[string]chan *domain.Comment),
		buffer: buffer,
	}
}

// Subscribe registers for comments on taskID. The channel is closed once ctx is done.
func (o *Observer) Subscribe(ctx context.Context, taskID string) <-chan *domain.Comment {
	ch := make(chan *domain.Comment, o.buffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[taskID] == nil {
		o.subs[taskID] = make(map[string]chan *domain.Comment)
	}
	o.subs[taskID][subID] = ch
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if taskSubs, ok := o.subs[taskID]; ok {
			delete(taskSubs, subID)
			if len(taskSubs) == 0 {
				delete(o.subs, taskID)
			}
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Publish delivers c to every subscriber of its task without blocking. A subscriber
// whose buffer is full misses the comment.
func (o *Observer) Publish(c *domain.Comment) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[c.TaskID] {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribers reports how many subscribers taskID has.
func (o *Observer) Subscribers(taskID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[taskID])
}
