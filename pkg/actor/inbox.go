// Copyright © 2025 Stageflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package actor

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// Inbox is the private mailbox of a process. Messages are delivered in the
// order they were pushed (FIFO) and are received by exactly one call to Recv.
// The queue is unbounded, pushing never blocks.
type Inbox struct {
	m     sync.Mutex
	queue deque.Deque[any]
	// signal has a capacity of 1 and gets a token each time a message is
	// pushed into an empty queue
	signal chan struct{}
}

func newInbox() *Inbox {
	return &Inbox{
		signal: make(chan struct{}, 1),
	}
}

// push appends msg to the queue and wakes up a pending Recv.
func (i *Inbox) push(msg any) {
	i.m.Lock()
	i.queue.PushBack(msg)
	i.m.Unlock()

	select {
	case i.signal <- struct{}{}:
	default: // a wakeup is already pending
	}
}

// Recv returns the next message from the inbox. If the inbox is empty it
// blocks until a message is pushed or the context is canceled, in which case
// it returns the context error. Note that Recv waits indefinitely if the
// context has no deadline, use RecvTimeout to bound the wait.
func (i *Inbox) Recv(ctx context.Context) (any, error) {
	for {
		i.m.Lock()
		if i.queue.Len() > 0 {
			msg := i.queue.PopFront()
			i.m.Unlock()
			return msg, nil
		}
		i.m.Unlock()

		select {
		case <-i.signal:
			// a message was pushed, loop around and try to pop it
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// RecvTimeout behaves like Recv except it returns the context error if no
// message arrives within the timeout.
func (i *Inbox) RecvTimeout(ctx context.Context, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return i.Recv(ctx)
}

// Len returns the number of messages waiting in the inbox.
func (i *Inbox) Len() int {
	i.m.Lock()
	defer i.m.Unlock()
	return i.queue.Len()
}
