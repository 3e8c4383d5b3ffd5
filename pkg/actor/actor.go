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

// Package actor provides a minimal process substrate: isolated concurrent
// units of execution, each with a private ordered inbox and asynchronous
// point-to-point message delivery. Processes share no memory, all
// coordination happens through messages.
package actor

import (
	"context"

	"github.com/google/uuid"
	"github.com/stageflow/stageflow/pkg/foundation/csync"
	"github.com/stageflow/stageflow/pkg/foundation/log"
	"gopkg.in/tomb.v2"
)

// EntryFunc is the body of a process. It receives a context that is canceled
// when the process is killed and the process's own inbox. The process dies
// when the function returns, the returned error becomes the death reason (nil
// means a normal exit).
type EntryFunc func(ctx context.Context, inbox *Inbox) error

// Ref identifies a running process and is the only handle through which other
// processes can reach it.
type Ref struct {
	id    string
	name  string
	inbox *Inbox
	// each process gets its own tomb so that a failure stays isolated
	t *tomb.Tomb
}

// ID returns the unique identifier of the process.
func (r *Ref) ID() string { return r.id }

// Name returns the human readable name of the process.
func (r *Ref) Name() string { return r.name }

// Send asynchronously delivers msg to the process inbox. It never blocks and
// delivers at most once per call. Sending to a dead process is a no-op.
func (r *Ref) Send(msg any) {
	if !r.t.Alive() {
		return
	}
	r.inbox.push(msg)
}

// Alive reports whether the process is still running.
func (r *Ref) Alive() bool { return r.t.Alive() }

// Dead returns a channel that is closed when the process has died.
func (r *Ref) Dead() <-chan struct{} { return r.t.Dead() }

// Err returns the death reason of the process. It returns nil while the
// process is alive or if it exited normally.
func (r *Ref) Err() error {
	err := r.t.Err()
	if err == tomb.ErrStillAlive {
		return nil
	}
	return err
}

// System spawns processes and tracks them until they die.
type System struct {
	logger log.CtxLogger
	wg     csync.WaitGroup
}

// NewSystem creates a System ready to spawn processes.
func NewSystem(logger log.CtxLogger) *System {
	return &System{
		logger: logger.WithComponent("actor.System"),
	}
}

// Spawn starts a new process running entry and returns its Ref. The process
// runs until entry returns or it is killed.
func (s *System) Spawn(name string, entry EntryFunc) *Ref {
	r := &Ref{
		id:    uuid.NewString(),
		name:  name,
		inbox: newInbox(),
		t:     &tomb.Tomb{},
	}

	s.wg.Add(1)
	ctx := r.t.Context(nil) //nolint:staticcheck // tomb expects nil to create a fresh context
	r.t.Go(func() error {
		defer s.wg.Done()
		err := entry(ctx, r.inbox)
		if err != nil {
			s.logger.Err(ctx, err).
				Str(log.StageNameField, name).
				Msg("process died abnormally")
		}
		return err
	})

	s.logger.Trace(ctx).
		Str(log.StageIDField, r.id).
		Str(log.StageNameField, name).
		Msg("spawned process")
	return r
}

// Kill asynchronously terminates the process with the given reason. The
// process observes the kill through its context.
func (s *System) Kill(r *Ref, reason error) {
	r.t.Kill(reason)
}

// Wait blocks until all spawned processes have died or the context is
// canceled.
func (s *System) Wait(ctx context.Context) error {
	return s.wg.Wait(ctx)
}
