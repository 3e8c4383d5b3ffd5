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

package log

import (
	"context"

	"github.com/rs/zerolog"
)

// CtxHook is a hook that gets access to the context of the log entry.
type CtxHook interface {
	// Run runs the hook with the event and its context.
	Run(ctx context.Context, e *zerolog.Event, level zerolog.Level)
}

// CtxHookFunc is an adapter to allow the use of ordinary functions as context
// hooks.
type CtxHookFunc func(ctx context.Context, e *zerolog.Event, level zerolog.Level)

func (f CtxHookFunc) Run(ctx context.Context, e *zerolog.Event, level zerolog.Level) {
	f(ctx, e, level)
}

// CtxHook returns a logger with the context hooks attached. The hooks run for
// every log entry created through the CtxLogger methods and receive the
// context passed to them.
func (l CtxLogger) CtxHook(hooks ...CtxHook) CtxLogger {
	l.Logger = l.Logger.Hook(ctxHookAdapter{hooks: hooks})
	return l
}

// ctxHookAdapter adapts context hooks to the zerolog hook interface by
// extracting the context previously attached to the event.
type ctxHookAdapter struct {
	hooks []CtxHook
}

func (a ctxHookAdapter) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	ctx := e.GetCtx()
	for _, h := range a.hooks {
		h.Run(ctx, e, level)
	}
}
