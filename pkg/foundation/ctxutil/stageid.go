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

package ctxutil

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stageflow/stageflow/pkg/foundation/log"
)

// stageIDCtxKey is used as the key when saving the stage ID in a context.
type stageIDCtxKey struct{}

// ContextWithStageID wraps ctx and returns a context that contains the stage
// ID.
func ContextWithStageID(ctx context.Context, stageID string) context.Context {
	return context.WithValue(ctx, stageIDCtxKey{}, stageID)
}

// StageIDFromContext fetches the stage ID from the context. If the context
// does not contain a stage ID it returns an empty string.
func StageIDFromContext(ctx context.Context) string {
	stageID := ctx.Value(stageIDCtxKey{})
	if stageID != nil {
		return stageID.(string)
	}
	return ""
}

// StageIDLogCtxHook fetches the stage ID from the context and if it exists it
// adds it to the log output.
type StageIDLogCtxHook struct{}

// Run executes the log hook.
func (h StageIDLogCtxHook) Run(ctx context.Context, e *zerolog.Event, lvl zerolog.Level) {
	s := StageIDFromContext(ctx)
	if s != "" {
		e.Str(log.StageIDField, s)
	}
}
