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

// subscriptionTagCtxKey is used as the key when saving the subscription tag in
// a context.
type subscriptionTagCtxKey struct{}

// ContextWithSubscriptionTag wraps ctx and returns a context that contains the
// subscription tag.
func ContextWithSubscriptionTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, subscriptionTagCtxKey{}, tag)
}

// SubscriptionTagFromContext fetches the subscription tag from the context. If
// the context does not contain a subscription tag it returns an empty string.
func SubscriptionTagFromContext(ctx context.Context) string {
	tag := ctx.Value(subscriptionTagCtxKey{})
	if tag != nil {
		return tag.(string)
	}
	return ""
}

// SubscriptionTagLogCtxHook fetches the subscription tag from the context and
// if it exists it adds it to the log output.
type SubscriptionTagLogCtxHook struct{}

// Run executes the log hook.
func (h SubscriptionTagLogCtxHook) Run(ctx context.Context, e *zerolog.Event, lvl zerolog.Level) {
	tag := SubscriptionTagFromContext(ctx)
	if tag != "" {
		e.Str(log.SubscriptionTagField, tag)
	}
}
