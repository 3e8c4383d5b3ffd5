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
	"testing"

	"github.com/matryer/is"
)

func TestContextWithStageID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	is.Equal(StageIDFromContext(ctx), "")

	ctx = ContextWithStageID(ctx, "stage-1")
	is.Equal(StageIDFromContext(ctx), "stage-1")
}

func TestContextWithSubscriptionTag(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	is.Equal(SubscriptionTagFromContext(ctx), "")

	ctx = ContextWithSubscriptionTag(ctx, "tag-1")
	is.Equal(SubscriptionTagFromContext(ctx), "tag-1")
}
