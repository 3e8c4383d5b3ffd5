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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestCtxLogger_WithComponent(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	logger := New(zerolog.New(&buf)).WithComponent("test.Component")

	logger.Info(context.Background()).Msg("hello")
	is.True(strings.Contains(buf.String(), `"component":"test.Component"`))
}

func TestCtxLogger_WithComponentFromType(t *testing.T) {
	is := is.New(t)

	logger := Nop().WithComponentFromType(CtxLogger{})
	is.Equal(logger.Component(), "foundation.log.CtxLogger")
}

type testValCtxKey struct{}

func TestCtxLogger_CtxHook(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	logger := New(zerolog.New(&buf)).CtxHook(
		CtxHookFunc(func(ctx context.Context, e *zerolog.Event, l zerolog.Level) {
			if val, ok := ctx.Value(testValCtxKey{}).(string); ok {
				e.Str("val", val)
			}
		}),
	)

	ctx := context.WithValue(context.Background(), testValCtxKey{}, "foo")
	logger.Info(ctx).Msg("hello")
	is.True(strings.Contains(buf.String(), `"val":"foo"`))

	// without the value in the context the hook adds nothing
	buf.Reset()
	logger.Info(context.Background()).Msg("hello")
	is.True(!strings.Contains(buf.String(), `"val"`))
}
