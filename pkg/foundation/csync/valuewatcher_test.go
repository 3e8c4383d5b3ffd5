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

package csync

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestValueWatcher_GetEmpty(t *testing.T) {
	is := is.New(t)

	var h ValueWatcher[int]
	is.Equal(h.Get(), 0)
}

func TestValueWatcher_SetGet(t *testing.T) {
	is := is.New(t)

	var h ValueWatcher[int]
	h.Set(123)
	is.Equal(h.Get(), 123)
}

func TestValueWatcher_Watch_CurrentValue(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	var h ValueWatcher[string]
	h.Set("running")

	got, err := h.Watch(ctx, WatchValues("running"))
	is.NoErr(err)
	is.Equal(got, "running")
}

func TestValueWatcher_Watch_FutureValue(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var h ValueWatcher[string]
	h.Set("starting")

	go func() {
		time.Sleep(time.Millisecond * 10)
		h.Set("running")
		time.Sleep(time.Millisecond * 10)
		h.Set("stopped")
	}()

	got, err := h.Watch(ctx, WatchValues("stopped"))
	is.NoErr(err)
	is.Equal(got, "stopped")
}

func TestValueWatcher_Watch_Canceled(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var h ValueWatcher[int]
	_, err := h.Watch(ctx, WatchValues(1))
	is.Equal(err, context.Canceled)
}
