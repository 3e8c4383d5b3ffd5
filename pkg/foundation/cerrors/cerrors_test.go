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

package cerrors_test

import (
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
)

func TestNew_StackTrace(t *testing.T) {
	is := is.New(t)

	err := cerrors.New("boom")
	frames, ok := cerrors.GetStackTrace(err).([]cerrors.Frame)
	is.True(ok)
	is.Equal(len(frames), 1)
	is.True(strings.HasSuffix(frames[0].File, "cerrors_test.go"))
}

func TestErrorf_Wrapping(t *testing.T) {
	is := is.New(t)

	cause := cerrors.New("cause")
	err := cerrors.Errorf("wrapped: %w", cause)

	is.True(cerrors.Is(err, cause))
	is.Equal(cerrors.Unwrap(err), cause)

	frames, ok := cerrors.GetStackTrace(err).([]cerrors.Frame)
	is.True(ok)
	is.Equal(len(frames), 2) // one frame per wrap
}

func TestGetStackTrace_ForeignError(t *testing.T) {
	is := is.New(t)

	frames, _ := cerrors.GetStackTrace(&assertError{}).([]cerrors.Frame)
	is.Equal(len(frames), 0)
}

type assertError struct{}

func (*assertError) Error() string { return "no stack trace here" }

func TestLogOrReplace(t *testing.T) {
	is := is.New(t)

	oldErr := cerrors.New("old")
	newErr := cerrors.New("new")

	is.Equal(cerrors.LogOrReplace(nil, newErr, func() { t.Fatal("log should not be called") }), newErr)

	var logged bool
	is.Equal(cerrors.LogOrReplace(oldErr, newErr, func() { logged = true }), oldErr)
	is.True(logged)

	is.Equal(cerrors.LogOrReplace(oldErr, nil, func() { t.Fatal("log should not be called") }), oldErr)
}
