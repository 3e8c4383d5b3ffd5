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

package stage

import (
	"testing"

	"github.com/matryer/is"
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
)

func TestSubscriptionOptions_WithDefaults(t *testing.T) {
	is := is.New(t)

	opts := SubscriptionOptions{}.withDefaults()
	is.Equal(opts.MinDemand, DefaultMinDemand)
	is.Equal(opts.MaxDemand, DefaultMaxDemand)

	// an explicit window is left alone
	opts = SubscriptionOptions{MinDemand: 5, MaxDemand: 10}.withDefaults()
	is.Equal(opts.MinDemand, 5)
	is.Equal(opts.MaxDemand, 10)
}

func TestSubscriptionOptions_Validate(t *testing.T) {
	testCases := []struct {
		min, max int
		wantErr  bool
	}{
		{min: 0, max: 1, wantErr: false},
		{min: 5, max: 10, wantErr: false},
		{min: 500, max: 1000, wantErr: false},
		{min: -1, max: 10, wantErr: true},
		{min: 10, max: 10, wantErr: true},
		{min: 11, max: 10, wantErr: true},
		{min: 0, max: 0, wantErr: true},
	}

	for _, tc := range testCases {
		err := SubscriptionOptions{MinDemand: tc.min, MaxDemand: tc.max}.Validate()
		if tc.wantErr {
			if !cerrors.Is(err, ErrInvalidDemandWindow) {
				t.Errorf("min=%d max=%d: expected invalid demand window, got %v", tc.min, tc.max, err)
			}
		} else if err != nil {
			t.Errorf("min=%d max=%d: unexpected error %v", tc.min, tc.max, err)
		}
	}
}

func TestUpstreamLink_InitialAsk(t *testing.T) {
	is := is.New(t)

	l := &upstreamLink{opts: SubscriptionOptions{MinDemand: 5, MaxDemand: 10}}
	is.Equal(l.nextAsk(), 10) // first ask requests the full window
	is.Equal(l.outstanding, 10)
	is.Equal(l.nextAsk(), 0) // outstanding is above the low water mark
}

func TestUpstreamLink_PendingNeverAsks(t *testing.T) {
	is := is.New(t)

	l := &upstreamLink{opts: SubscriptionOptions{MinDemand: 5, MaxDemand: 10}, pending: true}
	is.Equal(l.nextAsk(), 0)
	is.Equal(l.outstanding, 0)

	l.pending = false
	is.Equal(l.nextAsk(), 10)
}

func TestUpstreamLink_LowWaterMarkRefill(t *testing.T) {
	is := is.New(t)

	l := &upstreamLink{opts: SubscriptionOptions{MinDemand: 5, MaxDemand: 10}}
	is.Equal(l.nextAsk(), 10)

	// 10 -> 7, still above the mark, no refill
	l.consume(3)
	is.Equal(l.outstanding, 7)
	is.Equal(l.nextAsk(), 0)

	// 7 -> 4, at or below the mark, refill restores the full window
	l.consume(3)
	is.Equal(l.outstanding, 4)
	is.Equal(l.nextAsk(), 6)
	is.Equal(l.outstanding, 10)
}

func TestUpstreamLink_RefillAtExactMark(t *testing.T) {
	is := is.New(t)

	l := &upstreamLink{opts: SubscriptionOptions{MinDemand: 5, MaxDemand: 10}}
	l.nextAsk()
	l.consume(5)
	is.Equal(l.outstanding, 5) // exactly at the mark triggers a refill
	is.Equal(l.nextAsk(), 5)
	is.Equal(l.outstanding, 10)
}

func TestUpstreamLink_DemandConservation(t *testing.T) {
	is := is.New(t)

	// across any consume/refill interleaving the outstanding demand stays
	// within (0, MaxDemand]
	l := &upstreamLink{opts: SubscriptionOptions{MinDemand: 5, MaxDemand: 10}}
	l.nextAsk()

	for _, n := range []int{3, 1, 4, 2, 5, 3, 1, 1, 2, 4} {
		l.consume(n)
		l.nextAsk()
		is.True(l.outstanding > 0)
		is.True(l.outstanding <= l.opts.MaxDemand)
	}
}

func TestUpstreamLink_ConsumeClampsAtZero(t *testing.T) {
	is := is.New(t)

	l := &upstreamLink{outstanding: 2}
	l.consume(5)
	is.Equal(l.outstanding, 0)
}
