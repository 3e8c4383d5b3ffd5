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
	"github.com/stageflow/stageflow/pkg/foundation/cerrors"
)

var (
	ErrInvalidDemandWindow   = cerrors.New("min demand must be non-negative and smaller than max demand")
	ErrUpstreamNotProducer   = cerrors.New("upstream stage does not produce events")
	ErrDownstreamNotConsumer = cerrors.New("downstream stage does not consume events")
	ErrSelfSubscription      = cerrors.New("stage cannot subscribe to itself")
	ErrStageNotRunning       = cerrors.New("stage is not running")
	ErrPartitionNotDeclared  = cerrors.New("subscription to a partition dispatcher must declare a partition")
	ErrPartitionUnknown      = cerrors.New("partition is not configured on the dispatcher")
	ErrPartitionOccupied     = cerrors.New("partition already has an active subscriber")
	ErrPartitionUnbound      = cerrors.New("partition has no active subscriber")
	ErrOverProduction        = cerrors.New("producer returned more events than requested")
)

// SubscribeError is returned by Runtime.Subscribe when a subscription is
// rejected, either because the demand window is invalid or because the
// topology does not allow the link.
type SubscribeError struct {
	Upstream   string
	Downstream string
	Reason     error
}

func (e *SubscribeError) Error() string {
	return "subscribe " + e.Downstream + " to " + e.Upstream + ": " + e.Reason.Error()
}

func (e *SubscribeError) Unwrap() error { return e.Reason }

// DispatchError indicates that produced events could not be routed, e.g. an
// event hashed to a partition without a bound subscriber. Events must never be
// dropped silently, so a DispatchError terminates the producing stage.
type DispatchError struct {
	StageID   string
	Partition string
	Reason    error
}

func (e *DispatchError) Error() string {
	msg := "dispatch failed on stage " + e.StageID
	if e.Partition != "" {
		msg += " (partition " + e.Partition + ")"
	}
	return msg + ": " + e.Reason.Error()
}

func (e *DispatchError) Unwrap() error { return e.Reason }

// HandlerError indicates that a user handler failed, either by returning an
// error, by panicking or by returning an invalid shape. It terminates the
// owning stage, propagation to linked stages is governed by each
// subscription's cancel mode.
type HandlerError struct {
	StageID string
	Role    Role
	Reason  error
}

func (e *HandlerError) Error() string {
	return e.Role.String() + " handler failed on stage " + e.StageID + ": " + e.Reason.Error()
}

func (e *HandlerError) Unwrap() error { return e.Reason }
