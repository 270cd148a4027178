// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceInternal = newRelayError("service internal error", 1, false)

	// Game session related
	ErrGameNotFound         = newRelayError("game not found", 100, false)
	ErrGameFull             = newRelayError("game is full", 101, false)
	ErrGameAlreadyStarted   = newRelayError("game already started", 102, false)
	ErrGameNotStarted       = newRelayError("game not started", 103, false)
	ErrGameCapacityExceeded = newRelayError("exceeded the limit number of games", 104, false)

	// Player / seat related
	ErrPlayerNotHost    = newRelayError("player is not the host", 200, false)
	ErrPlayerNotTurn    = newRelayError("not this player's turn", 201, false)
	ErrSeatUnavailable  = newRelayError("no seat available", 202, false)
	ErrSeatOccupied     = newRelayError("seat already occupied by a live connection", 203, false)
	ErrPlayerNotFound   = newRelayError("player not found in game", 204, false)

	// Message / protocol related
	ErrMessageMalformed   = newRelayError("malformed message", 300, false)
	ErrMessageUnknownType = newRelayError("unknown message type", 301, false)
	ErrActionUnknownKind  = newRelayError("unknown action kind", 302, false)

	// Connection related
	ErrConnectionNotBound  = newRelayError("connection not bound to any game", 400, false)
	ErrConnectionDuplicate = newRelayError("connection already bound to a game", 401, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to relayError
	errUnexpected = newRelayError("unexpected error", (1<<16)-1, false)
)

type relayError struct {
	msg       string
	retriable bool
	errCode   int32
}

func newRelayError(msg string, code int32, retriable bool) relayError {
	return relayError{
		msg:       msg,
		retriable: retriable,
		errCode:   code,
	}
}

func (e relayError) code() int32 {
	return e.errCode
}

func (e relayError) Error() string {
	return e.msg
}

func (e relayError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(relayError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
