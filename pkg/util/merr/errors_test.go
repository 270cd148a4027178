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
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrGameNotFound("g-1")
	errors.Wrap(err, "failed to join game")
	s.ErrorIs(err, ErrGameNotFound)
	s.Equal(Code(ErrGameNotFound), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))

	sameCodeErr := newRelayError("new error", ErrGameNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrGameNotFound))
}

func (s *ErrSuite) TestWrap() {
	// Game 相关错误。
	s.ErrorIs(WrapErrGameNotFound("g-1", "failed to act"), ErrGameNotFound)
	s.ErrorIs(WrapErrGameFull("g-1", 2, "failed to join"), ErrGameFull)
	s.ErrorIs(WrapErrGameAlreadyStarted("g-1", "failed to join"), ErrGameAlreadyStarted)
	s.ErrorIs(WrapErrGameNotStarted("g-1", "failed to act"), ErrGameNotStarted)
	s.ErrorIs(WrapErrGameCapacityExceeded(101, 100), ErrGameCapacityExceeded)

	// 座位相关错误。
	s.ErrorIs(WrapErrPlayerNotHost("2", "failed to start"), ErrPlayerNotHost)
	s.ErrorIs(WrapErrPlayerNotTurn("2", "0"), ErrPlayerNotTurn)
	s.ErrorIs(WrapErrSeatUnavailable("g-1"), ErrSeatUnavailable)
	s.ErrorIs(WrapErrSeatOccupied("g-1", 2), ErrSeatOccupied)
	s.ErrorIs(WrapErrPlayerNotFound("9"), ErrPlayerNotFound)

	// 协议相关错误。
	s.ErrorIs(WrapErrMessageMalformed(errors.New("bad json")), ErrMessageMalformed)
	s.ErrorIs(WrapErrMessageUnknownType("no_such_type"), ErrMessageUnknownType)
	s.ErrorIs(WrapErrActionUnknownKind("no_such_kind"), ErrActionUnknownKind)

	// 连接相关错误。
	s.ErrorIs(WrapErrConnectionNotBound(7), ErrConnectionNotBound)
	s.ErrorIs(WrapErrConnectionDuplicate(7, "g-1"), ErrConnectionDuplicate)

	// Service 相关错误。
	s.ErrorIs(WrapErrServiceInternal("panic in handler: %v", "boom"), ErrServiceInternal)
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrPlayerNotTurn("2", "0"), WrapErrGameNotFound("g-1"))
	s.Equal(Code(ErrGameNotFound), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
