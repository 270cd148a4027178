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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case relayError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(relayError); ok {
		return err.retriable
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

type errorField struct {
	key   string
	value any
}

func value(key string, v any) errorField {
	return errorField{key: key, value: v}
}

// wrapFields 将若干 key=value 字段附加到叶子错误上。
func wrapFields(err error, fields ...errorField) error {
	kvs := lo.Map(fields, func(f errorField, _ int) string {
		return fmt.Sprintf("%s=%v", f.key, f.value)
	})
	return errors.Wrapf(err, "%s", strings.Join(kvs, ", "))
}

func wrapMsg(err error, msg []string) error {
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Game related

func WrapErrGameNotFound(game any, msg ...string) error {
	return wrapMsg(wrapFields(ErrGameNotFound, value("game", game)), msg)
}

func WrapErrGameFull(game any, mode int, msg ...string) error {
	return wrapMsg(wrapFields(ErrGameFull,
		value("game", game),
		value("mode", mode),
	), msg)
}

func WrapErrGameAlreadyStarted(game any, msg ...string) error {
	return wrapMsg(wrapFields(ErrGameAlreadyStarted, value("game", game)), msg)
}

func WrapErrGameNotStarted(game any, msg ...string) error {
	return wrapMsg(wrapFields(ErrGameNotStarted, value("game", game)), msg)
}

func WrapErrGameCapacityExceeded(count, limit int, msg ...string) error {
	return wrapMsg(wrapFields(ErrGameCapacityExceeded,
		value("count", count),
		value("limit", limit),
	), msg)
}

// Player / seat related

func WrapErrPlayerNotHost(player any, msg ...string) error {
	return wrapMsg(wrapFields(ErrPlayerNotHost, value("player", player)), msg)
}

func WrapErrPlayerNotTurn(player any, current any, msg ...string) error {
	return wrapMsg(wrapFields(ErrPlayerNotTurn,
		value("player", player),
		value("current", current),
	), msg)
}

func WrapErrSeatUnavailable(game any, msg ...string) error {
	return wrapMsg(wrapFields(ErrSeatUnavailable, value("game", game)), msg)
}

func WrapErrSeatOccupied(game any, seat any, msg ...string) error {
	return wrapMsg(wrapFields(ErrSeatOccupied,
		value("game", game),
		value("seat", seat),
	), msg)
}

func WrapErrPlayerNotFound(player any, msg ...string) error {
	return wrapMsg(wrapFields(ErrPlayerNotFound, value("player", player)), msg)
}

// Message / protocol related

func WrapErrMessageMalformed(err error, msg ...string) error {
	return wrapMsg(wrapFields(ErrMessageMalformed, value("cause", err)), msg)
}

func WrapErrMessageUnknownType(typ string, msg ...string) error {
	return wrapMsg(wrapFields(ErrMessageUnknownType, value("type", typ)), msg)
}

func WrapErrActionUnknownKind(kind string, msg ...string) error {
	return wrapMsg(wrapFields(ErrActionUnknownKind, value("kind", kind)), msg)
}

// Connection related

func WrapErrConnectionNotBound(connID uint64, msg ...string) error {
	return wrapMsg(wrapFields(ErrConnectionNotBound, value("connID", connID)), msg)
}

func WrapErrConnectionDuplicate(connID uint64, game any, msg ...string) error {
	return wrapMsg(wrapFields(ErrConnectionDuplicate,
		value("connID", connID),
		value("game", game),
	), msg)
}

// Service related

func WrapErrServiceInternal(msg string, args ...any) error {
	msg = fmt.Sprintf(msg, args...)
	return errors.Wrap(ErrServiceInternal, msg)
}
