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

package log

import (
	"sync/atomic"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
)

// MLogger 是 zap.Logger 的封装类型。
// 在原有 Logger 的基础上，增加了实例级别的限流日志能力。
type MLogger struct {
	*zap.Logger
	rl atomic.Value // utils.RateLimiter
}

// With 封装 zap.Logger 的 With 方法，并返回新的 MLogger 实例。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: l.Logger.With(fields...)}
}

// limiter 返回当前实例的限流器，首次使用时按给定速率创建。
func (l *MLogger) limiter(cost float64) utils.RateLimiter {
	if rl, ok := l.rl.Load().(utils.RateLimiter); ok && rl != nil {
		return rl
	}
	rl := utils.NewRateLimiter(cost, cost*10)
	l.rl.Store(rl)
	return rl
}

// RatedDebug 以 Debug 级别输出实例级限流日志。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	if l.limiter(cost).CheckCredit(1) {
		l.Debug(msg, fields...)
		return true
	}
	return false
}

// RatedInfo 以 Info 级别输出实例级限流日志。
func (l *MLogger) RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	if l.limiter(cost).CheckCredit(1) {
		l.Info(msg, fields...)
		return true
	}
	return false
}

// RatedWarn 以 Warn 级别输出实例级限流日志。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	if l.limiter(cost).CheckCredit(1) {
		l.Warn(msg, fields...)
		return true
	}
	return false
}
