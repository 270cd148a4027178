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

package metrics

import (
	// #nosec
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// planchisNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	planchisNamespace = "planchis"

	// 以下为当前使用的通用标签名。
	messageTypeLabelName = "message_type"
	reapReasonLabelName  = "reason"
	resultLabelName      = "result"
)

// reap reason 标签的取值。
const (
	ReapReasonDeadline   = "deadline"
	ReapReasonAge        = "age"
	ReapReasonInactivity = "inactivity"
	ReapReasonLobbyEmpty = "lobby_empty"
	ReapReasonCapacity   = "capacity"
	ReapReasonOrphan     = "orphan"
)

// result 标签的取值。
const (
	ResultOK   = "ok"
	ResultFail = "fail"
)

var (
	// sweepBuckets 为一次清理周期耗时直方图的桶划分，单位为毫秒。
	sweepBuckets = prometheus.ExponentialBuckets(0.1, 2, 14)

	NumGames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: planchisNamespace,
			Name:      "num_games",
			Help:      "number of live game sessions",
		})

	NumConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: planchisNamespace,
			Name:      "num_connections",
			Help:      "number of bound player connections",
		})

	NumLobbyGames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: planchisNamespace,
			Name:      "num_lobby_games",
			Help:      "number of games open for public join",
		})

	MessageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: planchisNamespace,
			Name:      "message_total",
			Help:      "total inbound messages by type",
		}, []string{messageTypeLabelName})

	BroadcastSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: planchisNamespace,
			Name:      "broadcast_send_total",
			Help:      "per-connection broadcast send attempts by result",
		}, []string{resultLabelName})

	GameReapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: planchisNamespace,
			Name:      "game_reap_total",
			Help:      "reaped game sessions by reason",
		}, []string{reapReasonLabelName})

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: planchisNamespace,
			Name:      "sweep_duration_milliseconds",
			Help:      "time cost of one cleanup sweep",
			Buckets:   sweepBuckets,
		})

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(NumGames)
	r.MustRegister(NumConnections)
	r.MustRegister(NumLobbyGames)
	r.MustRegister(MessageTotal)
	r.MustRegister(BroadcastSendTotal)
	r.MustRegister(GameReapTotal)
	r.MustRegister(SweepDuration)
	metricRegisterer = r
}
