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

package conc

import (
	ants "github.com/panjf2000/ants/v2"
)

// Pool 是对 ants.Pool 的轻量封装。
// 提交失败（协程池已关闭等）时退化为同步执行，保证任务不丢失。
type Pool struct {
	inner *ants.Pool
}

// NewPool 创建一个容量为 cap 的协程池。
func NewPool(cap int, opts ...PoolOption) *Pool {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		// ants 仅在参数非法时报错，回退到默认容量。
		pool, _ = ants.NewPool(ants.DefaultAntsPoolSize, opt.antsOptions()...)
	}
	return &Pool{inner: pool}
}

// Submit 向协程池提交一个任务。
// 协程池不可用时在当前协程同步执行，调用方不感知差别。
func (p *Pool) Submit(task func()) {
	if p.inner == nil {
		task()
		return
	}
	if err := p.inner.Submit(task); err != nil {
		task()
	}
}

// Running 返回当前正在执行任务的 worker 数量。
func (p *Pool) Running() int {
	if p.inner == nil {
		return 0
	}
	return p.inner.Running()
}

// Release 关闭协程池并回收全部 worker。
func (p *Pool) Release() {
	if p.inner != nil {
		p.inner.Release()
	}
}
