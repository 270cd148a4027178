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

package version

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// 构建期通过 -ldflags "-X ...=v1.2.3" 注入。
var (
	// Version 为当前服务版本号，要求符合 semver 规范。
	Version = "0.1.0"

	// GitCommit 为构建时的 git commit 哈希。
	GitCommit = "unknown"

	// BuildTime 为构建时间。
	BuildTime = "unknown"
)

// Parsed 返回解析后的语义化版本。
// 版本号非法时返回错误，交由调用方决定是否容忍。
func Parsed() (semver.Version, error) {
	return semver.ParseTolerant(Version)
}

// String 返回可读的完整版本描述。
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
