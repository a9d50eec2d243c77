// Copyright 2026 fanjia1024
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

package builtin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Endpoint 外部 API 的连接参数
type Endpoint struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func (e Endpoint) base(def string) string {
	if e.BaseURL != "" {
		return strings.TrimRight(e.BaseURL, "/")
	}
	return def
}

// newRestClient 研究工具共用的 resty 客户端：429/5xx 重试两次
func newRestClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(3 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err == nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
	})
	return client
}

func statusError(resp *resty.Response) string {
	return fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func stringArg(input map[string]any, key string) string {
	switch v := input[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func boolArg(input map[string]any, key string, def bool) bool {
	switch v := input[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
