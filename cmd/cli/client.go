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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
)

func apiBaseURL() string {
	if u := os.Getenv("ATHENA_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// newClient 研究请求可能运行数分钟，超时放宽；ATHENA_TOKEN 存在时附带 Bearer
func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(15 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if tok := os.Getenv("ATHENA_TOKEN"); tok != "" {
		c.SetAuthToken(tok)
	}
	return c
}

type researchResponse struct {
	Result *trace.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func health() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return out, nil
}

func login(username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := newClient().R().
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/api/login")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("POST /api/login: %s", resp.String())
	}
	return out.Token, nil
}

// ask 返回部分结果时 err 为服务端报告的预算错误
func ask(question, answerType, gold string) (*trace.Result, error) {
	body := map[string]string{"question": question}
	if answerType != "" {
		body["answer_type"] = answerType
	}
	if gold != "" {
		body["gold"] = gold
	}
	var out researchResponse
	resp, err := newClient().R().
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/api/research")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("POST /api/research: %d %s", resp.StatusCode(), out.Error)
		}
		return nil, fmt.Errorf("POST /api/research: %s", resp.String())
	}
	if out.Error != "" {
		return out.Result, fmt.Errorf("%s", out.Error)
	}
	return out.Result, nil
}

func getResult(id string) (*trace.Result, error) {
	var out trace.Result
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/results/" + id)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/results/%s: %s", id, resp.String())
	}
	return &out, nil
}

func listResults(limit int) ([]*trace.Result, error) {
	var out struct {
		Results []*trace.Result `json:"results"`
	}
	req := newClient().R().SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/api/results")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/results: %s", resp.String())
	}
	return out.Results, nil
}

func listTools() ([]llm.ToolSpec, error) {
	var out struct {
		Tools []llm.ToolSpec `json:"tools"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/tools")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/tools: %s", resp.String())
	}
	return out.Tools, nil
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
