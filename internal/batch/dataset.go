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

// Package batch 对 JSONL 数据集并发运行研究 Agent，结果追加写入结果存储，可中断后续跑。
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Item 数据集中的一个问题；Answer 为可选的标准答案
type Item struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// itemLine 兼容 id 为数字、答案字段名为 answer/gold/target 的数据集
type itemLine struct {
	ID       json.RawMessage `json:"id"`
	Question string          `json:"question"`
	Answer   json.RawMessage `json:"answer"`
	Gold     json.RawMessage `json:"gold"`
	Target   json.RawMessage `json:"target"`
}

// ReadItems 读取 JSONL 数据集；缺 id 的行以行号（从 0 计）补齐，空问题行报错
func ReadItems(r io.Reader) ([]Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	var (
		items []Item
		n     int
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var raw itemLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", n+1, err)
		}
		if strings.TrimSpace(raw.Question) == "" {
			return nil, fmt.Errorf("dataset line %d: empty question", n+1)
		}
		it := Item{ID: scalar(raw.ID), Question: raw.Question}
		for _, a := range []json.RawMessage{raw.Answer, raw.Gold, raw.Target} {
			if s := scalar(a); s != "" {
				it.Answer = s
				break
			}
		}
		if it.ID == "" {
			it.ID = strconv.Itoa(n)
		}
		items = append(items, it)
		n++
	}
	return items, sc.Err()
}

// ReadItemsFile 打开并读取数据集文件
func ReadItemsFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadItems(f)
}

// scalar 字符串原样返回，数字/布尔取字面量，数组取第一个元素
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return scalar(list[0])
	}
	return strings.TrimSpace(string(raw))
}
