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

// Package grader 判断研究答案是否正确，并据此对同一问题做拒绝采样重试。
package grader

import (
	"regexp"
	"strings"
	"unicode"
)

var articlesRe = regexp.MustCompile(`\b(a|an|the)\b`)

// Normalize SQuAD 风格归一化：小写、去 ASCII 标点、去冠词 a/an/the、压缩空白
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return -1
		}
		return r
	}, s)
	s = articlesRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// F1 归一化后按词袋（多重集）交集计算的 F1，范围 [0, 1]
func F1(prediction, gold string) float64 {
	pred := strings.Fields(Normalize(prediction))
	ref := strings.Fields(Normalize(gold))

	counts := make(map[string]int, len(ref))
	for _, t := range ref {
		counts[t]++
	}
	same := 0
	for _, t := range pred {
		if counts[t] > 0 {
			counts[t]--
			same++
		}
	}
	if same == 0 {
		return 0
	}
	precision := float64(same) / float64(len(pred))
	recall := float64(same) / float64(len(ref))
	return 2 * precision * recall / (precision + recall)
}
