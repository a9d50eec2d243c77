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

package grader

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AthenaAgent/athena-dr/pkg/log"
	"github.com/AthenaAgent/athena-dr/pkg/metrics"
	"github.com/AthenaAgent/athena-dr/pkg/tracing"
)

// DefaultF1Threshold F1 不低于该值直接判定正确，不再调用评审模型
const DefaultF1Threshold = 0.9

// Checker 先做词重叠 F1，未达阈值再交给 Grader
type Checker struct {
	grader    Grader
	threshold float64
	logger    *log.Logger
}

// NewChecker grader 可为 nil，此时只看 F1
func NewChecker(grader Grader, threshold float64, logger *log.Logger) *Checker {
	if threshold <= 0 {
		threshold = DefaultF1Threshold
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Checker{grader: grader, threshold: threshold, logger: logger}
}

// Check 判断 predicted 是否回答正确
func (c *Checker) Check(ctx context.Context, question, target, predicted string) (bool, error) {
	score := F1(predicted, target)
	if score >= c.threshold {
		metrics.GraderVerdictTotal.WithLabelValues("f1", "correct").Inc()
		return true, nil
	}
	if c.grader == nil {
		metrics.GraderVerdictTotal.WithLabelValues("f1", "incorrect").Inc()
		return false, nil
	}
	ctx, span := tracing.StartGradeSpan(ctx, "llm")
	defer span.End()
	span.SetAttributes(attribute.Float64("grader.f1", score))
	ok, err := c.grader.Grade(ctx, question, target, predicted)
	if err != nil {
		tracing.RecordError(span, err)
		return false, err
	}
	verdict := "incorrect"
	if ok {
		verdict = "correct"
	}
	span.SetAttributes(attribute.String("grader.verdict", verdict))
	metrics.GraderVerdictTotal.WithLabelValues("llm", verdict).Inc()
	c.logger.Debug("llm grader verdict", "f1", score, "verdict", verdict)
	return ok, nil
}
