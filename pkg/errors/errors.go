// Package errors 提供统一错误辅助与哨兵错误，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrToolNotFound 模型调用了未注册的工具
	ErrToolNotFound = errors.New("tool not found")

	// 预算耗尽：终止本次尝试，但返回部分结果，调用方可整体重试
	ErrTokenLimitExceeded = errors.New("max output tokens reached")
	ErrStepLimitExceeded  = errors.New("max steps reached")

	// ErrFatal 不可恢复错误（如模型端点异常），本次查询不产出结果
	ErrFatal = errors.New("fatal agent error")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Fatal 将 err 标记为 ErrFatal，同时保留原始错误链
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFatal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsBudgetExceeded 判断是否为 token/step 预算耗尽
func IsBudgetExceeded(err error) bool {
	return errors.Is(err, ErrTokenLimitExceeded) || errors.Is(err, ErrStepLimitExceeded)
}
