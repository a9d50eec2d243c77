package tool

import "context"

type questionKey struct{}

// WithQuestion 把当前研究问题放入 ctx，供需要问题上下文的工具（如网页摘要）读取
func WithQuestion(ctx context.Context, question string) context.Context {
	return context.WithValue(ctx, questionKey{}, question)
}

// QuestionFrom 读取当前研究问题，未设置时返回空串
func QuestionFrom(ctx context.Context) string {
	q, _ := ctx.Value(questionKey{}).(string)
	return q
}

// QuestionScoped 输出依赖当前研究问题的工具实现此接口，结果缓存键会包含问题
type QuestionScoped interface {
	QuestionScoped() bool
}
