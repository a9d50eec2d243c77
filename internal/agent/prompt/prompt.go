// Package prompt 研究 Agent 的系统提示词与按答案类型包装问题的模板。
package prompt

import (
	"fmt"
	"strings"
)

// AnswerType 期望的答案形式
type AnswerType string

const (
	AnswerShort AnswerType = "short"
	AnswerLong  AnswerType = "long"
	AnswerExact AnswerType = "exact"
)

// ParseAnswerType 解析配置中的答案类型，未知值返回 AnswerShort
func ParseAnswerType(s string) AnswerType {
	switch AnswerType(strings.ToLower(strings.TrimSpace(s))) {
	case AnswerLong:
		return AnswerLong
	case AnswerExact:
		return AnswerExact
	default:
		return AnswerShort
	}
}

const researchPreamble = `You have one question to answer. It is paramount that you provide a correct answer.
Give it all you can: you have access to all the relevant tools to solve it and find the correct answer (the answer does exist).
Failure or 'I cannot answer' or 'None found' will not be tolerated, success will be rewarded.
Run verification steps if that's needed, you must make sure you find the correct answer! Here is the task:

`

const (
	shortInstruction = "Answer concisely. Put the final answer inside <answer></answer> tags; " +
		"for a single entity, number or date you may also write it as \\boxed{...} inside the answer tags."
	longInstruction = "Write a comprehensive, well-structured answer. Support every claim with citations in the form " +
		"<cite id=\"ID1,ID2\">claim</cite> using the snippet IDs from tool outputs, and put the whole answer inside <answer></answer> tags."
	exactInstruction = "Give only the exact answer (a name, number, date or short phrase) with no explanation, " +
		"inside <answer></answer> tags, for example <answer>\\boxed{Paris}</answer>."
)

// Wrap 按答案类型包装用户问题
func Wrap(query string, t AnswerType) string {
	var instr string
	switch t {
	case AnswerLong:
		instr = longInstruction
	case AnswerExact:
		instr = exactInstruction
	default:
		instr = shortInstruction
	}
	return researchPreamble + query + "\n\n" + instr
}

// AnswerFallback 预算耗尽仍无答案时追加的作答请求，配合 assistant 前缀 AnswerPrefix 使用
const (
	AnswerFallback = "Now please generate an answer based on the search results by far."
	AnswerPrefix   = "<answer>"
)

const systemTemplate = `You are a research assistant that answers questions by iteratively calling tools, reading their outputs and citing evidence.

# Tools
%s

# Calling tools
To call a tool, write one block per call:
<tool_call>
<tool_name>TOOL_NAME</tool_name>
<PARAMETER>VALUE</PARAMETER>
</tool_call>
You may issue several calls in one turn; they run in order and their outputs come back as observations.

# Citations
Tool outputs label each piece of evidence with a snippet ID in square brackets, for example [serper_1] or [s2_paper_3].
Cite evidence for claims with <cite id="ID1,ID2">claim</cite>. Only cite IDs that appeared in tool outputs.

# Answer
%s`

// System 生成系统提示词；toolsJSON 为工具 Schema 列表，answerMode 为 tag | tool | both
func System(toolsJSON []byte, answerMode string) string {
	var answer string
	switch answerMode {
	case "tool":
		answer = `When you are done, call the final_answer tool with the complete answer as its "answer" argument.`
	case "tag":
		answer = "When you are done, write the final answer inside <answer></answer> tags and make no further tool calls."
	default:
		answer = "When you are done, write the final answer inside <answer></answer> tags (or call the final_answer tool) and make no further tool calls."
	}
	tools := strings.TrimSpace(string(toolsJSON))
	if tools == "" {
		tools = "[]"
	}
	return fmt.Sprintf(systemTemplate, tools, answer)
}
