package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/config"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("athena cli " + version)
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runGo("./cmd/api")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: athena server start\n")
			os.Exit(1)
		}
	case "batch":
		runGo("./cmd/worker", args...)
	case "login":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: athena login <username> <password>\n")
			os.Exit(1)
		}
		runLogin(args[0], args[1])
	case "ask":
		runAsk(args)
	case "result":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: athena result <id>\n")
			os.Exit(1)
		}
		runResult(args[0])
	case "results":
		runResults(args)
	case "tools":
		runTools()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: athena <command> [args]")
	fmt.Println("  version           - 显示版本")
	fmt.Println("  health            - 检查 API 服务")
	fmt.Println("  config            - 显示配置概要（ATHENA_CONFIG）")
	fmt.Println("  server start      - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  batch [in] [out]  - 批量生成（go run ./cmd/worker）")
	fmt.Println("  login <user> <pw> - 获取 JWT，输出后设置 ATHENA_TOKEN")
	fmt.Println("  ask [-type short|long|exact] [-gold 答案] <question>")
	fmt.Println("                    - 提交研究问题并输出答案与统计")
	fmt.Println("  result <id>       - 输出已保存的完整结果")
	fmt.Println("  results [limit]   - 列出最近的结果")
	fmt.Println("  tools             - 列出已注册工具")
}

type askArgs struct {
	question   string
	answerType string
	gold       string
}

var errNoQuestion = errors.New("question is required")

// parseAskArgs 解析 ask 子命令参数；非选项参数拼接为问题
func parseAskArgs(args []string) (askArgs, error) {
	var out askArgs
	var words []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-type", "--type":
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", args[i])
			}
			i++
			out.answerType = args[i]
		case "-gold", "--gold":
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", args[i])
			}
			i++
			out.gold = args[i]
		default:
			words = append(words, args[i])
		}
	}
	out.question = strings.TrimSpace(strings.Join(words, " "))
	if out.question == "" {
		return out, errNoQuestion
	}
	switch out.answerType {
	case "", "short", "long", "exact":
	default:
		return out, fmt.Errorf("unknown answer type %q", out.answerType)
	}
	return out, nil
}

// summarize 单个结果的简要文本
func summarize(r *trace.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id:       %s\n", r.ID)
	fmt.Fprintf(&b, "status:   %s\n", r.Status)
	fmt.Fprintf(&b, "steps:    %d\n", len(r.Steps))
	fmt.Fprintf(&b, "tools:    %d (%d failed)\n", r.TotalToolCalls, r.FailedToolCalls)
	fmt.Fprintf(&b, "tokens:   %d\n", r.TotalTokens.Total)
	if r.Correct != nil {
		fmt.Fprintf(&b, "correct:  %t (attempts %d)\n", *r.Correct, r.Attempts)
	}
	fmt.Fprintf(&b, "\n%s\n", r.Answer)
	return b.String()
}

func runHealth() {
	out, err := health()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runConfig() {
	cfg, err := config.LoadOrDefault(os.Getenv("ATHENA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
	fmt.Printf("agent.answer_mode=%s\n", cfg.Agent.AnswerMode)
	fmt.Printf("agent.max_steps=%d\n", cfg.Agent.MaxSteps)
	fmt.Printf("agent.max_output_tokens=%d\n", cfg.Agent.MaxOutputTokens)
	fmt.Printf("storage.result.type=%s\n", cfg.Storage.Result.Type)
	fmt.Printf("storage.cache.type=%s\n", cfg.Storage.Cache.Type)
}

func runGo(pkg string, args ...string) {
	c := exec.Command("go", append([]string{"run", pkg}, args...)...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", pkg, err)
		os.Exit(1)
	}
}

func runLogin(username, password string) {
	token, err := login(username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "登录失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func runAsk(args []string) {
	a, err := parseAskArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\nUsage: athena ask [-type short|long|exact] [-gold 答案] <question>\n", err)
		os.Exit(1)
	}
	res, err := ask(a.question, a.answerType, a.gold)
	if res == nil {
		fmt.Fprintf(os.Stderr, "研究失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(summarize(res))
	if err != nil {
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
	}
}

func runResult(id string) {
	res, err := getResult(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取结果失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(res))
}

func runResults(args []string) {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "Usage: athena results [limit]\n")
			os.Exit(1)
		}
		limit = n
	}
	list, err := listResults(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出结果失败: %v\n", err)
		os.Exit(1)
	}
	for _, r := range list {
		fmt.Printf("%s\t%s\t%s\n", r.ID, r.Status, r.Question)
	}
}

func runTools() {
	tools, err := listTools()
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出工具失败: %v\n", err)
		os.Exit(1)
	}
	for _, t := range tools {
		fmt.Printf("%-24s %s\n", t.Name, t.Description)
	}
}
