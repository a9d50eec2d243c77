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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AthenaAgent/athena-dr/internal/app"
	"github.com/AthenaAgent/athena-dr/internal/app/worker"
	"github.com/AthenaAgent/athena-dr/pkg/config"
)

func main() {
	cfg, err := config.LoadOrDefault(os.Getenv("ATHENA_CONFIG"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	// 命令行参数可覆盖 batch.input / batch.output
	if len(os.Args) > 1 {
		cfg.Batch.Input = os.Args[1]
	}
	if len(os.Args) > 2 {
		cfg.Batch.Output = os.Args[2]
	}

	// 收到中断信号后停止派发新问题，已完成的结果已落盘，重新运行会跳过
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	application, err := worker.NewApp(bootstrap)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	summary, runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭应用失败: %v", err)
	}

	fmt.Printf("total=%d skipped=%d saved=%d failed=%d correct=%d duration=%s\n",
		summary.Total, summary.Skipped, summary.Saved, summary.Failed, summary.Correct, summary.Duration)
	if runErr != nil {
		log.Fatalf("批量生成失败: %v", runErr)
	}
}
