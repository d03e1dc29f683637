// =============================================================================
// GuardFlow 命令行入口
// =============================================================================
// 使用方法:
//
//	guardflow validate --schema pizza.yaml --output out.txt   # 校验已有输出
//	guardflow run --schema pizza.yaml --prompt "..."          # 调用后端并校验
//	guardflow history list --status partial                    # 查看历史
//	guardflow history get <call-id>
//	guardflow version
//
// 全局选项 --config 指定 YAML 配置文件，环境变量 GUARDFLOW_* 覆盖文件配置。
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 中断信号在轮次之间取消会话，已完成的轮次仍会写入历史
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errNotPassed) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
