// Package cli 提供 seeder 命令行入口
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"schoolgenius-seeder/internal/app"
	"schoolgenius-seeder/internal/config"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// Env 命令运行环境
type Env struct {
	Config *config.Config
	// Options 透传给 app.Build，测试用于注入存储与生成客户端
	Options app.Options
	Out     io.Writer
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Run 分发子命令。返回的错误可用 apperrors.ExitCode 映射为退出码
func Run(ctx context.Context, env Env, args []string) error {
	if len(args) == 0 {
		printRootUsage(env.out())
		return nil
	}

	switch args[0] {
	case "init":
		return runInit(ctx, env, args[1:])
	case "report":
		return runReport(ctx, env, args[1:])
	case "run":
		return runBatch(ctx, env, args[1:])
	case "jobs":
		return runJobs(env, args[1:])
	case "status":
		return runStatus(ctx, env, args[1:])
	case "reset":
		return runReset(ctx, env, args[1:])
	case "help", "-h", "--help":
		printRootUsage(env.out())
		return nil
	default:
		printRootUsage(env.out())
		return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown command %q", args[0])
	}
}

// ConfigPath 取出前置的 --config 参数，返回路径与剩余参数
func ConfigPath(args []string) (string, []string) {
	var path string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "--config="):
			path = strings.TrimPrefix(a, "--config=")
		case a == "--config" && i+1 < len(args):
			path = args[i+1]
			i++
		default:
			rest = append(rest, a)
		}
	}
	return path, rest
}

func printRootUsage(w io.Writer) {
	fmt.Fprintln(w, "seeder: pre-generates SchoolGenius content into the content store")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  seeder [--config <path>] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init                 create empty progress and cost ledger documents")
	fmt.Fprintln(w, "  jobs [--json]        list jobs with item counts and estimated cost")
	fmt.Fprintln(w, "  run [--job <name>]   run all pending jobs, or one job even if completed")
	fmt.Fprintln(w, "  status [--json]      show batch progress")
	fmt.Fprintln(w, "  report [--json]      show the cost ledger report")
	fmt.Fprintln(w, "  reset --yes          delete batch progress (the cost ledger is kept)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 success, 1 a job failed, 2 fatal error, 130 interrupted")
}
