// cvctl 是简历服务的命令行客户端。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cvforge/internal/apiclient"
)

const usage = `usage: cvctl [-api URL] [-session FILE] <command> [args]

account:
  register <username>                注册账号（密码读取 CVCTL_PASSWORD 或标准输入）
  login <username>                   登录并保存会话
  logout                             注销并清除本地会话

resumes:
  show [resume-id]                   列出简历，或打印一份简历的 JSON
  show -public <id|slug>             读取公开简历（无需登录）
  new <title>                        新建简历
  clone <resume-id>                  复制简历
  rename <resume-id> <title>         修改标题
  rm <resume-id>                     删除简历
  import <title> <file|->            由纯文本简历生成新简历
  edit <resume-id> <section> <json>  替换一个分区并保存
  image <resume-id> photo|signature [-remove-bg] [-remove] [file]
                                     替换或移除头像、签名图片
  appearance <resume-id> <template> [color]
                                     保存模板与主题色
  publish <resume-id> on|off         切换公开状态
  slug <resume-id> <slug>            设置分享路径（"" 清除）
  translate <resume-id> <lang>       翻译整份简历并保存
  enhance <text|->                   润色一段职位描述

annexes:
  annexe upload <file.pdf> [title]   上传附件
  annexe rm <annexe-id>              删除附件
  annexes <resume-id> [annexe-id...] 查看或设置简历的附件顺序

documents:
  preview <resume-id> -o out.html    生成独立预览页面
  final <resume-id> -o out.pdf       合成简历与附件的最终 PDF
`

type app struct {
	client       *apiclient.Client
	sessionPath  string
	logger       *slog.Logger
	in           io.Reader
	out          io.Writer
	pollInterval time.Duration
}

func main() {
	apiURL := flag.String("api", envOr("CVCTL_API_URL", "http://localhost:8080"), "API 地址（不含 /v1）")
	sessionPath := flag.String("session", envOr("CVCTL_SESSION", defaultSessionPath()), "会话文件路径")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	sess, err := apiclient.LoadSession(*sessionPath)
	if err != nil {
		logger.Error("load session failed", slog.Any("error", err))
		os.Exit(1)
	}

	a := &app{
		client:       apiclient.New(*apiURL, sess),
		sessionPath:  *sessionPath,
		logger:       logger,
		in:           os.Stdin,
		out:          os.Stdout,
		pollInterval: defaultPollInterval,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "not logged in: run `cvctl login <username>` first")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "show":
		return a.show(ctx, args)
	case "new":
		return a.create(ctx, args)
	case "clone":
		return a.clone(ctx, args)
	case "rename":
		return a.rename(ctx, args)
	case "rm":
		return a.remove(ctx, args)
	case "import":
		return a.importText(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "image":
		return a.image(ctx, args)
	case "appearance":
		return a.appearance(ctx, args)
	case "publish":
		return a.publish(ctx, args)
	case "slug":
		return a.slug(ctx, args)
	case "enhance":
		return a.enhance(ctx, args)
	case "annexe":
		return a.annexe(ctx, args)
	case "translate":
		return a.translate(ctx, args)
	case "annexes":
		return a.annexes(ctx, args)
	case "preview":
		return a.preview(ctx, args)
	case "final":
		return a.final(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cvctl-session.json"
	}
	return filepath.Join(dir, "cvforge", "session.json")
}
