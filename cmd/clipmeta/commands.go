package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/clipmeta/internal/app/run"
	"github.com/John-Robertt/clipmeta/internal/config"
	"github.com/John-Robertt/clipmeta/internal/domain"
	"github.com/John-Robertt/clipmeta/internal/logging"
	"github.com/John-Robertt/clipmeta/internal/stash"
)

type rootFlags struct {
	configPath string
	logLevel   string
	proxy      string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "clipmeta",
		Short: "IWantClips 元数据刮削器（stdin 请求 JSON -> stdout 结果 JSON）",
		Long: `从 stdin 读取一个 JSON 对象 {"url"?, "title"?, "name"?}：
  url   抓取详情页，输出单个场景对象
  name  搜索站点，输出结果列表
  title 不支持，静默跳过（不输出）
结果写到 stdout（4 空格缩进）；日志只写 stderr。`,
		Args:          wrapArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd, flags, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := run.DecodeFragment(stdin)
			if err != nil {
				return a.fail(err)
			}
			res, err := run.Execute(cmd.Context(), a.deps, f)
			if err != nil {
				return a.fail(err)
			}
			return a.emit(stdout, res)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return &usageError{err: err} })

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "配置文件路径（默认读取 ./"+config.FileName+"，不存在则使用默认值）")
	pf.StringVar(&flags.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&flags.proxy, "proxy", "", "HTTP 代理地址（覆盖配置中的 proxy.url；传空串表示直连）")

	root.AddCommand(
		newSceneCmd(&flags, stdout, stderr),
		newSearchCmd(&flags, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

func newSceneCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "scene <url>",
		Short: "抓取一个详情页并输出场景 JSON",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd, *flags, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			u := args[0]
			res, err := run.Execute(cmd.Context(), a.deps, domain.Fragment{URL: &u})
			if err != nil {
				return a.fail(err)
			}
			return a.emit(stdout, res)
		},
	}
}

func newSearchCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "搜索站点并输出结果列表 JSON（只取第一页）",
		Args:  wrapArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd, *flags, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			q := strings.Join(args, " ")
			res, err := run.Execute(cmd.Context(), a.deps, domain.Fragment{Name: &q})
			if err != nil {
				return a.fail(err)
			}
			return a.emit(stdout, res)
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本号",
		Args:  wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(stdout, "clipmeta %s\n", version)
			return err
		},
	}
}

// app 是一次命令执行所需的已装配依赖。
type app struct {
	log  logging.Logger
	deps run.Deps
}

// bootstrap 加载配置、构造日志与依赖。
// 配置阶段失败时日志尚未按配置初始化，使用默认级别写 stderr。
func bootstrap(cmd *cobra.Command, flags rootFlags, stderr io.Writer) (*app, error) {
	fs := cmd.Flags()
	cli := config.CLIArgs{
		ConfigPath:  flags.configPath,
		LogLevel:    flags.logLevel,
		LogLevelSet: fs.Changed("log-level"),
		ProxyURL:    flags.proxy,
		ProxySet:    fs.Changed("proxy"),
	}

	runID := logging.NewRunID()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, reportEarly(stderr, runID, err)
	}
	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return nil, reportEarly(stderr, runID, err)
	}

	log, err := logging.NewWithWriter(logging.Config{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		File:   eff.LogFile,
	}, stderr)
	if err != nil {
		return nil, reportEarly(stderr, runID, &config.Error{Code: config.ErrCodeInvalid, Path: "log", Err: err})
	}
	log = log.With(logging.RunID(runID))
	if eff.ConfigFile != "" {
		log.Debug("已读取配置文件", logging.String("file", eff.ConfigFile))
	}

	deps, err := run.NewDeps(eff, log)
	if err != nil {
		log.Error("初始化失败", logging.String("error_code", run.Code(err)), logging.Err(err))
		_ = log.Sync()
		return nil, &failedError{err: err}
	}
	deps.Observer = newLogObserver(log)

	return &app{log: log, deps: deps}, nil
}

func reportEarly(stderr io.Writer, runID string, err error) error {
	log, lerr := logging.NewWithWriter(logging.Config{}, stderr)
	if lerr != nil {
		return err
	}
	log.Error("配置无效", logging.RunID(runID), logging.String("error_code", run.Code(err)), logging.Err(err))
	_ = log.Sync()
	return &failedError{err: err}
}

func (a *app) fail(err error) error {
	a.log.Error("执行失败", logging.String("error_code", run.Code(err)), logging.Err(err))
	return &failedError{err: err}
}

// emit 把结果写到 stdout；no-op 路径不写任何内容。
func (a *app) emit(stdout io.Writer, res run.Result) error {
	doc, ok := res.Document()
	if !ok {
		return nil
	}
	b, err := stash.Encode(doc)
	if err != nil {
		return a.fail(err)
	}
	if _, err := stdout.Write(b); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *app) close() { _ = a.log.Sync() }
