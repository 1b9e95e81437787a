// slotalloc - 栈槽分配工具
//
// 用法:
//   slotalloc [options] unit.toml...     # 为每个编译单元分配栈槽并打印帧布局
//   slotalloc -init                      # 在当前目录生成默认配置文件
//
// 每个 unit.toml 描述一个函数：虚拟栈槽、基本块、控制流边和指令。
// 各编译单元在工作池中并发处理。

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/tangzhangming/slotframe/internal/callconv"
	"github.com/tangzhangming/slotframe/internal/config"
	"github.com/tangzhangming/slotframe/internal/stackslot"
	"github.com/tangzhangming/slotframe/internal/unit"
)

// 版本信息
const (
	Version = "0.1.0"
	Name    = "slotalloc"
)

// 命令行选项
var (
	helpFlag    = flag.Bool("help", false, "显示帮助信息")
	versionFlag = flag.Bool("version", false, "显示版本信息")
	initFlag    = flag.Bool("init", false, "在当前目录生成默认配置文件")

	configFlag   = flag.String("config", "", "配置文件路径（默认读取当前目录下的 "+config.ConfigFileName+"）")
	strategyFlag = flag.String("strategy", "", "分配策略: interval, simple")
	convFlag     = flag.String("conv", "", "调用约定: sysv, win64, native")
	workersFlag  = flag.Int("j", -1, "工作协程数，0 表示使用 CPU 数")
	verifyFlag   = flag.Bool("verify", false, "分配后校验结果")
	logFlag      = flag.String("log", "", "日志级别: debug, info, warn, error")

	jsonFlag = flag.Bool("json", false, "以 JSON 输出帧布局")
	dumpFlag = flag.Bool("dump", false, "打印改写后的指令流")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *helpFlag {
		usage()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("%s version %s\n", Name, Version)
		os.Exit(0)
	}

	if *initFlag {
		if err := cmdInit(); err != nil {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	failed, err := run(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s - 栈槽分配工具 v%s

用法:
  %s [选项] unit.toml...
  %s -init

选项:
`, Name, Version, Name, Name)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
示例:
  # 使用区间分配并打印改写后的指令流
  %s -dump testdata/diamond.toml

  # 不复用栈槽，以 JSON 输出帧布局
  %s -strategy simple -json testdata/*.toml
`, Name, Name)
}

// cmdInit 生成默认配置文件
func cmdInit() error {
	if _, err := os.Stat(config.ConfigFileName); err == nil {
		return fmt.Errorf("%s 已存在", config.ConfigFileName)
	}
	if err := config.Default().Save(config.ConfigFileName); err != nil {
		return err
	}
	fmt.Printf("已生成 %s\n", config.ConfigFileName)
	return nil
}

// loadConfig 读取配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	path := *configFlag
	if path == "" {
		if _, err := os.Stat(config.ConfigFileName); err == nil {
			path = config.ConfigFileName
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if *strategyFlag != "" {
		cfg.Allocator.Strategy = *strategyFlag
	}
	if *convFlag != "" {
		cfg.Frame.CallingConvention = *convFlag
	}
	if *workersFlag >= 0 {
		cfg.Allocator.Workers = *workersFlag
	}
	if *verifyFlag {
		cfg.Allocator.Verify = true
	}
	if *logFlag != "" {
		cfg.Log.Level = *logFlag
	}
	return cfg, cfg.Validate()
}

// newLogger 创建输出到 stderr 的控制台日志
func newLogger(level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	zc.DisableStacktrace = true
	return zc.Build()
}

// run 加载所有编译单元并在工作池中分配，返回失败的单元数
func run(paths []string) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 0, err
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return 0, err
	}
	defer func() { _ = log.Sync() }()

	conv, err := callconv.ByName(cfg.Frame.CallingConvention)
	if err != nil {
		return 0, err
	}
	strategy, err := stackslot.ParseStrategy(cfg.Allocator.Strategy)
	if err != nil {
		return 0, err
	}

	obs := stackslot.NewZapObserver(log)
	units := make([]*stackslot.Unit, 0, len(paths))
	failed := 0
	for _, path := range paths {
		u, err := loadUnit(path, cfg, conv, strategy, obs)
		if err != nil {
			log.Error("failed to load unit", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		units = append(units, u)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool := stackslot.NewPool(cfg.Allocator.Workers)
	log.Debug("allocating",
		zap.Int("units", len(units)),
		zap.Int("workers", pool.Workers()),
		zap.Stringer("strategy", strategy),
		zap.Stringer("conv", conv.Type))
	results := pool.Run(ctx, units)

	for _, r := range results {
		if r.Err != nil {
			log.Error("allocation failed", zap.String("func", r.Unit.Func.Name), zap.Error(r.Err))
		}
	}

	if *jsonFlag {
		err = printJSON(os.Stdout, results)
	} else {
		err = printText(os.Stdout, results, *dumpFlag)
	}
	if err != nil {
		return 0, err
	}

	st := pool.Stats()
	log.Info("done",
		zap.Int64("units", st.Units),
		zap.Int64("failed", st.Failed),
		zap.Int64("slots", st.Slots),
		zap.Int64("reused", st.Reused),
		zap.Int64("frame_bytes", st.FrameSize))
	return failed + int(st.Failed), nil
}

func loadUnit(path string, cfg *config.Config, conv callconv.Convention, strategy stackslot.Strategy, obs stackslot.Observer) (*stackslot.Unit, error) {
	desc, err := unit.LoadFile(path)
	if err != nil {
		return nil, err
	}
	b := stackslot.NewBuilder(cfg.FrameConfig(),
		stackslot.WithObserver(obs),
		stackslot.WithVerify(cfg.Allocator.Verify))
	fn, err := desc.Build(b, conv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &stackslot.Unit{Func: fn, Builder: b, Strategy: strategy}, nil
}
