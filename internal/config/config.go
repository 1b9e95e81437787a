// Package config 实现栈槽分配器的配置加载
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// 常量定义
const (
	ConfigFileName = "slotframe.toml" // 配置文件名

	StrategyInterval = "interval" // 基于活跃区间的分配（复用栈槽）
	StrategySimple   = "simple"   // 每个虚拟槽一个物理槽
)

// Config 分配器配置
type Config struct {
	Frame     FrameConfig     `toml:"frame"`
	Allocator AllocatorConfig `toml:"allocator"`
	Log       LogConfig       `toml:"log"`
}

// FrameConfig 帧布局配置
type FrameConfig struct {
	// MaxSize 帧大小上限（字节），0 表示不限制
	MaxSize int `toml:"max_size"`

	// Alignment 帧整体对齐（字节，2 的幂）
	Alignment int `toml:"alignment"`

	// WordSize 机器字大小（4 或 8），范围槽按字分配
	WordSize int `toml:"word_size"`

	// CallingConvention 调用约定（sysv、win64、native）
	// native 随宿主平台变化，同一编译单元在不同平台上得到的帧大小可能不同
	CallingConvention string `toml:"calling_convention"`
}

// AllocatorConfig 分配策略配置
type AllocatorConfig struct {
	// Strategy 分配策略：interval 或 simple
	Strategy string `toml:"strategy"`

	// Verify 分配后校验不重叠、尺寸一致等性质
	Verify bool `toml:"verify"`

	// Workers 并发编译单元的工作协程数，0 表示使用 CPU 数
	Workers int `toml:"workers"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug、info、warn、error
	Level string `toml:"level"`
}

// Default 返回默认配置
func Default() *Config {
	fc := frame.DefaultConfig()
	return &Config{
		Frame: FrameConfig{
			MaxSize:           fc.MaxSize,
			Alignment:         fc.Alignment,
			WordSize:          fc.WordSize,
			CallingConvention: "sysv",
		},
		Allocator: AllocatorConfig{
			Strategy: StrategyInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 从文件加载配置，未出现的字段保持默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 TOML 配置并校验
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置，返回所有问题的合并错误
func (c *Config) Validate() error {
	var err error

	if c.Frame.MaxSize < 0 {
		err = multierr.Append(err, fmt.Errorf("frame.max_size must not be negative, got %d", c.Frame.MaxSize))
	}
	if c.Frame.Alignment <= 0 || c.Frame.Alignment&(c.Frame.Alignment-1) != 0 {
		err = multierr.Append(err, fmt.Errorf("frame.alignment must be a power of two, got %d", c.Frame.Alignment))
	}
	if c.Frame.WordSize != 4 && c.Frame.WordSize != 8 {
		err = multierr.Append(err, fmt.Errorf("frame.word_size must be 4 or 8, got %d", c.Frame.WordSize))
	}
	switch c.Allocator.Strategy {
	case StrategyInterval, StrategySimple:
	default:
		err = multierr.Append(err, fmt.Errorf("allocator.strategy must be %q or %q, got %q",
			StrategyInterval, StrategySimple, c.Allocator.Strategy))
	}
	if c.Allocator.Workers < 0 {
		err = multierr.Append(err, errors.New("allocator.workers must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return err
}

// FrameConfig 转换为 frame 包的配置
func (c *Config) FrameConfig() frame.Config {
	return frame.Config{
		MaxSize:   c.Frame.MaxSize,
		Alignment: c.Frame.Alignment,
		WordSize:  c.Frame.WordSize,
	}
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	content := generateConfigWithComments(c)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[frame]\n")
	sb.WriteString("# 帧大小上限（字节），0 表示不限制\n")
	sb.WriteString(fmt.Sprintf("max_size = %d\n", c.Frame.MaxSize))
	sb.WriteString("# 帧整体对齐（字节）\n")
	sb.WriteString(fmt.Sprintf("alignment = %d\n", c.Frame.Alignment))
	sb.WriteString("# 机器字大小（4 或 8）\n")
	sb.WriteString(fmt.Sprintf("word_size = %d\n", c.Frame.WordSize))
	sb.WriteString("# 调用约定：sysv、win64、native（native 随宿主平台变化）\n")
	sb.WriteString(fmt.Sprintf("calling_convention = %q\n\n", c.Frame.CallingConvention))

	sb.WriteString("[allocator]\n")
	sb.WriteString("# 分配策略：interval（复用栈槽）或 simple\n")
	sb.WriteString(fmt.Sprintf("strategy = %q\n", c.Allocator.Strategy))
	sb.WriteString("# 分配后校验结果\n")
	sb.WriteString(fmt.Sprintf("verify = %t\n", c.Allocator.Verify))
	sb.WriteString("# 并发工作协程数，0 表示使用 CPU 数\n")
	sb.WriteString(fmt.Sprintf("workers = %d\n\n", c.Allocator.Workers))

	sb.WriteString("[log]\n")
	sb.WriteString("# 日志级别：debug、info、warn、error\n")
	sb.WriteString(fmt.Sprintf("level = %q\n", c.Log.Level))

	return sb.String()
}
