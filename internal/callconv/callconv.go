// callconv.go - 调用约定
//
// 栈槽分配器不关心具体的参数寄存器，只需要知道每个调用点
// 在出参区（outgoing-argument area）需要多少字节。
// 本文件定义 Windows x64 和 System V AMD64 两种调用约定，
// 并据此计算调用点的出参区大小。

// Package callconv 描述调用约定并计算调用点的出参区大小
package callconv

import (
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// 参数类别
// ============================================================================

// ArgClass 参数类别
type ArgClass int

const (
	ArgInt    ArgClass = iota // 整数 / 指针
	ArgRef                    // 对象引用（占用整数寄存器）
	ArgFloat                  // 浮点
	ArgVector                 // 16 字节向量（占用浮点寄存器）
)

func (c ArgClass) String() string {
	switch c {
	case ArgInt:
		return "int"
	case ArgRef:
		return "ref"
	case ArgFloat:
		return "float"
	case ArgVector:
		return "vector"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// ParseArgClass 解析参数类别名
func ParseArgClass(s string) (ArgClass, error) {
	switch strings.ToLower(s) {
	case "int", "i":
		return ArgInt, nil
	case "ref", "r":
		return ArgRef, nil
	case "float", "f":
		return ArgFloat, nil
	case "vector", "v":
		return ArgVector, nil
	default:
		return 0, fmt.Errorf("unknown argument class %q", s)
	}
}

func (c ArgClass) isFloat() bool {
	return c == ArgFloat || c == ArgVector
}

func (c ArgClass) stackSize() int {
	if c == ArgVector {
		return 16
	}
	return 8
}

// ============================================================================
// 调用约定
// ============================================================================

// Type 调用约定类型
type Type int

const (
	WindowsX64 Type = iota // Windows x64
	SystemV                // System V AMD64 (Linux/macOS)
)

func (t Type) String() string {
	switch t {
	case WindowsX64:
		return "win64"
	case SystemV:
		return "sysv"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// Convention 调用约定详细信息
type Convention struct {
	Type         Type
	ArgRegs      []int // 整数参数寄存器（按顺序）
	FloatArgRegs []int // 浮点参数寄存器
	ShadowSpace  int   // 阴影空间大小（字节）
	StackAlign   int   // 栈对齐要求（字节）

	// Positional 为 true 时整数和浮点参数共享位置编号（Windows x64：
	// 第 i 个参数只能使用 ArgRegs[i] 或 FloatArgRegs[i]）
	Positional bool
}

// 寄存器编号常量
const (
	RegRAX = 0
	RegRCX = 1
	RegRDX = 2
	RegRBX = 3
	RegRSP = 4
	RegRBP = 5
	RegRSI = 6
	RegRDI = 7
	RegR8  = 8
	RegR9  = 9

	RegXMM0 = 16
	RegXMM1 = 17
	RegXMM2 = 18
	RegXMM3 = 19
	RegXMM4 = 20
	RegXMM5 = 21
	RegXMM6 = 22
	RegXMM7 = 23
)

// WindowsX64Conv Windows x64 调用约定
var WindowsX64Conv = Convention{
	Type:         WindowsX64,
	ArgRegs:      []int{RegRCX, RegRDX, RegR8, RegR9},
	FloatArgRegs: []int{RegXMM0, RegXMM1, RegXMM2, RegXMM3},
	ShadowSpace:  32,
	StackAlign:   16,
	Positional:   true,
}

// SystemVConv System V AMD64 调用约定
var SystemVConv = Convention{
	Type:         SystemV,
	ArgRegs:      []int{RegRDI, RegRSI, RegRDX, RegRCX, RegR8, RegR9},
	FloatArgRegs: []int{RegXMM0, RegXMM1, RegXMM2, RegXMM3, RegXMM4, RegXMM5, RegXMM6, RegXMM7},
	ShadowSpace:  0,
	StackAlign:   16,
}

// Native 当前平台的原生调用约定
func Native() Convention {
	if runtime.GOOS == "windows" {
		return WindowsX64Conv
	}
	return SystemVConv
}

// ByName 按名称查找调用约定（"win64"、"sysv"、"native"）
func ByName(name string) (Convention, error) {
	switch strings.ToLower(name) {
	case "", "native":
		return Native(), nil
	case "win64", "windows":
		return WindowsX64Conv, nil
	case "sysv", "systemv":
		return SystemVConv, nil
	default:
		return Convention{}, fmt.Errorf("unknown calling convention %q", name)
	}
}

// ============================================================================
// 出参区计算
// ============================================================================

// StackArgOffsets 计算每个参数在出参区中的偏移，寄存器传递的参数为 -1
func (c Convention) StackArgOffsets(args []ArgClass) []int {
	offsets := make([]int, len(args))
	offset := c.ShadowSpace
	nextInt, nextFloat := 0, 0

	for i, arg := range args {
		inReg := false
		if c.Positional {
			if arg.isFloat() {
				inReg = i < len(c.FloatArgRegs)
			} else {
				inReg = i < len(c.ArgRegs)
			}
		} else if arg.isFloat() {
			inReg = nextFloat < len(c.FloatArgRegs)
			nextFloat++
		} else {
			inReg = nextInt < len(c.ArgRegs)
			nextInt++
		}

		if inReg {
			offsets[i] = -1
			continue
		}
		size := arg.stackSize()
		offset = (offset + size - 1) &^ (size - 1)
		offsets[i] = offset
		offset += size
	}
	return offsets
}

// OutgoingSize 计算调用点所需的出参区大小（含阴影空间，按栈对齐）
func (c Convention) OutgoingSize(args []ArgClass) int {
	size := c.ShadowSpace
	for i, off := range c.StackArgOffsets(args) {
		if off >= 0 && off+args[i].stackSize() > size {
			size = off + args[i].stackSize()
		}
	}
	if c.StackAlign > 1 {
		size = (size + c.StackAlign - 1) &^ (c.StackAlign - 1)
	}
	return size
}
