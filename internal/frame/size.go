// Package frame 实现栈帧布局（Frame Map）
//
// Frame Map 负责：
// 1. 溢出区（spill area）的单调增长与按自然对齐的 bump 分配
// 2. 出参区（outgoing-argument area）大小的记录（取所有调用点的最大值）
// 3. 记录所有可能存放对象引用的帧偏移，供 GC / 栈遍历精确扫描
// 4. 一次性冻结最终帧大小
package frame

import "fmt"

// ============================================================================
// 尺寸类别
// ============================================================================

// SizeClass 栈槽尺寸类别（封闭枚举）
type SizeClass int

const (
	Size1 SizeClass = iota
	Size2
	Size4
	Size8
	Size16

	NumSizeClasses = int(Size16) + 1
)

// Bytes 返回尺寸类别对应的字节数
func (c SizeClass) Bytes() int {
	if !c.Valid() {
		panic(fmt.Sprintf("frame: invalid size class %d", int(c)))
	}
	return 1 << uint(c)
}

// Align 返回尺寸类别的自然对齐
func (c SizeClass) Align() int {
	return c.Bytes()
}

// Valid 检查尺寸类别是否合法
func (c SizeClass) Valid() bool {
	return c >= Size1 && c <= Size16
}

func (c SizeClass) String() string {
	switch c {
	case Size1:
		return "s1"
	case Size2:
		return "s2"
	case Size4:
		return "s4"
	case Size8:
		return "s8"
	case Size16:
		return "s16"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// ClassForBytes 根据字节数查找尺寸类别
func ClassForBytes(n int) (SizeClass, bool) {
	for c := Size1; c <= Size16; c++ {
		if c.Bytes() == n {
			return c, true
		}
	}
	return 0, false
}

// AlignUp 将 n 向上对齐到 align（align 必须是 2 的幂）
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
