package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/slotframe/internal/callconv"
	"github.com/tangzhangming/slotframe/internal/config"
	"github.com/tangzhangming/slotframe/internal/stackslot"
)

func loadTestUnits(t *testing.T, strategy stackslot.Strategy, paths ...string) []stackslot.Result {
	t.Helper()
	cfg := config.Default()
	cfg.Allocator.Verify = true

	var units []*stackslot.Unit
	for _, path := range paths {
		u, err := loadUnit(path, cfg, callconv.SystemVConv, strategy, stackslot.NopObserver{})
		if err != nil {
			t.Fatalf("loadUnit(%s): %v", path, err)
		}
		units = append(units, u)
	}
	return stackslot.NewPool(2).Run(context.Background(), units)
}

func TestPrintJSON(t *testing.T) {
	results := loadTestUnits(t, stackslot.StrategyInterval,
		"../../testdata/diamond.toml", "../../testdata/loop.toml")

	var buf bytes.Buffer
	if err := printJSON(&buf, results); err != nil {
		t.Fatalf("printJSON: %v", err)
	}

	var reports []unitReport
	if err := json.Unmarshal(buf.Bytes(), &reports); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(reports) != 2 || reports[0].Func != "diamond" || reports[1].Func != "loop" {
		t.Fatalf("unexpected reports: %s", buf.String())
	}

	d := reports[0]
	if d.Error != "" || d.Frame == nil || d.Stats == nil {
		t.Fatalf("diamond failed: %+v", d)
	}
	// 8 个整数参数，两个经栈传递
	if d.Frame.OutgoingSize != 16 {
		t.Errorf("outgoing = %d, want 16", d.Frame.OutgoingSize)
	}
	// scratch 复用 tmp 释放的槽
	if d.Stats.Reused != 1 {
		t.Errorf("reused = %d, want 1", d.Stats.Reused)
	}
	// obj 和 args[0]
	if len(d.Frame.ReferenceOffsets) != 2 {
		t.Errorf("refs = %v, want 2 offsets", d.Frame.ReferenceOffsets)
	}

	// acc、i、t 同时存活，互不复用
	if l := reports[1]; l.Stats == nil || l.Stats.Reused != 0 || l.Frame.SpillSize != 24 {
		t.Errorf("loop: %+v", l)
	}
}

func TestPrintText(t *testing.T) {
	results := loadTestUnits(t, stackslot.StrategySimple, "../../testdata/diamond.toml")

	var buf bytes.Buffer
	if err := printText(&buf, results, true); err != nil {
		t.Fatalf("printText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"== diamond ==", "frame size=", "reused=0", "func diamond", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "v0") {
		t.Errorf("virtual slot left after rewrite:\n%s", out)
	}
}

func TestLoadUnitError(t *testing.T) {
	_, err := loadUnit("../../testdata/missing.toml", config.Default(), callconv.SystemVConv,
		stackslot.StrategyInterval, stackslot.NopObserver{})
	if err == nil {
		t.Fatal("expected error for missing unit file")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Errorf("newLogger(debug): %v", err)
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
