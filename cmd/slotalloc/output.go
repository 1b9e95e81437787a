package main

import (
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/stackslot"
)

// unitReport 单个编译单元的 JSON 输出
type unitReport struct {
	Func  string        `json:"func"`
	Error string        `json:"error,omitempty"`
	Frame *frame.Report `json:"frame,omitempty"`
	Stats *statsReport  `json:"stats,omitempty"`
}

type statsReport struct {
	Slots        int `json:"slots"`
	Intervals    int `json:"intervals"`
	Fresh        int `json:"fresh"`
	Reused       int `json:"reused"`
	RangeSlots   int `json:"range_slots"`
	CallSites    int `json:"call_sites"`
	LivenessPops int `json:"liveness_pops"`
	Rewritten    int `json:"rewritten"`
}

func newStatsReport(s stackslot.Stats) *statsReport {
	return &statsReport{
		Slots:        s.Slots,
		Intervals:    s.Intervals,
		Fresh:        s.Fresh,
		Reused:       s.Reused,
		RangeSlots:   s.RangeSlots,
		CallSites:    s.CallSites,
		LivenessPops: s.LivenessPops,
		Rewritten:    s.Rewritten,
	}
}

func printJSON(w io.Writer, results []stackslot.Result) error {
	reports := make([]unitReport, 0, len(results))
	for _, r := range results {
		ur := unitReport{Func: r.Unit.Func.Name}
		if r.Err != nil {
			ur.Error = r.Err.Error()
		} else {
			rep := r.Frame.Report()
			ur.Frame = &rep
			ur.Stats = newStatsReport(r.Unit.Builder.Stats())
		}
		reports = append(reports, ur)
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printText(w io.Writer, results []stackslot.Result, dump bool) error {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s ==\n", r.Unit.Func.Name)
		if r.Err != nil {
			fmt.Fprintf(w, "error: %v\n", r.Err)
			continue
		}
		fmt.Fprint(w, r.Frame.String())
		st := r.Unit.Builder.Stats()
		fmt.Fprintf(w, "slots=%d fresh=%d reused=%d ranges=%d calls=%d pops=%d rewritten=%d\n",
			st.Slots, st.Fresh, st.Reused, st.RangeSlots, st.CallSites, st.LivenessPops, st.Rewritten)
		if dump {
			fmt.Fprint(w, r.Unit.Func.String())
		}
	}
	return nil
}
