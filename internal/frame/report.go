package frame

// Report 冻结后帧布局的导出形式（供 JSON 输出）
type Report struct {
	TotalSize        int          `json:"total_size"`
	OutgoingSize     int          `json:"outgoing_size"`
	SpillBase        int          `json:"spill_base"`
	SpillSize        int          `json:"spill_size"`
	ReferenceOffsets []int        `json:"reference_offsets"`
	Slots            []SlotReport `json:"slots"`
}

// SlotReport 单个物理槽的导出形式
type SlotReport struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Size   int    `json:"size"`
	Class  string `json:"class"`
	Ref    bool   `json:"ref,omitempty"`
	Units  int    `json:"units,omitempty"`
	RefMap []bool `json:"ref_map,omitempty"`
}

// Report 生成帧布局报告，必须在 Finish 之后调用
func (m *Map) Report() Report {
	r := Report{
		TotalSize:        m.TotalSize(),
		OutgoingSize:     m.outgoingSize,
		SpillBase:        m.SpillBase(),
		SpillSize:        m.spillSize,
		ReferenceOffsets: m.ReferenceOffsets(),
		Slots:            make([]SlotReport, 0, len(m.slots)),
	}
	for _, s := range m.slots {
		r.Slots = append(r.Slots, SlotReport{
			Index:  s.Index,
			Offset: m.Offset(s),
			Size:   s.Size(),
			Class:  s.Class.String(),
			Ref:    s.Ref,
			Units:  s.Units,
			RefMap: s.RefMap,
		})
	}
	return r
}
