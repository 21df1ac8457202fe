package compiler

import "sort"

// FrameVar is one live variable in a snapshot. Value is the compile-time
// known value, or "?".
type FrameVar struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Offset int    `json:"offset"`
	Type   string `json:"type"`
}

// Snapshot is the frame state after one statement.
type Snapshot struct {
	Label string     `json:"label"`
	Line  int        `json:"line"`
	Index int        `json:"idx"`
	Func  string     `json:"func"`
	Vars  []FrameVar `json:"vars"`
}

const unknownValue = "?"

// Recorder collects snapshots for the step debugger. A nil Recorder records
// nothing, so the generator calls it unconditionally.
type Recorder struct {
	snaps []Snapshot
	next  int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a snapshot and returns its index, or -1 when r is nil.
// Vars are ordered by descending offset, parameters first.
func (r *Recorder) Record(fn, label string, line int, vars []FrameVar) int {
	if r == nil {
		return -1
	}
	sorted := append([]FrameVar(nil), vars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset > sorted[j].Offset
	})
	idx := r.next
	r.next++
	r.snaps = append(r.snaps, Snapshot{
		Label: label,
		Line:  line,
		Index: idx,
		Func:  fn,
		Vars:  sorted,
	})
	return idx
}

// Snapshots returns everything recorded so far.
func (r *Recorder) Snapshots() []Snapshot {
	if r == nil {
		return nil
	}
	return r.snaps
}

// knownValues tracks the best-effort value of each slotted local of the
// function being emitted, keyed by frame offset.
type knownValues map[int]constVal

func (k knownValues) describe(s Slot) string {
	if v, ok := k[s.Offset]; ok {
		return v.String()
	}
	return unknownValue
}
