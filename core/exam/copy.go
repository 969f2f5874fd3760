package exam

import (
	"strings"

	"github.com/trezcool/examroutine/core"
)

// CopyRequest asks for the routine of a source class to be reconciled into target classes.
type CopyRequest struct {
	SourceClassID  string   `json:"source_class_id"`
	TargetClassIDs []string `json:"target_class_ids"`
	From           string   `json:"from,omitempty"` // inclusive; empty: unbounded
	To             string   `json:"to,omitempty"`   // inclusive; empty: unbounded
}

// Month restricts the request to the calendar month of yyyy-mm.
func (req *CopyRequest) Month(month string) error {
	if !core.IsDate(month + "-01") {
		return core.NewArgumentError("month must be formatted as yyyy-mm")
	}
	req.From = month + "-01"
	req.To = month + "-31" // string comparison: no month has more days
	return nil
}

// Includes reports whether an entry's exam date falls in the requested window.
func (req CopyRequest) Includes(e RoutineEntry) bool {
	if req.From != "" && e.ExamDate < req.From {
		return false
	}
	if req.To != "" && e.ExamDate > req.To {
		return false
	}
	return true
}

// Targets returns the cleaned target class ids, without the source class.
func (req CopyRequest) Targets() []string {
	var out []string
	for _, id := range core.CleanStrings(req.TargetClassIDs) {
		if id != req.SourceClassID {
			out = append(out, id)
		}
	}
	return out
}

// Tally counts the outcome of each (source entry, target class) pair.
type Tally struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func (t *Tally) add(o Tally) {
	t.Created += o.Created
	t.Updated += o.Updated
	t.Unchanged += o.Unchanged
	t.Failed += o.Failed
}

// CopySummary is the outcome of a cross-class copy.
type CopySummary struct {
	Tally
	PerClass map[string]Tally `json:"per_class"`
}

func newCopySummary() CopySummary {
	return CopySummary{PerClass: make(map[string]Tally)}
}

func (s *CopySummary) record(classID string, t Tally) {
	s.Tally.add(t)
	cur := s.PerClass[classID]
	cur.add(t)
	s.PerClass[classID] = cur
}

// Reconcile copies source entries into the routine of targetClassID.
// Each source entry is paired with at most one existing entry of the same name that applies to
// the target, preferring one with the same dates. A paired entry is updated when its dates differ
// and left alone otherwise; an unpaired source entry is created, scoped to the target. Reconciling
// the same source twice creates nothing the second time. The target slice is not modified.
func Reconcile(source, target []RoutineEntry, targetClassID string) ([]RoutineEntry, Tally) {
	var tally Tally
	out := cloneEntries(target)
	existing := out[:len(out):len(out)]
	used := make([]bool, len(existing))

	matches := make([]int, len(source))
	for si, src := range source {
		matches[si] = findMatch(existing, used, src, targetClassID, true)
	}
	for si, src := range source {
		if matches[si] < 0 {
			matches[si] = findMatch(existing, used, src, targetClassID, false)
		}
	}

	for si, src := range source {
		i := matches[si]
		switch {
		case i < 0:
			created := src.Clone()
			created.ClassScope = []string{targetClassID}
			out = append(out, created)
			tally.Created++
		case out[i].SameDateRange(src):
			tally.Unchanged++
		default:
			out[i].ExamDate = src.ExamDate
			out[i].EndDate = src.EndDate
			out[i].MultiDay = src.MultiDay
			out[i].Description = src.Description
			out[i].Color = src.Color
			tally.Updated++
		}
	}
	return out, tally
}

// findMatch returns the first unused entry named like src that applies to classID, marking it used.
func findMatch(entries []RoutineEntry, used []bool, src RoutineEntry, classID string, sameDates bool) int {
	name := strings.ToLower(src.Name())
	for i, e := range entries {
		if used[i] || strings.ToLower(e.Name()) != name || !e.AppliesTo(classID) {
			continue
		}
		if sameDates && !e.SameDateRange(src) {
			continue
		}
		used[i] = true
		return i
	}
	return -1
}
