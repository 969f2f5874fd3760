package exam

// roundDiv divides a by b rounding half away from zero. b must be positive.
func roundDiv(a, b int) int {
	if a < 0 {
		return -roundDiv(-a, b)
	}
	return (2*a + b) / (2 * b)
}

// PassMarks converts a pass percentage of maxMarks into absolute marks.
func PassMarks(maxMarks, percentage int) int {
	if maxMarks <= 0 {
		return 0
	}
	return roundDiv(percentage*maxMarks, 100)
}

// PassPercentage converts absolute pass marks out of maxMarks into a percentage.
func PassPercentage(maxMarks, marks int) int {
	if maxMarks <= 0 {
		return 0
	}
	return roundDiv(marks*100, maxMarks)
}

// BreakdownValid reports whether theory and practical marks, when both are set, add up to MaxMarks.
func (e RoutineEntry) BreakdownValid() bool {
	if e.TheoryMarks == nil || e.PracticalMarks == nil {
		return true
	}
	return *e.TheoryMarks+*e.PracticalMarks == e.MaxMarks
}

// Advisory flags an entry whose mark breakdown does not add up. It never blocks a save.
type Advisory struct {
	ClassID   string `json:"class_id,omitempty"` // empty: Global Subject List
	Index     int    `json:"index"`
	SubjectID string `json:"subject_id"`
	Subject   string `json:"subject"`
	Theory    int    `json:"theory"`
	Practical int    `json:"practical"`
	MaxMarks  int    `json:"max_marks"`
}

// CheckBreakdowns lists the entries of ex whose theory and practical marks do not sum to max marks.
func CheckBreakdowns(ex Exam) []Advisory {
	var out []Advisory
	check := func(classID string, entries []RoutineEntry) {
		for i, e := range entries {
			if e.BreakdownValid() {
				continue
			}
			out = append(out, Advisory{
				ClassID:   classID,
				Index:     i,
				SubjectID: e.SubjectID,
				Subject:   e.Name(),
				Theory:    *e.TheoryMarks,
				Practical: *e.PracticalMarks,
				MaxMarks:  e.MaxMarks,
			})
		}
	}
	check("", ex.Subjects)
	for _, cr := range ex.ClassRoutines {
		check(cr.ClassID, cr.Routine)
	}
	return out
}
