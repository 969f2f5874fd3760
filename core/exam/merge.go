package exam

// MergeClassRoutines upserts every routine of draft into current and returns the result.
// Classes absent from draft are kept unchanged; neither input is modified.
func MergeClassRoutines(current, draft ClassRoutines) ClassRoutines {
	merged := current.Normalize()
	for _, cr := range draft.Normalize() {
		if i := merged.Index(cr.ClassID); i >= 0 {
			name := merged[i].ClassName
			if cr.ClassName != "" {
				name = cr.ClassName
			}
			merged[i] = ClassRoutine{ClassID: cr.ClassID, ClassName: name, Routine: cr.Routine}
			continue
		}
		merged = append(merged, cr)
	}
	return merged
}
