package exam

// Recovery describes an exam whose target classes were lost while its class routines survived.
type Recovery struct {
	ExamID        string   `json:"exam_id"`
	ExamName      string   `json:"exam_name"`
	TargetClasses []string `json:"target_classes"` // recoverable from the routines
}

// RecoverTargetClasses lists the exams with no target class but with class routines,
// along with the class ids those routines point at.
func RecoverTargetClasses(exams []Exam) []Recovery {
	var out []Recovery
	for _, ex := range exams {
		if len(ex.TargetClasses) > 0 || len(ex.ClassRoutines) == 0 {
			continue
		}
		ids := ex.ClassRoutines.Normalize().ClassIDs()
		if len(ids) == 0 {
			continue
		}
		out = append(out, Recovery{ExamID: ex.ID, ExamName: ex.Name, TargetClasses: ids})
	}
	return out
}
