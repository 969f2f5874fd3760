package exam

import (
	"context"
	"strings"

	"github.com/trezcool/examroutine/core"
)

// Mutation is a single field change applied to one routine entry.
// A mutation either applies fully or leaves the entry untouched.
type Mutation interface {
	apply(ctx context.Context, ed *Editor, e *RoutineEntry) bool
}

type (
	SetSubject          struct{ SubjectID string }
	SetCombinedSubjects struct{ SubjectIDs []string }
	SetAssessmentMode   struct{ Mode AssessmentMode }
	SetMaxMarks         struct{ MaxMarks int }
	SetPassPercentage   struct{ Percentage int }
	// SetPassMarks sets the threshold in absolute marks; it is stored as a percentage.
	SetPassMarks  struct{ Marks int }
	SetBreakdown  struct{ Theory, Practical *int }
	SetInternal   struct{ Internal, External *int }
	SetExamDate   struct{ Date string }
	SetExamTime   struct{ Time string }
	SetDuration   struct{ Minutes int }
	SetRoom       struct{ Room string }
	SetExaminer   struct{ Examiner string }
	SetTitle      struct{ Title string }
	SetDateRange  struct{ Start, End string }
	SetDetails    struct{ Description, Color string }
	SetClassScope struct{ ClassIDs []string }
)

func (m SetSubject) apply(ctx context.Context, ed *Editor, e *RoutineEntry) bool {
	id := strings.TrimSpace(m.SubjectID)
	if id == "" {
		e.SubjectID, e.SubjectName = "", ""
		return true
	}
	name, warning := ed.catalog.SubjectName(ctx, id)
	ed.warn(warning)
	e.SubjectID, e.SubjectName = id, name
	e.CombinedSubjects = withoutSubject(e.CombinedSubjects, id)
	return true
}

func (m SetCombinedSubjects) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.CombinedSubjects = withoutSubject(core.CleanStrings(m.SubjectIDs), e.SubjectID)
	return true
}

func (m SetAssessmentMode) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if !m.Mode.IsValid() {
		return false
	}
	e.AssessmentMode = m.Mode
	return true
}

func (m SetMaxMarks) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if m.MaxMarks <= 0 {
		return false
	}
	e.MaxMarks = m.MaxMarks
	return true
}

func (m SetPassPercentage) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if m.Percentage < 0 || m.Percentage > 100 {
		return false
	}
	e.PassPercentage = m.Percentage
	return true
}

func (m SetPassMarks) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if e.MaxMarks <= 0 || m.Marks < 0 || m.Marks > e.MaxMarks {
		return false
	}
	e.PassPercentage = PassPercentage(e.MaxMarks, m.Marks)
	return true
}

func (m SetBreakdown) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if negative(m.Theory) || negative(m.Practical) {
		return false
	}
	e.TheoryMarks, e.PracticalMarks = cloneInt(m.Theory), cloneInt(m.Practical)
	return true
}

func (m SetInternal) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if negative(m.Internal) || negative(m.External) {
		return false
	}
	e.InternalMarks, e.ExternalMarks = cloneInt(m.Internal), cloneInt(m.External)
	return true
}

func (m SetExamDate) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if m.Date != "" && !core.IsDate(m.Date) {
		return false
	}
	e.ExamDate = m.Date
	if e.EndDate != "" && e.EndDate < e.ExamDate {
		e.EndDate, e.MultiDay = "", false
	}
	return true
}

func (m SetExamTime) apply(_ context.Context, ed *Editor, e *RoutineEntry) bool {
	if ed.settings.GlobalTimeMode() {
		return false
	}
	if m.Time != "" && !core.IsClockTime(m.Time) {
		return false
	}
	e.ExamTime = m.Time
	return true
}

func (m SetDuration) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if m.Minutes < 0 {
		return false
	}
	e.Duration = m.Minutes
	return true
}

func (m SetRoom) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.Room = strings.TrimSpace(m.Room)
	return true
}

func (m SetExaminer) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.Examiner = strings.TrimSpace(m.Examiner)
	return true
}

func (m SetTitle) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.Title = strings.TrimSpace(m.Title)
	return true
}

func (m SetDateRange) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	if !core.IsDate(m.Start) || (m.End != "" && (!core.IsDate(m.End) || m.End < m.Start)) {
		return false
	}
	e.ExamDate = m.Start
	e.EndDate = ""
	if m.End != m.Start {
		e.EndDate = m.End
	}
	e.MultiDay = e.EndDate != ""
	return true
}

func (m SetDetails) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.Description = strings.TrimSpace(m.Description)
	e.Color = strings.TrimSpace(m.Color)
	return true
}

func (m SetClassScope) apply(_ context.Context, _ *Editor, e *RoutineEntry) bool {
	e.ClassScope = core.CleanStrings(m.ClassIDs)
	return true
}

func negative(i *int) bool {
	return i != nil && *i < 0
}

func withoutSubject(ids []string, subjectID string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != subjectID {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
