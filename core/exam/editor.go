package exam

import (
	"context"
	"time"

	"github.com/trezcool/examroutine/core"
)

// Settings are the institution-wide defaults used when building routines.
type Settings struct {
	GlobalExamTime        string // empty: every entry carries its own time
	DefaultExamTime       string
	DefaultDuration       int
	DefaultMaxMarks       int
	DefaultPassPercentage int
}

func NewSettings(conf core.ExamConfig) Settings {
	return Settings{
		GlobalExamTime:        conf.GlobalExamTime,
		DefaultExamTime:       conf.DefaultExamTime,
		DefaultDuration:       conf.DefaultDuration,
		DefaultMaxMarks:       conf.DefaultMaxMarks,
		DefaultPassPercentage: conf.DefaultPassPercentage,
	}
}

// GlobalTimeMode reports whether a single exam time applies to every entry.
func (s Settings) GlobalTimeMode() bool {
	return s.GlobalExamTime != ""
}

// Target names the entry list an edit applies to: the Global Subject List or a class routine.
type Target struct {
	ClassID string // empty: Global Subject List
}

func Global() Target { return Target{} }

func ClassTarget(id string) Target { return Target{ClassID: id} }

func (t Target) IsGlobal() bool { return t.ClassID == "" }

// Editor holds an in-memory draft of an exam and edits its routines.
// Nothing is persisted until the draft is handed to the Service.
type Editor struct {
	draft    Exam
	catalog  *SessionCatalog
	settings Settings
	touched  []string
	warnings []ResolutionWarning
}

// NewEditor starts a session on a deep copy of ex.
func NewEditor(ex Exam, catalog *SessionCatalog, settings Settings) *Editor {
	return &Editor{draft: ex.Clone(), catalog: catalog, settings: settings}
}

// Draft returns a deep copy of the current draft.
func (ed *Editor) Draft() Exam {
	return ed.draft.Clone()
}

// Catalog returns the session cache the editor resolves names with.
func (ed *Editor) Catalog() *SessionCatalog {
	return ed.catalog
}

// Warnings returns the unresolved references met so far.
func (ed *Editor) Warnings() []ResolutionWarning {
	out := make([]ResolutionWarning, len(ed.warnings))
	copy(out, ed.warnings)
	return out
}

// Touched returns the classes whose routine was edited in this session.
func (ed *Editor) Touched() []string {
	return cloneStrings(ed.touched)
}

// TouchedRoutines returns the class routines edited in this session: the draft a
// class-scoped save merges into the stored record.
func (ed *Editor) TouchedRoutines() ClassRoutines {
	out := make(ClassRoutines, 0, len(ed.touched))
	for _, id := range ed.touched {
		if cr, ok := ed.draft.ClassRoutines.Get(id); ok {
			out = append(out, cr.Clone())
		}
	}
	return out
}

// Entries returns a copy of the entries of t.
func (ed *Editor) Entries(t Target) []RoutineEntry {
	if t.IsGlobal() {
		return cloneEntries(ed.draft.Subjects)
	}
	cr, _ := ed.draft.ClassRoutines.Get(t.ClassID)
	return cloneEntries(cr.Routine)
}

// AddEntry appends an entry filled with the institution defaults and returns its index.
func (ed *Editor) AddEntry(ctx context.Context, t Target) int {
	e := ed.newEntry(ctx)
	entries := ed.entries(ctx, t)
	*entries = append(*entries, e)
	ed.touch(t)
	return len(*entries) - 1
}

// RemoveEntry deletes the entry at index i. An out of range index is a no-op.
func (ed *Editor) RemoveEntry(t Target, i int) bool {
	entries, ok := ed.existing(t)
	if !ok || i < 0 || i >= len(*entries) {
		return false
	}
	*entries = append((*entries)[:i], (*entries)[i+1:]...)
	ed.touch(t)
	return true
}

// DuplicateEntry appends a copy of the entry at index i with its subject cleared and its exam date
// moved one day later. It returns the index of the copy.
func (ed *Editor) DuplicateEntry(t Target, i int) (int, bool) {
	entries, ok := ed.existing(t)
	if !ok || i < 0 || i >= len(*entries) {
		return -1, false
	}
	dup := (*entries)[i].Clone()
	dup.SubjectID, dup.SubjectName, dup.Title = "", "", ""
	dup.ExamDate = nextDay(dup.ExamDate)
	if dup.EndDate != "" {
		dup.EndDate = nextDay(dup.EndDate)
	}
	*entries = append(*entries, dup)
	ed.touch(t)
	return len(*entries) - 1, true
}

// Apply runs m against the entry at index i. It returns false, leaving the draft untouched,
// when the index does not exist or the value is rejected.
func (ed *Editor) Apply(ctx context.Context, t Target, i int, m Mutation) bool {
	entries, ok := ed.existing(t)
	if !ok || i < 0 || i >= len(*entries) || m == nil {
		return false
	}
	e := (*entries)[i].Clone()
	if !m.apply(ctx, ed, &e) {
		return false
	}
	(*entries)[i] = e
	ed.touch(t)
	return true
}

// ClearClassRoutine empties the routine of a class so it falls back to the Global Subject List.
func (ed *Editor) ClearClassRoutine(classID string) bool {
	i := ed.draft.ClassRoutines.Index(classID)
	if i < 0 {
		return false
	}
	ed.draft.ClassRoutines[i].Routine = []RoutineEntry{}
	ed.touch(ClassTarget(classID))
	return true
}

// SeedClassRoutine copies the Global Subject List into an empty class routine.
func (ed *Editor) SeedClassRoutine(ctx context.Context, classID string) bool {
	if classID == "" {
		return false
	}
	entries := ed.entries(ctx, ClassTarget(classID))
	if len(*entries) > 0 {
		return false
	}
	*entries = cloneEntries(ed.draft.Subjects)
	if *entries == nil {
		*entries = []RoutineEntry{}
	}
	ed.touch(ClassTarget(classID))
	return true
}

func (ed *Editor) newEntry(ctx context.Context) RoutineEntry {
	pct := ed.settings.DefaultPassPercentage
	if ed.draft.AssessmentCategoryID != "" {
		if cat, w := ed.catalog.Category(ctx, ed.draft.AssessmentCategoryID); w == nil && cat.PassPercentage != nil {
			pct = *cat.PassPercentage
		} else {
			ed.warn(w)
		}
	}
	examTime := ed.settings.DefaultExamTime
	if ed.settings.GlobalTimeMode() {
		examTime = ed.settings.GlobalExamTime
	}
	return RoutineEntry{
		AssessmentMode: ModeMarks,
		MaxMarks:       ed.settings.DefaultMaxMarks,
		PassPercentage: pct,
		ExamDate:       ed.draft.StartDate,
		ExamTime:       examTime,
		Duration:       ed.settings.DefaultDuration,
	}
}

// entries returns the list of t, creating the class routine when missing.
func (ed *Editor) entries(ctx context.Context, t Target) *[]RoutineEntry {
	if t.IsGlobal() {
		return &ed.draft.Subjects
	}
	i := ed.draft.ClassRoutines.Index(t.ClassID)
	if i < 0 {
		name, w := ed.catalog.ClassName(ctx, t.ClassID)
		ed.warn(w)
		ed.draft.ClassRoutines = append(ed.draft.ClassRoutines, ClassRoutine{ClassID: t.ClassID, ClassName: name})
		i = len(ed.draft.ClassRoutines) - 1
	}
	return &ed.draft.ClassRoutines[i].Routine
}

func (ed *Editor) existing(t Target) (*[]RoutineEntry, bool) {
	if t.IsGlobal() {
		return &ed.draft.Subjects, true
	}
	i := ed.draft.ClassRoutines.Index(t.ClassID)
	if i < 0 {
		return nil, false
	}
	return &ed.draft.ClassRoutines[i].Routine, true
}

func (ed *Editor) touch(t Target) {
	if t.IsGlobal() {
		return
	}
	for _, id := range ed.touched {
		if id == t.ClassID {
			return
		}
	}
	ed.touched = append(ed.touched, t.ClassID)
}

func (ed *Editor) warn(w *ResolutionWarning) {
	if w == nil {
		return
	}
	for _, existing := range ed.warnings {
		if existing == *w {
			return
		}
	}
	ed.warnings = append(ed.warnings, *w)
}

// nextDay returns the calendar day after date. Values that are not dates are returned as is.
func nextDay(date string) string {
	d, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, 1).Format(core.DateLayout)
}
