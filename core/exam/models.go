package exam

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/examroutine/core"
)

// Status is the lifecycle state of an Exam.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var Statuses = []Status{StatusDraft, StatusScheduled, StatusOngoing, StatusCompleted, StatusCancelled}

// AssessmentMode selects how an entry is marked.
type AssessmentMode string

const (
	ModeMarks AssessmentMode = "MARKS"
	ModeGrade AssessmentMode = "GRADE"
)

func (m AssessmentMode) IsValid() bool {
	return m == ModeMarks || m == ModeGrade
}

// Actor is the identity an operation runs on behalf of.
type Actor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	SchoolID  string `json:"school_id"`
	IsAdmin   bool   `json:"is_admin"`
	IsTeacher bool   `json:"is_teacher"`
}

func (a Actor) String() string {
	if a.Username != "" {
		return a.Username
	}
	if a.ID != "" {
		return a.ID
	}
	return "system"
}

// RoutineEntry is one subject slot of a timetable.
// It belongs either to the Global Subject List or to exactly one class routine.
type RoutineEntry struct {
	SubjectID        string         `json:"subject_id"`
	SubjectName      string         `json:"subject_name"`
	CombinedSubjects []string       `json:"combined_subjects,omitempty" validate:"omitempty,dive,required"`
	AssessmentMode   AssessmentMode `json:"assessment_mode" validate:"omitempty,assessmode"`
	MaxMarks         int            `json:"max_marks" validate:"gte=0,marksmax"`
	PassPercentage   int            `json:"pass_percentage" validate:"gte=0,lte=100"` // of MaxMarks
	TheoryMarks      *int           `json:"theory_marks,omitempty" validate:"omitempty,gte=0"`
	PracticalMarks   *int           `json:"practical_marks,omitempty" validate:"omitempty,gte=0"`
	InternalMarks    *int           `json:"internal_marks,omitempty" validate:"omitempty,gte=0"`
	ExternalMarks    *int           `json:"external_marks,omitempty" validate:"omitempty,gte=0"`
	ExamDate         string         `json:"exam_date" validate:"omitempty,isodate"`
	ExamTime         string         `json:"exam_time" validate:"omitempty,hhmm"`
	Duration         int            `json:"duration" validate:"gte=0"` // minutes
	Examiner         string         `json:"examiner,omitempty"`
	Room             string         `json:"room,omitempty"`

	// used by the reconciliation copy
	Title       string   `json:"title,omitempty"`
	EndDate     string   `json:"end_date,omitempty" validate:"omitempty,isodate"`
	MultiDay    bool     `json:"multi_day,omitempty"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	ClassScope  []string `json:"class_scope,omitempty"` // empty: applies to every class
}

// Name is the display name used to match entries across classes.
func (e RoutineEntry) Name() string {
	if e.Title != "" {
		return e.Title
	}
	if e.SubjectName != "" {
		return e.SubjectName
	}
	return e.SubjectID
}

// PassMarks is the absolute passing threshold derived from PassPercentage.
func (e RoutineEntry) PassMarks() int {
	return PassMarks(e.MaxMarks, e.PassPercentage)
}

// AppliesTo reports whether the entry is scoped to classID. An empty scope matches every class.
func (e RoutineEntry) AppliesTo(classID string) bool {
	if len(e.ClassScope) == 0 {
		return true
	}
	for _, id := range e.ClassScope {
		if id == classID {
			return true
		}
	}
	return false
}

// SameDateRange reports whether both entries cover the same dates.
func (e RoutineEntry) SameDateRange(o RoutineEntry) bool {
	return e.ExamDate == o.ExamDate && e.EndDate == o.EndDate
}

// IsComplete reports whether the entry carries everything needed to sit the exam.
func (e RoutineEntry) IsComplete(globalTimeMode bool) bool {
	if e.SubjectID == "" || e.ExamDate == "" {
		return false
	}
	return globalTimeMode || e.ExamTime != ""
}

func (e RoutineEntry) Clone() RoutineEntry {
	c := e
	c.CombinedSubjects = cloneStrings(e.CombinedSubjects)
	c.ClassScope = cloneStrings(e.ClassScope)
	c.TheoryMarks = cloneInt(e.TheoryMarks)
	c.PracticalMarks = cloneInt(e.PracticalMarks)
	c.InternalMarks = cloneInt(e.InternalMarks)
	c.ExternalMarks = cloneInt(e.ExternalMarks)
	return c
}

func cloneEntries(entries []RoutineEntry) []RoutineEntry {
	if entries == nil {
		return nil
	}
	out := make([]RoutineEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// ClassRoutine is the per-class timetable override of an Exam.
type ClassRoutine struct {
	ClassID   string         `json:"class_id" validate:"required"`
	ClassName string         `json:"class_name"`
	Routine   []RoutineEntry `json:"routine" validate:"dive"`
}

func (cr ClassRoutine) Clone() ClassRoutine {
	return ClassRoutine{ClassID: cr.ClassID, ClassName: cr.ClassName, Routine: cloneEntries(cr.Routine)}
}

// ClassRoutines holds at most one ClassRoutine per class id, in insertion order.
type ClassRoutines []ClassRoutine

// Index returns the position of classID, or -1.
func (crs ClassRoutines) Index(classID string) int {
	for i, cr := range crs {
		if cr.ClassID == classID {
			return i
		}
	}
	return -1
}

func (crs ClassRoutines) Get(classID string) (ClassRoutine, bool) {
	if i := crs.Index(classID); i >= 0 {
		return crs[i], true
	}
	return ClassRoutine{}, false
}

func (crs ClassRoutines) ClassIDs() []string {
	ids := make([]string, 0, len(crs))
	for _, cr := range crs {
		ids = append(ids, cr.ClassID)
	}
	return ids
}

func (crs ClassRoutines) Clone() ClassRoutines {
	if crs == nil {
		return nil
	}
	out := make(ClassRoutines, len(crs))
	for i, cr := range crs {
		out[i] = cr.Clone()
	}
	return out
}

// Normalize drops routines without a class id and collapses duplicates.
// The last routine given for a class wins but keeps the position of the first.
func (crs ClassRoutines) Normalize() ClassRoutines {
	out := make(ClassRoutines, 0, len(crs))
	for _, cr := range crs {
		if cr.ClassID == "" {
			continue
		}
		if i := out.Index(cr.ClassID); i >= 0 {
			out[i] = cr.Clone()
			continue
		}
		out = append(out, cr.Clone())
	}
	return out
}

// Exam is the record of one scheduled examination.
type Exam struct {
	ID          string `json:"id"`
	SchoolID    string `json:"school_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`

	AcademicYearID         string `json:"academic_year_id"`
	AcademicYearName       string `json:"academic_year_name"`
	TermID                 string `json:"term_id,omitempty"`
	TermName               string `json:"term_name,omitempty"`
	AssessmentCategoryID   string `json:"assessment_category_id"`
	AssessmentCategoryName string `json:"assessment_category_name"`

	TargetClasses []string `json:"target_classes" validate:"dive,required"`
	StartDate     string   `json:"start_date" validate:"omitempty,isodate"`
	EndDate       string   `json:"end_date,omitempty" validate:"omitempty,isodate"`

	Subjects      []RoutineEntry `json:"subjects" validate:"dive"`
	ClassRoutines ClassRoutines  `json:"class_routines,omitempty" validate:"dive"`
	Instructions  string         `json:"instructions,omitempty"`

	Status      Status    `json:"status"`
	IsPublished bool      `json:"is_published"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
	Version     int64     `json:"version"`
}

// PrintName is the name shown on printed artifacts.
func (ex Exam) PrintName() string {
	if ex.DisplayName != "" {
		return ex.DisplayName
	}
	return ex.Name
}

func (ex Exam) TargetsClass(classID string) bool {
	for _, id := range ex.TargetClasses {
		if id == classID {
			return true
		}
	}
	return false
}

// RoutineFor returns the timetable a class sits: its class routine when populated,
// the Global Subject List otherwise.
func (ex Exam) RoutineFor(classID string) (entries []RoutineEntry, fromClassRoutine bool) {
	if cr, ok := ex.ClassRoutines.Get(classID); ok && len(cr.Routine) > 0 {
		return cr.Routine, true
	}
	return ex.Subjects, false
}

// LastExamDate returns the latest entry date across the flat list and every class routine.
func (ex Exam) LastExamDate() string {
	var last string
	check := func(entries []RoutineEntry) {
		for _, e := range entries {
			for _, d := range []string{e.ExamDate, e.EndDate} {
				if d > last {
					last = d
				}
			}
		}
	}
	check(ex.Subjects)
	for _, cr := range ex.ClassRoutines {
		check(cr.Routine)
	}
	return last
}

// Clone deep copies the exam and its whole entry graph.
func (ex Exam) Clone() Exam {
	c := ex
	c.TargetClasses = cloneStrings(ex.TargetClasses)
	c.Subjects = cloneEntries(ex.Subjects)
	c.ClassRoutines = ex.ClassRoutines.Clone()
	return c
}

// Duplicate clones the exam into a new unsaved DRAFT: identity is reset and publication turned off.
func (ex Exam) Duplicate() Exam {
	dup := ex.Clone()
	dup.ID = ""
	dup.Name = ex.Name + " (Copy)"
	dup.Status = StatusDraft
	dup.IsPublished = false
	dup.CreatedBy = ""
	dup.CreatedAt = time.Time{}
	dup.UpdatedAt = time.Time{}
	dup.Version = 0
	return dup
}

// Clean trims the free text fields and drops blank and duplicate target classes.
func (ex *Exam) Clean() {
	ex.Name = strings.TrimSpace(ex.Name)
	ex.DisplayName = strings.TrimSpace(ex.DisplayName)
	ex.AcademicYearID = strings.TrimSpace(ex.AcademicYearID)
	ex.TermID = strings.TrimSpace(ex.TermID)
	ex.AssessmentCategoryID = strings.TrimSpace(ex.AssessmentCategoryID)
	ex.StartDate = strings.TrimSpace(ex.StartDate)
	ex.EndDate = strings.TrimSpace(ex.EndDate)
	targets := make([]string, 0, len(ex.TargetClasses))
	seen := make(map[string]struct{}, len(ex.TargetClasses))
	for _, id := range ex.TargetClasses {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	ex.TargetClasses = targets
	ex.ClassRoutines = ex.ClassRoutines.Normalize()
}

// QueryFilter narrows exam listings. Empty fields match everything.
type QueryFilter struct {
	SchoolID string   `query:"school_id"`
	Search   string   `query:"search"`   // case-insensitive match on name or assessment category name
	Statuses []Status `query:"status"`
	ClassID  string   `query:"class_id"` // exam targets this class

	Orderings []core.DBOrdering `query:"-"` // default: start_date desc, created_at desc
}

// OrderingFields lists the fields exam queries can be ordered by.
var OrderingFields = []string{"start_date", "name", "status", "created_at", "updated_at"}

var defaultOrderings = []core.DBOrdering{{Field: "start_date"}, {Field: "created_at"}}

// EffectiveOrderings returns the requested orderings, or the default when none is set.
func (qf QueryFilter) EffectiveOrderings() []core.DBOrdering {
	if len(qf.Orderings) == 0 {
		return defaultOrderings
	}
	return qf.Orderings
}

// SortExams orders exams in place, like the SQL repository would.
func SortExams(exams []Exam, ords []core.DBOrdering) {
	sort.SliceStable(exams, func(i, j int) bool {
		for _, ord := range ords {
			c := compareField(exams[i], exams[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b Exam, field string) int {
	switch field {
	case "start_date":
		return strings.Compare(a.StartDate, b.StartDate)
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func (qf QueryFilter) Match(ex Exam) bool {
	if qf.SchoolID != "" && ex.SchoolID != qf.SchoolID {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(ex.Name), s) &&
			!strings.Contains(strings.ToLower(ex.AssessmentCategoryName), s) {
			return false
		}
	}
	if len(qf.Statuses) > 0 {
		var found bool
		for _, st := range qf.Statuses {
			if ex.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.ClassID != "" && !ex.TargetsClass(qf.ClassID) {
		return false
	}
	return true
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
