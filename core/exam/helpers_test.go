package exam

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examroutine/core"
)

type stubCatalog struct {
	classes    []Class
	subjects   []Subject
	years      []AcademicYear
	categories []AssessmentCategory
	teachers   map[string][]string
	calls      atomic.Int64
}

func newStubCatalog() *stubCatalog {
	forty := 40
	fifty := 50
	return &stubCatalog{
		classes: []Class{
			{ID: "c1", Name: "Grade 1", Order: 1},
			{ID: "c2", Name: "Grade 2", Order: 2},
			{ID: "c3", Name: "Grade 3", Order: 3},
		},
		subjects: []Subject{
			{ID: "math", Name: "Mathematics"},
			{ID: "eng", Name: "English"},
			{ID: "sci", Name: "Science"},
		},
		years: []AcademicYear{
			{ID: "y2024", Name: "2024-2025", IsActive: true, Terms: []Term{{ID: "t1", Name: "Term 1"}}},
		},
		categories: []AssessmentCategory{
			{ID: "final", Name: "Final Exam", Weightage: 60, PassPercentage: &fifty},
			{ID: "unit", Name: "Unit Test", Weightage: 20, PassPercentage: &forty},
			{ID: "quiz", Name: "Quiz", Weightage: 5},
		},
		teachers: map[string][]string{"t-1": {"Grade 1", "Grade 2"}},
	}
}

func (c *stubCatalog) Classes(context.Context, string) ([]Class, error) {
	c.calls.Add(1)
	return c.classes, nil
}

func (c *stubCatalog) Subjects(context.Context, string) ([]Subject, error) {
	c.calls.Add(1)
	return c.subjects, nil
}

func (c *stubCatalog) AcademicYears(context.Context, string) ([]AcademicYear, error) {
	c.calls.Add(1)
	return c.years, nil
}

func (c *stubCatalog) AssessmentCategories(context.Context, string) ([]AssessmentCategory, error) {
	c.calls.Add(1)
	return c.categories, nil
}

func (c *stubCatalog) TeacherClasses(_ context.Context, _, teacherID string) ([]string, error) {
	c.calls.Add(1)
	return c.teachers[teacherID], nil
}

// memRepo is a minimal versioned store; beforeWrite runs before every conditional write.
type memRepo struct {
	mu          sync.Mutex
	exams       map[string]Exam
	beforeWrite func(id string)
	failWrites  map[string]error // by class id
}

func newMemRepo() *memRepo {
	return &memRepo{exams: make(map[string]Exam)}
}

func (r *memRepo) CreateExam(_ context.Context, ex Exam) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex.Version = 1
	r.exams[ex.ID] = ex.Clone()
	return ex.Clone(), nil
}

func (r *memRepo) GetExam(_ context.Context, id string) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return ex.Clone(), nil
}

func (r *memRepo) QueryExams(_ context.Context, filter QueryFilter) ([]Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Exam
	for _, ex := range r.exams {
		if filter.Match(ex) {
			out = append(out, ex.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) UpdateExam(_ context.Context, ex Exam) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.exams[ex.ID]
	if !ok {
		return Exam{}, ErrNotFound
	}
	ex.Version = stored.Version + 1
	r.exams[ex.ID] = ex.Clone()
	return ex.Clone(), nil
}

func (r *memRepo) UpdateClassRoutines(_ context.Context, id string, routines ClassRoutines, expectedVersion int64, updatedAt time.Time) (Exam, error) {
	if r.beforeWrite != nil {
		r.beforeWrite(id)
	}
	for _, cid := range routines.ClassIDs() {
		if err := r.failWrites[cid]; err != nil {
			if cr, _ := routines.Get(cid); len(cr.Routine) > 0 {
				return Exam{}, err
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	if ex.Version != expectedVersion {
		return Exam{}, ErrVersionConflict
	}
	ex.ClassRoutines = routines.Clone()
	ex.UpdatedAt = updatedAt
	ex.Version++
	r.exams[id] = ex
	return ex.Clone(), nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) (Exam, error) {
	return r.update(id, func(ex *Exam) { ex.Status, ex.UpdatedAt = status, updatedAt })
}

func (r *memRepo) UpdatePublished(_ context.Context, id string, published bool, updatedAt time.Time) (Exam, error) {
	return r.update(id, func(ex *Exam) { ex.IsPublished, ex.UpdatedAt = published, updatedAt })
}

func (r *memRepo) update(id string, fn func(ex *Exam)) (Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	fn(&ex)
	ex.Version++
	r.exams[id] = ex
	return ex.Clone(), nil
}

func (r *memRepo) DeleteExam(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exams[id]; !ok {
		return ErrNotFound
	}
	delete(r.exams, id)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type countingMetrics struct {
	mu          sync.Mutex
	transitions map[Status]int
	merges      map[string]int
	copies      map[string]int
	invalid     int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{transitions: map[Status]int{}, merges: map[string]int{}, copies: map[string]int{}}
}

func (m *countingMetrics) StatusChanged(to Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[to]++
}

func (m *countingMetrics) MergeAttempt(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merges[outcome]++
}

func (m *countingMetrics) CopyEntries(result string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copies[result] += n
}

func (m *countingMetrics) ValidationFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid++
}

func testSettings() Settings {
	return Settings{DefaultExamTime: "09:00", DefaultDuration: 180, DefaultMaxMarks: 100, DefaultPassPercentage: 40}
}

type testEnv struct {
	svc     Service
	repo    *memRepo
	catalog *stubCatalog
	metrics *countingMetrics
}

func newTestEnv() testEnv {
	conf := &core.Config{Exam: core.ExamConfig{
		DefaultExamTime:       "09:00",
		DefaultDuration:       180,
		DefaultMaxMarks:       100,
		DefaultPassPercentage: 40,
		MergeMaxRetries:       3,
	}}
	env := testEnv{repo: newMemRepo(), catalog: newStubCatalog(), metrics: newCountingMetrics()}
	translator := core.NewTranslator()
	validate := validator.New()
	InitValidators(validate, translator)
	env.svc = NewService(Deps{
		Repo:       env.repo,
		Catalog:    env.catalog,
		Logger:     nopLogger{},
		Metrics:    env.metrics,
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})
	return env
}

var (
	admin   = Actor{ID: "a-1", Username: "admin", SchoolID: "s1", IsAdmin: true}
	teacher = Actor{ID: "t-1", Username: "teacher", SchoolID: "s1", IsTeacher: true}
)

func intPtr(i int) *int { return &i }

func entry(subjectID, name, date string) RoutineEntry {
	return RoutineEntry{
		SubjectID:      subjectID,
		SubjectName:    name,
		AssessmentMode: ModeMarks,
		MaxMarks:       100,
		PassPercentage: 40,
		ExamDate:       date,
		ExamTime:       "09:00",
		Duration:       180,
	}
}

func validExam() Exam {
	return Exam{
		SchoolID:             "s1",
		Name:                 "Mid Term",
		AcademicYearID:       "y2024",
		AssessmentCategoryID: "final",
		TargetClasses:        []string{"c1", "c2", "c3"},
		StartDate:            "2024-03-01",
		Subjects: []RoutineEntry{
			entry("math", "Mathematics", "2024-03-02"),
			entry("eng", "English", "2024-03-01"),
		},
	}
}
