package exam

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type (
	Class struct {
		ID    string `json:"id" yaml:"id"`
		Name  string `json:"name" yaml:"name"`
		Order int    `json:"order" yaml:"order"`
	}

	Subject struct {
		ID   string `json:"id" yaml:"id"`
		Name string `json:"name" yaml:"name"`
	}

	Term struct {
		ID   string `json:"id" yaml:"id"`
		Name string `json:"name" yaml:"name"`
	}

	AcademicYear struct {
		ID       string `json:"id" yaml:"id"`
		Name     string `json:"name" yaml:"name"`
		IsActive bool   `json:"is_active" yaml:"active"`
		Terms    []Term `json:"terms" yaml:"terms"`
	}

	AssessmentCategory struct {
		ID             string  `json:"id" yaml:"id"`
		Name           string  `json:"name" yaml:"name"`
		Weightage      float64 `json:"weightage" yaml:"weightage"`
		PassPercentage *int    `json:"pass_percentage,omitempty" yaml:"passPercentage"` // nil: institution default
	}
)

// Catalog provides the institution reference data the engine resolves names against.
type Catalog interface {
	Classes(ctx context.Context, schoolID string) ([]Class, error)
	Subjects(ctx context.Context, schoolID string) ([]Subject, error)
	AcademicYears(ctx context.Context, schoolID string) ([]AcademicYear, error)
	AssessmentCategories(ctx context.Context, schoolID string) ([]AssessmentCategory, error)
	// TeacherClasses returns the NAMES of the classes assigned to a teacher.
	TeacherClasses(ctx context.Context, schoolID, teacherID string) ([]string, error)
}

// SessionCatalog is a read-through cache over a Catalog for a single school.
// Each table is fetched once, on first use; a catalog refresh is seen by the next session.
type SessionCatalog struct {
	cat      Catalog
	schoolID string

	mu         sync.Mutex
	classes    map[string]Class
	subjects   map[string]Subject
	years      map[string]AcademicYear
	categories map[string]AssessmentCategory
}

func NewSessionCatalog(cat Catalog, schoolID string) *SessionCatalog {
	return &SessionCatalog{cat: cat, schoolID: schoolID}
}

func (sc *SessionCatalog) SchoolID() string { return sc.schoolID }

func (sc *SessionCatalog) loadClasses(ctx context.Context) (map[string]Class, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.classes != nil {
		return sc.classes, nil
	}
	classes, err := sc.cat.Classes(ctx, sc.schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "cat.Classes()")
	}
	sc.classes = make(map[string]Class, len(classes))
	for _, c := range classes {
		sc.classes[c.ID] = c
	}
	return sc.classes, nil
}

func (sc *SessionCatalog) loadSubjects(ctx context.Context) (map[string]Subject, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.subjects != nil {
		return sc.subjects, nil
	}
	subjects, err := sc.cat.Subjects(ctx, sc.schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "cat.Subjects()")
	}
	sc.subjects = make(map[string]Subject, len(subjects))
	for _, s := range subjects {
		sc.subjects[s.ID] = s
	}
	return sc.subjects, nil
}

func (sc *SessionCatalog) loadYears(ctx context.Context) (map[string]AcademicYear, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.years != nil {
		return sc.years, nil
	}
	years, err := sc.cat.AcademicYears(ctx, sc.schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "cat.AcademicYears()")
	}
	sc.years = make(map[string]AcademicYear, len(years))
	for _, y := range years {
		sc.years[y.ID] = y
	}
	return sc.years, nil
}

func (sc *SessionCatalog) loadCategories(ctx context.Context) (map[string]AssessmentCategory, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.categories != nil {
		return sc.categories, nil
	}
	categories, err := sc.cat.AssessmentCategories(ctx, sc.schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "cat.AssessmentCategories()")
	}
	sc.categories = make(map[string]AssessmentCategory, len(categories))
	for _, c := range categories {
		sc.categories[c.ID] = c
	}
	return sc.categories, nil
}

// Classes returns the school's classes sorted the way the catalog lists them.
func (sc *SessionCatalog) Classes(ctx context.Context) ([]Class, error) {
	classes, err := sc.cat.Classes(ctx, sc.schoolID)
	return classes, errors.Wrap(err, "cat.Classes()")
}

// ClassName resolves a class id. On a miss the raw id is returned with a warning.
func (sc *SessionCatalog) ClassName(ctx context.Context, id string) (string, *ResolutionWarning) {
	classes, err := sc.loadClasses(ctx)
	if err == nil {
		if c, ok := classes[id]; ok {
			return c.Name, nil
		}
	}
	return id, &ResolutionWarning{Kind: "class", ID: id}
}

// SubjectName resolves a subject id. On a miss the raw id is returned with a warning.
func (sc *SessionCatalog) SubjectName(ctx context.Context, id string) (string, *ResolutionWarning) {
	subjects, err := sc.loadSubjects(ctx)
	if err == nil {
		if s, ok := subjects[id]; ok {
			return s.Name, nil
		}
	}
	return id, &ResolutionWarning{Kind: "subject", ID: id}
}

// AcademicYear resolves an academic year id.
func (sc *SessionCatalog) AcademicYear(ctx context.Context, id string) (AcademicYear, *ResolutionWarning) {
	years, err := sc.loadYears(ctx)
	if err == nil {
		if y, ok := years[id]; ok {
			return y, nil
		}
	}
	return AcademicYear{ID: id, Name: id}, &ResolutionWarning{Kind: "academic_year", ID: id}
}

// TermName resolves a term of an academic year.
func (sc *SessionCatalog) TermName(ctx context.Context, yearID, termID string) (string, *ResolutionWarning) {
	year, w := sc.AcademicYear(ctx, yearID)
	if w == nil {
		for _, t := range year.Terms {
			if t.ID == termID {
				return t.Name, nil
			}
		}
	}
	return termID, &ResolutionWarning{Kind: "term", ID: termID}
}

// Category resolves an assessment category id.
func (sc *SessionCatalog) Category(ctx context.Context, id string) (AssessmentCategory, *ResolutionWarning) {
	categories, err := sc.loadCategories(ctx)
	if err == nil {
		if c, ok := categories[id]; ok {
			return c, nil
		}
	}
	return AssessmentCategory{ID: id, Name: id}, &ResolutionWarning{Kind: "assessment_category", ID: id}
}

// TeacherClassIDs maps the class names assigned to a teacher to class ids.
// Names with no matching class are dropped.
func (sc *SessionCatalog) TeacherClassIDs(ctx context.Context, teacherID string) ([]string, error) {
	names, err := sc.cat.TeacherClasses(ctx, sc.schoolID, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "cat.TeacherClasses()")
	}
	classes, err := sc.loadClasses(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(classes))
	for _, c := range classes {
		byName[c.Name] = c.ID
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
