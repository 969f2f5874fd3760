package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	_ "github.com/lib/pq"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
	"github.com/trezcool/examroutine/storage/catalog"
	"github.com/trezcool/examroutine/storage/database"
	inmemdb "github.com/trezcool/examroutine/storage/database/inmem"
)

//go:embed testdata/catalog.yaml
var catalogYAML []byte

var (
	Admin    = exam.Actor{ID: "a-1", Username: "admin", SchoolID: "s1", IsAdmin: true}
	Teacher  = exam.Actor{ID: "t-1", Username: "teacher", SchoolID: "s1", IsTeacher: true}
	Teacher2 = exam.Actor{ID: "t-2", Username: "teacher2", SchoolID: "s1", IsTeacher: true}
)

// Catalog returns the fixture catalog: school s1 with classes c1..c3 and subjects math, eng, sci, art.
func Catalog(t testing.TB) *catalog.FileCatalog {
	t.Helper()
	cat, err := catalog.Parse(catalogYAML)
	if err != nil {
		t.Fatalf("catalog.Parse() failed: %v", err)
	}
	return cat
}

func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		AppName:   "Masomo Exams",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
		Exam: core.ExamConfig{
			DefaultExamTime:       "09:00",
			DefaultDuration:       180,
			DefaultMaxMarks:       100,
			DefaultPassPercentage: 40,
			MergeMaxRetries:       3,
		},
	}
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	exam.InitValidators(validate, translator)
	return validate, translator
}

// NewService wires an exam service over an in-memory store and the fixture catalog.
func NewService(t testing.TB, logger core.Logger, metrics exam.Metrics) (exam.Service, *inmemdb.DB) {
	t.Helper()
	db := inmemdb.Open()
	validate, translator := NewValidator()
	svc := exam.NewService(exam.Deps{
		Repo:       inmemdb.NewExamRepository(db),
		Catalog:    Catalog(t),
		Logger:     logger,
		Metrics:    metrics,
		Validate:   validate,
		Translator: translator,
		Conf:       NewConfig(),
	})
	return svc, db
}

func Entry(subjectID, subjectName, date string) exam.RoutineEntry {
	return exam.RoutineEntry{
		SubjectID:      subjectID,
		SubjectName:    subjectName,
		AssessmentMode: exam.ModeMarks,
		MaxMarks:       100,
		PassPercentage: 40,
		ExamDate:       date,
		ExamTime:       "09:00",
		Duration:       180,
	}
}

// NewExam returns a valid exam of school s1 targeting c1..c3.
func NewExam(name string) exam.Exam {
	return exam.Exam{
		SchoolID:             "s1",
		Name:                 name,
		AcademicYearID:       "y2024",
		AssessmentCategoryID: "final",
		TargetClasses:        []string{"c1", "c2", "c3"},
		StartDate:            "2024-03-01",
		Subjects: []exam.RoutineEntry{
			Entry("math", "Mathematics", "2024-03-02"),
			Entry("eng", "English", "2024-03-01"),
		},
	}
}

func CreateExam(t testing.TB, svc exam.Service, ex exam.Exam) exam.Exam {
	t.Helper()
	created, err := svc.Create(context.Background(), Admin, ex)
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return created
}

// PrepareDB opens the database named by TEST_DATABASE_URL and migrates it.
// The test is skipped when the variable is not set.
func PrepareDB(t testing.TB) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	ctx := context.Background()
	if err = database.Ping(ctx, db); err != nil {
		t.Fatalf("database.Ping() failed: %v", err)
	}
	if err = database.Migrate(ctx, db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

func ResetDB(t testing.TB, db *sql.DB) {
	t.Helper()
	q := `TRUNCATE exams, classes, subjects, academic_years, terms, assessment_categories, teacher_classes`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func IntPtr(i int) *int { return &i }
