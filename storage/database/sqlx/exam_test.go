package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
	sqlxrepos "github.com/trezcool/examroutine/storage/database/sqlx"
	"github.com/trezcool/examroutine/testutil"
)

func prepare(t *testing.T) *sqlx.DB {
	return sqlx.NewDb(testutil.PrepareDB(t), "postgres")
}

func newExam(name, start string) exam.Exam {
	ex := testutil.NewExam(name)
	ex.ID = uuid.New().String()
	ex.StartDate = start
	ex.AssessmentCategoryName = "Final Exam"
	ex.Status = exam.StatusDraft
	ex.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	ex.UpdatedAt = ex.CreatedAt
	return ex
}

func TestExamRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewExamRepository(prepare(t))

	ex := newExam("Mid Term", "2024-03-01")
	ex.TermID = "t1"
	ex.Instructions = "No phones"
	ex.Subjects[0].TheoryMarks = testutil.IntPtr(70)
	created, err := repo.CreateExam(ctx, ex)
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.Version)

	got, err := repo.GetExam(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Subjects, got.Subjects)
	assert.Equal(t, "t1", got.TermID)
	assert.Equal(t, "No phones", got.Instructions)
	assert.Empty(t, got.EndDate)
	assert.Nil(t, got.ClassRoutines)

	_, err = repo.GetExam(ctx, uuid.New().String())
	assert.ErrorIs(t, err, exam.ErrNotFound)

	got.Name = "Mid Term Exam"
	updated, err := repo.UpdateExam(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Mid Term Exam", updated.Name)
	assert.EqualValues(t, 2, updated.Version)

	st, err := repo.UpdateStatus(ctx, ex.ID, exam.StatusScheduled, time.Now())
	require.NoError(t, err)
	assert.Equal(t, exam.StatusScheduled, st.Status)
	assert.EqualValues(t, 3, st.Version)

	pub, err := repo.UpdatePublished(ctx, ex.ID, true, time.Now())
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)

	require.NoError(t, repo.DeleteExam(ctx, ex.ID))
	assert.ErrorIs(t, repo.DeleteExam(ctx, ex.ID), exam.ErrNotFound)
}

func TestExamRepository_UpdateClassRoutines(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewExamRepository(prepare(t))

	created, err := repo.CreateExam(ctx, newExam("Finals", "2024-06-01"))
	require.NoError(t, err)

	routines := exam.ClassRoutines{{ClassID: "c1", ClassName: "Grade 1", Routine: []exam.RoutineEntry{
		testutil.Entry("sci", "Science", "2024-06-03"),
	}}}
	saved, err := repo.UpdateClassRoutines(ctx, created.ID, routines, created.Version, time.Now())
	require.NoError(t, err)
	assert.Equal(t, routines, saved.ClassRoutines)
	assert.Equal(t, created.Version+1, saved.Version)

	_, err = repo.UpdateClassRoutines(ctx, created.ID, nil, created.Version, time.Now())
	assert.ErrorIs(t, err, exam.ErrVersionConflict, "stale version")

	_, err = repo.UpdateClassRoutines(ctx, uuid.New().String(), nil, 1, time.Now())
	assert.ErrorIs(t, err, exam.ErrNotFound)
}

func TestExamRepository_QueryExams(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewExamRepository(prepare(t))

	march := newExam("Mid Term", "2024-03-01")
	june := newExam("Finals", "2024-06-01")
	june.TargetClasses = []string{"c3"}
	june.Status = exam.StatusScheduled
	other := newExam("Quiz", "2024-04-01")
	other.SchoolID = "s2"
	for _, ex := range []exam.Exam{march, june, other} {
		_, err := repo.CreateExam(ctx, ex)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter exam.QueryFilter
		want   []string
	}{
		{"school, latest first", exam.QueryFilter{SchoolID: "s1"}, []string{"Finals", "Mid Term"}},
		{"search category", exam.QueryFilter{SchoolID: "s1", Search: "final ex"}, []string{"Finals", "Mid Term"}},
		{"search name", exam.QueryFilter{Search: "QUIZ"}, []string{"Quiz"}},
		{"status", exam.QueryFilter{Statuses: []exam.Status{exam.StatusScheduled}}, []string{"Finals"}},
		{"class", exam.QueryFilter{SchoolID: "s1", ClassID: "c1"}, []string{"Mid Term"}},
		{"ordering", exam.QueryFilter{Orderings: core.ParseOrderings("name", exam.OrderingFields...)}, []string{"Finals", "Mid Term", "Quiz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exams, err := repo.QueryExams(ctx, tt.filter)
			require.NoError(t, err)
			names := make([]string, 0, len(exams))
			for _, ex := range exams {
				names = append(names, ex.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	db := prepare(t)
	fixture := testutil.Catalog(t)
	require.NoError(t, sqlxrepos.ImportCatalog(ctx, db, "s1", fixture))
	for teacher, names := range fixture.Teachers("s1") {
		require.NoError(t, sqlxrepos.AssignTeacherClasses(ctx, db, "s1", teacher, names))
	}
	cat := sqlxrepos.NewCatalogRepository(db)

	classes, err := cat.Classes(ctx, "s1")
	require.NoError(t, err)
	want, _ := fixture.Classes(ctx, "s1")
	assert.Equal(t, want, classes)

	years, err := cat.AcademicYears(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Len(t, years[0].Terms, 2)

	cats, err := cat.AssessmentCategories(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, cats, 3)
	for _, c := range cats {
		if c.ID == "quiz" {
			assert.Nil(t, c.PassPercentage)
		}
	}

	names, err := cat.TeacherClasses(ctx, "s1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Grade 1", "Grade 2"}, names)

	require.NoError(t, sqlxrepos.ImportCatalog(ctx, db, "s1", fixture), "re-import replaces rows")
	subjects, err := cat.Subjects(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, subjects, 4)
}
