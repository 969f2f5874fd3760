package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examroutine/core/exam"
)

// catalogRepository reads the institution catalog tables.
type catalogRepository struct {
	db *sqlx.DB
}

var _ exam.Catalog = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) exam.Catalog {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) Classes(ctx context.Context, schoolID string) ([]exam.Class, error) {
	classes := make([]exam.Class, 0)
	q := `SELECT id, name, sort_order AS "order" FROM classes WHERE school_id = $1 ORDER BY sort_order, name`
	if err := repo.db.SelectContext(ctx, &classes, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	return classes, nil
}

func (repo catalogRepository) Subjects(ctx context.Context, schoolID string) ([]exam.Subject, error) {
	subjects := make([]exam.Subject, 0)
	q := `SELECT id, name FROM subjects WHERE school_id = $1 ORDER BY name`
	if err := repo.db.SelectContext(ctx, &subjects, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	return subjects, nil
}

func (repo catalogRepository) AcademicYears(ctx context.Context, schoolID string) ([]exam.AcademicYear, error) {
	var rows []struct {
		ID       string      `db:"id"`
		Name     string      `db:"name"`
		IsActive bool        `db:"is_active"`
		TermID   null.String `db:"term_id"`
		TermName null.String `db:"term_name"`
	}
	q := `SELECT y.id, y.name, y.is_active, t.id AS term_id, t.name AS term_name
		FROM academic_years y LEFT JOIN terms t ON t.academic_year_id = y.id
		WHERE y.school_id = $1
		ORDER BY y.name DESC, t.name`
	if err := repo.db.SelectContext(ctx, &rows, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting academic years")
	}

	years := make([]exam.AcademicYear, 0)
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.ID]
		if !ok {
			i = len(years)
			index[r.ID] = i
			years = append(years, exam.AcademicYear{ID: r.ID, Name: r.Name, IsActive: r.IsActive})
		}
		if r.TermID.Valid {
			years[i].Terms = append(years[i].Terms, exam.Term{ID: r.TermID.String, Name: r.TermName.String})
		}
	}
	return years, nil
}

func (repo catalogRepository) AssessmentCategories(ctx context.Context, schoolID string) ([]exam.AssessmentCategory, error) {
	var rows []struct {
		ID             string   `db:"id"`
		Name           string   `db:"name"`
		Weightage      float64  `db:"weightage"`
		PassPercentage null.Int `db:"pass_percentage"`
	}
	q := `SELECT id, name, weightage, pass_percentage FROM assessment_categories WHERE school_id = $1 ORDER BY name`
	if err := repo.db.SelectContext(ctx, &rows, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting assessment categories")
	}
	cats := make([]exam.AssessmentCategory, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, exam.AssessmentCategory{
			ID:             r.ID,
			Name:           r.Name,
			Weightage:      r.Weightage,
			PassPercentage: r.PassPercentage.Ptr(),
		})
	}
	return cats, nil
}

func (repo catalogRepository) TeacherClasses(ctx context.Context, schoolID, teacherID string) ([]string, error) {
	names := make([]string, 0)
	q := `SELECT class_name FROM teacher_classes WHERE school_id = $1 AND teacher_id = $2 ORDER BY class_name`
	if err := repo.db.SelectContext(ctx, &names, q, schoolID, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting teacher classes")
	}
	return names, nil
}

// ImportCatalog replaces a school's catalog rows in a single transaction.
func ImportCatalog(ctx context.Context, db *sqlx.DB, schoolID string, cat exam.Catalog) (err error) {
	classes, err := cat.Classes(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "reading classes")
	}
	subjects, err := cat.Subjects(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "reading subjects")
	}
	years, err := cat.AcademicYears(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "reading academic years")
	}
	cats, err := cat.AssessmentCategories(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "reading assessment categories")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM classes WHERE school_id = $1`,
		`DELETE FROM subjects WHERE school_id = $1`,
		`DELETE FROM academic_years WHERE school_id = $1`,
		`DELETE FROM assessment_categories WHERE school_id = $1`,
	} {
		if _, err = tx.ExecContext(ctx, q, schoolID); err != nil {
			return errors.Wrap(err, "clearing catalog")
		}
	}
	for _, c := range classes {
		if _, err = tx.ExecContext(ctx, `INSERT INTO classes (id, school_id, name, sort_order) VALUES ($1, $2, $3, $4)`,
			c.ID, schoolID, c.Name, c.Order); err != nil {
			return errors.Wrap(err, "inserting class")
		}
	}
	for _, s := range subjects {
		if _, err = tx.ExecContext(ctx, `INSERT INTO subjects (id, school_id, name) VALUES ($1, $2, $3)`,
			s.ID, schoolID, s.Name); err != nil {
			return errors.Wrap(err, "inserting subject")
		}
	}
	for _, y := range years {
		if _, err = tx.ExecContext(ctx, `INSERT INTO academic_years (id, school_id, name, is_active) VALUES ($1, $2, $3, $4)`,
			y.ID, schoolID, y.Name, y.IsActive); err != nil {
			return errors.Wrap(err, "inserting academic year")
		}
		for _, t := range y.Terms {
			if _, err = tx.ExecContext(ctx, `INSERT INTO terms (id, academic_year_id, name) VALUES ($1, $2, $3)`,
				t.ID, y.ID, t.Name); err != nil {
				return errors.Wrap(err, "inserting term")
			}
		}
	}
	for _, c := range cats {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO assessment_categories (id, school_id, name, weightage, pass_percentage) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, schoolID, c.Name, c.Weightage, null.IntFromPtr(c.PassPercentage)); err != nil {
			return errors.Wrap(err, "inserting assessment category")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing catalog")
	}
	return nil
}

// AssignTeacherClasses replaces the class names assigned to a teacher.
func AssignTeacherClasses(ctx context.Context, db *sqlx.DB, schoolID, teacherID string, classNames []string) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM teacher_classes WHERE school_id = $1 AND teacher_id = $2`, schoolID, teacherID); err != nil {
		return errors.Wrap(err, "clearing teacher classes")
	}
	for _, name := range classNames {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO teacher_classes (school_id, teacher_id, class_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			schoolID, teacherID, name); err != nil {
			return errors.Wrap(err, "assigning teacher class")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing teacher classes")
	}
	return nil
}
