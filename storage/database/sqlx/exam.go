package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

type (
	examRow struct {
		ID                   string         `db:"id"`
		SchoolID             string         `db:"school_id"`
		Name                 string         `db:"name"`
		DisplayName          string         `db:"display_name"`
		Status               string         `db:"status"`
		IsPublished          bool           `db:"is_published"`
		StartDate            string         `db:"start_date"`
		EndDate              null.String    `db:"end_date"`
		AcademicYearID       string         `db:"academic_year_id"`
		TermID               null.String    `db:"term_id"`
		AssessmentCategoryID string         `db:"assessment_category_id"`
		TargetClasses        types.JSONText `db:"target_classes"`
		Subjects             types.JSONText `db:"subjects"`
		ClassRoutines        types.JSONText `db:"class_routines"`
		Doc                  types.JSONText `db:"doc"`
		Version              int64          `db:"version"`
		CreatedBy            string         `db:"created_by"`
		CreatedAt            time.Time      `db:"created_at"`
		UpdatedAt            time.Time      `db:"updated_at"`
	}

	// examDoc holds the resolved display names, which are never queried on directly.
	examDoc struct {
		AcademicYearName       string `json:"academic_year_name,omitempty"`
		TermName               string `json:"term_name,omitempty"`
		AssessmentCategoryName string `json:"assessment_category_name,omitempty"`
		Instructions           string `json:"instructions,omitempty"`
	}
)

const examColumns = `id, school_id, name, display_name, status, is_published, start_date, end_date,
	academic_year_id, term_id, assessment_category_id, target_classes, subjects, class_routines, doc,
	version, created_by, created_at, updated_at`

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) exam.Repository {
	return &examRepository{db: db}
}

func marshalJSON(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}

func (repo examRepository) toRow(ex exam.Exam) (examRow, error) {
	row := examRow{
		ID:                   ex.ID,
		SchoolID:             ex.SchoolID,
		Name:                 ex.Name,
		DisplayName:          ex.DisplayName,
		Status:               string(ex.Status),
		IsPublished:          ex.IsPublished,
		StartDate:            ex.StartDate,
		EndDate:              null.NewString(ex.EndDate, ex.EndDate != ""),
		AcademicYearID:       ex.AcademicYearID,
		TermID:               null.NewString(ex.TermID, ex.TermID != ""),
		AssessmentCategoryID: ex.AssessmentCategoryID,
		Version:              ex.Version,
		CreatedBy:            ex.CreatedBy,
		CreatedAt:            ex.CreatedAt.UTC(),
		UpdatedAt:            ex.UpdatedAt.UTC(),
	}

	targets := ex.TargetClasses
	if targets == nil {
		targets = []string{}
	}
	subjects := ex.Subjects
	if subjects == nil {
		subjects = []exam.RoutineEntry{}
	}
	routines := ex.ClassRoutines
	if routines == nil {
		routines = exam.ClassRoutines{}
	}
	doc := examDoc{
		AcademicYearName:       ex.AcademicYearName,
		TermName:               ex.TermName,
		AssessmentCategoryName: ex.AssessmentCategoryName,
		Instructions:           ex.Instructions,
	}

	var err error
	if row.TargetClasses, err = marshalJSON(targets); err != nil {
		return examRow{}, errors.Wrap(err, "encoding target classes")
	}
	if row.Subjects, err = marshalJSON(subjects); err != nil {
		return examRow{}, errors.Wrap(err, "encoding subjects")
	}
	if row.ClassRoutines, err = marshalJSON(routines); err != nil {
		return examRow{}, errors.Wrap(err, "encoding class routines")
	}
	if row.Doc, err = marshalJSON(doc); err != nil {
		return examRow{}, errors.Wrap(err, "encoding exam doc")
	}
	return row, nil
}

func (repo examRepository) fromRow(row examRow) (exam.Exam, error) {
	ex := exam.Exam{
		ID:                   row.ID,
		SchoolID:             row.SchoolID,
		Name:                 row.Name,
		DisplayName:          row.DisplayName,
		Status:               exam.Status(row.Status),
		IsPublished:          row.IsPublished,
		StartDate:            row.StartDate,
		EndDate:              row.EndDate.String,
		AcademicYearID:       row.AcademicYearID,
		TermID:               row.TermID.String,
		AssessmentCategoryID: row.AssessmentCategoryID,
		Version:              row.Version,
		CreatedBy:            row.CreatedBy,
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
	var doc examDoc
	if err := row.TargetClasses.Unmarshal(&ex.TargetClasses); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding target classes")
	}
	if err := row.Subjects.Unmarshal(&ex.Subjects); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding subjects")
	}
	if err := row.ClassRoutines.Unmarshal(&ex.ClassRoutines); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding class routines")
	}
	if err := row.Doc.Unmarshal(&doc); err != nil {
		return exam.Exam{}, errors.Wrap(err, "decoding exam doc")
	}
	if len(ex.ClassRoutines) == 0 {
		ex.ClassRoutines = nil
	}
	ex.AcademicYearName = doc.AcademicYearName
	ex.TermName = doc.TermName
	ex.AssessmentCategoryName = doc.AssessmentCategoryName
	ex.Instructions = doc.Instructions
	return ex, nil
}

// trapNoRowsErr maps psql "no rows" err to exam.ErrNotFound
func (repo examRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return exam.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo examRepository) getOne(ctx context.Context, msg, query string, args ...interface{}) (exam.Exam, error) {
	var row examRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return exam.Exam{}, repo.trapNoRowsErr(err, msg)
	}
	return repo.fromRow(row)
}

func (repo examRepository) CreateExam(ctx context.Context, ex exam.Exam) (exam.Exam, error) {
	ex.Version = 1
	row, err := repo.toRow(ex)
	if err != nil {
		return exam.Exam{}, err
	}
	q := `INSERT INTO exams (` + examColumns + `) VALUES (
		:id, :school_id, :name, :display_name, :status, :is_published, :start_date, :end_date,
		:academic_year_id, :term_id, :assessment_category_id, :target_classes, :subjects, :class_routines, :doc,
		:version, :created_by, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return ex, nil
}

func (repo examRepository) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	return repo.getOne(ctx, "selecting exam", `SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
}

// buildQuery renders the WHERE and ORDER BY clauses for a filter.
func buildQuery(filter exam.QueryFilter) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, "(name ILIKE "+p+" OR doc->>'assessment_category_name' ILIKE "+p+")")
	}
	if len(filter.Statuses) > 0 {
		sts := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			sts = append(sts, string(st))
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(sts))+")")
	}
	if filter.ClassID != "" {
		contains, err := json.Marshal([]string{filter.ClassID})
		if err != nil {
			return "", nil, errors.Wrap(err, "encoding class filter")
		}
		conds = append(conds, "target_classes @> "+arg(string(contains))+"::jsonb")
	}

	var sb strings.Builder
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	ords := make([]string, 0, len(filter.EffectiveOrderings()))
	for _, ord := range filter.EffectiveOrderings() {
		if !isOrderingField(ord.Field) {
			continue
		}
		ords = append(ords, ord.String())
	}
	ords = append(ords, core.DBOrdering{Field: "id", Ascending: true}.String())
	sb.WriteString(strings.Join(ords, ", "))
	return sb.String(), args, nil
}

func isOrderingField(field string) bool {
	for _, f := range exam.OrderingFields {
		if f == field {
			return true
		}
	}
	return false
}

func (repo examRepository) QueryExams(ctx context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	clauses, args, err := buildQuery(filter)
	if err != nil {
		return nil, err
	}
	var rows []examRow
	if err = repo.db.SelectContext(ctx, &rows, `SELECT `+examColumns+` FROM exams`+clauses, args...); err != nil {
		return nil, errors.Wrap(err, "selecting exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		ex, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		exams = append(exams, ex)
	}
	return exams, nil
}

func (repo examRepository) UpdateExam(ctx context.Context, ex exam.Exam) (exam.Exam, error) {
	row, err := repo.toRow(ex)
	if err != nil {
		return exam.Exam{}, err
	}
	q := `UPDATE exams SET
		name = $2, display_name = $3, status = $4, is_published = $5, start_date = $6, end_date = $7,
		academic_year_id = $8, term_id = $9, assessment_category_id = $10, target_classes = $11,
		subjects = $12, class_routines = $13, doc = $14, updated_at = $15, version = version + 1
		WHERE id = $1
		RETURNING ` + examColumns
	return repo.getOne(ctx, "updating exam", q,
		row.ID, row.Name, row.DisplayName, row.Status, row.IsPublished, row.StartDate, row.EndDate,
		row.AcademicYearID, row.TermID, row.AssessmentCategoryID, row.TargetClasses,
		row.Subjects, row.ClassRoutines, row.Doc, row.UpdatedAt,
	)
}

func (repo examRepository) UpdateClassRoutines(
	ctx context.Context,
	id string,
	routines exam.ClassRoutines,
	expectedVersion int64,
	updatedAt time.Time,
) (exam.Exam, error) {
	if routines == nil {
		routines = exam.ClassRoutines{}
	}
	data, err := marshalJSON(routines)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "encoding class routines")
	}
	q := `UPDATE exams SET class_routines = $2, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $4
		RETURNING ` + examColumns
	ex, err := repo.getOne(ctx, "updating class routines", q, id, data, updatedAt.UTC(), expectedVersion)
	if !errors.Is(err, exam.ErrNotFound) {
		return ex, err
	}

	// nothing written: tell a missing exam from a stale version
	var found bool
	if err = repo.db.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM exams WHERE id = $1)`, id); err != nil {
		return exam.Exam{}, errors.Wrap(err, "checking exam")
	}
	if found {
		return exam.Exam{}, exam.ErrVersionConflict
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo examRepository) UpdateStatus(ctx context.Context, id string, status exam.Status, updatedAt time.Time) (exam.Exam, error) {
	q := `UPDATE exams SET status = $2, updated_at = $3, version = version + 1 WHERE id = $1 RETURNING ` + examColumns
	return repo.getOne(ctx, "updating exam status", q, id, string(status), updatedAt.UTC())
}

func (repo examRepository) UpdatePublished(ctx context.Context, id string, published bool, updatedAt time.Time) (exam.Exam, error) {
	q := `UPDATE exams SET is_published = $2, updated_at = $3, version = version + 1 WHERE id = $1 RETURNING ` + examColumns
	return repo.getOne(ctx, "updating exam publication", q, id, published, updatedAt.UTC())
}

func (repo examRepository) DeleteExam(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n == 0 {
		return exam.ErrNotFound
	}
	return nil
}
