package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/examroutine/core/exam"
)

type examRepository struct {
	db *examTable
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) CreateExam(_ context.Context, ex exam.Exam) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ex.Version = 1
	stored := ex.Clone()
	repo.db.table[ex.ID] = &stored
	return ex.Clone(), nil
}

func (repo *examRepository) GetExam(_ context.Context, id string) (exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ex, ok := repo.db.table[id]; ok {
		return ex.Clone(), nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

// QueryExams returns the matching exams, latest start date first unless the filter orders them.
func (repo *examRepository) QueryExams(_ context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exams := make([]exam.Exam, 0, len(repo.db.table))
	for _, ex := range repo.db.table {
		if filter.Match(*ex) {
			exams = append(exams, ex.Clone())
		}
	}
	exam.SortExams(exams, filter.EffectiveOrderings())
	return exams, nil
}

func (repo *examRepository) UpdateExam(_ context.Context, ex exam.Exam) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[ex.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	ex.Version = orig.Version + 1
	stored := ex.Clone()
	repo.db.table[ex.ID] = &stored
	return ex.Clone(), nil
}

func (repo *examRepository) UpdateClassRoutines(
	_ context.Context,
	id string,
	routines exam.ClassRoutines,
	expectedVersion int64,
	updatedAt time.Time,
) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ex, ok := repo.db.table[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	if ex.Version != expectedVersion {
		return exam.Exam{}, exam.ErrVersionConflict
	}
	ex.ClassRoutines = routines.Clone()
	ex.UpdatedAt = updatedAt
	ex.Version++
	return ex.Clone(), nil
}

func (repo *examRepository) UpdateStatus(_ context.Context, id string, status exam.Status, updatedAt time.Time) (exam.Exam, error) {
	return repo.update(id, updatedAt, func(ex *exam.Exam) { ex.Status = status })
}

func (repo *examRepository) UpdatePublished(_ context.Context, id string, published bool, updatedAt time.Time) (exam.Exam, error) {
	return repo.update(id, updatedAt, func(ex *exam.Exam) { ex.IsPublished = published })
}

func (repo *examRepository) update(id string, updatedAt time.Time, set func(ex *exam.Exam)) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ex, ok := repo.db.table[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	set(ex)
	ex.UpdatedAt = updatedAt
	ex.Version++
	return ex.Clone(), nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return exam.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
