package exam

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core"
)

type (
	Repository interface {
		CreateExam(ctx context.Context, ex Exam) (Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		// QueryExams applies AND operation on available QueryFilter fields.
		QueryExams(ctx context.Context, filter QueryFilter) ([]Exam, error)
		// UpdateExam replaces the whole record; the last write wins.
		UpdateExam(ctx context.Context, ex Exam) (Exam, error)
		// UpdateClassRoutines only writes if the stored version still equals expectedVersion,
		// returning ErrVersionConflict otherwise.
		UpdateClassRoutines(ctx context.Context, id string, routines ClassRoutines, expectedVersion int64, updatedAt time.Time) (Exam, error)
		UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (Exam, error)
		UpdatePublished(ctx context.Context, id string, published bool, updatedAt time.Time) (Exam, error)
		DeleteExam(ctx context.Context, id string) error
	}

	// Metrics records engine activity.
	Metrics interface {
		StatusChanged(to Status)
		MergeAttempt(outcome string)
		CopyEntries(result string, n int)
		ValidationFailed()
	}

	Service interface {
		Settings() Settings
		// Session opens a catalog cache for one editing session.
		Session(schoolID string) *SessionCatalog
		NewEditor(actor Actor, ex Exam) *Editor
		OpenEditor(ctx context.Context, actor Actor, id string) (*Editor, error)

		Create(ctx context.Context, actor Actor, ex Exam) (Exam, error)
		Get(ctx context.Context, id string) (Exam, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Exam, error)
		Update(ctx context.Context, actor Actor, ex Exam) (Exam, error)
		Duplicate(ctx context.Context, actor Actor, id string) (Exam, error)
		Delete(ctx context.Context, actor Actor, id string) error
		DeleteMany(ctx context.Context, actor Actor, ids ...string) (int, error)

		SaveClassRoutines(ctx context.Context, actor Actor, id string, draft ClassRoutines) (Exam, error)
		CopyRoutine(ctx context.Context, actor Actor, id string, req CopyRequest) (CopySummary, error)

		Advance(ctx context.Context, actor Actor, id string) (Exam, error)
		Cancel(ctx context.Context, actor Actor, id string) (Exam, error)
		TogglePublished(ctx context.Context, actor Actor, id string) (Exam, error)

		Print(ctx context.Context, id, classID string) (Projection, error)
		Breakdowns(ctx context.Context, id string) ([]Advisory, error)
		CheckIntegrity(ctx context.Context, schoolID string) ([]Recovery, error)
	}

	Deps struct {
		Repo       Repository
		Catalog    Catalog
		Logger     core.Logger
		Metrics    Metrics // optional
		Validate   *validator.Validate
		Translator ut.Translator
		Conf       *core.Config
	}

	service struct {
		repo       Repository
		catalog    Catalog
		logger     core.Logger
		metrics    Metrics
		validate   *validator.Validate
		translator ut.Translator
		settings   Settings
		maxRetries int
		now        func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	svc := &service{
		repo:       deps.Repo,
		catalog:    deps.Catalog,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		validate:   deps.Validate,
		translator: deps.Translator,
		settings:   NewSettings(deps.Conf.Exam),
		maxRetries: deps.Conf.Exam.MergeMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if svc.metrics == nil {
		svc.metrics = nopMetrics{}
	}
	if svc.maxRetries < 0 {
		svc.maxRetries = 0
	}
	return svc
}

func (svc *service) Settings() Settings {
	return svc.settings
}

func (svc *service) Session(schoolID string) *SessionCatalog {
	return NewSessionCatalog(svc.catalog, schoolID)
}

func (svc *service) NewEditor(actor Actor, ex Exam) *Editor {
	schoolID := ex.SchoolID
	if schoolID == "" {
		schoolID = actor.SchoolID
	}
	return NewEditor(ex, svc.Session(schoolID), svc.settings)
}

func (svc *service) OpenEditor(ctx context.Context, actor Actor, id string) (*Editor, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc.NewEditor(actor, ex), nil
}

func (svc *service) Create(ctx context.Context, actor Actor, ex Exam) (Exam, error) {
	if ex.SchoolID == "" {
		ex.SchoolID = actor.SchoolID
	}
	if err := svc.prepare(ctx, &ex); err != nil {
		return Exam{}, err
	}
	now := svc.now()
	ex.ID = uuid.New().String()
	ex.Status = StatusDraft
	ex.IsPublished = false
	ex.CreatedBy = actor.String()
	ex.CreatedAt = now
	ex.UpdatedAt = now
	ex.Version = 0

	created, err := svc.repo.CreateExam(ctx, ex)
	if err != nil {
		return Exam{}, errors.Wrap(err, "repo.CreateExam()")
	}
	svc.logger.Info("exam created", map[string]interface{}{"exam": created.ID, "name": created.Name}, actor)
	return created, nil
}

func (svc *service) Get(ctx context.Context, id string) (Exam, error) {
	if err := checkArgs(vala.StringNotEmpty(id, "id")); err != nil {
		return Exam{}, err
	}
	return svc.repo.GetExam(ctx, id)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Exam, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryExams(ctx, filter)
}

// Update replaces the descriptive fields and the whole entry graph of an exam.
// Identity, audit fields, status and publication are kept from the stored record.
func (svc *service) Update(ctx context.Context, actor Actor, ex Exam) (Exam, error) {
	stored, err := svc.Get(ctx, ex.ID)
	if err != nil {
		return Exam{}, err
	}
	ex.SchoolID = stored.SchoolID
	if err := svc.prepare(ctx, &ex); err != nil {
		return Exam{}, err
	}
	ex.Status = stored.Status
	ex.IsPublished = stored.IsPublished
	ex.CreatedBy = stored.CreatedBy
	ex.CreatedAt = stored.CreatedAt
	ex.UpdatedAt = svc.now()

	updated, err := svc.repo.UpdateExam(ctx, ex)
	if err != nil {
		return Exam{}, errors.Wrap(err, "repo.UpdateExam()")
	}
	svc.logger.Info("exam updated", map[string]interface{}{"exam": updated.ID}, actor)
	return updated, nil
}

// Duplicate saves a DRAFT copy of an exam and its whole entry graph.
func (svc *service) Duplicate(ctx context.Context, actor Actor, id string) (Exam, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return svc.Create(ctx, actor, ex.Duplicate())
}

func (svc *service) Delete(ctx context.Context, actor Actor, id string) error {
	if err := checkArgs(vala.StringNotEmpty(id, "id")); err != nil {
		return err
	}
	if err := svc.repo.DeleteExam(ctx, id); err != nil {
		return err
	}
	svc.logger.Info("exam deleted", map[string]interface{}{"exam": id}, actor)
	return nil
}

// DeleteMany deletes each exam independently. It returns the number deleted and,
// when some deletes failed, a *BatchError; completed deletes are kept.
func (svc *service) DeleteMany(ctx context.Context, actor Actor, ids ...string) (int, error) {
	ids = core.CleanStrings(ids)
	berr := NewBatchError(len(ids))
	var deleted int
	for _, id := range ids {
		if err := svc.Delete(ctx, actor, id); err != nil {
			svc.logger.Error("exam delete failed", err, map[string]interface{}{"exam": id}, actor)
			berr.Add(id, err)
			continue
		}
		deleted++
	}
	if err := berr.ErrorOrNil(); err != nil {
		svc.logger.Error("exam batch delete partially failed", err, actor)
		return deleted, err
	}
	return deleted, nil
}

// SaveClassRoutines merges the given class routines into the stored exam.
// Classes not named in draft are left as stored. The record is re-read right before merging
// and the write is retried when another writer got in between.
func (svc *service) SaveClassRoutines(ctx context.Context, actor Actor, id string, draft ClassRoutines) (Exam, error) {
	draft = draft.Normalize()
	if err := checkArgs(
		vala.StringNotEmpty(id, "id"),
		vala.GreaterThan(len(draft), 0, "draft"),
	); err != nil {
		return Exam{}, err
	}

	ex, err := svc.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if err := svc.checkClassScope(ctx, actor, ex.SchoolID, draft.ClassIDs()); err != nil {
		return Exam{}, err
	}
	resolveRoutines(ctx, svc.Session(ex.SchoolID), draft, func(w *ResolutionWarning) {
		if w != nil {
			svc.logger.Warn("catalog reference not resolved", map[string]interface{}{"exam": id, "reference": w.String()})
		}
	})
	candidate := ex.Clone()
	candidate.ClassRoutines = MergeClassRoutines(ex.ClassRoutines, draft)
	if err := candidate.Validate(svc.validate, svc.translator); err != nil {
		svc.metrics.ValidationFailed()
		return Exam{}, err
	}

	saved, err := svc.mergeWithRetry(ctx, id, func(Exam) (ClassRoutines, bool) {
		return draft, true
	})
	if err != nil {
		return Exam{}, err
	}
	svc.logger.Info("class routines saved", map[string]interface{}{"exam": id, "classes": draft.ClassIDs()}, actor)
	return saved, nil
}

// CopyRoutine reconciles the routine of a source class into each target class, one target at a time.
// A failing target does not stop the others: the summary is returned together with a *BatchError.
func (svc *service) CopyRoutine(ctx context.Context, actor Actor, id string, req CopyRequest) (CopySummary, error) {
	targets := req.Targets()
	if err := checkArgs(
		vala.StringNotEmpty(id, "id"),
		vala.StringNotEmpty(req.SourceClassID, "source_class_id"),
		vala.GreaterThan(len(targets), 0, "target_class_ids"),
	); err != nil {
		return CopySummary{}, err
	}

	ex, err := svc.Get(ctx, id)
	if err != nil {
		return CopySummary{}, err
	}
	if err := svc.checkClassScope(ctx, actor, ex.SchoolID, append([]string{req.SourceClassID}, targets...)); err != nil {
		return CopySummary{}, err
	}

	src, _ := ex.ClassRoutines.Get(req.SourceClassID)
	var source []RoutineEntry
	for _, e := range src.Routine {
		if req.Includes(e) {
			source = append(source, e.Clone())
		}
	}
	if len(source) == 0 {
		return CopySummary{}, ErrEmptySource
	}

	sc := svc.Session(ex.SchoolID)
	summary := newCopySummary()
	berr := NewBatchError(len(targets))
	for _, target := range targets {
		var tally Tally
		_, err := svc.mergeWithRetry(ctx, id, func(cur Exam) (ClassRoutines, bool) {
			cr, ok := cur.ClassRoutines.Get(target)
			if !ok {
				name, w := sc.ClassName(ctx, target)
				if w != nil {
					svc.logger.Warn("catalog reference not resolved", map[string]interface{}{"exam": id, "reference": w.String()})
				}
				cr = ClassRoutine{ClassID: target, ClassName: name}
			}
			cr.Routine, tally = Reconcile(source, cr.Routine, target)
			return ClassRoutines{cr}, tally.Created+tally.Updated > 0
		})
		if err != nil {
			svc.logger.Error("routine copy failed", err, map[string]interface{}{"exam": id, "class": target}, actor)
			berr.Add(target, err)
			tally = Tally{Failed: len(source)}
		}
		summary.record(target, tally)
		svc.metrics.CopyEntries("created", tally.Created)
		svc.metrics.CopyEntries("updated", tally.Updated)
		svc.metrics.CopyEntries("unchanged", tally.Unchanged)
		svc.metrics.CopyEntries("failed", tally.Failed)
	}

	svc.logger.Info("routine copied", map[string]interface{}{
		"exam": id, "source": req.SourceClassID,
		"created": summary.Created, "updated": summary.Updated, "unchanged": summary.Unchanged, "failed": summary.Failed,
	}, actor)
	if err := berr.ErrorOrNil(); err != nil {
		return summary, err
	}
	return summary, nil
}

// mergeWithRetry re-reads the exam, merges the routines built from it and writes them
// conditionally on the version read.
func (svc *service) mergeWithRetry(ctx context.Context, id string, build func(cur Exam) (ClassRoutines, bool)) (Exam, error) {
	for attempt := 0; ; attempt++ {
		cur, err := svc.repo.GetExam(ctx, id)
		if err != nil {
			svc.metrics.MergeAttempt("error")
			return Exam{}, err
		}
		draft, changed := build(cur)
		if !changed {
			return cur, nil
		}
		merged := MergeClassRoutines(cur.ClassRoutines, draft)
		saved, err := svc.repo.UpdateClassRoutines(ctx, id, merged, cur.Version, svc.now())
		switch {
		case err == nil:
			svc.metrics.MergeAttempt("ok")
			return saved, nil
		case errors.Cause(err) == ErrVersionConflict:
			svc.metrics.MergeAttempt("conflict")
			if attempt >= svc.maxRetries {
				return Exam{}, err
			}
			svc.logger.Info("class routines changed concurrently, retrying", map[string]interface{}{"exam": id, "attempt": attempt + 1})
		default:
			svc.metrics.MergeAttempt("error")
			return Exam{}, errors.Wrap(err, "repo.UpdateClassRoutines()")
		}
		if err := ctx.Err(); err != nil {
			return Exam{}, err
		}
	}
}

// Advance moves the exam one step forward in its lifecycle.
func (svc *service) Advance(ctx context.Context, actor Actor, id string) (Exam, error) {
	return svc.transition(ctx, actor, id, Status.Advance)
}

// Cancel moves a non terminal exam to CANCELLED.
func (svc *service) Cancel(ctx context.Context, actor Actor, id string) (Exam, error) {
	return svc.transition(ctx, actor, id, Status.Cancel)
}

func (svc *service) transition(ctx context.Context, actor Actor, id string, next func(Status) Status) (Exam, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if ex.Status.IsTerminal() {
		return ex, ErrTerminalStatus
	}
	to := next(ex.Status)
	if !ex.Status.CanTransition(to) {
		return ex, ErrInvalidTransition
	}
	updated, err := svc.repo.UpdateStatus(ctx, id, to, svc.now())
	if err != nil {
		return Exam{}, errors.Wrap(err, "repo.UpdateStatus()")
	}
	svc.metrics.StatusChanged(to)
	svc.logger.Info("exam status changed", map[string]interface{}{"exam": id, "from": ex.Status, "to": to}, actor)
	return updated, nil
}

func (svc *service) TogglePublished(ctx context.Context, actor Actor, id string) (Exam, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	updated, err := svc.repo.UpdatePublished(ctx, id, !ex.IsPublished, svc.now())
	if err != nil {
		return Exam{}, errors.Wrap(err, "repo.UpdatePublished()")
	}
	svc.logger.Info("exam publication toggled", map[string]interface{}{"exam": id, "published": updated.IsPublished}, actor)
	return updated, nil
}

// Print projects the printable timetables of an exam, for every target class or only classID.
func (svc *service) Print(ctx context.Context, id, classID string) (Projection, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return Projection{}, err
	}
	if classID != "" && !ex.TargetsClass(classID) {
		if _, ok := ex.ClassRoutines.Get(classID); !ok {
			return Projection{}, core.NewArgumentError("class " + classID + " is not a target of this exam")
		}
	}
	proj := Project(ctx, ex, svc.Session(ex.SchoolID), svc.settings, classID)
	for _, w := range proj.Warnings {
		svc.logger.Warn("catalog reference not resolved", map[string]interface{}{"exam": id, "reference": w.String()})
	}
	return proj, nil
}

func (svc *service) Breakdowns(ctx context.Context, id string) ([]Advisory, error) {
	ex, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return CheckBreakdowns(ex), nil
}

func (svc *service) CheckIntegrity(ctx context.Context, schoolID string) ([]Recovery, error) {
	exams, err := svc.repo.QueryExams(ctx, QueryFilter{SchoolID: schoolID})
	if err != nil {
		return nil, errors.Wrap(err, "repo.QueryExams()")
	}
	return RecoverTargetClasses(exams), nil
}

// prepare resolves cached names, derives the end date and validates ex.
func (svc *service) prepare(ctx context.Context, ex *Exam) error {
	ex.Clean()
	if ex.EndDate == "" {
		if last := ex.LastExamDate(); last >= ex.StartDate {
			ex.EndDate = last
		}
	}
	if err := ex.Validate(svc.validate, svc.translator); err != nil {
		svc.metrics.ValidationFailed()
		return err
	}
	if ex.EndDate != "" && ex.EndDate < ex.StartDate {
		svc.metrics.ValidationFailed()
		msg := "end date must not be before start date"
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "end_date", Error: msg})
	}
	for _, w := range svc.resolveNames(ctx, ex) {
		svc.logger.Warn("catalog reference not resolved", map[string]interface{}{"exam": ex.ID, "reference": w.String()})
	}
	for _, adv := range CheckBreakdowns(*ex) {
		svc.logger.Debug("marks breakdown does not add up", map[string]interface{}{
			"exam": ex.ID, "class": adv.ClassID, "subject": adv.Subject,
			"theory": adv.Theory, "practical": adv.Practical, "max_marks": adv.MaxMarks,
		})
	}
	return nil
}

// resolveNames fills the cached display names of ex from the catalog.
func (svc *service) resolveNames(ctx context.Context, ex *Exam) []ResolutionWarning {
	sc := svc.Session(ex.SchoolID)
	var warnings []ResolutionWarning
	collect := func(w *ResolutionWarning) {
		if w != nil {
			warnings = append(warnings, *w)
		}
	}

	year, w := sc.AcademicYear(ctx, ex.AcademicYearID)
	collect(w)
	if w == nil || ex.AcademicYearName == "" {
		ex.AcademicYearName = year.Name
	}
	if ex.TermID != "" {
		name, w := sc.TermName(ctx, ex.AcademicYearID, ex.TermID)
		collect(w)
		if w == nil || ex.TermName == "" {
			ex.TermName = name
		}
	}
	cat, w := sc.Category(ctx, ex.AssessmentCategoryID)
	collect(w)
	if w == nil || ex.AssessmentCategoryName == "" {
		ex.AssessmentCategoryName = cat.Name
	}

	resolveEntries(ctx, sc, ex.Subjects, collect)
	resolveRoutines(ctx, sc, ex.ClassRoutines, collect)
	return warnings
}

// resolveEntries fills missing subject names.
func resolveEntries(ctx context.Context, sc *SessionCatalog, entries []RoutineEntry, collect func(*ResolutionWarning)) {
	for i := range entries {
		if entries[i].SubjectID == "" || entries[i].SubjectName != "" {
			continue
		}
		name, w := sc.SubjectName(ctx, entries[i].SubjectID)
		collect(w)
		entries[i].SubjectName = name
	}
}

// resolveRoutines fills missing class and subject names.
func resolveRoutines(ctx context.Context, sc *SessionCatalog, routines ClassRoutines, collect func(*ResolutionWarning)) {
	for i := range routines {
		if routines[i].ClassName == "" {
			name, w := sc.ClassName(ctx, routines[i].ClassID)
			collect(w)
			routines[i].ClassName = name
		}
		resolveEntries(ctx, sc, routines[i].Routine, collect)
	}
}

// checkClassScope only lets teachers touch the classes assigned to them.
func (svc *service) checkClassScope(ctx context.Context, actor Actor, schoolID string, classIDs []string) error {
	if actor.IsAdmin {
		return nil
	}
	if !actor.IsTeacher {
		return ErrClassNotAssigned
	}
	assigned, err := svc.Session(schoolID).TeacherClassIDs(ctx, actor.ID)
	if err != nil {
		return err
	}
	allowed := make(map[string]struct{}, len(assigned))
	for _, id := range assigned {
		allowed[id] = struct{}{}
	}
	for _, id := range classIDs {
		if _, ok := allowed[id]; !ok {
			return errors.Wrap(ErrClassNotAssigned, id)
		}
	}
	return nil
}

func checkArgs(checkers ...vala.Checker) error {
	if err := vala.BeginValidation().Validate(checkers...).Check(); err != nil {
		return core.NewArgumentError(err.Error())
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) StatusChanged(Status)    {}
func (nopMetrics) MergeAttempt(string)     {}
func (nopMetrics) CopyEntries(string, int) {}
func (nopMetrics) ValidationFailed()       {}
