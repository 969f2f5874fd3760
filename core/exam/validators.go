package exam

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core"
)

var (
	assessModeTag  = "assessmode"
	assessModeText = "{0} must be one of MARKS, GRADE"

	marksMaxTag  = "marksmax"
	marksMaxText = "{0} must be greater than 0 when marks are assessed"

	// reported by the struct level rule, at most once per exam
	requirementTag = "requirement"

	requirementTexts = map[string]string{
		"name":                   "exam name is required",
		"academic_year_id":       "academic year is required",
		"assessment_category_id": "assessment category is required",
		"target_classes":         "at least one target class is required",
		"start_date":             "start date is required",
	}
)

// InitValidators registers the exam validation rules on top of the core ones.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.InitValidators(validate, translator)

	_ = validate.RegisterValidation(assessModeTag, func(fl validator.FieldLevel) bool {
		return AssessmentMode(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, assessModeTag, assessModeText)

	_ = validate.RegisterValidation(marksMaxTag, marksMaxValidation)
	core.RegisterCustomTranslation(validate, translator, marksMaxTag, marksMaxText)

	validate.RegisterStructValidation(examStructLevel, Exam{})
}

// marksMaxValidation requires positive max marks on entries assessed in MARKS mode.
func marksMaxValidation(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	e, ok := parent.Interface().(RoutineEntry)
	if !ok {
		return true
	}
	return e.AssessmentMode != ModeMarks || e.MaxMarks > 0
}

// examStructLevel reports the first missing requirement, in a fixed order.
func examStructLevel(sl validator.StructLevel) {
	ex := sl.Current().Interface().(Exam)
	switch {
	case strings.TrimSpace(ex.Name) == "":
		sl.ReportError(ex.Name, "name", "Name", requirementTag, "")
	case ex.AcademicYearID == "":
		sl.ReportError(ex.AcademicYearID, "academic_year_id", "AcademicYearID", requirementTag, "")
	case ex.AssessmentCategoryID == "":
		sl.ReportError(ex.AssessmentCategoryID, "assessment_category_id", "AssessmentCategoryID", requirementTag, "")
	case len(ex.TargetClasses) == 0:
		sl.ReportError(ex.TargetClasses, "target_classes", "TargetClasses", requirementTag, "")
	case ex.StartDate == "":
		sl.ReportError(ex.StartDate, "start_date", "StartDate", requirementTag, "")
	}
}

// Validate cleans the exam and checks it can be saved.
// Any failure is returned as a single *core.ValidationError naming the first problem found:
// missing requirements come before malformed values.
func (ex *Exam) Validate(validate *validator.Validate, translator ut.Translator) error {
	ex.Clean()

	err := validate.Struct(ex)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validate.Struct()")
	}

	fe := verrs[0]
	for _, e := range verrs {
		if e.Tag() == requirementTag {
			fe = e
			break
		}
	}

	field := strings.TrimPrefix(fe.Namespace(), "Exam.")
	msg, ok := requirementTexts[fe.Field()]
	if !ok || fe.Tag() != requirementTag {
		msg = fe.Translate(translator)
		if field != fe.Field() {
			msg = field + ": " + msg
		}
	}
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
}
