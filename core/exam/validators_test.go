package exam

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examroutine/core"
)

func TestExam_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	InitValidators(validate, translator)

	tests := []struct {
		name      string
		edit      func(ex *Exam)
		wantField string
		wantMsg   string
	}{
		{
			name: "valid",
			edit: func(*Exam) {},
		},
		{
			name:      "everything missing names the exam name first",
			edit:      func(ex *Exam) { *ex = Exam{} },
			wantField: "name",
			wantMsg:   "exam name is required",
		},
		{
			name:      "blank name",
			edit:      func(ex *Exam) { ex.Name = "   " },
			wantField: "name",
			wantMsg:   "exam name is required",
		},
		{
			name:      "academic year before category",
			edit:      func(ex *Exam) { ex.AcademicYearID, ex.AssessmentCategoryID = "", "" },
			wantField: "academic_year_id",
			wantMsg:   "academic year is required",
		},
		{
			name:      "assessment category",
			edit:      func(ex *Exam) { ex.AssessmentCategoryID = "" },
			wantField: "assessment_category_id",
			wantMsg:   "assessment category is required",
		},
		{
			name:      "zero target classes",
			edit:      func(ex *Exam) { ex.TargetClasses = nil },
			wantField: "target_classes",
			wantMsg:   "at least one target class is required",
		},
		{
			name:      "blank target classes are dropped",
			edit:      func(ex *Exam) { ex.TargetClasses = []string{" ", ""} },
			wantField: "target_classes",
			wantMsg:   "at least one target class is required",
		},
		{
			name:      "start date",
			edit:      func(ex *Exam) { ex.StartDate = "" },
			wantField: "start_date",
			wantMsg:   "start date is required",
		},
		{
			name: "missing requirement wins over malformed entry",
			edit: func(ex *Exam) {
				ex.StartDate = ""
				ex.Subjects[0].ExamTime = "9am"
			},
			wantField: "start_date",
			wantMsg:   "start date is required",
		},
		{
			name:      "malformed start date",
			edit:      func(ex *Exam) { ex.StartDate = "01/03/2024" },
			wantField: "start_date",
			wantMsg:   "start_date must be a date formatted as yyyy-mm-dd",
		},
		{
			name:      "malformed entry time",
			edit:      func(ex *Exam) { ex.Subjects[1].ExamTime = "25:00" },
			wantField: "subjects[1].exam_time",
			wantMsg:   "subjects[1].exam_time: exam_time must be a time formatted as HH:MM",
		},
		{
			name:      "unknown assessment mode",
			edit:      func(ex *Exam) { ex.Subjects[0].AssessmentMode = "ORAL" },
			wantField: "subjects[0].assessment_mode",
			wantMsg:   "subjects[0].assessment_mode: assessment_mode must be one of MARKS, GRADE",
		},
		{
			name:      "zero max marks in marks mode",
			edit:      func(ex *Exam) { ex.Subjects[1].MaxMarks = 0 },
			wantField: "subjects[1].max_marks",
			wantMsg:   "subjects[1].max_marks: max_marks must be greater than 0 when marks are assessed",
		},
		{
			name: "zero max marks in a class routine",
			edit: func(ex *Exam) {
				e := entry("sci", "Science", "2024-03-05")
				e.MaxMarks = 0
				ex.ClassRoutines = ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{e}}}
			},
			wantField: "class_routines[0].routine[0].max_marks",
			wantMsg:   "class_routines[0].routine[0].max_marks: max_marks must be greater than 0 when marks are assessed",
		},
		{
			name: "graded entries need no max marks",
			edit: func(ex *Exam) {
				ex.Subjects[0].AssessmentMode = ModeGrade
				ex.Subjects[0].MaxMarks = 0
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := validExam()
			tt.edit(&ex)
			err := ex.Validate(validate, translator)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, tt.wantMsg, verr.Error())
			if assert.Len(t, verr.Fields, 1, "errors are aggregated into one") {
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			}
		})
	}
}
