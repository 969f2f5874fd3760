package exam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExam_RoutineFor(t *testing.T) {
	ex := validExam()
	ex.ClassRoutines = ClassRoutines{
		{ClassID: "c1", Routine: []RoutineEntry{entry("sci", "Science", "2024-03-05")}},
		{ClassID: "c2", Routine: []RoutineEntry{}},
	}

	tests := []struct {
		classID       string
		wantFromClass bool
		wantLen       int
	}{
		{"c1", true, 1},
		{"c2", false, 2},
		{"c3", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.classID, func(t *testing.T) {
			entries, fromClass := ex.RoutineFor(tt.classID)
			assert.Equal(t, tt.wantFromClass, fromClass)
			assert.Len(t, entries, tt.wantLen)
		})
	}
}

func TestExam_Duplicate(t *testing.T) {
	ex := validExam()
	ex.ID = "e1"
	ex.Status = StatusOngoing
	ex.IsPublished = true
	ex.CreatedBy = "admin"
	ex.CreatedAt = time.Now()
	ex.Version = 4
	ex.Subjects[0].TheoryMarks = intPtr(80)
	ex.ClassRoutines = ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{entry("sci", "Science", "2024-03-05")}}}

	dup := ex.Duplicate()
	assert.Empty(t, dup.ID)
	assert.Equal(t, "Mid Term (Copy)", dup.Name)
	assert.Equal(t, StatusDraft, dup.Status)
	assert.False(t, dup.IsPublished)
	assert.Zero(t, dup.Version)
	assert.True(t, dup.CreatedAt.IsZero())
	assert.Equal(t, ex.Subjects, dup.Subjects)
	assert.Equal(t, ex.ClassRoutines, dup.ClassRoutines)

	*dup.Subjects[0].TheoryMarks = 10
	dup.ClassRoutines[0].Routine[0].Room = "Lab"
	dup.TargetClasses[0] = "c9"
	assert.Equal(t, 80, *ex.Subjects[0].TheoryMarks, "entry graph is deep copied")
	assert.Empty(t, ex.ClassRoutines[0].Routine[0].Room)
	assert.Equal(t, "c1", ex.TargetClasses[0])
}

func TestExam_LastExamDate(t *testing.T) {
	ex := validExam()
	assert.Equal(t, "2024-03-02", ex.LastExamDate())

	ex.ClassRoutines = ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{calendarEntry("Trip", "2024-03-04", "2024-03-06")}}}
	assert.Equal(t, "2024-03-06", ex.LastExamDate())
}

func TestExam_Clean(t *testing.T) {
	ex := Exam{
		Name:          "  Finals ",
		TargetClasses: []string{" c1", "c2", "", "c1"},
		ClassRoutines: ClassRoutines{{ClassID: "c1"}, {ClassID: "c1", ClassName: "Grade 1"}},
	}
	ex.Clean()
	assert.Equal(t, "Finals", ex.Name)
	assert.Equal(t, []string{"c1", "c2"}, ex.TargetClasses)
	assert.Len(t, ex.ClassRoutines, 1)
}

func TestQueryFilter_Match(t *testing.T) {
	ex := validExam()
	ex.AssessmentCategoryName = "Final Exam"
	ex.Status = StatusScheduled

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{"empty", QueryFilter{}, true},
		{"school", QueryFilter{SchoolID: "s2"}, false},
		{"search name", QueryFilter{Search: "mid"}, true},
		{"search category", QueryFilter{Search: "FINAL"}, true},
		{"search miss", QueryFilter{Search: "quiz"}, false},
		{"status", QueryFilter{Statuses: []Status{StatusDraft, StatusScheduled}}, true},
		{"status miss", QueryFilter{Statuses: []Status{StatusCompleted}}, false},
		{"class", QueryFilter{ClassID: "c2"}, true},
		{"class miss", QueryFilter{ClassID: "c7"}, false},
		{"all", QueryFilter{SchoolID: "s1", Search: "term", Statuses: []Status{StatusScheduled}, ClassID: "c3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(ex))
		})
	}
}

func TestRecoverTargetClasses(t *testing.T) {
	ok := validExam()
	ok.ID = "ok"
	lost := validExam()
	lost.ID = "lost"
	lost.TargetClasses = nil
	lost.ClassRoutines = ClassRoutines{{ClassID: "c2"}, {ClassID: "c1"}}
	empty := validExam()
	empty.ID = "empty"
	empty.TargetClasses = nil

	got := RecoverTargetClasses([]Exam{ok, lost, empty})
	assert.Equal(t, []Recovery{{ExamID: "lost", ExamName: "Mid Term", TargetClasses: []string{"c2", "c1"}}}, got)
}
