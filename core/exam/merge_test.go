package exam

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMergeClassRoutines(t *testing.T) {
	math := entry("math", "Mathematics", "2024-03-02")
	eng := entry("eng", "English", "2024-03-03")
	sci := entry("sci", "Science", "2024-03-04")

	tests := []struct {
		name    string
		current ClassRoutines
		draft   ClassRoutines
		want    ClassRoutines
	}{
		{
			name:    "untouched classes are kept",
			current: ClassRoutines{{ClassID: "c1", ClassName: "Grade 1", Routine: []RoutineEntry{math}}},
			draft:   ClassRoutines{{ClassID: "c2", ClassName: "Grade 2", Routine: []RoutineEntry{eng}}},
			want: ClassRoutines{
				{ClassID: "c1", ClassName: "Grade 1", Routine: []RoutineEntry{math}},
				{ClassID: "c2", ClassName: "Grade 2", Routine: []RoutineEntry{eng}},
			},
		},
		{
			name: "drafted class is replaced in place",
			current: ClassRoutines{
				{ClassID: "c1", ClassName: "Grade 1", Routine: []RoutineEntry{math}},
				{ClassID: "c2", ClassName: "Grade 2", Routine: []RoutineEntry{eng}},
			},
			draft: ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{sci}}},
			want: ClassRoutines{
				{ClassID: "c1", ClassName: "Grade 1", Routine: []RoutineEntry{sci}},
				{ClassID: "c2", ClassName: "Grade 2", Routine: []RoutineEntry{eng}},
			},
		},
		{
			name:    "duplicates collapse",
			current: ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{math}}, {ClassID: "c1", Routine: []RoutineEntry{eng}}},
			draft:   ClassRoutines{{ClassID: "c2", Routine: []RoutineEntry{sci}}, {ClassID: "c2", Routine: []RoutineEntry{math}}},
			want: ClassRoutines{
				{ClassID: "c1", Routine: []RoutineEntry{eng}},
				{ClassID: "c2", Routine: []RoutineEntry{math}},
			},
		},
		{
			name:    "empty draft",
			current: ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{math}}},
			want:    ClassRoutines{{ClassID: "c1", Routine: []RoutineEntry{math}}},
		},
		{
			name:    "nothing stored yet",
			draft:   ClassRoutines{{ClassID: "c3", Routine: []RoutineEntry{}}},
			want:    ClassRoutines{{ClassID: "c3", Routine: []RoutineEntry{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := tt.current.Clone()
			draft := tt.draft.Clone()
			got := MergeClassRoutines(current, draft)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeClassRoutines() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.current, current, "current is not modified")
			assert.Equal(t, tt.draft, draft, "draft is not modified")

			seen := map[string]bool{}
			for _, cr := range got {
				assert.False(t, seen[cr.ClassID], "class %s appears twice", cr.ClassID)
				seen[cr.ClassID] = true
			}
		})
	}
}

func TestClassRoutines_Normalize(t *testing.T) {
	crs := ClassRoutines{
		{ClassID: "", ClassName: "orphan"},
		{ClassID: "c2", ClassName: "old"},
		{ClassID: "c1"},
		{ClassID: "c2", ClassName: "new"},
	}
	got := crs.Normalize()
	assert.Equal(t, []string{"c2", "c1"}, got.ClassIDs())
	assert.Equal(t, "new", got[0].ClassName)
}
