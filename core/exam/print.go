package exam

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
)

// PrintedEntry is one line of a printable timetable.
type PrintedEntry struct {
	Date           string         `json:"date"`
	EndDate        string         `json:"end_date,omitempty"`
	Time           string         `json:"time"`
	Duration       int            `json:"duration"`
	SubjectID      string         `json:"subject_id"`
	Subject        string         `json:"subject"`
	Combined       []string       `json:"combined,omitempty"`
	AssessmentMode AssessmentMode `json:"assessment_mode"`
	MaxMarks       int            `json:"max_marks"`
	PassMarks      int            `json:"pass_marks"`
	Room           string         `json:"room,omitempty"`
	Examiner       string         `json:"examiner,omitempty"`
}

// PrintedRoutine is the timetable of one class, ordered by exam date.
type PrintedRoutine struct {
	ExamName         string         `json:"exam_name"`
	ClassID          string         `json:"class_id"`
	ClassName        string         `json:"class_name"`
	FromClassRoutine bool           `json:"from_class_routine"`
	Instructions     string         `json:"instructions,omitempty"`
	Entries          []PrintedEntry `json:"entries"`
}

// Projection is the printable view of an exam.
type Projection struct {
	Routines []PrintedRoutine    `json:"routines"`
	Warnings []ResolutionWarning `json:"warnings,omitempty"`
}

// Project builds the printable timetable of every target class of ex, or only of classID when set.
// The exam is read, never modified.
func Project(ctx context.Context, ex Exam, cat *SessionCatalog, settings Settings, classID string) Projection {
	var proj Projection
	warn := func(w *ResolutionWarning) {
		if w == nil {
			return
		}
		for _, existing := range proj.Warnings {
			if existing == *w {
				return
			}
		}
		proj.Warnings = append(proj.Warnings, *w)
	}

	classIDs := ex.TargetClasses
	if classID != "" {
		classIDs = []string{classID}
	}
	for _, id := range classIDs {
		entries, fromClass := ex.RoutineFor(id)
		className, w := cat.ClassName(ctx, id)
		if w != nil {
			if cr, ok := ex.ClassRoutines.Get(id); ok && cr.ClassName != "" {
				className = cr.ClassName
			} else {
				warn(w)
			}
		}
		pr := PrintedRoutine{
			ExamName:         ex.PrintName(),
			ClassID:          id,
			ClassName:        className,
			FromClassRoutine: fromClass,
			Instructions:     ex.Instructions,
			Entries:          make([]PrintedEntry, 0, len(entries)),
		}
		for _, e := range entries {
			pr.Entries = append(pr.Entries, projectEntry(ctx, e, cat, settings, warn))
		}
		sort.SliceStable(pr.Entries, func(i, j int) bool {
			return pr.Entries[i].Date < pr.Entries[j].Date
		})
		proj.Routines = append(proj.Routines, pr)
	}
	return proj
}

func projectEntry(ctx context.Context, e RoutineEntry, cat *SessionCatalog, settings Settings, warn func(*ResolutionWarning)) PrintedEntry {
	subject := e.Name()
	if e.SubjectID != "" && e.Title == "" {
		name, w := cat.SubjectName(ctx, e.SubjectID)
		if w == nil {
			subject = name
		} else if e.SubjectName == "" {
			warn(w)
		}
	}
	var combined []string
	for _, id := range e.CombinedSubjects {
		name, w := cat.SubjectName(ctx, id)
		warn(w)
		combined = append(combined, name)
	}
	examTime := e.ExamTime
	if settings.GlobalTimeMode() {
		examTime = settings.GlobalExamTime
	}
	return PrintedEntry{
		Date:           e.ExamDate,
		EndDate:        e.EndDate,
		Time:           examTime,
		Duration:       e.Duration,
		SubjectID:      e.SubjectID,
		Subject:        subject,
		Combined:       combined,
		AssessmentMode: e.AssessmentMode,
		MaxMarks:       e.MaxMarks,
		PassMarks:      e.PassMarks(),
		Room:           e.Room,
		Examiner:       e.Examiner,
	}
}

// SubjectLabel joins the subject with its combined subjects.
func (pe PrintedEntry) SubjectLabel() string {
	if len(pe.Combined) == 0 {
		return pe.Subject
	}
	return pe.Subject + " / " + strings.Join(pe.Combined, " / ")
}

// Lines renders the routine as plain text, truncating each line to width columns (0: no limit).
func (pr PrintedRoutine) Lines(width int) []string {
	lines := []string{
		fmt.Sprintf("%s - %s", pr.ExamName, pr.ClassName),
	}
	for _, e := range pr.Entries {
		date := e.Date
		if e.EndDate != "" {
			date += " to " + e.EndDate
		}
		marks := fmt.Sprintf("%d/%d", e.PassMarks, e.MaxMarks)
		if e.AssessmentMode == ModeGrade {
			marks = "graded"
		}
		line := fmt.Sprintf("%-10s  %-5s  %4dmin  %-8s  %s", date, e.Time, e.Duration, marks, e.SubjectLabel())
		if e.Room != "" {
			line += "  [" + e.Room + "]"
		}
		lines = append(lines, truncate(line, width))
	}
	return lines
}

// DiffRoutines returns a unified diff between two printed routines.
func DiffRoutines(a, b PrintedRoutine) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(a.Lines(0)),
		B:        withNewlines(b.Lines(0)),
		FromFile: a.ClassName,
		ToFile:   b.ClassName,
		Context:  2,
	})
	return diff, errors.Wrap(err, "difflib.GetUnifiedDiffString()")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
