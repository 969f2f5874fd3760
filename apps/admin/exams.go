package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

type examAction func(ctx context.Context, actor exam.Actor, id string) (exam.Exam, error)

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) list(ctx context.Context, schoolID, search string, statuses []string, ordering string) error {
	filter := exam.QueryFilter{
		SchoolID:  schoolID,
		Search:    search,
		Orderings: core.ParseOrderings(ordering, exam.OrderingFields...),
	}
	for _, s := range statuses {
		st := exam.Status(strings.TrimSpace(s))
		if !st.IsValid() {
			return core.NewArgumentError(fmt.Sprintf("unknown status %q", s))
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	exams, err := cli.svc.Filter(ctx, filter)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPUBLISHED\tSTART\tEND")
	for _, ex := range exams {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", ex.ID, ex.PrintName(), ex.Status, ex.IsPublished, ex.StartDate, ex.EndDate)
	}
	return w.Flush()
}

func (cli *commandLine) show(ctx context.Context, id string) error {
	ex, err := cli.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return errors.Wrap(err, "json.MarshalIndent()")
	}
	cli.printf("%s\n", data)
	return nil
}

func (cli *commandLine) transition(ctx context.Context, action examAction, id string) error {
	ex, err := action(ctx, cliActor, id)
	if err != nil {
		return err
	}
	cli.printf("%s: status=%s published=%t\n", ex.PrintName(), ex.Status, ex.IsPublished)
	return nil
}

func (cli *commandLine) print(ctx context.Context, id, classID string) error {
	proj, err := cli.svc.Print(ctx, id, classID)
	if err != nil {
		return err
	}
	w := width()
	for i, pr := range proj.Routines {
		if i > 0 {
			cli.printf("\n")
		}
		for _, line := range pr.Lines(w) {
			cli.printf("%s\n", line)
		}
	}
	for _, warning := range proj.Warnings {
		cli.printf("warning: %s\n", warning)
	}
	return nil
}

func (cli *commandLine) diff(ctx context.Context, id, from, to string) error {
	routine := func(classID string) (exam.PrintedRoutine, error) {
		proj, err := cli.svc.Print(ctx, id, classID)
		if err != nil {
			return exam.PrintedRoutine{}, err
		}
		return proj.Routines[0], nil
	}
	a, err := routine(from)
	if err != nil {
		return err
	}
	b, err := routine(to)
	if err != nil {
		return err
	}
	diff, err := exam.DiffRoutines(a, b)
	if err != nil {
		return err
	}
	if diff == "" {
		cli.printf("no difference\n")
		return nil
	}
	cli.printf("%s", diff)
	return nil
}

func (cli *commandLine) copyRoutine(ctx context.Context, id string, req exam.CopyRequest) error {
	summary, err := cli.svc.CopyRoutine(ctx, cliActor, id, req)
	cli.printf("created=%d updated=%d unchanged=%d failed=%d\n",
		summary.Created, summary.Updated, summary.Unchanged, summary.Failed)
	return err
}

func (cli *commandLine) check(ctx context.Context, schoolID string) error {
	recoveries, err := cli.svc.CheckIntegrity(ctx, schoolID)
	if err != nil {
		return err
	}
	if len(recoveries) == 0 {
		cli.printf("no exam lost its target classes\n")
		return nil
	}
	for _, r := range recoveries {
		cli.printf("%s (%s): recoverable target classes %s\n", r.ExamName, r.ExamID, strings.Join(r.TargetClasses, ", "))
	}
	return nil
}
