package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/examroutine/core/exam"
)

var (
	termSizeFunc = term.GetSize // mockable

	errHelp = errors.New("help provided")

	// cliActor is who the admin CLI acts as.
	cliActor = exam.Actor{ID: "admin-cli", Username: "admin-cli", IsAdmin: true}
)

type commandLine struct {
	svc   exam.Service
	db    *sqlx.DB     // nil with the in-memory store
	cache catalogCache // nil without redis
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                       - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  import -file CATALOG.yaml                    - load a catalog file into the database")
	fmt.Fprintln(cli.out, "  list -school ID [-search S] [-status S,...]  - list exams")
	fmt.Fprintln(cli.out, "  show -id ID                                  - show an exam")
	fmt.Fprintln(cli.out, "  print -id ID [-class ID]                     - print the routines of an exam")
	fmt.Fprintln(cli.out, "  diff -id ID -from CLASS -to CLASS            - diff the printed routines of two classes")
	fmt.Fprintln(cli.out, "  advance -id ID                               - move an exam to its next status")
	fmt.Fprintln(cli.out, "  cancel -id ID                                - cancel an exam")
	fmt.Fprintln(cli.out, "  publish -id ID                               - toggle the publication of an exam")
	fmt.Fprintln(cli.out, "  copy -id ID -from CLASS -to A,B [-month M]   - copy a class routine into other classes")
	fmt.Fprintln(cli.out, "  check -school ID                             - report exams whose target classes were lost")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch cmd := args[1]; cmd {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "import":
		fs := cli.newFlagSet(cmd)
		file := fs.String("file", "", "The catalog YAML file.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *file == "" {
			fs.Usage()
			return errHelp
		}
		return cli.importCatalog(ctx, *file)

	case "list":
		fs := cli.newFlagSet(cmd)
		school := fs.String("school", "", "The school id.")
		search := fs.String("search", "", "Search on exam or assessment category name.")
		statuses := fs.String("status", "", "Comma separated statuses.")
		ordering := fs.String("ordering", "", "Comma separated fields; a leading - sorts descending.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *school == "" {
			fs.Usage()
			return errHelp
		}
		return cli.list(ctx, *school, *search, splitList(*statuses), *ordering)

	case "show", "advance", "cancel", "publish":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "The exam id.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		switch cmd {
		case "advance":
			return cli.transition(ctx, cli.svc.Advance, *id)
		case "cancel":
			return cli.transition(ctx, cli.svc.Cancel, *id)
		case "publish":
			return cli.transition(ctx, cli.svc.TogglePublished, *id)
		}
		return cli.show(ctx, *id)

	case "print":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "The exam id.")
		class := fs.String("class", "", "Only print this class.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.print(ctx, *id, *class)

	case "diff":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "The exam id.")
		from := fs.String("from", "", "The first class id.")
		to := fs.String("to", "", "The second class id.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" || *from == "" || *to == "" {
			fs.Usage()
			return errHelp
		}
		return cli.diff(ctx, *id, *from, *to)

	case "copy":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "The exam id.")
		from := fs.String("from", "", "The source class id.")
		to := fs.String("to", "", "Comma separated target class ids.")
		month := fs.String("month", "", "Only copy entries of this month (yyyy-mm).")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" || *from == "" || *to == "" {
			fs.Usage()
			return errHelp
		}
		req := exam.CopyRequest{SourceClassID: *from, TargetClassIDs: splitList(*to)}
		if *month != "" {
			if err := req.Month(*month); err != nil {
				return err
			}
		}
		return cli.copyRoutine(ctx, *id, req)

	case "check":
		fs := cli.newFlagSet(cmd)
		school := fs.String("school", "", "The school id.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *school == "" {
			fs.Usage()
			return errHelp
		}
		return cli.check(ctx, *school)

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// width is the terminal width, or 0 when stdout is not a terminal.
func width() int {
	w, _, err := termSizeFunc(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
