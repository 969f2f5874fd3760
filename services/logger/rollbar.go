package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

// RollbarLogger echoes every event to a standard logger and reports warnings and above to Rollbar.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// event is a log call split into what Rollbar takes apart: one error, one extras map, one person.
type event struct {
	err    error
	extras map[string]interface{}
	actor  *exam.Actor
}

// collect accepts error, map[string]interface{} and exam.Actor args; anything else lands in extras as argN.
func collect(args []interface{}) event {
	ev := event{extras: make(map[string]interface{})}
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			if ev.err == nil {
				ev.err = v
			} else {
				ev.extras[fmt.Sprintf("error%d", i)] = v.Error()
			}
		case exam.Actor:
			if ev.actor == nil { // one person per item
				actor := v
				ev.actor = &actor
				ev.extras["school"] = v.SchoolID
			}
		case map[string]interface{}:
			for k, val := range v {
				ev.extras[k] = val
			}
		default:
			ev.extras[fmt.Sprintf("arg%d", i)] = v
		}
	}
	return ev
}

func (ev event) line(level, msg string) string {
	var sb strings.Builder
	sb.WriteString("[" + level + "] " + msg)
	keys := make([]string, 0, len(ev.extras))
	for k := range ev.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, ev.extras[k])
	}
	if ev.actor != nil {
		sb.WriteString(" actor=" + ev.actor.String())
	}
	if ev.err != nil {
		fmt.Fprintf(&sb, " error=%q", ev.err.Error())
	}
	return sb.String()
}

func (l RollbarLogger) report(send func(...interface{}), msg string, ev event) {
	if ev.actor != nil {
		rollbar.SetPerson(ev.actor.ID, ev.actor.Username, "")
	} else {
		rollbar.ClearPerson()
	}
	items := make([]interface{}, 0, 2)
	if ev.err != nil {
		ev.extras["message"] = msg
		items = append(items, ev.err)
	} else {
		items = append(items, msg)
	}
	if len(ev.extras) > 0 {
		items = append(items, ev.extras)
	}
	send(items...)
}

// Debug and Info stay local.
func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.std.Println(collect(args).line("DEBUG", msg))
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.std.Println(collect(args).line("INFO", msg))
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	ev := collect(args)
	l.std.Println(ev.line("WARN", msg))
	l.report(rollbar.Warning, msg, ev)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	ev := collect(args)
	l.std.Println(ev.line("ERROR", msg))
	l.report(rollbar.Error, msg, ev)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	ev := collect(args)
	line := ev.line("FATAL", msg)
	l.report(rollbar.Critical, msg, ev)
	rollbar.Wait()
	l.std.Fatal(line)
}
