package speaker

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/haivivi/speakerid/pkg/voiceprint"
)

// Result is the outcome of an Operation.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     error  `json:"-"`
}

func ok(data any, format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...), Data: data}
}

func fail(err error) Result {
	return Result{Message: err.Error(), Err: err}
}

// Operation is one operator command bound to a Controller.
type Operation struct {
	Name    string
	Usage   string
	Summary string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, c *Controller, args []string) Result
}

// Execute validates the argument count and runs the operation.
func (o Operation) Execute(ctx context.Context, c *Controller, args []string) Result {
	if len(args) < o.minArgs || (o.maxArgs >= 0 && len(args) > o.maxArgs) {
		return fail(fmt.Errorf("%w: %s", ErrUsage, o.Usage))
	}
	return o.run(ctx, c, args)
}

// Bound is an Operation together with its Controller.
type Bound struct {
	Operation
	c *Controller
}

// Execute runs the operation with args.
func (b Bound) Execute(ctx context.Context, args []string) Result {
	return b.Operation.Execute(ctx, b.c, args)
}

var operations = []Operation{
	{
		Name: "register", Usage: "register <file> <user_id>", Summary: "enroll an audio file",
		minArgs: 2, maxArgs: 2,
		run: func(ctx context.Context, c *Controller, args []string) Result {
			enr, err := c.Register(ctx, args[0], args[1])
			if err != nil {
				return fail(err)
			}
			return ok(enr, "registered %s (%s)", enr.UserID, enr.Label)
		},
	},
	{
		Name: "identify", Usage: "identify <file>", Summary: "identify the speaker of an audio file",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *Controller, args []string) Result {
			return matchResult(c.Identify(ctx, args[0]))
		},
	},
	{
		Name: "record-register", Usage: "record-register <user_id>", Summary: "record from the microphone and enroll",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *Controller, args []string) Result {
			enr, err := c.RecordAndRegister(ctx, args[0])
			if err != nil {
				return fail(err)
			}
			return ok(enr, "recorded and registered %s", enr.UserID)
		},
	},
	{
		Name: "record-identify", Usage: "record-identify", Summary: "record from the microphone and identify",
		maxArgs: 0,
		run: func(ctx context.Context, c *Controller, _ []string) Result {
			return matchResult(c.RecordAndIdentify(ctx))
		},
	},
	{
		Name: "auto-register", Usage: "auto-register", Summary: "enroll every file in the reference directory",
		maxArgs: 0,
		run: func(ctx context.Context, c *Controller, _ []string) Result {
			rep, err := c.AutoRegisterDirectory(ctx, nil)
			if err != nil {
				return fail(err)
			}
			return ok(rep, "registered %d of %d file(s), %d failed", len(rep.Registered), rep.Total, len(rep.Failed))
		},
	},
	{
		Name: "delete", Usage: "delete <user_id>", Summary: "remove a speaker and its reference audio",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *Controller, args []string) Result {
			res, err := c.DeleteSpeaker(ctx, args[0])
			if err != nil {
				return fail(err)
			}
			if res.NotFound() {
				return Result{OK: true, Message: fmt.Sprintf("speaker %s not found", res.UserID), Data: res}
			}
			return ok(res, "deleted %s", res.UserID)
		},
	},
	{
		Name: "threshold", Usage: "threshold [value]", Summary: "show or set the acceptance threshold",
		maxArgs: 1,
		run: func(_ context.Context, c *Controller, args []string) Result {
			if len(args) == 0 {
				t := c.Threshold()
				return ok(t, "threshold %.2f", t)
			}
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fail(fmt.Errorf("%w: %q is not a number", ErrThresholdRange, args[0]))
			}
			if err := c.SetThreshold(v); err != nil {
				return fail(err)
			}
			return ok(v, "threshold set to %.2f", v)
		},
	},
	{
		Name: "list", Usage: "list", Summary: "list enrolled speakers",
		maxArgs: 0,
		run: func(ctx context.Context, c *Controller, _ []string) Result {
			sp := c.Speakers(ctx)
			lines := make([]string, 0, len(sp))
			for _, s := range sp {
				lines = append(lines, s.UserID+" "+s.Label)
			}
			return ok(sp, "%d speaker(s)%s", len(sp), joinLines(lines))
		},
	},
	{
		Name: "history", Usage: "history [limit]", Summary: "show recent identification attempts",
		maxArgs: 1,
		run: func(ctx context.Context, c *Controller, args []string) Result {
			limit := 10
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fail(fmt.Errorf("invalid limit %q", args[0]))
				}
				limit = n
			}
			entries, err := c.History(ctx, limit)
			if err != nil {
				return fail(err)
			}
			return ok(entries, "%d attempt(s)", len(entries))
		},
	},
	{
		Name: "clear-log", Usage: "clear-log", Summary: "empty the activity log",
		maxArgs: 0,
		run: func(_ context.Context, c *Controller, _ []string) Result {
			c.ClearLog()
			return ok(nil, "log cleared")
		},
	},
}

func matchResult(res voiceprint.MatchResult, err error) Result {
	if err != nil {
		r := fail(err)
		r.Data = res
		return r
	}
	switch {
	case !res.Matched:
		return ok(res, "no comparable templates")
	case res.Accepted:
		return ok(res, "matched %s (score %.4f)", res.UserID, res.Score)
	default:
		return ok(res, "unknown speaker (best %s, score %.4f < %.2f)", res.UserID, res.Score, res.Threshold)
	}
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n  " + strings.Join(lines, "\n  ")
}

// Operations lists every operation in declaration order.
func (c *Controller) Operations() []Bound {
	out := make([]Bound, len(operations))
	for i, op := range operations {
		out[i] = Bound{Operation: op, c: c}
	}
	return out
}

// Operation looks up an operation by name.
func (c *Controller) Operation(name string) (Bound, bool) {
	i := slices.IndexFunc(operations, func(o Operation) bool { return o.Name == name })
	if i < 0 {
		return Bound{}, false
	}
	return Bound{Operation: operations[i], c: c}, true
}
