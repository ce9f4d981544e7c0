package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/speaker"
)

var shellCmd = &cobra.Command{
	Use:     "shell",
	Aliases: []string{"interactive", "i"},
	Short:   "Run an interactive operator shell",
	Long: `Run an interactive shell over every controller operation.

Type 'help' for the command list. Arguments containing spaces can be
quoted with single or double quotes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return runShell(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runShell(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, a.styles.Title.Render("speakerid shell")+" "+a.styles.Help.Render("type 'help' for commands"))
	a.startupRegister(ctx, out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt(a))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		parts, err := splitArgs(scanner.Text())
		if err != nil {
			cli.PrintError("%v", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch command := parts[0]; command {
		case "help", "h", "?":
			shellHelp(out, a.ctrl.Operations())
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "status":
			fmt.Fprintln(out, statusPanel(ctx, a).Render(80))
		case "clear", "cls":
			fmt.Fprint(out, "\033[H\033[2J")
		default:
			op, ok := a.ctrl.Operation(command)
			if !ok {
				fmt.Fprintf(out, "Unknown command: %s. Type 'help' for available commands.\n", command)
				continue
			}
			res := op.Execute(ctx, parts[1:])
			logged := a.flush(out)
			switch {
			case res.OK && res.Message != "":
				fmt.Fprintln(out, res.Message)
			case !res.OK && logged == 0:
				// Usage and argument errors never reach the activity log.
				cli.PrintError("%s", res.Message)
			}
			if res.OK && command == "threshold" && len(parts) > 1 {
				if err := persistThreshold(a.ctrl.Threshold()); err != nil {
					cli.PrintWarning("threshold not saved: %v", err)
				}
			}
		}
	}
	return scanner.Err()
}

// prompt shows the live threshold, e.g. "[0.75] speakerid> ".
func prompt(a *app) string {
	return a.styles.Label.Render(fmt.Sprintf("[%.2f]", a.ctrl.Threshold())) + " " +
		a.styles.Help.Render("speakerid>") + " "
}

func shellHelp(w io.Writer, ops []speaker.Bound) {
	tbl := cli.Table{Header: []string{"command", "description"}}
	for _, op := range ops {
		tbl.Rows = append(tbl.Rows, []string{op.Usage, op.Summary})
	}
	tbl.Rows = append(tbl.Rows,
		[]string{"status", "show speakers and recent activity"},
		[]string{"clear", "clear the screen"},
		[]string{"quit", "leave the shell"},
	)
	if err := cli.Output(tbl, cli.OutputOptions{Format: cli.FormatTable, Writer: w}); err != nil {
		fmt.Fprintln(w, err)
	}
}

func statusPanel(ctx context.Context, a *app) cli.Panel {
	var speakers []string
	for _, s := range a.ctrl.Speakers(ctx) {
		line := fmt.Sprintf("%-16s %s", s.UserID, s.Label)
		if s.Reference {
			line += "  (reference)"
		}
		speakers = append(speakers, line)
	}
	var activity []string
	for _, l := range a.ctrl.Activity().Lines() {
		activity = append(activity, renderLine(a.styles, l))
	}
	return cli.Panel{
		Styles: a.styles,
		Title:  "speakerid",
		Status: fmt.Sprintf("%d speaker(s), threshold %.2f", len(speakers), a.ctrl.Threshold()),
		Sections: []cli.Section{
			{Label: "Speakers", Lines: speakers, Empty: "no speakers enrolled"},
			{Label: "Activity", Lines: activity, Empty: "no activity", Tail: true},
		},
		Help:    "help: commands  quit: leave",
		MaxRows: 10,
	}
}

// splitArgs splits a command line on whitespace. Single or double quotes
// group words; there are no escapes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}
