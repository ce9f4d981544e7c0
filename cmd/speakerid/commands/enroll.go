package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

var registerCmd = &cobra.Command{
	Use:   "register <file> <user_id>",
	Short: "Enroll a speaker from a WAV or MP3 file",
	Long: `Enroll a speaker from a WAV or MP3 file.

The audio is downmixed to mono, resampled to the configured rate and
must be at least min_duration long. Registering an existing user id
replaces the previous template. The normalized audio is kept as
<reference_dir>/<user_id>.wav.

Example:
  speakerid register recordings/alice.mp3 alice`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			enr, err := a.ctrl.Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if outputJSON {
				return outputResult(enr, cli.FormatJSON)
			}
			return nil
		})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Identify the speaker of a WAV or MP3 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			res, err := a.ctrl.Identify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printMatch(a, cmd, res)
		})
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Enroll or identify from the microphone",
	Long: `Record a fixed-length clip (record_seconds) from the default input
device. Requires a build with the "portaudio" tag.`,
}

var recordRegisterCmd = &cobra.Command{
	Use:   "register <user_id>",
	Short: "Record and enroll a speaker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			enr, err := a.ctrl.RecordAndRegister(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return outputResult(enr, cli.FormatJSON)
			}
			return nil
		})
	},
}

var recordIdentifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Record and identify the speaker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			res, err := a.ctrl.RecordAndIdentify(cmd.Context())
			if err != nil {
				return err
			}
			return printMatch(a, cmd, res)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <user_id>",
	Short: "Remove a speaker's template and reference audio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			res, err := a.ctrl.DeleteSpeaker(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return outputResult(res, cli.FormatJSON)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), cmd.OutOrStdout(), func(a *app) error {
			speakers := a.ctrl.Speakers(cmd.Context())
			if outputJSON {
				return outputResult(speakers, cli.FormatJSON)
			}
			if len(speakers) == 0 {
				cli.PrintInfo("No speakers enrolled.")
				return nil
			}
			tbl := cli.Table{Header: []string{"user", "label", "dim", "reference"}}
			for _, s := range speakers {
				ref := "-"
				if s.Reference {
					ref = a.ctrl.Store().ReferencePath(s.UserID)
				}
				tbl.Rows = append(tbl.Rows, []string{s.UserID, s.Label, strconv.Itoa(s.Dim), ref})
			}
			return outputResult(tbl, cli.FormatTable)
		})
	},
}

func printMatch(a *app, cmd *cobra.Command, res voiceprint.MatchResult) error {
	if outputJSON {
		return outputResult(res, cli.FormatJSON)
	}
	a.flush(cmd.OutOrStdout())
	if len(res.Candidates) == 0 {
		return nil
	}
	return outputResult(candidatesTable(res), cli.FormatTable)
}

// candidatesTable lists every scored template, best first.
func candidatesTable(res voiceprint.MatchResult) cli.Table {
	tbl := cli.Table{Header: []string{"rank", "user", "score", "accepted"}}
	for i, c := range res.Candidates {
		accepted := ""
		if i == 0 && res.Accepted {
			accepted = "yes"
		}
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(i + 1),
			c.UserID,
			cli.FormatScore(c.Score, res.Threshold),
			accepted,
		})
	}
	return tbl
}

func init() {
	recordCmd.AddCommand(recordRegisterCmd)
	recordCmd.AddCommand(recordIdentifyCmd)
}
