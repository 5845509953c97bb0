package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootcode-go/boot"
	"bootcode-go/hal/fakehw"
)

var runOpts = struct {
	plan      string
	board     string
	settle    int
	pollLimit int
	dump      bool
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a plan end to end on a simulated chip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := selectPlan(runOpts.plan, runOpts.board)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("poll-limit") {
			plan.PollLimit = runOpts.pollLimit
		}
		out := cmd.OutOrStdout()
		chip := fakehw.New(fakehw.WithSettle(runOpts.settle))
		sys, err := boot.Run(chip, plan, boot.WithLog(out))
		if err != nil {
			return err
		}
		defer sys.Close()

		fmt.Fprintln(out)
		sys.Report(out)
		if runOpts.dump {
			s := newSession(out, plan, runOpts.settle)
			s.chip = chip
			for _, what := range []string{"mcg", "sim", "uart0"} {
				fmt.Fprintf(out, "%s: ", what)
				if err := s.dump([]string{what}); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the embedded plans",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, b := range boot.Boards() {
			fmt.Fprintln(cmd.OutOrStdout(), b)
		}
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.plan, "plan", "p", "", "YAML plan file")
	f.StringVarP(&runOpts.board, "board", "b", "teensy31", "embedded plan, used when --plan is not given")
	f.IntVar(&runOpts.settle, "settle", 4, "status reads before the clock generator catches up")
	f.IntVar(&runOpts.pollLimit, "poll-limit", 0, "give up on a status bit after this many reads (0 waits forever)")
	f.BoolVar(&runOpts.dump, "dump", false, "dump the register blocks after booting")
}

// selectPlan prefers a plan file over an embedded board.
func selectPlan(file, board string) (boot.Plan, error) {
	if file != "" {
		return boot.ReadPlanFile(file)
	}
	return boot.LookupPlan(board)
}
