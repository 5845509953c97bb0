package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

var shellOpts = struct {
	plan    string
	board   string
	settle  int
	history string
}{}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Step through the boot sequence interactively",
	Long: "Step the simulated chip through the boot sequence one driver call at a time:\n" +
		"osc, acquire, fbe, pbe, pee, with dumps of the register blocks in between.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := selectPlan(shellOpts.plan, shellOpts.board)
		if err != nil {
			return err
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "bootsim> ",
			HistoryFile:     shellOpts.history,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		s := newSession(rl.Stdout(), plan, shellOpts.settle)
		defer s.release(nil)
		return repl(s, rl.Readline)
	},
}

func init() {
	home, _ := os.UserHomeDir()
	f := shellCmd.Flags()
	f.StringVarP(&shellOpts.plan, "plan", "p", "", "YAML plan file")
	f.StringVarP(&shellOpts.board, "board", "b", "teensy31", "embedded plan, used when --plan is not given")
	f.IntVar(&shellOpts.settle, "settle", 4, "status reads before the clock generator catches up")
	f.StringVar(&shellOpts.history, "history", filepath.Join(home, ".bootsim_history"), "history file")
}

// repl reads lines until quit or end of input. Errors from commands are
// printed and the loop carries on.
func repl(s *session, readLine func() (string, error)) error {
	for {
		line, err := readLine()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		words, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			continue
		}
		if err := s.exec(words); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}
