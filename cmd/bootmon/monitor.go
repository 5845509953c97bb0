package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var monitorOpts = struct {
	port  string
	baud  int
	stamp bool
	until string
	input bool
}{}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the board's console until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := monitorOpts.port
		if name == "" {
			ports, err := enumerator.GetDetailedPortsList()
			if err != nil {
				return err
			}
			if name, err = findBoard(ports); err != nil {
				return err
			}
		}
		port, err := serial.Open(name, &serial.Mode{BaudRate: monitorOpts.baud})
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "connected to %s at %d baud\n", name, monitorOpts.baud)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			port.Close()
		}()
		if monitorOpts.input {
			go io.Copy(port, os.Stdin)
		}

		f := lineFilter{until: monitorOpts.until}
		if monitorOpts.stamp {
			f.stamp = func() string { return time.Now().Format("15:04:05.000") }
		}
		err = f.copy(out, port)
		if ctx.Err() != nil || errors.Is(err, errStop) {
			return nil
		}
		return err
	},
}

func init() {
	f := monitorCmd.Flags()
	f.StringVarP(&monitorOpts.port, "port", "p", "", "serial port (default: the only Teensy attached)")
	f.IntVarP(&monitorOpts.baud, "baud", "b", 9600, "baud rate")
	f.BoolVarP(&monitorOpts.stamp, "timestamps", "t", false, "prefix each line with the host time")
	f.StringVar(&monitorOpts.until, "until", "", "exit after a line containing this text")
	f.BoolVarP(&monitorOpts.input, "input", "i", false, "forward stdin to the board")
}

var errStop = errors.New("stop line seen")

// lineFilter turns the board's CRLF console into host lines.
type lineFilter struct {
	stamp func() string
	until string
}

// copy writes every line from src to dst. It returns errStop once a line
// containing until has been written, and nil at end of input.
func (f lineFilter) copy(dst io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if f.stamp != nil {
				line = f.stamp() + " " + line
			}
			if _, werr := fmt.Fprintln(dst, line); werr != nil {
				return werr
			}
			if f.until != "" && strings.Contains(line, f.until) {
				return errStop
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
