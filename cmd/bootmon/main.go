// Command bootmon finds the board's serial port and streams its diagnostic
// console, the "[boot] ..." lines and anything the firmware prints after.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// Teensy boards enumerate with the PJRC vendor ID.
const teensyVID = "16C0"

var rootCmd = &cobra.Command{
	Use:          "bootmon",
	Short:        "Serial console for boards running bootcode",
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range ports {
			fmt.Fprintln(out, describe(p))
		}
		return nil
	},
}

func describe(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return p.Name
	}
	s := fmt.Sprintf("%s  usb %s:%s", p.Name, p.VID, p.PID)
	if p.SerialNumber != "" {
		s += " serial " + p.SerialNumber
	}
	if strings.EqualFold(p.VID, teensyVID) {
		s += "  (teensy)"
	}
	return s
}

// findBoard picks the only Teensy port, or fails when there is none or more
// than one.
func findBoard(ports []*enumerator.PortDetails) (string, error) {
	var found []string
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, teensyVID) {
			found = append(found, p.Name)
		}
	}
	switch len(found) {
	case 0:
		return "", errors.New("no teensy found, pass --port")
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("several boards found (%s), pass --port", strings.Join(found, ", "))
}

func init() {
	rootCmd.AddCommand(listCmd, monitorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
