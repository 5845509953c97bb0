package boot

import (
	"slices"

	"golang.org/x/exp/maps"

	"bootcode-go/errcode"
	"bootcode-go/hal/mcg"
	"bootcode-go/hal/port"
	"bootcode-go/hal/uart"
)

// Teensy 3.1/3.2: 16 MHz crystal, 72 MHz PLL, 9600 baud console on PTB16/17
// and the on-board LED on PTC5.
var teensy31 = Plan{
	Board:          "teensy31",
	CrystalHz:      16000000,
	CapacitancePF:  10,
	Range:          mcg.VeryHigh,
	FLLDivisor:     512,
	PLLNumerator:   27,
	PLLDenominator: 6,
	Dividers:       Dividers{Core: 1, Bus: 2, Flash: 3},
	Console:        &ConsolePlan{Unit: 0, Baud: 9600, Divisor: uart.Divisor{SBR: 468, BRFA: 24}},
	Status:         &LEDPlan{Port: port.C, Pin: 5},
}

var embeddedPlans = map[string]Plan{
	"teensy31": teensy31,
	"teensy32": withBoard(teensy31, "teensy32"),
}

func withBoard(p Plan, board string) Plan {
	p = p.clone()
	p.Board = board
	return p
}

// LookupPlan returns a copy of the embedded plan for board.
func LookupPlan(board string) (Plan, error) {
	p, ok := embeddedPlans[board]
	if !ok {
		return Plan{}, errcode.New(errcode.InvalidConfig, "boot.lookup_plan", "no embedded plan for "+board)
	}
	return p.clone(), nil
}

// MustPlan is LookupPlan for names known at build time.
func MustPlan(board string) Plan {
	p, err := LookupPlan(board)
	if err != nil {
		panic(err)
	}
	return p
}

// Boards lists the embedded plans.
func Boards() []string {
	keys := maps.Keys(embeddedPlans)
	slices.Sort(keys)
	return keys
}
