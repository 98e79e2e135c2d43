// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// vmaprand_rules lists the vmap batching rules of the random operators, and draws from them
// under a vmap level.
//
// Usage:
//
//	vmaprand_rules                                  # Lists the rules.
//	vmaprand_rules -op=randn -batch=4 -randomness=different -shape=3
//	vmaprand_rules -op=randperm.generator -n=10 -batch=3 -repeat=100 -stats -histogram=perm.png
//
// The backend is configured with $VMAPRAND_BACKEND, e.g. "go:seed=42".
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/vmaprand/backends"
	_ "github.com/gomlx/vmaprand/backends/simplego"
	"github.com/gomlx/vmaprand/pkg/core/dispatch"
	"github.com/gomlx/vmaprand/pkg/core/vmap"
	"github.com/gomlx/vmaprand/pkg/core/vmap/randomness"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"k8s.io/klog/v2"
)

var (
	flagOp = flag.String("op", "",
		"Operator to draw from, e.g. \"randn\" or \"randint.low\". If empty, the rules are listed.")
	flagBatch      = flag.Int("batch", 4, "Batch size of the vmap level.")
	flagRandomness = flag.String("randomness", "", fmt.Sprintf(
		"Randomness of the vmap level, one of %q. Defaults to $%s, or \"error\" if not set.",
		vmap.RandomnessStrings(), vmap.RandomnessEnvVar))
	flagShape = flag.String("shape", "3", "Comma-separated shape for the shape taking operators, "+
		"and the per-slice shape of the target of in-place operators.")
	flagN    = flag.Int("n", 10, "Number of elements to permute, for randperm.")
	flagLow  = flag.Int64("low", 0, "Lower bound for randint.low and random_.from.")
	flagHigh = flag.Int64("high", 10, "Upper bound (exclusive) for randint and random_.")
	flagSeed = flag.Int64("seed", 42, "Seed of the generator given to the \"generator\" overloads "+
		"and to the in-place operators.")
	flagRepeat    = flag.Int("repeat", 1, "Number of times to repeat the draw, values are accumulated for -stats and -histogram.")
	flagStats     = flag.Bool("stats", false, "Prints statistics of the values drawn for each batch slice.")
	flagHistogram = flag.String("histogram", "", "If set, saves a histogram of the values drawn to this file (.png, .svg or .pdf).")
	flagPlain     = flag.Bool("plain", false, "Disables colors in the output.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	backend, err := backends.New()
	if err != nil {
		klog.Errorf("Failed to create backend: %+v", err)
		os.Exit(1)
	}
	defer backend.Finalize()
	d := must.M1(dispatch.New(backend, randomness.Install))

	if *flagOp == "" {
		listRules(d)
		return
	}
	if err = drawOp(d); err != nil {
		klog.Errorf("Failed to draw %q: %+v", *flagOp, err)
		os.Exit(1)
	}
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// listRules prints the registration table of the dispatcher.
func listRules(d *dispatch.Dispatcher) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("vmap rules of the random operators (backend: %s)", d.Backend().Description())))
	table := newPlainTable(true)
	table.Headers("Operator", "Family", "Strategy", "Installed")
	for _, rule := range randomness.Rules() {
		family := must.M1(dispatch.FamilyOf(rule.Op))
		installed := "no"
		if d.Registrations().Has(rule.Op) {
			installed = "yes"
		}
		table.Row(rule.Op.String(), family.String(), string(rule.Strategy), installed)
	}
	fmt.Println(table.Render())
}
