// Command staircore-plan loads a baseline snapshot from JSON, runs the
// completeness gate, and performs a dry-run template expansion for the
// requested frequency. It prints per-archetype counts on success or the
// missing baseline requirements on failure, exiting non-zero when the
// baseline cannot support generation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"staircore/internal/core"
	"staircore/internal/infra/persistence/memory"
	"staircore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("staircore-plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baselinePath := fs.String("baseline", "", "path to baseline snapshot JSON (required)")
	frequency := fs.String("frequency", string(domain.FrequencyAnnual), "test frequency: monthly|six_monthly|annual")
	zonesPerStair := fs.Int("zones-per-stair", core.DefaultZonesPerStair, "cause-and-effect rotation window per stair")
	cycleIndex := fs.Int("cycle", 0, "cause-and-effect rotation cycle index")
	asJSON := fs.Bool("json", false, "emit the generation report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baselinePath == "" {
		fmt.Fprintln(stderr, "-baseline is required")
		fs.Usage()
		return 2
	}

	freq := domain.Frequency(*frequency)
	switch freq {
	case domain.FrequencyMonthly, domain.FrequencySixMonthly, domain.FrequencyAnnual:
	default:
		fmt.Fprintf(stderr, "unknown frequency %q\n", *frequency)
		return 2
	}

	raw, err := os.ReadFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "read baseline: %v\n", err)
		return 1
	}
	var snapshot domain.BaselineSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		fmt.Fprintf(stderr, "decode baseline: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store := memory.NewStore()
	if err := store.SeedBaseline(ctx, snapshot); err != nil {
		fmt.Fprintf(stderr, "seed baseline: %v\n", err)
		return 1
	}
	service := core.NewService(store, core.Config{
		Rotation: core.RotationConfig{ZonesPerStair: *zonesPerStair, CycleIndex: *cycleIndex},
	})

	report, err := service.GenerateTemplates(ctx, snapshot.BuildingID, freq)
	if err != nil {
		var incomplete domain.BaselineIncompleteError
		if errors.As(err, &incomplete) {
			fmt.Fprintf(stderr, "baseline incomplete for %s generation: %d requirement(s) missing\n", incomplete.Frequency, len(incomplete.Missing))
			for _, m := range incomplete.Missing {
				fmt.Fprintf(stderr, "  %s %s: %s\n", m.ArchetypeID, m.ContextKey, m.Reason)
			}
			return 1
		}
		fmt.Fprintf(stderr, "generate: %v\n", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "encode report: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stdout, "building %s, frequency %s: %d template(s)\n", report.BuildingID, report.Frequency, report.Total)
	for _, archetype := range service.Archetypes() {
		if !archetype.AppliesTo(freq) {
			continue
		}
		fmt.Fprintf(stdout, "  %-28s %d\n", archetype.ID(), report.PerArchetype[archetype.ID()])
	}
	return 0
}
