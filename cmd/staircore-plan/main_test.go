package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"staircore/pkg/domain"
)

func writeBaseline(t *testing.T, snapshot domain.BaselineSnapshot) string {
	t.Helper()
	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal baseline: %v", err)
	}
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write baseline: %v", err)
	}
	return path
}

func captureRun(t *testing.T, args []string) (code int, stdout, stderr string) {
	t.Helper()
	outFile, err := os.CreateTemp(t.TempDir(), "stdout")
	if err != nil {
		t.Fatalf("temp stdout: %v", err)
	}
	errFile, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatalf("temp stderr: %v", err)
	}
	code = run(args, outFile, errFile)
	outBytes, err := os.ReadFile(outFile.Name())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	errBytes, err := os.ReadFile(errFile.Name())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	_ = outFile.Close()
	_ = errFile.Close()
	return code, string(outBytes), string(errBytes)
}

func completeBaseline() domain.BaselineSnapshot {
	snapshot := domain.BaselineSnapshot{
		BuildingID: "bldg-1",
		Stairs:     []domain.Stair{{ID: "st-1", BuildingID: "bldg-1", Name: "Stair A"}},
		Floors: []domain.Floor{
			{ID: "fl-1", StairID: "st-1", Level: "1", Ordinal: 0},
			{ID: "fl-2", StairID: "st-1", Level: "2", Ordinal: 1},
		},
		Doorways:   []domain.Doorway{{ID: "dw-1", StairID: "st-1", FloorID: "fl-1"}},
		Zones:      []domain.Zone{{ID: "zone-1", StairID: "st-1", Name: "Zone 1", FloorIDs: []string{"fl-1", "fl-2"}}},
		Equipment:  []domain.ControlEquipment{{ID: "eq-fip", StairID: "st-1", InterfaceType: domain.InterfaceFIP}},
		Velocities: []domain.BaselineVelocity{{StairID: "st-1", DoorwayID: "dw-1", Scenario: domain.ScenarioEvacDoorsOpenFanMax, ValueMS: 1.5}},
	}
	for _, floorID := range []string{"fl-1", "fl-2"} {
		snapshot.Pressures = append(snapshot.Pressures,
			domain.BaselinePressure{StairID: "st-1", FloorID: floorID, Config: domain.DoorConfigAllClosed, ValuePa: 48},
			domain.BaselinePressure{StairID: "st-1", FloorID: floorID, Config: domain.DoorConfigEvacOpen, ValuePa: 42},
		)
		doorID := "door-" + floorID
		snapshot.Doors = append(snapshot.Doors, domain.Door{ID: doorID, StairID: "st-1", FloorID: floorID})
		snapshot.Forces = append(snapshot.Forces, domain.BaselineDoorForce{StairID: "st-1", DoorID: doorID, Pressurized: true, ValueN: 90})
	}
	return snapshot
}

func TestRunPrintsPlanForCompleteBaseline(t *testing.T) {
	path := writeBaseline(t, completeBaseline())
	code, stdout, stderr := captureRun(t, []string{"-baseline", path})
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "bldg-1") || !strings.Contains(stdout, "pressure_differential") {
		t.Fatalf("plan output missing detail:\n%s", stdout)
	}
}

func TestRunEmitsJSONReport(t *testing.T) {
	path := writeBaseline(t, completeBaseline())
	code, stdout, stderr := captureRun(t, []string{"-baseline", path, "-json"})
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	var report struct {
		BuildingID   string         `json:"building_id"`
		Total        int            `json:"total"`
		PerArchetype map[string]int `json:"per_archetype"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if report.BuildingID != "bldg-1" || report.Total == 0 {
		t.Fatalf("report = %+v", report)
	}
	// 2 floors x 2 configs + 1 doorway + 2 doors + 1 zone + 1 interface.
	if report.Total != 9 {
		t.Fatalf("total = %d, want 9", report.Total)
	}
}

func TestRunListsMissingRequirements(t *testing.T) {
	incomplete := completeBaseline()
	incomplete.Velocities = nil
	path := writeBaseline(t, incomplete)
	code, _, stderr := captureRun(t, []string{"-baseline", path})
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(stderr, "baseline incomplete") || !strings.Contains(stderr, "air_velocity") {
		t.Fatalf("stderr missing gap detail:\n%s", stderr)
	}
}

func TestRunFlagValidation(t *testing.T) {
	if code, _, _ := captureRun(t, nil); code != 2 {
		t.Fatalf("missing -baseline exits %d, want 2", code)
	}
	path := writeBaseline(t, completeBaseline())
	code, _, stderr := captureRun(t, []string{"-baseline", path, "-frequency", "fortnightly"})
	if code != 2 || !strings.Contains(stderr, "unknown frequency") {
		t.Fatalf("bad frequency: exit %d, stderr %s", code, stderr)
	}
	if code, _, _ := captureRun(t, []string{"-baseline", filepath.Join(t.TempDir(), "missing.json")}); code != 1 {
		t.Fatalf("missing file should exit 1")
	}
}
