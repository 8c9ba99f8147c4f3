package core

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"staircore/internal/blob"
	"staircore/internal/infra/persistence/memory"
	"staircore/pkg/domain"
)

var testNow = time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)

// towerBaseline is a single-stair, three-floor building with a complete
// commissioning record set.
func towerBaseline() domain.BaselineSnapshot {
	snapshot := domain.BaselineSnapshot{
		BuildingID: "bldg-100collins",
		Stairs:     []domain.Stair{{ID: "st-1", BuildingID: "bldg-100collins", Name: "Stair A", LowestLevel: 0, HighestLevel: 2}},
		CapturedAt: time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC),
	}
	levels := []string{"G", "L1", "L2"}
	for i, level := range levels {
		floorID := "fl-" + level
		snapshot.Floors = append(snapshot.Floors, domain.Floor{ID: floorID, StairID: "st-1", Level: level, Ordinal: i})
		snapshot.Pressures = append(snapshot.Pressures,
			domain.BaselinePressure{StairID: "st-1", FloorID: floorID, Config: domain.DoorConfigAllClosed, ValuePa: 50.0},
			domain.BaselinePressure{StairID: "st-1", FloorID: floorID, Config: domain.DoorConfigEvacOpen, ValuePa: 44.0},
		)
		doorID := "door-" + level
		snapshot.Doors = append(snapshot.Doors, domain.Door{ID: doorID, StairID: "st-1", FloorID: floorID})
		snapshot.Forces = append(snapshot.Forces, domain.BaselineDoorForce{StairID: "st-1", DoorID: doorID, Pressurized: true, ValueN: 82.0})
	}
	snapshot.Doorways = []domain.Doorway{{ID: "dw-G", StairID: "st-1", FloorID: "fl-G"}}
	snapshot.Velocities = []domain.BaselineVelocity{{StairID: "st-1", DoorwayID: "dw-G", Scenario: domain.ScenarioEvacDoorsOpenFanMax, ValueMS: 1.4}}
	snapshot.Zones = []domain.Zone{
		{ID: "zone-low", StairID: "st-1", Name: "Low Rise", Ordinal: 0, FloorIDs: []string{"fl-G", "fl-L1"}},
		{ID: "zone-high", StairID: "st-1", Name: "High Rise", Ordinal: 1, FloorIDs: []string{"fl-L2"}},
	}
	snapshot.Equipment = []domain.ControlEquipment{
		{ID: "eq-fip", StairID: "st-1", InterfaceType: domain.InterfaceFIP, Location: "fire control room", Ordinal: 0},
		{ID: "eq-ews", StairID: "st-1", InterfaceType: domain.InterfaceEWS, Location: "fire control room", Ordinal: 0},
		{ID: "eq-bms", StairID: "st-1", InterfaceType: domain.InterfaceBMS, Location: "plant room", Ordinal: 0},
		{ID: "eq-lift", StairID: "st-1", InterfaceType: domain.InterfaceLiftSupervisory, Location: "lift motor room", Ordinal: 0},
	}
	return snapshot
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetNowFunc(func() time.Time { return testNow })
	if err := store.SeedBaseline(context.Background(), towerBaseline()); err != nil {
		t.Fatalf("seed baseline: %v", err)
	}
	service := NewService(store, Config{Now: func() time.Time { return testNow }})
	return service, store
}

func TestGenerateTemplatesCounts(t *testing.T) {
	service, _ := newTestService(t)
	report, err := service.GenerateTemplates(context.Background(), "bldg-100collins", domain.FrequencyAnnual)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := map[string]int{
		"pressure_differential": 6, // 3 floors x 2 configurations
		"air_velocity":          1,
		"door_opening_force":    3,
		"cause_effect":          2,
		"interface_test":        4,
	}
	for id, n := range want {
		if report.PerArchetype[id] != n {
			t.Fatalf("%s: %d templates, want %d", id, report.PerArchetype[id], n)
		}
	}
	if report.Total != 16 {
		t.Fatalf("total = %d, want 16", report.Total)
	}
}

func TestGenerateTemplatesIdempotent(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	first, err := store.ListTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	second, err := store.ListTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("regeneration changed template count: %d -> %d", len(first), len(second))
	}
	ids := make(map[string]string, len(first))
	for _, tpl := range first {
		ids[tpl.NaturalKey()] = tpl.ID
	}
	for _, tpl := range second {
		if ids[tpl.NaturalKey()] != tpl.ID {
			t.Fatalf("regeneration changed identity of %s", tpl.NaturalKey())
		}
	}
}

func TestGenerateAttachesRuleAndBaseline(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("generate: %v", err)
	}
	templates, err := store.ListTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, tpl := range templates {
		if tpl.Rule.IsZero() {
			t.Fatalf("template %s has no rule snapshot", tpl.NaturalKey())
		}
		switch tpl.Kind {
		case KindPressureDifferential, KindAirVelocity, KindDoorOpeningForce:
			if tpl.BaselineValue == nil {
				t.Fatalf("numeric template %s missing baseline value", tpl.NaturalKey())
			}
			if tpl.DesignSetpoint == nil {
				t.Fatalf("numeric template %s missing design setpoint", tpl.NaturalKey())
			}
		default:
			if tpl.BaselineValue != nil {
				t.Fatalf("qualitative template %s carries a numeric baseline", tpl.NaturalKey())
			}
		}
	}
}

func TestPlanSessionOrderingAndClone(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("generate: %v", err)
	}
	instances, err := service.PlanSession(ctx, PlanSessionRequest{
		SessionID: "sess-1", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(instances) != 16 {
		t.Fatalf("%d instances, want 16", len(instances))
	}
	for i, inst := range instances {
		if inst.SequenceOrder != i+1 {
			t.Fatalf("instance %d has sequence order %d", i, inst.SequenceOrder)
		}
		if inst.Status != StatusPending {
			t.Fatalf("instance %s status = %s, want pending", inst.ID, inst.Status)
		}
		if inst.SessionID != "sess-1" || inst.TemplateID == "" {
			t.Fatalf("instance %s not linked to session/template", inst.ID)
		}
	}

	// Template regeneration after planning must not alter issued instances.
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	again, err := store.ListSessionInstances(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list session: %v", err)
	}
	if len(again) != len(instances) {
		t.Fatalf("regeneration altered session instance count")
	}

	// Planning the same session twice is rejected.
	if _, err := service.PlanSession(ctx, PlanSessionRequest{
		SessionID: "sess-1", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
	}); err == nil {
		t.Fatalf("replanning an issued session accepted")
	}
}

func TestPlanSessionWithoutTemplatesFails(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.PlanSession(context.Background(), PlanSessionRequest{
		SessionID: "sess-x", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
	}); err == nil {
		t.Fatalf("session planned with no generated templates")
	}
}

func TestCombinedSessionFoldsLowerFrequencies(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	for _, freq := range domain.Frequencies() {
		if _, err := service.GenerateTemplates(ctx, "bldg-100collins", freq); err != nil {
			t.Fatalf("generate %s: %v", freq, err)
		}
	}
	annualOnly, err := service.PlanSession(ctx, PlanSessionRequest{
		SessionID: "sess-annual", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
	})
	if err != nil {
		t.Fatalf("plan annual: %v", err)
	}
	combined, err := service.PlanSession(ctx, PlanSessionRequest{
		SessionID: "sess-combined", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
		IncludeLowerFrequencies: true,
	})
	if err != nil {
		t.Fatalf("plan combined: %v", err)
	}
	if len(combined) <= len(annualOnly) {
		t.Fatalf("combined session (%d) not larger than annual-only (%d)", len(combined), len(annualOnly))
	}
}

func planAnnualSession(t *testing.T, service *Service) []TestInstance {
	t.Helper()
	ctx := context.Background()
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("generate: %v", err)
	}
	instances, err := service.PlanSession(ctx, PlanSessionRequest{
		SessionID: "sess-1", BuildingID: "bldg-100collins", Frequency: domain.FrequencyAnnual,
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return instances
}

func findInstance(t *testing.T, instances []TestInstance, match func(TestInstance) bool) TestInstance {
	t.Helper()
	for _, inst := range instances {
		if match(inst) {
			return inst
		}
	}
	t.Fatalf("no instance matched")
	return TestInstance{}
}

func TestExecutionEndToEnd(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	instances := planAnnualSession(t, service)

	target := findInstance(t, instances, func(i TestInstance) bool {
		pc, ok := i.Context.(domain.PressureContext)
		return ok && pc.FloorID == "fl-L2" && pc.Config == domain.DoorConfigEvacOpen
	})

	started, err := service.StartInstance(ctx, target.ID, "tech-7")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress || started.StartedAt == nil {
		t.Fatalf("start did not record state: %+v", started)
	}

	completed, verdict, err := service.SubmitResult(ctx, target.ID, domain.NumericReading{Value: 18.0, Unit: "Pa"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if completed.Status != StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("submission did not complete instance: %+v", completed)
	}
	if verdict.Compliant {
		t.Fatalf("18 Pa accepted against a 20 Pa floor")
	}
	if verdict.DeviationPct == nil || math.Abs(*verdict.DeviationPct-(-59.0909090909)) > 1e-6 {
		t.Fatalf("deviation = %v, want about -59.09", verdict.DeviationPct)
	}
	if len(verdict.Faults) != 1 {
		t.Fatalf("%d faults, want 1", len(verdict.Faults))
	}
	fault := verdict.Faults[0]
	if fault.Severity != domain.SeverityCritical || fault.Tier != domain.Tier1A {
		t.Fatalf("fault severity %s tier %s, want critical/1A", fault.Severity, fault.Tier)
	}
	if fault.ID == "" || fault.SessionID != "sess-1" || fault.InstanceID != target.ID {
		t.Fatalf("fault not persisted with linkage: %+v", fault)
	}
	if len(completed.FaultIDs) != 1 || completed.FaultIDs[0] != fault.ID {
		t.Fatalf("instance fault linkage = %v", completed.FaultIDs)
	}

	persisted, err := store.ListFaults(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list faults: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Status != domain.FaultOpen {
		t.Fatalf("persisted faults = %+v", persisted)
	}

	// Completed is terminal.
	if _, _, err := service.SubmitResult(ctx, target.ID, domain.NumericReading{Value: 50.0, Unit: "Pa"}); err == nil {
		t.Fatalf("resubmission on completed instance accepted")
	}
}

func TestSubmitRequiresInProgress(t *testing.T) {
	service, _ := newTestService(t)
	instances := planAnnualSession(t, service)
	target := instances[0]
	if _, _, err := service.SubmitResult(context.Background(), target.ID, domain.NumericReading{Value: 50.0, Unit: "Pa"}); err == nil {
		t.Fatalf("submission on pending instance accepted")
	}
}

func TestSkipAndRetryFlows(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	instances := planAnnualSession(t, service)

	skipped, err := service.SkipInstance(ctx, instances[0].ID, "floor under construction")
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if skipped.Status != StatusSkipped || skipped.SkipReason == "" {
		t.Fatalf("skip state: %+v", skipped)
	}
	if _, err := service.SkipInstance(ctx, instances[1].ID, ""); err == nil {
		t.Fatalf("skip without reason accepted")
	}

	target := instances[2]
	if _, err := service.StartInstance(ctx, target.ID, "tech-7"); err != nil {
		t.Fatalf("start: %v", err)
	}
	failed, err := service.FailInstance(ctx, target.ID)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("fail state: %+v", failed)
	}
	retried, err := service.RetryInstance(ctx, target.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != StatusPending || retried.Technician != "" || retried.StartedAt != nil || retried.Measured != nil || retried.Verdict != nil {
		t.Fatalf("retry did not reset execution state: %+v", retried)
	}
	if _, err := service.StartInstance(ctx, target.ID, "tech-8"); err != nil {
		t.Fatalf("restart after retry: %v", err)
	}
}

func TestSessionReportAndArchive(t *testing.T) {
	reports := blob.NewMemory()
	store := memory.NewStore()
	store.SetNowFunc(func() time.Time { return testNow })
	ctx := context.Background()
	if err := store.SeedBaseline(ctx, towerBaseline()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	service := NewService(store, Config{Now: func() time.Time { return testNow }, Reports: reports})
	instances := planAnnualSession(t, service)

	// One completed non-compliant, one skipped, rest pending.
	target := findInstance(t, instances, func(i TestInstance) bool {
		pc, ok := i.Context.(domain.PressureContext)
		return ok && pc.FloorID == "fl-L2" && pc.Config == domain.DoorConfigEvacOpen
	})
	if _, err := service.StartInstance(ctx, target.ID, "tech-7"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := service.SubmitResult(ctx, target.ID, domain.NumericReading{Value: 18.0, Unit: "Pa"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	other := instances[0]
	if other.ID == target.ID {
		other = instances[1]
	}
	if _, err := service.SkipInstance(ctx, other.ID, "area inaccessible"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	report, err := service.SessionResults(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session results: %v", err)
	}
	if report.Summary.Total != 16 || report.Summary.Completed != 1 || report.Summary.Skipped != 1 || report.Summary.Pending != 14 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Summary.NonCompliant != 1 || report.Summary.OpenFaults != 1 {
		t.Fatalf("summary fault counts = %+v", report.Summary)
	}
	if len(report.Stairs) != 1 || report.Stairs[0].StairName != "Stair A" {
		t.Fatalf("stair grouping = %+v", report.Stairs)
	}
	if len(report.Stairs[0].Results) != 16 {
		t.Fatalf("%d result rows, want 16", len(report.Stairs[0].Results))
	}

	info, err := service.ArchiveSessionReport(ctx, "sess-1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.HasPrefix(info.Key, "reports/sess-1/") || info.ContentType != "application/json" {
		t.Fatalf("archived object = %+v", info)
	}
	_, rc, err := reports.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get archived report: %v", err)
	}
	payload, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read archived report: %v", err)
	}
	_ = rc.Close()
	var decoded SessionReport
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode archived report: %v", err)
	}
	if decoded.SessionID != "sess-1" || decoded.Summary.Total != 16 {
		t.Fatalf("archived report = %+v", decoded.Summary)
	}
}

func TestMetricsRecorderObservesOperations(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.SeedBaseline(ctx, towerBaseline()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	service := NewService(store, Config{Metrics: rec})
	if _, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := service.GenerateTemplates(ctx, "missing-building", domain.FrequencyAnnual); err == nil {
		t.Fatalf("expected missing-baseline failure")
	}
	snap := rec.Snapshot()
	if snap.Results["generate_templates"]["success"] != 1 {
		t.Fatalf("success count = %d, want 1", snap.Results["generate_templates"]["success"])
	}
	if snap.Results["generate_templates"]["error"] != 1 {
		t.Fatalf("error count = %d, want 1", snap.Results["generate_templates"]["error"])
	}
}
