package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"staircore/internal/infra/persistence/memory"
	"staircore/internal/infra/persistence/sqlite"
	"staircore/pkg/domain"
)

func TestOpenStoreFromEnvSelectsDriver(t *testing.T) {
	t.Setenv("STAIRCORE_STORE_DRIVER", "memory")
	store, err := OpenStoreFromEnv()
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("driver memory returned %T", store)
	}

	t.Setenv("STAIRCORE_STORE_DRIVER", "sqlite")
	t.Setenv("STAIRCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "test.db"))
	store, err = OpenStoreFromEnv()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sq, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("driver sqlite returned %T", store)
	}
	_ = sq.Close()

	t.Setenv("STAIRCORE_STORE_DRIVER", "ledger")
	if _, err := OpenStoreFromEnv(); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestSQLiteStoreServesService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.db")
	store, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.SeedBaseline(ctx, towerBaseline()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	service := NewService(store, Config{})
	report, err := service.GenerateTemplates(ctx, "bldg-100collins", domain.FrequencyAnnual)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if report.Total != 16 {
		t.Fatalf("total = %d, want 16", report.Total)
	}
}

func TestPrometheusRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "generate_templates", true, 25*time.Millisecond)
	rec.Observe(ctx, "generate_templates", true, 30*time.Millisecond)
	rec.Observe(ctx, "generate_templates", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond) // ignored

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	var histSamples uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "staircore_operations_total":
			for _, m := range mf.GetMetric() {
				var operation, status string
				for _, lp := range m.GetLabel() {
					switch lp.GetName() {
					case "operation":
						operation = lp.GetValue()
					case "status":
						status = lp.GetValue()
					}
				}
				counts[operation+"/"+status] = m.GetCounter().GetValue()
			}
		case "staircore_operation_duration_seconds":
			for _, m := range mf.GetMetric() {
				histSamples += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if counts["generate_templates/success"] != 2 {
		t.Fatalf("success count = %v", counts["generate_templates/success"])
	}
	if counts["generate_templates/error"] != 1 {
		t.Fatalf("error count = %v", counts["generate_templates/error"])
	}
	if histSamples != 3 {
		t.Fatalf("histogram samples = %d, want 3", histSamples)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("double registration accepted")
	}
}
