package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"staircore/internal/blob"
	"staircore/pkg/domain"
)

// InstanceResult is a single row of a session report: one test instance
// with its outcome and the faults it raised.
type InstanceResult struct {
	InstanceID    string                   `json:"instance_id"`
	ArchetypeID   string                   `json:"archetype_id"`
	Kind          MeasurementKind          `json:"kind"`
	Frequency     Frequency                `json:"frequency"`
	ContextKey    string                   `json:"context_key"`
	SequenceOrder int                      `json:"sequence_order"`
	Status        InstanceStatus           `json:"status"`
	Technician    string                   `json:"technician,omitempty"`
	SkipReason    string                   `json:"skip_reason,omitempty"`
	Compliant     *bool                    `json:"compliant,omitempty"`
	DeviationPct  *float64                 `json:"deviation_pct,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	Faults        []Fault                  `json:"faults,omitempty"`
	Verdict       *domain.ValidationResult `json:"verdict,omitempty"`
}

// StairReport groups a session's instances under one stair, in execution
// order.
type StairReport struct {
	StairID   string           `json:"stair_id"`
	StairName string           `json:"stair_name,omitempty"`
	Results   []InstanceResult `json:"results"`
}

// SessionSummary totals a session's outcomes. Skipped counts separately
// from completed so completeness reads honestly.
type SessionSummary struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	InProgress   int `json:"in_progress"`
	Completed    int `json:"completed"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	Compliant    int `json:"compliant"`
	NonCompliant int `json:"non_compliant"`
	OpenFaults   int `json:"open_faults"`
}

// SessionReport is the full result set for one scheduled session.
type SessionReport struct {
	SessionID   string         `json:"session_id"`
	BuildingID  string         `json:"building_id,omitempty"`
	Stairs      []StairReport  `json:"stairs"`
	Summary     SessionSummary `json:"summary"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SessionResults assembles the report for a session from its instances
// and the faults raised against them.
func (s *Service) SessionResults(ctx context.Context, sessionID string) (report SessionReport, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "session_results", start, err) }()

	instances, err := s.store.ListSessionInstances(ctx, sessionID)
	if err != nil {
		return SessionReport{}, err
	}
	if len(instances) == 0 {
		err = domain.NotFoundError{Entity: "session", ID: sessionID}
		return SessionReport{}, err
	}

	faults, err := s.store.ListFaults(ctx, sessionID)
	if err != nil {
		return SessionReport{}, err
	}
	faultsByInstance := make(map[string][]Fault, len(faults))
	for _, f := range faults {
		faultsByInstance[f.InstanceID] = append(faultsByInstance[f.InstanceID], f.Clone())
	}

	report = SessionReport{
		SessionID:   sessionID,
		BuildingID:  instances[0].BuildingID,
		GeneratedAt: s.nowFn(),
	}

	var stairNames map[string]string
	if snapshot, baseErr := s.store.GetBaseline(ctx, report.BuildingID); baseErr == nil {
		stairNames = make(map[string]string, len(snapshot.Stairs))
		for _, st := range snapshot.Stairs {
			stairNames[st.ID] = st.Name
		}
	}

	byStair := make(map[string][]InstanceResult)
	for _, inst := range instances {
		row := InstanceResult{
			InstanceID:    inst.ID,
			ArchetypeID:   inst.ArchetypeID,
			Kind:          inst.Kind,
			Frequency:     inst.Frequency,
			ContextKey:    inst.Context.Key(),
			SequenceOrder: inst.SequenceOrder,
			Status:        inst.Status,
			Technician:    inst.Technician,
			SkipReason:    inst.SkipReason,
			CompletedAt:   inst.CompletedAt,
			Faults:        faultsByInstance[inst.ID],
		}
		if inst.Verdict != nil {
			v := inst.Verdict.Clone()
			row.Verdict = &v
			row.Compliant = &v.Compliant
			row.DeviationPct = v.DeviationPct
		}
		byStair[inst.Context.Stair()] = append(byStair[inst.Context.Stair()], row)

		report.Summary.Total++
		switch inst.Status {
		case StatusPending:
			report.Summary.Pending++
		case StatusInProgress:
			report.Summary.InProgress++
		case StatusCompleted:
			report.Summary.Completed++
		case StatusSkipped:
			report.Summary.Skipped++
		case StatusFailed:
			report.Summary.Failed++
		}
		if inst.Verdict != nil {
			if inst.Verdict.Compliant {
				report.Summary.Compliant++
			} else {
				report.Summary.NonCompliant++
			}
		}
	}
	for _, f := range faults {
		if f.Status == domain.FaultOpen {
			report.Summary.OpenFaults++
		}
	}

	stairIDs := make([]string, 0, len(byStair))
	for id := range byStair {
		stairIDs = append(stairIDs, id)
	}
	sort.Slice(stairIDs, func(i, j int) bool {
		ni, nj := stairNames[stairIDs[i]], stairNames[stairIDs[j]]
		if ni != nj {
			return ni < nj
		}
		return stairIDs[i] < stairIDs[j]
	})
	for _, id := range stairIDs {
		rows := byStair[id]
		sort.Slice(rows, func(i, j int) bool { return rows[i].SequenceOrder < rows[j].SequenceOrder })
		report.Stairs = append(report.Stairs, StairReport{
			StairID:   id,
			StairName: stairNames[id],
			Results:   rows,
		})
	}
	return report, nil
}

// ArchiveSessionReport renders the session report as JSON and writes it
// to the configured report store. Returns the stored object's metadata.
func (s *Service) ArchiveSessionReport(ctx context.Context, sessionID string) (info blob.Info, err error) {
	start := s.nowFn()
	defer func() { s.observe(ctx, "archive_session_report", start, err) }()

	if s.reports == nil {
		err = errors.New("no report store configured")
		return blob.Info{}, err
	}
	report, err := s.SessionResults(ctx, sessionID)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		err = fmt.Errorf("encode session report: %w", err)
		return blob.Info{}, err
	}
	key := fmt.Sprintf("reports/%s/%s.json", sessionID, report.GeneratedAt.UTC().Format("20060102T150405Z"))
	info, err = s.reports.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"session_id":  sessionID,
			"building_id": report.BuildingID,
		},
	})
	if err != nil {
		err = fmt.Errorf("archive session report: %w", err)
		return blob.Info{}, err
	}
	return info, nil
}
