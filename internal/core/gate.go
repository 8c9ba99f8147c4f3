package core

import "staircore/pkg/domain"

// CheckCompleteness verifies a baseline can support generation for a
// frequency. For every applicable archetype it checks that each required
// baseline category has at least one record, then that every context the
// archetype would produce resolves its specific baseline measurement.
//
// The gate fails closed: it returns the exhaustive missing list as a
// BaselineIncompleteError so the caller can supply everything at once, and
// generation for the frequency proceeds entirely or not at all.
func CheckCompleteness(snapshot BaselineSnapshot, freq Frequency, archetypes []Archetype) error {
	var missing []domain.MissingBaseline
	counts := baselineKindCounts(snapshot)

	for _, archetype := range ArchetypesFor(archetypes, freq) {
		for _, kind := range archetype.RequiredBaselineKinds(freq) {
			if counts[kind] == 0 {
				missing = append(missing, domain.MissingBaseline{
					ArchetypeID: archetype.ID(),
					Reason:      "no " + string(kind) + " records in baseline",
				})
			}
		}
		contexts, err := archetype.Expand(snapshot, freq)
		if err != nil {
			return err
		}
		for _, ctx := range contexts {
			resolved := resolveBaseline(snapshot, ctx)
			if resolved.required && !resolved.ok {
				missing = append(missing, domain.MissingBaseline{
					ArchetypeID: archetype.ID(),
					ContextKey:  ctx.Key(),
					Reason:      resolved.reason,
				})
			}
		}
	}

	if len(missing) > 0 {
		return domain.BaselineIncompleteError{
			BuildingID: snapshot.BuildingID,
			Frequency:  freq,
			Missing:    missing,
		}
	}
	return nil
}

func baselineKindCounts(snapshot BaselineSnapshot) map[BaselineKind]int {
	return map[BaselineKind]int{
		domain.BaselineStairs:     len(snapshot.Stairs),
		domain.BaselineFloors:     len(snapshot.Floors),
		domain.BaselineDoors:      len(snapshot.Doors),
		domain.BaselineDoorways:   len(snapshot.Doorways),
		domain.BaselineZones:      len(snapshot.Zones),
		domain.BaselineEquipment:  len(snapshot.Equipment),
		domain.BaselinePressures:  len(snapshot.Pressures),
		domain.BaselineVelocities: len(snapshot.Velocities),
		domain.BaselineForces:     len(snapshot.Forces),
	}
}
