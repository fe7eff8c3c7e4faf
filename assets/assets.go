// Package assets embeds the reference data a fresh journal is seeded with.
package assets

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"carnote/internal/core"
)

// SeedFS embeds the seed JSON files.
//
//go:embed seed/*.json
var SeedFS embed.FS

// DefaultVehicleID identifies the vehicle created on first run.
const DefaultVehicleID = "note-01"

// Templates returns the built-in maintenance templates.
func Templates() ([]core.MaintenanceTemplate, error) {
	b, err := SeedFS.ReadFile("seed/templates.json")
	if err != nil {
		return nil, fmt.Errorf("read seed templates: %w", err)
	}
	var out []core.MaintenanceTemplate
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode seed templates: %w", err)
	}
	return out, nil
}

// DefaultVehicle returns the vehicle created on first run.
func DefaultVehicle(now time.Time) core.Vehicle {
	year := 2012
	return core.Vehicle{
		ID:             DefaultVehicleID,
		Make:           "Nissan",
		Model:          "Note",
		Year:           &year,
		Engine:         "HR15",
		Transmission:   core.Continuous,
		UnitDistance:   core.Miles,
		CurrentMileage: 79815,
		CreatedAt:      now.UTC().Truncate(time.Second),
	}
}
