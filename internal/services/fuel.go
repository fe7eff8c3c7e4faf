package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"carnote/internal/core"
	"carnote/internal/ports"
)

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// DeriveConsumption returns liters per 100 distance units for a full-tank
// fill-up, rounded to two decimals. It is nil unless the tank was filled,
// a previous full-tank reading exists and the odometer moved forward.
func DeriveConsumption(liters float64, mileage int, previousMileage *int, fullTank bool) *float64 {
	if !fullTank || previousMileage == nil || mileage <= *previousMileage {
		return nil
	}
	c := round2(liters / float64(mileage-*previousMileage) * 100)
	return &c
}

// sortFuelByDate returns a copy of records ordered by date ascending. The
// sort is stable so equal dates keep repository order.
func sortFuelByDate(records []core.FuelRecord) []core.FuelRecord {
	list := make([]core.FuelRecord, len(records))
	copy(list, records)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Date.Before(list[j].Date)
	})
	return list
}

// mileageSpan is max minus min odometer over readings, 0 with fewer than two.
func mileageSpan(records []core.FuelRecord) int {
	if len(records) < 2 {
		return 0
	}
	lo, hi := records[0].Mileage, records[0].Mileage
	for _, r := range records[1:] {
		lo = min(lo, r.Mileage)
		hi = max(hi, r.Mileage)
	}
	return hi - lo
}

// FuelStatistics aggregates fill-ups. Records without a consumption value
// are left out of the consumption figures. Empty input yields zero values
// and a nil favourite station.
func FuelStatistics(records []core.FuelRecord) core.FuelStats {
	list := sortFuelByDate(records)
	stats := core.FuelStats{Count: len(list)}

	var consumptions []float64
	stationCount := make(map[string]int)
	var stationOrder []string
	for _, r := range list {
		if r.Consumption != nil && !math.IsNaN(*r.Consumption) && !math.IsInf(*r.Consumption, 0) {
			consumptions = append(consumptions, *r.Consumption)
		}
		stats.TotalLiters += r.Liters
		stats.TotalCost = stats.TotalCost.Add(r.TotalPrice)
		if r.Station == "" {
			continue
		}
		if _, seen := stationCount[r.Station]; !seen {
			stationOrder = append(stationOrder, r.Station)
		}
		stationCount[r.Station]++
	}

	if len(consumptions) > 0 {
		sum := 0.0
		stats.BestConsumption, stats.WorstConsumption = consumptions[0], consumptions[0]
		for _, c := range consumptions {
			sum += c
			stats.BestConsumption = min(stats.BestConsumption, c)
			stats.WorstConsumption = max(stats.WorstConsumption, c)
		}
		stats.AvgConsumption = sum / float64(len(consumptions))
	}
	if stats.TotalLiters > 0 {
		stats.AvgPrice = stats.TotalCost.Units() / stats.TotalLiters
	}
	if span := mileageSpan(list); span > 0 {
		stats.CostPerDistance = stats.TotalCost.Units() / float64(span)
	}

	// first station to reach the highest count wins
	best := 0
	for _, st := range stationOrder {
		if stationCount[st] > best {
			best = stationCount[st]
			name := st
			stats.FavoriteStation = &name
		}
	}
	return stats
}

// FuelService records fill-ups and reports on them.
type FuelService struct {
	repo      ports.Repository
	publisher ports.EventPublisher
	vehicleID string
}

func NewFuelService(repo ports.Repository, publisher ports.EventPublisher, vehicleID string) *FuelService {
	return &FuelService{repo: repo, publisher: publisher, vehicleID: vehicleID}
}

// AddFuelRecord completes the derived fields of rec, stores it and
// publishes a sync message. For a full tank without a previous reading the
// mileage of the latest full-tank fill-up is used.
func (s *FuelService) AddFuelRecord(ctx context.Context, rec core.FuelRecord) (core.FuelRecord, error) {
	if rec.VehicleID == "" {
		rec.VehicleID = s.vehicleID
	}
	rec.Station = strings.TrimSpace(rec.Station)
	if rec.TotalPrice.IsZero() {
		rec.TotalPrice = core.MoneyFromUnits(rec.Liters * rec.PricePerLiter.Units())
	}
	if err := rec.Validate(); err != nil {
		return core.FuelRecord{}, err
	}

	if rec.FullTank && rec.PreviousMileage == nil {
		existing, err := s.repo.ListFuelRecords(ctx, rec.VehicleID)
		if err != nil {
			return core.FuelRecord{}, fmt.Errorf("list fuel records: %w", err)
		}
		if prev, ok := latestFullTank(existing); ok {
			m := prev.Mileage
			rec.PreviousMileage = &m
		}
	}
	rec.Consumption = DeriveConsumption(rec.Liters, rec.Mileage, rec.PreviousMileage, rec.FullTank)
	rec.ID = uuid.NewString()

	if err := s.repo.AddFuelRecord(ctx, rec); err != nil {
		return core.FuelRecord{}, fmt.Errorf("save fuel record: %w", err)
	}
	bumpMileage(ctx, s.repo, rec.VehicleID, rec.Mileage)
	publishSync(ctx, s.publisher, ports.JournalRef{Kind: ports.KindFuel, ID: rec.ID})

	slog.InfoContext(ctx, "Fuel record added",
		"id", rec.ID,
		"mileage", rec.Mileage,
		"liters", rec.Liters,
		"full_tank", rec.FullTank)
	return rec, nil
}

// latestFullTank returns the most recent full-tank record by date.
func latestFullTank(records []core.FuelRecord) (core.FuelRecord, bool) {
	var (
		found bool
		last  core.FuelRecord
	)
	for _, r := range sortFuelByDate(records) {
		if r.FullTank {
			last, found = r, true
		}
	}
	return last, found
}

// List returns the vehicle's fill-ups, newest first.
func (s *FuelService) List(ctx context.Context) ([]core.FuelRecord, error) {
	records, err := s.repo.ListFuelRecords(ctx, s.vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list fuel records: %w", err)
	}
	list := sortFuelByDate(records)
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// Statistics loads the vehicle's fill-ups and aggregates them.
func (s *FuelService) Statistics(ctx context.Context) (core.FuelStats, error) {
	records, err := s.repo.ListFuelRecords(ctx, s.vehicleID)
	if err != nil {
		return core.FuelStats{}, fmt.Errorf("list fuel records: %w", err)
	}
	return FuelStatistics(records), nil
}
