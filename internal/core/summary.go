package core

// Status is the due classification of a maintenance item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSoon    Status = "soon"
	StatusOverdue Status = "overdue"
)

// Priority orders statuses for presentation: overdue first, ok last.
func (s Status) Priority() int {
	switch s {
	case StatusOverdue:
		return 0
	case StatusSoon:
		return 1
	default:
		return 2
	}
}

// NextDue is the projected next service. Either field may be nil.
type NextDue struct {
	Date    *Date `json:"nextServiceDate,omitempty"`
	Mileage *int  `json:"nextServiceMileage,omitempty"`
}

// TemplateStatus is one row of the maintenance status board.
type TemplateStatus struct {
	Template   MaintenanceTemplate `json:"template"`
	LastRecord *ServiceRecord      `json:"lastRecord,omitempty"`
	NextDue
	Status Status `json:"status"`
}

// StatusBoard groups template rows by status.
type StatusBoard struct {
	Today          Date             `json:"today"`
	CurrentMileage int              `json:"currentMileage"`
	UnitDistance   DistanceUnit     `json:"unitDistance"`
	Rows           []TemplateStatus `json:"rows"`
	Overdue        []TemplateStatus `json:"overdue"`
	Soon           []TemplateStatus `json:"soon"`
	OK             []TemplateStatus `json:"ok"`
}

// FuelStats aggregates a vehicle's fill-ups.
type FuelStats struct {
	Count            int     `json:"count"`
	AvgConsumption   float64 `json:"avgConsumption"`
	BestConsumption  float64 `json:"bestConsumption"`
	WorstConsumption float64 `json:"worstConsumption"`
	TotalLiters      float64 `json:"totalLiters"`
	TotalCost        Money   `json:"totalCost"`
	AvgPrice         float64 `json:"avgPrice"`
	CostPerDistance  float64 `json:"costPerKm"`
	FavoriteStation  *string `json:"favoriteStation"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category   string  `json:"category"`
	Amount     Money   `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// ExpenseSummary covers an inclusive date window.
type ExpenseSummary struct {
	Label       string           `json:"label"`
	Start       Date             `json:"start"`
	End         Date             `json:"end"`
	TotalAmount Money            `json:"totalAmount"`
	ByCategory  []CategoryAmount `json:"byCategory"`
}

// MonthlyData is one calendar month of the yearly report.
type MonthlyData struct {
	Month       int   `json:"month"` // 1-12
	Expenses    Money `json:"expenses"`
	Fuel        Money `json:"fuel"`
	Maintenance Money `json:"maintenance"`
	Other       Money `json:"other"`
}

// YearlyReport is the per-month cost breakdown of a calendar year.
type YearlyReport struct {
	Year            int              `json:"year"`
	Months          []MonthlyData    `json:"monthlyData"`
	TotalExpenses   Money            `json:"totalExpenses"`
	TotalMileage    int              `json:"totalMileage"`
	CostPerDistance float64          `json:"costPerKm"`
	TopExpenses     []CategoryAmount `json:"topExpenses"`
}

// JournalStats summarises a list of service records.
type JournalStats struct {
	Count       int   `json:"count"`
	TotalCost   Money `json:"totalCost"`
	AverageCost Money `json:"averageCost"`
}
