package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Kilometers DistanceUnit = "km"
	Miles      DistanceUnit = "mi"
)

const (
	Manual     Transmission = "MT"
	Automatic  Transmission = "AT"
	Continuous Transmission = "CVT"
)

const (
	Monthly   Cadence = "MONTHLY"
	Quarterly Cadence = "QUARTERLY"
	Yearly    Cadence = "YEARLY"
)

const (
	FuelA92     FuelType = "A92"
	FuelA95     FuelType = "A95"
	FuelA95Plus FuelType = "A95+"
	FuelDiesel  FuelType = "Diesel"
	FuelGas     FuelType = "Gas"
)

const (
	PartNeeded    PartStatus = "need"
	PartInCart    PartStatus = "in_cart"
	PartBought    PartStatus = "bought"
	PartInstalled PartStatus = "installed"
)

const (
	CurrencyUAH Currency = "UAH"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

const maxTextLen = 200

type (
	DistanceUnit string
	Transmission string
	Cadence      string
	FuelType     string
	PartStatus   string
	Currency     string

	Vehicle struct {
		ID             string       `json:"id"`
		Make           string       `json:"make"`
		Model          string       `json:"model"`
		Year           *int         `json:"year,omitempty"`
		Engine         string       `json:"engine,omitempty"`
		Transmission   Transmission `json:"transmission,omitempty"`
		UnitDistance   DistanceUnit `json:"unitDistance"`
		CurrentMileage int          `json:"currentMileage"`
		CreatedAt      time.Time    `json:"createdAt"`
	}

	MaintenanceTemplate struct {
		ID               string       `json:"id"`
		Title            string       `json:"title"`
		IntervalMonths   *int         `json:"intervalMonths,omitempty"`
		IntervalDistance *int         `json:"intervalDistance,omitempty"`
		Notes            string       `json:"notes,omitempty"`
		SourceURL        string       `json:"sourceUrl,omitempty"`
		UnitDistance     DistanceUnit `json:"unitDistance"`
	}

	ServiceRecord struct {
		ID         int64     `json:"id"` // store assigned
		VehicleID  string    `json:"vehicleId"`
		TemplateID string    `json:"templateId"`
		Date       Date      `json:"date"`
		Mileage    int       `json:"mileage"`
		Cost       *Money    `json:"cost,omitempty"`
		Location   string    `json:"location,omitempty"`
		Note       string    `json:"note,omitempty"`
		ReceiptURL string    `json:"receiptUrl,omitempty"`
		AddedAt    time.Time `json:"addedAt"`
	}

	PartLink struct {
		ID         string     `json:"id"`
		TemplateID string     `json:"templateId"`
		Title      string     `json:"title"`
		Spec       string     `json:"spec,omitempty"`
		URL        string     `json:"url"`
		Price      *Money     `json:"price,omitempty"`
		Currency   Currency   `json:"currency,omitempty"`
		Status     PartStatus `json:"status"`
	}

	FuelRecord struct {
		ID              string   `json:"id"`
		VehicleID       string   `json:"vehicleId"`
		Date            Date     `json:"date"`
		Mileage         int      `json:"mileage"`
		PreviousMileage *int     `json:"previousMileage,omitempty"`
		Liters          float64  `json:"liters"`
		PricePerLiter   Money    `json:"pricePerLiter"`
		TotalPrice      Money    `json:"totalPrice"`
		Station         string   `json:"station"`
		FuelType        FuelType `json:"fuelType"`
		FullTank        bool     `json:"fullTank"`
		Consumption     *float64 `json:"consumption,omitempty"` // liters per 100 distance units
		Note            string   `json:"note,omitempty"`
	}

	Expense struct {
		ID          string `json:"id"`
		VehicleID   string `json:"vehicleId"`
		Date        Date   `json:"date"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description,omitempty"`
		RecurringID string `json:"recurringId,omitempty"`
	}

	RecurringExpense struct {
		ID          string  `json:"id"`
		VehicleID   string  `json:"vehicleId"`
		Description string  `json:"description"`
		Amount      Money   `json:"amount"`
		Cadence     Cadence `json:"cadence"`
		NextDate    Date    `json:"nextDate"`
		Category    string  `json:"category,omitempty"`
		AnchorDay   int     `json:"anchorDay,omitempty"` // 0 means the day of NextDate
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyTitle          = errors.New("empty title")
	ErrEmptyVehicle        = errors.New("empty vehicle id")
	ErrEmptyTemplate       = errors.New("empty template id")
	ErrInvalidMileage      = errors.New("invalid mileage")
	ErrInvalidLiters       = errors.New("invalid liters")
	ErrInvalidInterval     = errors.New("invalid interval")
	ErrInvalidCadence      = errors.New("invalid cadence")
	ErrInvalidFuelType     = errors.New("invalid fuel type")
	ErrInvalidUnit         = errors.New("invalid distance unit")
	ErrInvalidTransmission = errors.New("invalid transmission")
	ErrInvalidPartStatus   = errors.New("invalid part status")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrTextTooLong         = errors.New("text too long (max 200 characters)")
	ErrEmptyURL            = errors.New("empty url")
	ErrInvalidAnchorDay    = errors.New("invalid anchor day")
)

func (u DistanceUnit) Valid() bool { return u == Kilometers || u == Miles }

func (c Cadence) Valid() bool {
	switch c {
	case Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func (f FuelType) Valid() bool {
	switch f {
	case FuelA92, FuelA95, FuelA95Plus, FuelDiesel, FuelGas:
		return true
	}
	return false
}

func (s PartStatus) Valid() bool {
	switch s {
	case PartNeeded, PartInCart, PartBought, PartInstalled:
		return true
	}
	return false
}

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return ErrEmptyVehicle
	}
	if strings.TrimSpace(v.Make) == "" || strings.TrimSpace(v.Model) == "" {
		return ErrEmptyTitle
	}
	if !v.UnitDistance.Valid() {
		return ErrInvalidUnit
	}
	switch v.Transmission {
	case "", Manual, Automatic, Continuous:
	default:
		return ErrInvalidTransmission
	}
	if v.CurrentMileage < 0 {
		return ErrInvalidMileage
	}
	return nil
}

func (t MaintenanceTemplate) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTemplate
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.IntervalMonths != nil && *t.IntervalMonths < 0 {
		return ErrInvalidInterval
	}
	if t.IntervalDistance != nil && *t.IntervalDistance < 0 {
		return ErrInvalidInterval
	}
	if !t.UnitDistance.Valid() {
		return ErrInvalidUnit
	}
	return nil
}

func (r ServiceRecord) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" {
		return ErrEmptyVehicle
	}
	if strings.TrimSpace(r.TemplateID) == "" {
		return ErrEmptyTemplate
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.Mileage < 0 {
		return ErrInvalidMileage
	}
	if r.Cost != nil && r.Cost.Cents < 0 {
		return ErrInvalidAmount
	}
	if len(r.Note) > maxTextLen || len(r.Location) > maxTextLen {
		return ErrTextTooLong
	}
	return nil
}

func (p PartLink) Validate() error {
	if strings.TrimSpace(p.TemplateID) == "" {
		return ErrEmptyTemplate
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(p.URL) == "" {
		return ErrEmptyURL
	}
	if p.Price != nil && p.Price.Cents < 0 {
		return ErrInvalidAmount
	}
	switch p.Currency {
	case "", CurrencyUAH, CurrencyUSD, CurrencyEUR:
	default:
		return ErrInvalidCurrency
	}
	if !p.Status.Valid() {
		return ErrInvalidPartStatus
	}
	return nil
}

func (f FuelRecord) Validate() error {
	if strings.TrimSpace(f.VehicleID) == "" {
		return ErrEmptyVehicle
	}
	if err := f.Date.Validate(); err != nil {
		return err
	}
	if f.Mileage < 0 || (f.PreviousMileage != nil && *f.PreviousMileage < 0) {
		return ErrInvalidMileage
	}
	if f.Liters <= 0 {
		return ErrInvalidLiters
	}
	if err := f.PricePerLiter.Validate(); err != nil {
		return err
	}
	if f.TotalPrice.Cents < 0 {
		return ErrInvalidAmount
	}
	if !f.FuelType.Valid() {
		return ErrInvalidFuelType
	}
	if len(f.Station) > maxTextLen || len(f.Note) > maxTextLen {
		return ErrTextTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.VehicleID) == "" {
		return ErrEmptyVehicle
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > maxTextLen {
		return ErrTextTooLong
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.VehicleID) == "" {
		return ErrEmptyVehicle
	}
	if err := re.NextDate.Validate(); err != nil {
		return errors.New("invalid next date: " + err.Error())
	}
	if !re.Cadence.Valid() {
		return ErrInvalidCadence
	}
	if len(strings.TrimSpace(re.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(re.Description) > maxTextLen {
		return ErrTextTooLong
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if re.AnchorDay < 0 || re.AnchorDay > 31 {
		return ErrInvalidAnchorDay
	}
	return nil
}

// IntPtr returns a pointer to v. Handy for optional intervals and mileages.
func IntPtr(v int) *int { return &v }
