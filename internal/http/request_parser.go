// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding: JSON bodies into validated DTOs and
// the query parameters shared by the report endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"carnote/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

var errMalformedBody = errors.New("malformed request body")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON object into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return validate.Struct(dst)
}

// dateOr parses s, returning def when s is empty.
func dateOr(s string, def core.Date) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return core.ParseDate(s)
}

func moneyPtr(units *float64) *core.Money {
	if units == nil {
		return nil
	}
	m := core.MoneyFromUnits(*units)
	return &m
}

type serviceRequest struct {
	TemplateID string   `json:"templateId" validate:"required,max=100"`
	Date       string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Mileage    int      `json:"mileage" validate:"gte=0"`
	Cost       *float64 `json:"cost" validate:"omitempty,gte=0"`
	Location   string   `json:"location" validate:"max=200"`
	Note       string   `json:"note" validate:"max=200"`
	ReceiptURL string   `json:"receiptUrl" validate:"omitempty,url"`
}

func (req serviceRequest) record(today core.Date) (core.ServiceRecord, error) {
	date, err := dateOr(req.Date, today)
	if err != nil {
		return core.ServiceRecord{}, err
	}
	return core.ServiceRecord{
		TemplateID: sanitizeInput(req.TemplateID),
		Date:       date,
		Mileage:    req.Mileage,
		Cost:       moneyPtr(req.Cost),
		Location:   sanitizeInput(req.Location),
		Note:       sanitizeInput(req.Note),
		ReceiptURL: strings.TrimSpace(req.ReceiptURL),
	}, nil
}

type fuelRequest struct {
	Date          string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Mileage       int     `json:"mileage" validate:"gte=0"`
	Liters        float64 `json:"liters" validate:"gt=0"`
	PricePerLiter float64 `json:"pricePerLiter" validate:"gt=0"`
	TotalPrice    float64 `json:"totalPrice" validate:"gte=0"`
	Station       string  `json:"station" validate:"max=200"`
	FuelType      string  `json:"fuelType" validate:"required"`
	FullTank      bool    `json:"fullTank"`
	Note          string  `json:"note" validate:"max=200"`
}

func (req fuelRequest) record(today core.Date) (core.FuelRecord, error) {
	date, err := dateOr(req.Date, today)
	if err != nil {
		return core.FuelRecord{}, err
	}
	return core.FuelRecord{
		Date:          date,
		Mileage:       req.Mileage,
		Liters:        req.Liters,
		PricePerLiter: core.MoneyFromUnits(req.PricePerLiter),
		TotalPrice:    core.MoneyFromUnits(req.TotalPrice),
		Station:       sanitizeInput(req.Station),
		FuelType:      core.FuelType(strings.TrimSpace(req.FuelType)),
		FullTank:      req.FullTank,
		Note:          sanitizeInput(req.Note),
	}, nil
}

type expenseRequest struct {
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Category    string  `json:"category" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=200"`
}

func (req expenseRequest) expense(today core.Date) (core.Expense, error) {
	date, err := dateOr(req.Date, today)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		Date:        date,
		Amount:      core.MoneyFromUnits(req.Amount),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}, nil
}

type recurringRequest struct {
	ID          string  `json:"id" validate:"max=100"`
	Description string  `json:"description" validate:"required,max=200"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Cadence     string  `json:"cadence" validate:"required,oneof=MONTHLY QUARTERLY YEARLY"`
	NextDate    string  `json:"nextDate" validate:"required,datetime=2006-01-02"`
	Category    string  `json:"category" validate:"max=200"`
}

func (req recurringRequest) recurring() (core.RecurringExpense, error) {
	next, err := core.ParseDate(req.NextDate)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	return core.RecurringExpense{
		ID:          strings.TrimSpace(req.ID),
		Description: sanitizeInput(req.Description),
		Amount:      core.MoneyFromUnits(req.Amount),
		Cadence:     core.Cadence(req.Cadence),
		NextDate:    next,
		Category:    sanitizeInput(req.Category),
	}, nil
}

type partRequest struct {
	TemplateID string   `json:"templateId" validate:"required,max=100"`
	Title      string   `json:"title" validate:"required,max=200"`
	Spec       string   `json:"spec" validate:"max=200"`
	URL        string   `json:"url" validate:"required,url"`
	Price      *float64 `json:"price" validate:"omitempty,gte=0"`
	Currency   string   `json:"currency" validate:"omitempty,oneof=UAH USD EUR"`
}

func (req partRequest) part() core.PartLink {
	return core.PartLink{
		TemplateID: sanitizeInput(req.TemplateID),
		Title:      sanitizeInput(req.Title),
		Spec:       sanitizeInput(req.Spec),
		URL:        strings.TrimSpace(req.URL),
		Price:      moneyPtr(req.Price),
		Currency:   core.Currency(req.Currency),
	}
}

type partStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=need in_cart bought installed"`
}

type mileageRequest struct {
	Mileage int `json:"mileage" validate:"gte=0"`
}

// parseYear reads ?year, defaulting to def.
func parseYear(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return def, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, fmt.Errorf("%w: year %q", core.ErrInvalidDate, v)
	}
	return y, nil
}

// parseSummaryWindow reads ?start, ?end and ?label. The window defaults to
// the calendar month of today.
func parseSummaryWindow(query url.Values, today core.Date) (start, end core.Date, label string, err error) {
	monthStart := core.NewDate(today.Year(), today.Month(), 1)
	if start, err = dateOr(query.Get("start"), monthStart); err != nil {
		return
	}
	if end, err = dateOr(query.Get("end"), monthStart.AddMonths(1).AddDays(-1)); err != nil {
		return
	}
	if start.After(end) {
		err = fmt.Errorf("%w: start %s is after end %s", core.ErrInvalidDate, start, end)
		return
	}
	label = sanitizeInput(query.Get("label"))
	return
}
