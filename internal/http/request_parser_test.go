package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"carnote/internal/core"
	"carnote/internal/exchange"
	"carnote/internal/ports"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		malformed bool
	}{
		{"valid", `{"mileage":100}`, false, false},
		{"trailing data", `{"mileage":100}{"mileage":1}`, true, true},
		{"not json", `mileage=100`, true, true},
		{"unknown field", `{"mileage":1,"odometer":2}`, true, true},
		{"fails validation", `{"mileage":-1}`, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req mileageRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, errMalformedBody); got != tt.malformed {
				t.Errorf("errors.Is(err, errMalformedBody) = %v, want %v", got, tt.malformed)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"mileage":1` + strings.Repeat(" ", maxBodyBytes) + `}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var req mileageRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	if got := ErrorFromErr(err).StatusCode(); got != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413 (err %v)", got, err)
	}
}

func TestRequestConversions(t *testing.T) {
	today := core.NewDate(2024, 8, 1)

	rec, err := serviceRequest{TemplateID: " oil ", Mileage: 5, Cost: floatPtr(12.35)}.record(today)
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if rec.Date.String() != "2024-08-01" || rec.TemplateID != "oil" || rec.Cost == nil || rec.Cost.Cents != 1235 {
		t.Errorf("service record = %+v", rec)
	}

	fuel, err := fuelRequest{Date: "2024-07-02", Liters: 10, PricePerLiter: 55.99, FuelType: " A95 "}.record(today)
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if fuel.PricePerLiter.Cents != 5599 || fuel.FuelType != core.FuelA95 || fuel.Date.String() != "2024-07-02" {
		t.Errorf("fuel record = %+v", fuel)
	}

	if _, err := (expenseRequest{Date: "2024-02-30", Amount: 1, Category: "x"}).expense(today); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("expense() error = %v, want ErrInvalidDate", err)
	}

	part := partRequest{TemplateID: "oil", Title: "Filter\x00", URL: " https://example.com ", Currency: "EUR"}.part()
	if part.Title != "Filter" || part.URL != "https://example.com" || part.Price != nil {
		t.Errorf("part = %+v", part)
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestParseSummaryWindow(t *testing.T) {
	today := core.NewDate(2024, 2, 10)
	tests := []struct {
		name      string
		query     string
		wantStart string
		wantEnd   string
		wantLabel string
		wantErr   bool
	}{
		{"defaults to month", "", "2024-02-01", "2024-02-29", "", false},
		{"explicit", "start=2024-01-01&end=2024-03-31&label=Q1", "2024-01-01", "2024-03-31", "Q1", false},
		{"only start", "start=2024-02-05", "2024-02-05", "2024-02-29", "", false},
		{"bad date", "start=yesterday", "", "", "", true},
		{"inverted", "start=2024-03-01&end=2024-02-01", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			start, end, label, err := parseSummaryWindow(q, today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSummaryWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if start.String() != tt.wantStart || end.String() != tt.wantEnd || label != tt.wantLabel {
				t.Errorf("parseSummaryWindow() = %s, %s, %q", start, end, label)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 2024, false},
		{"year=2023", 2023, false},
		{"year=20x", 0, true},
		{"year=12", 0, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseYear(q, 2024)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseYear(%q) = %d, %v, want %d, wantErr %v", tt.query, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestErrorFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed", fmt.Errorf("%w: eof", errMalformedBody), http.StatusBadRequest},
		{"domain", fmt.Errorf("save: %w", core.ErrInvalidLiters), http.StatusUnprocessableEntity},
		{"import", fmt.Errorf("%w: no tables", exchange.ErrInvalidDocument), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("get template x: %w", ports.ErrNotFound), http.StatusNotFound},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorFromErr(tt.err).StatusCode(); got != tt.want {
				t.Errorf("ErrorFromErr() status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{123456, "1 234.56"},
		{123456789, "1 234 567.89"},
		{-100000, "-1 000.00"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
	if got := formatMileage(120500); got != "120 500" {
		t.Errorf("formatMileage() = %q", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Замена\x07 масла\t "); got != "Замена масла" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
