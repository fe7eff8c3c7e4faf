package core

import (
	"encoding/json"
	"testing"
)

func TestDateAddMonths(t *testing.T) {
	tests := []struct {
		in   Date
		n    int
		want Date
	}{
		{NewDate(2024, 1, 15), 6, NewDate(2024, 7, 15)},
		{NewDate(2024, 1, 31), 1, NewDate(2024, 2, 29)},
		{NewDate(2023, 1, 31), 1, NewDate(2023, 2, 28)},
		{NewDate(2024, 8, 31), 1, NewDate(2024, 9, 30)},
		{NewDate(2024, 11, 30), 3, NewDate(2025, 2, 28)},
		{NewDate(2024, 3, 10), 12, NewDate(2025, 3, 10)},
		{NewDate(2024, 3, 10), 0, NewDate(2024, 3, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := tt.in.AddMonths(tt.n); !got.Equal(tt.want.Time) {
				t.Errorf("AddMonths(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestDateWithDay(t *testing.T) {
	tests := []struct {
		in   Date
		day  int
		want Date
	}{
		{NewDate(2024, 2, 10), 31, NewDate(2024, 2, 29)},
		{NewDate(2024, 3, 29), 31, NewDate(2024, 3, 31)},
		{NewDate(2024, 4, 1), 15, NewDate(2024, 4, 15)},
		{NewDate(2024, 4, 9), 0, NewDate(2024, 4, 1)},
	}
	for _, tt := range tests {
		if got := tt.in.WithDay(tt.day); !got.Equal(tt.want.Time) {
			t.Errorf("%v.WithDay(%d) = %v, want %v", tt.in, tt.day, got, tt.want)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	a := NewDate(2024, 7, 10)
	if got := a.DaysUntil(NewDate(2024, 7, 15)); got != 5 {
		t.Errorf("DaysUntil() = %d, want 5", got)
	}
	if got := a.DaysUntil(NewDate(2024, 7, 1)); got != -9 {
		t.Errorf("DaysUntil() = %d, want -9", got)
	}
	// across a DST boundary in most zones; dates are UTC so it stays exact
	if got := NewDate(2024, 3, 1).DaysUntil(NewDate(2024, 4, 1)); got != 31 {
		t.Errorf("DaysUntil() = %d, want 31", got)
	}
}

func TestDateBetween(t *testing.T) {
	start, end := NewDate(2024, 1, 1), NewDate(2024, 1, 31)
	for _, d := range []Date{start, end, NewDate(2024, 1, 15)} {
		if !d.Between(start, end) {
			t.Errorf("%v should be inside [%v, %v]", d, start, end)
		}
	}
	if NewDate(2024, 2, 1).Between(start, end) {
		t.Errorf("2024-02-01 should be outside")
	}
}

func TestDateJSON(t *testing.T) {
	type wrap struct {
		D  Date  `json:"d"`
		DP *Date `json:"dp,omitempty"`
	}
	b, err := json.Marshal(wrap{D: NewDate(2024, 7, 15)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"d":"2024-07-15"}` {
		t.Errorf("Marshal() = %s", b)
	}

	var w wrap
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29T10:00:00Z","dp":"2024-03-01"}`), &w); err != nil {
		t.Fatal(err)
	}
	if w.D.String() != "2024-02-29" || w.DP == nil || w.DP.String() != "2024-03-01" {
		t.Errorf("Unmarshal() = %+v", w)
	}

	if err := json.Unmarshal([]byte(`{"d":"15/07/2024"}`), &w); err == nil {
		t.Errorf("expected error for non ISO date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-05-06"); err != nil {
		t.Fatal(err)
	}
	if d.String() != "2024-05-06" {
		t.Errorf("Scan() = %v", d)
	}
	v, _ := d.Value()
	if v != "2024-05-06" {
		t.Errorf("Value() = %v", v)
	}
}
