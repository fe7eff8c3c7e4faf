package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"carnote/internal/core"
)

// fakeSheets is a minimal stand-in for the Sheets v4 REST API.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	created  []string
	headers  []string
	appended map[string][][]any
	gets     int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		f.gets++
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			f.created = append(f.created, rq.AddSheet.Properties.Title)
		}
		_, _ = io.WriteString(w, `{}`)

	case strings.HasSuffix(path, ":append"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":append")
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		sheet := rng[:strings.Index(rng, "!")]
		if f.appended == nil {
			f.appended = map[string][][]any{}
		}
		f.appended[sheet] = append(f.appended[sheet], body.Values...)
		row := len(f.appended[sheet]) + 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": sheet + "!A" + strconv.Itoa(row) + ":J" + strconv.Itoa(row)},
		})

	case r.Method == http.MethodPut:
		f.headers = append(f.headers, path[strings.Index(path, "/values/")+len("/values/"):])
		_, _ = io.WriteString(w, `{}`)

	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-id",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: t.TempDir() + "/nope.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("New() error = %v", err)
	}
}

func TestClient_AppendValidates(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	if _, err := c.AppendExpense(context.Background(), core.Expense{Date: core.NewDate(2024, 1, 1)}); err == nil ||
		!strings.Contains(err.Error(), "validation failed") {
		t.Errorf("AppendExpense() error = %v, want validation failure", err)
	}

	valid := core.Expense{VehicleID: "v", Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 100}, Category: "ТО"}
	if _, err := c.AppendExpense(context.Background(), valid); err == nil ||
		!strings.Contains(err.Error(), "not initialized") {
		t.Errorf("AppendExpense() error = %v, want not initialized", err)
	}
}

func TestClient_AppendCreatesYearSheets(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2024 Expenses"}}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	ref, err := c.AppendExpense(ctx, core.Expense{
		ID: "e1", VehicleID: "v", Date: core.NewDate(2024, 2, 1), Amount: core.Money{Cents: 5000}, Category: "Мойка",
	})
	if err != nil {
		t.Fatalf("AppendExpense() error = %v", err)
	}
	if ref != "'2024 Expenses'!A2:J2" {
		t.Errorf("AppendExpense() ref = %q", ref)
	}

	_, err = c.AppendFuel(ctx, core.FuelRecord{
		ID: "f1", VehicleID: "v", Date: core.NewDate(2025, 1, 3), Mileage: 1000, Liters: 30,
		PricePerLiter: core.Money{Cents: 5000}, FuelType: core.FuelA95,
	})
	if err != nil {
		t.Fatalf("AppendFuel() error = %v", err)
	}

	_, err = c.AppendService(ctx, core.ServiceRecord{
		ID: 3, VehicleID: "v", TemplateID: "oil", Date: core.NewDate(2025, 1, 3), Mileage: 1000,
	}, "Oil")
	if err != nil {
		t.Fatalf("AppendService() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.created) != 2 || fake.created[0] != "2025 Fuel" || fake.created[1] != "2025 Service" {
		t.Errorf("created sheets = %v", fake.created)
	}
	if len(fake.headers) != 2 {
		t.Errorf("header writes = %v, want 2", fake.headers)
	}
	if fake.gets != 1 {
		t.Errorf("sheet list fetched %d times, want 1 (cached)", fake.gets)
	}
	if rows := fake.appended["'2025 Service'"]; len(rows) != 1 || rows[0][1] != "Oil" {
		t.Errorf("service rows = %v", rows)
	}
}

func TestClient_SheetCacheInvalidation(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2024 Expenses"}}
	c := newFakeClient(t, fake)
	ctx := context.Background()
	e := core.Expense{ID: "e1", VehicleID: "v", Date: core.NewDate(2024, 2, 1), Amount: core.Money{Cents: 5000}, Category: "Мойка"}

	for range 2 {
		if _, err := c.AppendExpense(ctx, e); err != nil {
			t.Fatalf("AppendExpense() error = %v", err)
		}
	}
	c.invalidateSheetCache()
	if _, err := c.AppendExpense(ctx, e); err != nil {
		t.Fatalf("AppendExpense() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.gets != 2 {
		t.Errorf("sheet list fetched %d times, want 2", fake.gets)
	}
	if len(fake.appended["'2024 Expenses'"]) != 3 {
		t.Errorf("appended = %v", fake.appended)
	}
}
