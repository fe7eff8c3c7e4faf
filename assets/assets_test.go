package assets

import (
	"testing"
	"time"
)

func TestTemplatesAreValid(t *testing.T) {
	tpls, err := Templates()
	if err != nil {
		t.Fatalf("Templates() error = %v", err)
	}
	if len(tpls) == 0 {
		t.Fatal("Templates() returned no templates")
	}
	seen := map[string]bool{}
	for _, tpl := range tpls {
		if err := tpl.Validate(); err != nil {
			t.Errorf("template %q invalid: %v", tpl.ID, err)
		}
		if seen[tpl.ID] {
			t.Errorf("duplicate template id %q", tpl.ID)
		}
		seen[tpl.ID] = true
	}
}

func TestDefaultVehicle(t *testing.T) {
	v := DefaultVehicle(time.Now())
	if err := v.Validate(); err != nil {
		t.Fatalf("DefaultVehicle() invalid: %v", err)
	}
	if v.ID != DefaultVehicleID || v.CurrentMileage != 79815 {
		t.Errorf("DefaultVehicle() = %+v", v)
	}
}
