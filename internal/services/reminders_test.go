package services

import (
	"context"
	"testing"

	"carnote/internal/core"
)

func TestReminderProcessor_Run(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	if _, err := repo.AddServiceRecord(ctx, core.ServiceRecord{
		VehicleID: "v", TemplateID: "oil", Date: core.NewDate(2024, 1, 15), Mileage: 50000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateVehicleMileage(ctx, "v", 59800); err != nil {
		t.Fatal(err)
	}

	pub := &recordingPublisher{}
	maint := NewMaintenanceService(repo, "v", DefaultThresholds())
	proc := NewReminderProcessor(maint, pub, "v")

	n, err := proc.Run(ctx, core.NewDate(2024, 7, 10))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 1 || len(pub.reminders) != 1 || pub.reminders[0].Status != core.StatusSoon {
		t.Errorf("Run() = %d, reminders = %+v", n, pub.reminders)
	}

	if err := repo.UpdateVehicleMileage(ctx, "v", 51000); err != nil {
		t.Fatal(err)
	}
	n, err = proc.Run(ctx, core.NewDate(2024, 1, 20))
	if err != nil || n != 0 {
		t.Errorf("Run() on a quiet day = %d, %v", n, err)
	}
}

func TestReminderProcessor_NoPublisher(t *testing.T) {
	maint := NewMaintenanceService(newTestRepo(), "v", DefaultThresholds())
	proc := NewReminderProcessor(maint, nil, "v")
	if _, err := proc.Run(context.Background(), core.NewDate(2024, 7, 10)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestReminderProcessor_SendsOncePerDayAndOnStatusChange(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	if _, err := repo.AddServiceRecord(ctx, core.ServiceRecord{
		VehicleID: "v", TemplateID: "oil", Date: core.NewDate(2024, 1, 15), Mileage: 50000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateVehicleMileage(ctx, "v", 59800); err != nil {
		t.Fatal(err)
	}

	pub := &recordingPublisher{}
	proc := NewReminderProcessor(NewMaintenanceService(repo, "v", DefaultThresholds()), pub, "v")
	day := core.NewDate(2024, 7, 10)

	steps := []struct {
		name    string
		mileage int
		today   core.Date
		want    int
	}{
		{"first tick sends", 0, day, 1},
		{"same day is quiet", 0, day, 0},
		{"status change sends again", 60100, day, 1},
		{"same status same day is quiet", 0, day, 0},
		{"next day reminds again", 0, day.AddDays(1), 1},
	}
	for _, st := range steps {
		if st.mileage > 0 {
			if err := repo.UpdateVehicleMileage(ctx, "v", st.mileage); err != nil {
				t.Fatal(err)
			}
		}
		n, err := proc.Run(ctx, st.today)
		if err != nil {
			t.Fatalf("%s: Run() error = %v", st.name, err)
		}
		if n != st.want {
			t.Errorf("%s: Run() = %d, want %d", st.name, n, st.want)
		}
	}

	if len(pub.reminders) != 3 {
		t.Fatalf("published %d reminders, want 3", len(pub.reminders))
	}
	if pub.reminders[1].Status != core.StatusOverdue {
		t.Errorf("second reminder status = %s, want overdue", pub.reminders[1].Status)
	}
}

func TestReminderProcessor_FailedPublishIsRetried(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	if _, err := repo.AddServiceRecord(ctx, core.ServiceRecord{
		VehicleID: "v", TemplateID: "oil", Date: core.NewDate(2023, 1, 15), Mileage: 40000,
	}); err != nil {
		t.Fatal(err)
	}

	pub := &recordingPublisher{err: context.DeadlineExceeded}
	proc := NewReminderProcessor(NewMaintenanceService(repo, "v", DefaultThresholds()), pub, "v")
	day := core.NewDate(2024, 7, 10)

	if n, _ := proc.Run(ctx, day); n != 0 {
		t.Fatalf("Run() with failing publisher = %d, want 0", n)
	}
	pub.err = nil
	if n, _ := proc.Run(ctx, day); n != 1 {
		t.Errorf("Run() after recovery = %d, want 1", n)
	}
}
