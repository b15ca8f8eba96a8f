package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database/dbtest"
)

func testDevice(id string) *Device {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Device{
		ID:             id,
		Name:           "Sensor " + id,
		DeviceModelID:  "model-1",
		Version:        3,
		IsConnected:    true,
		IsEnabled:      true,
		LastActiveTime: &seen,
		Tags:           map[string]string{"site": "north"},
	}
}

func TestSQLiteRepository_InsertAndGet(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	d := testDevice("dev-1")
	d.SupportsLoRaWAN = true
	d.LoRaWAN = &LoRaWANSettings{UseOTAA: true, AppEUI: "0011", ClassType: "A"}

	if err := repo.Insert(ctx, d); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != d.Name || got.Version != 3 || !got.IsConnected || !got.IsEnabled {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Tags["site"] != "north" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.LastActiveTime == nil || !got.LastActiveTime.Equal(*d.LastActiveTime) {
		t.Errorf("LastActiveTime = %v, want %v", got.LastActiveTime, d.LastActiveTime)
	}
	if got.StatusUpdatedTime != nil {
		t.Errorf("StatusUpdatedTime = %v, want nil", got.StatusUpdatedTime)
	}
	if got.LoRaWAN == nil || got.LoRaWAN.AppEUI != "0011" || !got.LoRaWAN.UseOTAA {
		t.Errorf("LoRaWAN = %+v", got.LoRaWAN)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestSQLiteRepository_InsertDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, testDevice("dev-1")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, testDevice("dev-1")); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Insert() duplicate error = %v, want %v", err, ErrDeviceExists)
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, ErrDeviceNotFound)
	}
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want match on database.ErrNotFound", err)
	}
}

func TestSQLiteRepository_UpdateKeepsCreatedAt(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	d := testDevice("dev-1")
	d.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.Insert(ctx, d); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	changed := testDevice("dev-1")
	changed.Name = "Renamed"
	changed.Version = 9
	changed.Tags = nil
	changed.IsConnected = false
	if err := repo.Update(ctx, changed); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Renamed" || got.Version != 9 || got.IsConnected {
		t.Errorf("GetByID() after update = %+v", got)
	}
	if got.Tags != nil {
		t.Errorf("Tags = %v, want nil", got.Tags)
	}
	if !got.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, d.CreatedAt)
	}
}

func TestSQLiteRepository_UpdateMissing(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))

	if err := repo.Update(context.Background(), testDevice("ghost")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want %v", err, ErrDeviceNotFound)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := repo.Insert(ctx, testDevice(id)); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("List() = %d devices, want 3", len(devices))
	}
	if devices[0].ID != "a" || devices[2].ID != "c" {
		t.Errorf("List() order = %s, %s, %s", devices[0].ID, devices[1].ID, devices[2].ID)
	}
}
