package concentrator

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/iot-portal/internal/twin"
)

func TestFromTwin(t *testing.T) {
	tw := &twin.Twin{
		DeviceID:        "gw-01",
		Version:         4,
		Status:          "enabled",
		ConnectionState: "Connected",
		Tags: map[string]any{
			twin.TagDeviceName: "Roof gateway",
			twin.TagLoraRegion: "EU",
			twin.TagDeviceType: twin.DeviceTypeConcentrator,
		},
		Properties: twin.Properties{
			Desired:  map[string]any{"clientThumbprint": "AB12"},
			Reported: map[string]any{"AlreadyLoggedInOnce": true},
		},
	}

	c := FromTwin(tw)
	want := Concentrator{
		ID: "gw-01", Name: "Roof gateway", LoraRegion: "EU", DeviceType: twin.DeviceTypeConcentrator,
		ClientThumbprint: "AB12", IsConnected: true, IsEnabled: true, AlreadyLoggedInOnce: true, Version: 4,
	}
	if *c != want {
		t.Errorf("FromTwin() = %+v, want %+v", *c, want)
	}

	if got := FromTwin(&twin.Twin{DeviceID: "bare"}); got.Name != "bare" {
		t.Errorf("Name = %q, want device ID fallback", got.Name)
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	c := &Concentrator{ID: "gw-01", Name: "Roof", LoraRegion: "EU", IsEnabled: true, Version: 1}
	if err := repo.Insert(ctx, c); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, &Concentrator{ID: "gw-01", Name: "dup"}); !errors.Is(err, ErrExists) {
		t.Errorf("Insert() duplicate error = %v, want %v", err, ErrExists)
	}

	c.Name = "Roof north"
	c.Version = 2
	c.AlreadyLoggedInOnce = true
	if err := repo.Update(ctx, c); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "gw-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Roof north" || got.Version != 2 || !got.AlreadyLoggedInOnce || got.LoraRegion != "EU" {
		t.Errorf("GetByID() = %+v", got)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %v, %v", list, err)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, ErrNotFound)
	}
	if err := repo.Update(ctx, &Concentrator{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
	}
}
