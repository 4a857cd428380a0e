package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/abverdict/abverdict/internal/store"
	"github.com/abverdict/abverdict/internal/testutil"
)

func TestGetSetting(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	// Set a value
	if err := s.SetSetting(ctx, store.SettingServerToken, "a1b2c3d4"); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}

	// Get it back
	value, err := s.GetSetting(ctx, store.SettingServerToken)
	if err != nil {
		t.Fatalf("failed to get setting: %v", err)
	}

	if value != "a1b2c3d4" {
		t.Errorf("got %q, want %q", value, "a1b2c3d4")
	}
}

func TestGetSetting_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)

	_, err := s.GetSetting(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}
}

func TestSetSetting_Overwrite(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, store.SettingServerToken, "first"); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}
	if err := s.SetSetting(ctx, store.SettingServerToken, "second"); err != nil {
		t.Fatalf("failed to overwrite setting: %v", err)
	}

	value, err := s.GetSetting(ctx, store.SettingServerToken)
	if err != nil {
		t.Fatalf("failed to get setting: %v", err)
	}
	if value != "second" {
		t.Errorf("got %q, want %q", value, "second")
	}
}
