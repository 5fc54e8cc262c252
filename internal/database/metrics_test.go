package database

import (
	"path/filepath"
	"testing"
)

func TestMetricRoundTrip(t *testing.T) {
	if err := InitDB(filepath.Join(t.TempDir(), "bot.db")); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer CloseDB()

	if v, err := GetMetric("commands_processed"); err != nil || v != 0 {
		t.Fatalf("missing metric: got %f, %v", v, err)
	}

	if err := SaveMetric("commands_processed", 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := SaveMetric("commands_processed", 43); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	v, err := GetMetric("commands_processed")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 43 {
		t.Fatalf("got %f, want 43", v)
	}
}
