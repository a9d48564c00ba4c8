package backend

import (
	"context"
	"path/filepath"
	"testing"

	"genstudio/internal/history"
	"genstudio/internal/history/sqlite"
	"genstudio/internal/infra"
)

func TestOpenMemory(t *testing.T) {
	medium, err := Open(context.Background(), &infra.Config{HistoryDriver: infra.HistoryDriverMemory}, *infra.DiscardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer medium.Close()
	if _, ok := medium.(*history.MemoryMedium); !ok {
		t.Fatalf("expected memory medium, got %T", medium)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	medium, err := Open(context.Background(), &infra.Config{HistoryDriver: infra.HistoryDriverSQLite, HistorySQLitePath: path}, *infra.DiscardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer medium.Close()
	sq, ok := medium.(*sqlite.Medium)
	if !ok || sq.Path() != path {
		t.Fatalf("unexpected medium %T", medium)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), &infra.Config{HistoryDriver: "redis"}, *infra.DiscardLogger()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
