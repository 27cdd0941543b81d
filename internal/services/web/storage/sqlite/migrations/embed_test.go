package migrations

import (
	"io/fs"
	"sort"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %v", files)
	}
	if files[0] != "001_web_sessions.sql" {
		t.Fatalf("expected first migration 001_web_sessions.sql, got %s", files[0])
	}
}
