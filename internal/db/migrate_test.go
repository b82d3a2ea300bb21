package db

import (
	"testing"
	"testing/fstest"
)

func TestPendingFilesOrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_contributions.up.sql":  {Data: []byte("SELECT 1")},
		"0001_campaigns.up.sql":      {Data: []byte("SELECT 1")},
		"0001_campaigns.down.sql":    {Data: []byte("SELECT 1")},
		"README.md":                  {Data: []byte("docs")},
		"nested/0003_ignored.up.sql": {Data: []byte("SELECT 1")},
	}

	got, err := pendingFiles(fsys)
	if err != nil {
		t.Fatalf("pendingFiles: %v", err)
	}

	want := []string{"0001_campaigns.up.sql", "0002_contributions.up.sql"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
