package common_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onlytrade/room-server/internal/common"
)

func TestSafeJoinRejectsTraversal(t *testing.T) {
	if _, err := common.SafeJoin("/data/agents/assets/bot", "../../../etc/passwd"); err == nil {
		t.Fatal("expected traversal outside root to be rejected")
	}
}

func TestSafeJoinAllowsNestedPath(t *testing.T) {
	got, err := common.SafeJoin("/data/agents/assets/bot", "avatar.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/data/agents/assets/bot", "avatar.png")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestWriteJSONAtomicThenReadJSONRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := doc{Name: "trader-1", Count: 7}

	if err := common.WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	var out doc
	if err := common.ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == "" && e.Name() != "doc.json" {
			t.Errorf("leftover temp file found: %s", e.Name())
		}
	}
}

func TestReadJSONMissingFileIsNotExist(t *testing.T) {
	var out map[string]any
	err := common.ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	if !os.IsNotExist(err) {
		t.Errorf("expected an os.IsNotExist error, got %v", err)
	}
}

func TestAppendLineCreatesFileAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "log.jsonl")
	if err := common.AppendLine(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	if err := common.AppendLine(path, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "{\"a\":1}\n{\"a\":2}\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, string(data))
	}
}
