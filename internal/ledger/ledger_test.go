package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/model"
)

func TestJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.jsonl")
	app := NewJSONLAppender(path)

	rows := []model.QueueRow{
		{ID: "a", Bucket: model.BucketGreen},
		{ID: "b", Bucket: model.BucketYellow},
	}
	for _, r := range rows {
		if err := app.Append(r); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	var got []model.QueueRow
	err := ReadJSONLRows(path, func() interface{} { return &model.QueueRow{} }, func(v interface{}) error {
		got = append(got, *v.(*model.QueueRow))
		return nil
	})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAtomicJSONNoPartialOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")
	if err := WriteAtomicJSON(path, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected .tmp to be gone after rename")
	}
	var out map[string]string
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if out["a"] != "b" {
		t.Fatalf("unexpected content: %+v", out)
	}
}

func TestCheckpointCorruptFileRecovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewCheckpointStore(path)
	cp := store.Load("run-1", "classifier", "2026-01-01T00:00:00Z")
	if len(cp.CompletedTargets) != 0 {
		t.Fatalf("expected empty state on corrupt file, got %+v", cp)
	}
}

func TestCheckpointMonotonicity(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(filepath.Join(dir, "checkpoint.json"))
	cp := store.Load("run-1", "acquire", "2026-01-01T00:00:00Z")
	cp.RecordTarget("t1", "GREEN", "2026-01-01T00:01:00Z")
	cp.RecordTarget("t1", "GREEN", "2026-01-01T00:02:00Z")
	cp.RecordTarget("t1", "GREEN", "2026-01-01T00:03:00Z")

	count := 0
	for _, id := range cp.CompletedTargets {
		if id == "t1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected t1 exactly once, got %d", count)
	}
	if cp.Counts["GREEN"] != 1 {
		t.Fatalf("expected count to increment only on first record, got %d", cp.Counts["GREEN"])
	}
}

func TestFileLockExclusion(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "x.lock")
	l1 := NewFileLock(lockPath)
	if err := l1.Lock(); err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	l2 := NewFileLock(lockPath).WithTimeout(50 * time.Millisecond)
	ok, err := l2.TryLock()
	if err != nil {
		t.Fatalf("trylock error: %v", err)
	}
	if ok {
		t.Fatalf("expected trylock to fail while held")
	}
	if err := l1.Unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	ok, err = l2.TryLock()
	if err != nil || !ok {
		t.Fatalf("expected trylock to succeed after unlock: ok=%v err=%v", ok, err)
	}
	l2.Unlock()
}
