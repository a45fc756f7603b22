package memory

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreReadAndWrite(t *testing.T) {
	s := New(map[string]string{"a": "1"})
	recs, err := s.ReadRecords(context.Background())
	if err != nil || len(recs) != 1 || recs[0]["a"] != "1" {
		t.Fatalf("unexpected read: recs=%v err=%v", recs, err)
	}
	recs[0]["a"] = "changed"
	again, _ := s.ReadRecords(context.Background())
	if again[0]["a"] != "1" {
		t.Fatalf("records must be copied")
	}

	ref, err := s.WriteRows(context.Background(), []string{"h"}, [][]string{{"v"}})
	if err != nil || ref != "mem:default:1" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}
	ref, _ = s.WriteSheet(context.Background(), "INV-1", []string{"h"}, [][]string{{"x"}, {"y"}})
	if ref != "mem:INV-1:2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if tbl, ok := s.Table("INV-1"); !ok || len(tbl.Rows) != 2 {
		t.Fatalf("unexpected table: %+v", tbl)
	}
	if tbl, ok := s.Default(); !ok || tbl.Rows[0][0] != "v" {
		t.Fatalf("unexpected default table: %+v", tbl)
	}
}

func TestMemoryStoreErr(t *testing.T) {
	boom := errors.New("boom")
	s := New()
	s.Err = boom
	if _, err := s.WriteRows(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := s.ReadRecords(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if s.Writes() != 0 {
		t.Fatalf("failed writes must not count")
	}
}
