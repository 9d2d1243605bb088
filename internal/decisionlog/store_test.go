package decisionlog_test

import (
	"testing"

	"github.com/onlytrade/room-server/internal/decisionlog"
)

type record struct {
	TsMs int64  `json:"ts_ms"`
	Note string `json:"note"`
}

func TestAppendThenListDayReturnsRecordsInFileOrder(t *testing.T) {
	s := decisionlog.NewStore(t.TempDir())
	if err := s.Append("alice", "2026-07-31", record{TsMs: 1, Note: "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("alice", "2026-07-31", record{TsMs: 2, Note: "second"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.ListDay("alice", "2026-07-31", func() any { return &record{} })
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].(*record).Note != "first" || got[1].(*record).Note != "second" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestListLatestTailsAcrossDaysNewestFirst(t *testing.T) {
	s := decisionlog.NewStore(t.TempDir())
	if err := s.Append("alice", "2026-07-29", record{TsMs: 1, Note: "day29"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("alice", "2026-07-30", record{TsMs: 2, Note: "day30a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("alice", "2026-07-30", record{TsMs: 3, Note: "day30b"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.ListLatest("alice", 2, func() any { return &record{} }, func(r any) int64 { return r.(*record).TsMs })
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records with limit=2, got %d", len(got))
	}
	if got[0].(*record).Note != "day30b" || got[1].(*record).Note != "day30a" {
		t.Errorf("expected newest-first order day30b,day30a; got %+v, %+v", got[0], got[1])
	}
}

func TestListLatestOnMissingTraderReturnsNilWithoutError(t *testing.T) {
	s := decisionlog.NewStore(t.TempDir())
	got, err := s.ListLatest("ghost", 10, func() any { return &record{} }, func(r any) int64 { return 0 })
	if err != nil {
		t.Fatalf("expected no error for a missing trader directory, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result, got %v", got)
	}
}

func TestListDaySkipsMalformedLines(t *testing.T) {
	s := decisionlog.NewStore(t.TempDir())
	if err := s.Append("alice", "2026-07-31", record{TsMs: 1, Note: "good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("alice", "2026-07-31", "not-an-object-but-a-string-is-still-valid-json"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.ListDay("alice", "2026-07-31", func() any { return &record{} })
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the malformed (type-mismatched) line to be skipped, got %d records", len(got))
	}
}
