package history

import (
	"errors"
	"testing"
	"time"
)

func TestLog_AppendAndLatest(t *testing.T) {
	l := NewLog()

	l.Append(Record{SessionID: "s1", Path: "a.txt", Existed: false, Content: "one"})
	l.Append(Record{SessionID: "s1", Path: "a.txt", Existed: true, Previous: "one", Content: "two"})

	rec, err := l.Latest("s1", "a.txt")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if rec.Content != "two" || rec.Previous != "one" {
		t.Errorf("expected latest record content 'two' previous 'one', got %q / %q", rec.Content, rec.Previous)
	}
}

func TestLog_LatestNoPrior(t *testing.T) {
	l := NewLog()

	if _, err := l.Latest("s1", "never.txt"); !errors.Is(err, ErrNoPriorEdit) {
		t.Errorf("expected ErrNoPriorEdit, got %v", err)
	}

	// Records in another session must not leak.
	l.Append(Record{SessionID: "other", Path: "a.txt", Content: "x"})
	if _, err := l.Latest("s1", "a.txt"); !errors.Is(err, ErrNoPriorEdit) {
		t.Errorf("expected ErrNoPriorEdit for different session, got %v", err)
	}
}

func TestLog_Ordering(t *testing.T) {
	l := NewLog()

	base := time.Now()
	for i := 0; i < 5; i++ {
		l.Append(Record{
			SessionID: "s1",
			Path:      "a.txt",
			Content:   string(rune('a' + i)),
			At:        base.Add(time.Duration(i) * time.Millisecond),
		})
	}

	recs := l.All("s1", "a.txt")
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].At.Before(recs[i-1].At) {
			t.Errorf("records out of time order at index %d", i)
		}
	}

	latest, _ := l.Latest("s1", "a.txt")
	if latest.Content != "e" {
		t.Errorf("expected latest content 'e', got %q", latest.Content)
	}
}

func TestLog_Count(t *testing.T) {
	l := NewLog()

	if l.Count("s1") != 0 {
		t.Error("expected zero count for fresh session")
	}

	l.Append(Record{SessionID: "s1", Path: "a.txt", Content: "x"})
	l.Append(Record{SessionID: "s1", Path: "b.txt", Content: "y"})
	l.Append(Record{SessionID: "s2", Path: "a.txt", Content: "z"})

	if got := l.Count("s1"); got != 2 {
		t.Errorf("expected 2 records for s1, got %d", got)
	}
	if got := l.Count("s2"); got != 1 {
		t.Errorf("expected 1 record for s2, got %d", got)
	}
}

func TestLog_ZeroTimestampFilled(t *testing.T) {
	l := NewLog()
	l.Append(Record{SessionID: "s1", Path: "a.txt", Content: "x"})

	rec, _ := l.Latest("s1", "a.txt")
	if rec.At.IsZero() {
		t.Error("expected timestamp to be filled on append")
	}
}
