package ids

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	before := time.Now().Add(-time.Second)

	id, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("len(id) = %d, want 26", len(id))
	}

	ts, err := Time(id)
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("Time() = %v, not near now", ts)
	}

	other, _ := New()
	if other == id {
		t.Errorf("New() returned duplicate id %q", id)
	}
}

func TestTime_Invalid(t *testing.T) {
	if _, err := Time("not-a-ulid"); err == nil {
		t.Fatal("Time() expected error for invalid id")
	}
}
