package headers

import (
	"reflect"
	"testing"
)

func TestAppendCombinesWithComma(t *testing.T) {
	h := New(GuardNone)
	if err := h.Append("X-Custom", "a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append("x-custom", "b"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, ok := h.Get("X-CUSTOM")
	if !ok || got != "a, b" {
		t.Fatalf("Get = %q,%v want 'a, b',true", got, ok)
	}
}

func TestSetReplaces(t *testing.T) {
	h := New(GuardNone)
	_ = h.Append("X-Custom", "a")
	if err := h.Set("X-Custom", "z"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ := h.Get("X-Custom")
	if got != "z" {
		t.Fatalf("Get = %q, want z", got)
	}
}

func TestSetCookieNotCombined(t *testing.T) {
	h := New(GuardNone)
	_ = h.Append("Set-Cookie", "a=1")
	_ = h.Append("Set-Cookie", "b=2")
	got, ok := h.Get("Set-Cookie")
	if !ok || got != "a=1" {
		t.Fatalf("Get(Set-Cookie) = %q,%v want first value only", got, ok)
	}
	all := h.GetSetCookie()
	if !reflect.DeepEqual(all, []string{"a=1", "b=2"}) {
		t.Fatalf("GetSetCookie = %v, want [a=1 b=2]", all)
	}
}

func TestImmutableGuardRejectsMutation(t *testing.T) {
	h := New(GuardImmutable)
	if err := h.Set("X", "1"); err == nil {
		t.Fatalf("Set on immutable headers: expected error")
	}
}

func TestRequestGuardRejectsForbiddenName(t *testing.T) {
	h := New(GuardRequest)
	if err := h.Set("Host", "evil.example"); err == nil {
		t.Fatalf("Set(Host) on request-guarded headers: expected error")
	}
	if err := h.Set("X-Custom", "ok"); err != nil {
		t.Fatalf("Set(X-Custom): %v", err)
	}
}

func TestRequestNoCORSGuardOnlySafelisted(t *testing.T) {
	h := New(GuardRequestNoCORS)
	if err := h.Set("Accept", "text/html"); err != nil {
		t.Fatalf("Set(Accept): %v", err)
	}
	if err := h.Set("X-Custom", "1"); err == nil {
		t.Fatalf("Set(X-Custom) under no-cors guard: expected error")
	}
}

func TestInvalidHeaderNameRejected(t *testing.T) {
	h := New(GuardNone)
	if err := h.Set("bad name", "v"); err == nil {
		t.Fatalf("Set with a space in the name: expected error")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	h := New(GuardNone)
	_ = h.Set("X-Custom", "1")
	if !h.Has("X-Custom") {
		t.Fatalf("Has: expected true before delete")
	}
	if err := h.Delete("X-Custom"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if h.Has("X-Custom") {
		t.Fatalf("Has: expected false after delete")
	}
}

func TestEntriesSortedByName(t *testing.T) {
	h := New(GuardNone)
	_ = h.Set("Zebra", "1")
	_ = h.Set("Apple", "2")
	entries := h.Entries()
	if len(entries) != 2 || entries[0][0] != "apple" || entries[1][0] != "zebra" {
		t.Fatalf("Entries = %v, want [[apple 2] [zebra 1]]", entries)
	}
}

func TestForEachExpandsSetCookie(t *testing.T) {
	h := New(GuardNone)
	_ = h.Append("Set-Cookie", "a=1")
	_ = h.Append("Set-Cookie", "b=2")
	var calls [][2]string
	h.ForEach(func(value, name string) {
		calls = append(calls, [2]string{name, value})
	})
	if len(calls) != 2 {
		t.Fatalf("ForEach calls = %v, want 2 entries for Set-Cookie", calls)
	}
}

func TestCloneCopiesEntriesIndependently(t *testing.T) {
	h := New(GuardNone)
	_ = h.Set("X-Custom", "1")
	clone := h.Clone(GuardNone)
	_ = clone.Set("X-Custom", "2")
	orig, _ := h.Get("X-Custom")
	if orig != "1" {
		t.Fatalf("original mutated via clone: got %q, want 1", orig)
	}
}
