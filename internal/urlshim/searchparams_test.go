package urlshim

import "testing"

func TestSearchParamsParseAndGet(t *testing.T) {
	sp := NewSearchParams("?a=1&b=2&a=3")
	v, ok := sp.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q,%v want 1,true", v, ok)
	}
	all := sp.GetAll("a")
	if len(all) != 2 || all[0] != "1" || all[1] != "3" {
		t.Fatalf("GetAll(a) = %v, want [1 3]", all)
	}
}

func TestSearchParamsSetReplacesAll(t *testing.T) {
	sp := NewSearchParams("a=1&a=2&b=3")
	sp.Set("a", "x")
	all := sp.GetAll("a")
	if len(all) != 1 || all[0] != "x" {
		t.Fatalf("GetAll(a) after Set = %v, want [x]", all)
	}
	entries := sp.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries after Set = %v, want 2 entries", entries)
	}
}

func TestSearchParamsAppendAndDelete(t *testing.T) {
	sp := NewSearchParams("")
	sp.Append("k", "v1")
	sp.Append("k", "v2")
	if len(sp.GetAll("k")) != 2 {
		t.Fatalf("expected 2 values for k")
	}
	sp.Delete("k")
	if sp.Has("k") {
		t.Fatalf("Has(k) after Delete: expected false")
	}
}

func TestSearchParamsSortIsStable(t *testing.T) {
	sp := NewSearchParams("b=1&a=2&b=3&a=4")
	sp.Sort()
	entries := sp.Entries()
	want := [][2]string{{"a", "2"}, {"a", "4"}, {"b", "1"}, {"b", "3"}}
	if len(entries) != len(want) {
		t.Fatalf("Entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("Entries[%d] = %v, want %v", i, entries[i], want[i])
		}
	}
}

func TestSearchParamsRoundTrip(t *testing.T) {
	sp := NewSearchParams("")
	sp.Append("name", "a b")
	sp.Append("x", "1+1")
	got := sp.String()
	want := "name=a+b&x=1%2B1"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestSearchParamsPlusDecodedAsSpace(t *testing.T) {
	sp := NewSearchParams("q=a+b+c")
	v, _ := sp.Get("q")
	if v != "a b c" {
		t.Fatalf("Get(q) = %q, want 'a b c'", v)
	}
}
