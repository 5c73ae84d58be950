package main

import (
	"testing"

	"github.com/meikuraledutech/apiflow/querybuilder"
)

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{`status="open"`, "qty=3", "expr=a=b"})
	if err != nil {
		t.Fatalf("parseFilters: %v", err)
	}
	want := []querybuilder.Filter{
		{Type: "status", Value: `"open"`},
		{Type: "qty", Value: "3"},
		{Type: "expr", Value: "a=b"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d filters, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filter %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := parseFilters([]string{"novalue"}); err == nil {
		t.Error("expected error for filter without '='")
	}
}
