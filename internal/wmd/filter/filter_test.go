package filter

import (
	"reflect"
	"testing"
)

func TestParseVoteFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		filter     string
		wantClause string
		wantParams []any
		wantErr    bool
	}{
		{
			name:   "empty filter",
			filter: "",
		},
		{
			name:       "status equality",
			filter:     `status = "ACTIVE"`,
			wantClause: "status = ?",
			wantParams: []any{"ACTIVE"},
		},
		{
			name:       "warhead maps to dedup term",
			filter:     `warhead_type = "thermonuclear"`,
			wantClause: "dedup_term = ?",
			wantParams: []any{"thermonuclear"},
		},
		{
			name:       "conjunction",
			filter:     `status = "PASSED" AND vote_type = "LAUNCH_AUTHORIZATION"`,
			wantClause: "(status = ? AND vote_type = ?)",
			wantParams: []any{"PASSED", "LAUNCH_AUTHORIZATION"},
		},
		{
			name:       "disjunction",
			filter:     `status = "FAILED" OR status = "VETOED"`,
			wantClause: "(status = ? OR status = ?)",
			wantParams: []any{"FAILED", "VETOED"},
		},
		{
			name:       "timestamp converts to millis",
			filter:     `created_at >= timestamp("2026-04-01T00:00:00Z")`,
			wantClause: "created_at >= ?",
			wantParams: []any{int64(1775001600000)},
		},
		{
			name:    "unknown field",
			filter:  `clan_id = "c1"`,
			wantErr: true,
		},
		{
			name:    "malformed expression",
			filter:  `status = `,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseVoteFilter(tc.filter)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseVoteFilter(%q) expected error", tc.filter)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVoteFilter(%q) returned %v", tc.filter, err)
			}
			if got.Clause != tc.wantClause {
				t.Fatalf("clause = %q, want %q", got.Clause, tc.wantClause)
			}
			if !reflect.DeepEqual(got.Params, tc.wantParams) {
				t.Fatalf("params = %#v, want %#v", got.Params, tc.wantParams)
			}
		})
	}
}

func TestParseEventFilter(t *testing.T) {
	t.Parallel()

	got, err := ParseEventFilter(`event_type = "missile.launched" AND clan_id = "clan-1"`)
	if err != nil {
		t.Fatalf("ParseEventFilter returned %v", err)
	}
	if got.Clause != "(event_type = ? AND clan_id = ?)" {
		t.Fatalf("clause = %q", got.Clause)
	}
	if !reflect.DeepEqual(got.Params, []any{"missile.launched", "clan-1"}) {
		t.Fatalf("params = %#v", got.Params)
	}

	if _, err := ParseEventFilter(`vote_type = "MEMBER_ACTION"`); err == nil {
		t.Fatal("expected unknown field error for vote_type on events")
	}
}
