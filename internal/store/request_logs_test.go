// ABOUTME: Tests for request log storage operations.
// ABOUTME: Covers filtering, aggregate statistics, and top endpoint queries.

package store

import "testing"

func seedLogs(t *testing.T, s *Store) {
	t.Helper()
	logs := []*RequestLog{
		{EntitySet: "accounts", Method: "GET", Path: "/api/data/v9.2/accounts", StatusCode: 200, DurationMs: 10},
		{EntitySet: "contacts", Method: "POST", Path: "/api/data/v9.2/contacts", StatusCode: 204, DurationMs: 20},
		{EntitySet: "contacts", Method: "POST", Path: "/api/data/v9.2/contacts", StatusCode: 400, DurationMs: 30},
		{EntitySet: "ljr_servicerequests", Method: "POST", Path: "/api/data/v9.2/ljr_servicerequests", StatusCode: 204, DurationMs: 40},
	}
	for _, l := range logs {
		if err := s.LogRequest(l); err != nil {
			t.Fatalf("LogRequest() error = %v", err)
		}
	}
}

func TestGetRequestLogs_Filters(t *testing.T) {
	s := setupTestDB(t)
	seedLogs(t, s)

	tests := []struct {
		name  string
		query RequestLogQuery
		want  int
	}{
		{"no filter", RequestLogQuery{}, 4},
		{"by entity set", RequestLogQuery{EntitySet: "contacts"}, 2},
		{"by method", RequestLogQuery{Method: "GET"}, 1},
		{"by status", RequestLogQuery{StatusCode: 400}, 1},
		{"by literal underscore prefix", RequestLogQuery{PathPrefix: "/api/data/v9.2/ljr_"}, 1},
		{"limit", RequestLogQuery{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, err := s.GetRequestLogs(&tt.query)
			if err != nil {
				t.Fatalf("GetRequestLogs() error = %v", err)
			}
			if len(logs) != tt.want {
				t.Errorf("got %d logs, want %d", len(logs), tt.want)
			}
		})
	}
}

func TestGetRequestLogs_NewestFirst(t *testing.T) {
	s := setupTestDB(t)
	seedLogs(t, s)

	logs, err := s.GetRequestLogs(&RequestLogQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if logs[0].EntitySet != "ljr_servicerequests" {
		t.Errorf("first log = %q, want most recent", logs[0].EntitySet)
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be parsed")
	}
}

func TestGetRequestLogStats(t *testing.T) {
	s := setupTestDB(t)
	seedLogs(t, s)

	stats, err := s.GetRequestLogStats()
	if err != nil {
		t.Fatalf("GetRequestLogStats() error = %v", err)
	}
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
	if stats.ErrorRequests != 1 {
		t.Errorf("ErrorRequests = %d, want 1", stats.ErrorRequests)
	}
	if stats.AvgDurationMs != 25 {
		t.Errorf("AvgDurationMs = %d, want 25", stats.AvgDurationMs)
	}
	if stats.UniqueEndpoints != 3 {
		t.Errorf("UniqueEndpoints = %d, want 3", stats.UniqueEndpoints)
	}
}

func TestGetTopEndpoints(t *testing.T) {
	s := setupTestDB(t)
	seedLogs(t, s)

	top, err := s.GetTopEndpoints(1)
	if err != nil {
		t.Fatalf("GetTopEndpoints() error = %v", err)
	}
	if len(top) != 1 || top[0].Path != "/api/data/v9.2/contacts" || top[0].Count != 2 || top[0].AvgMs != 25 {
		t.Errorf("top = %+v", top)
	}
}
