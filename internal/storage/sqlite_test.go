package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/kalambet/mentor/internal/roadmap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// steppedClock returns a clock that advances by one second per call.
func steppedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func sampleVisualData() *roadmap.VisualData {
	return &roadmap.VisualData{
		Phases: []roadmap.Phase{
			{ID: 1, Title: "Basics", Description: "d", Duration: "2 weeks", Milestones: []string{"m1", "m2"}},
			{ID: 2, Title: "Concurrency", Description: "goroutines", Duration: "3 weeks", Milestones: []string{"m3"}},
		},
		TotalDuration: "2 months",
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_roadmaps_created").Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("index idx_roadmaps_created not found in sqlite_master")
	}
}

func TestCreateAndGetRoadmap(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	s.now = func() time.Time { return now }

	created, err := s.CreateRoadmap(NewRoadmap{
		UserQuery:  "I want to learn Go",
		Title:      "Go Roadmap",
		Content:    "## Phase 1...",
		VisualData: sampleVisualData(),
	})
	if err != nil {
		t.Fatalf("CreateRoadmap: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateRoadmap returned zero id")
	}
	if !created.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", created.CreatedAt, now)
	}

	got, err := s.GetRoadmap(created.ID)
	if err != nil {
		t.Fatalf("GetRoadmap(%d): %v", created.ID, err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Errorf("GetRoadmap = %+v, want %+v", got, created)
	}
	if got.UpdatedAt != nil {
		t.Errorf("UpdatedAt = %v, want nil for a fresh record", got.UpdatedAt)
	}
}

func TestCreateRoadmap_NilVisualData(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateRoadmap(NewRoadmap{UserQuery: "learn sql", Title: "SQL", Content: "c"})
	if err != nil {
		t.Fatalf("CreateRoadmap: %v", err)
	}

	got, err := s.GetRoadmap(created.ID)
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	if got.VisualData != nil {
		t.Errorf("VisualData = %+v, want nil", got.VisualData)
	}
}

func TestCreateRoadmap_VisualDataExtraKeysPersist(t *testing.T) {
	s := openTestStore(t)

	var v roadmap.VisualData
	if err := json.Unmarshal([]byte(`{"phases":[{"id":1,"title":"Basics","resources":["book"]}],"total_duration":"1 month","difficulty":"beginner"}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	created, err := s.CreateRoadmap(NewRoadmap{UserQuery: "learn go", Title: "Go", Content: "c", VisualData: &v})
	if err != nil {
		t.Fatalf("CreateRoadmap: %v", err)
	}

	got, err := s.GetRoadmap(created.ID)
	if err != nil {
		t.Fatalf("GetRoadmap: %v", err)
	}
	out, err := json.Marshal(got.VisualData)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"difficulty":"beginner","phases":[{"description":"","duration":"","id":1,"milestones":null,"resources":["book"],"title":"Basics"}],"total_duration":"1 month"}`
	if string(out) != want {
		t.Errorf("stored visual data = %s, want %s", out, want)
	}
}

func TestCreateRoadmap_SequentialIDs(t *testing.T) {
	s := openTestStore(t)

	var prev int64
	for i := range 3 {
		r, err := s.CreateRoadmap(NewRoadmap{UserQuery: "same query", Title: "t", Content: "c"})
		if err != nil {
			t.Fatalf("CreateRoadmap #%d: %v", i, err)
		}
		if r.ID <= prev {
			t.Errorf("id %d not greater than previous %d", r.ID, prev)
		}
		prev = r.ID
	}
}

func TestGetRoadmapNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRoadmap(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRoadmap(42) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRoadmap(t *testing.T) {
	s := openTestStore(t)

	r, err := s.CreateRoadmap(NewRoadmap{UserQuery: "learn rust", Title: "Rust", Content: "c"})
	if err != nil {
		t.Fatalf("CreateRoadmap: %v", err)
	}

	if err := s.DeleteRoadmap(r.ID); err != nil {
		t.Fatalf("DeleteRoadmap: %v", err)
	}
	if _, err := s.GetRoadmap(r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRoadmap after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteRoadmap(r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRoadmap error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRoadmapNotFound(t *testing.T) {
	s := openTestStore(t)

	if err := s.DeleteRoadmap(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRoadmap(7) error = %v, want ErrNotFound", err)
	}
}

func TestListRoadmaps_Pagination(t *testing.T) {
	s := openTestStore(t)
	s.now = steppedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	const n = 5
	ids := make([]int64, n)
	for i := range n {
		r, err := s.CreateRoadmap(NewRoadmap{
			UserQuery: fmt.Sprintf("query %d", i),
			Title:     fmt.Sprintf("title %d", i),
			Content:   "c",
		})
		if err != nil {
			t.Fatalf("CreateRoadmap: %v", err)
		}
		ids[i] = r.ID
	}

	tests := []struct {
		skip, limit int
		wantIDs     []int64
	}{
		{0, 50, []int64{ids[4], ids[3], ids[2], ids[1], ids[0]}},
		{0, 2, []int64{ids[4], ids[3]}},
		{2, 2, []int64{ids[2], ids[1]}},
		{4, 10, []int64{ids[0]}},
		{5, 10, nil},
		{9, 1, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("skip=%d,limit=%d", tt.skip, tt.limit), func(t *testing.T) {
			got, total, err := s.ListRoadmaps(tt.skip, tt.limit)
			if err != nil {
				t.Fatalf("ListRoadmaps: %v", err)
			}
			if total != n {
				t.Errorf("total = %d, want %d", total, n)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(got), len(tt.wantIDs))
			}
			for i, r := range got {
				if r.ID != tt.wantIDs[i] {
					t.Errorf("item %d id = %d, want %d", i, r.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestListRoadmaps_SameTimestampNewestIDFirst(t *testing.T) {
	s := openTestStore(t)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, _ := s.CreateRoadmap(NewRoadmap{UserQuery: "a", Title: "a", Content: "c"})
	b, _ := s.CreateRoadmap(NewRoadmap{UserQuery: "b", Title: "b", Content: "c"})

	got, _, err := s.ListRoadmaps(0, 10)
	if err != nil {
		t.Fatalf("ListRoadmaps: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("order = %+v, want [%d %d]", got, b.ID, a.ID)
	}
}

func TestListRoadmaps_SubSecondOrdering(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 5, 0, time.UTC)
	stamps := []time.Time{
		base.Add(120 * time.Millisecond),
		base.Add(100 * time.Millisecond),
	}
	i := 0
	s.now = func() time.Time { ts := stamps[i]; i++; return ts }

	later, _ := s.CreateRoadmap(NewRoadmap{UserQuery: "later", Title: "t", Content: "c"})
	earlier, _ := s.CreateRoadmap(NewRoadmap{UserQuery: "earlier", Title: "t", Content: "c"})

	got, _, err := s.ListRoadmaps(0, 10)
	if err != nil {
		t.Fatalf("ListRoadmaps: %v", err)
	}
	if got[0].ID != later.ID || got[1].ID != earlier.ID {
		t.Errorf("order = [%d %d], want [%d %d]", got[0].ID, got[1].ID, later.ID, earlier.ID)
	}
}

func TestListRoadmaps_Empty(t *testing.T) {
	s := openTestStore(t)

	got, total, err := s.ListRoadmaps(0, 50)
	if err != nil {
		t.Fatalf("ListRoadmaps: %v", err)
	}
	if got == nil {
		t.Error("ListRoadmaps returned nil slice, want empty")
	}
	if len(got) != 0 || total != 0 {
		t.Errorf("got %d items, total %d; want 0, 0", len(got), total)
	}
}

func TestListRoadmaps_InvalidWindow(t *testing.T) {
	s := openTestStore(t)

	if _, _, err := s.ListRoadmaps(-1, 10); err == nil {
		t.Error("expected error for negative skip")
	}
	if _, _, err := s.ListRoadmaps(0, 0); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestCountRoadmaps(t *testing.T) {
	s := openTestStore(t)

	for range 3 {
		if _, err := s.CreateRoadmap(NewRoadmap{UserQuery: "q", Title: "t", Content: "c"}); err != nil {
			t.Fatalf("CreateRoadmap: %v", err)
		}
	}

	n, err := s.CountRoadmaps()
	if err != nil {
		t.Fatalf("CountRoadmaps: %v", err)
	}
	if n != 3 {
		t.Errorf("CountRoadmaps = %d, want 3", n)
	}
}
