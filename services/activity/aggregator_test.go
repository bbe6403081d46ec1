package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"assetdex/services/catalog"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

type stubReader struct {
	records map[string][]RawRecord
	err     error
}

func (s *stubReader) GetEventsByName(_ context.Context, eventName string, start, end time.Time) ([]RawRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var inWindow []RawRecord
	for _, rec := range s.records[eventName] {
		if rec.EventTime.Before(start) || rec.EventTime.After(end) {
			continue
		}
		inWindow = append(inWindow, rec)
	}
	return inWindow, nil
}

func rawView(ts time.Time, user, dashboardID string) RawRecord {
	return RawRecord{
		EventTime: ts,
		Source:    testSource,
		Detail: map[string]any{
			"userIdentity":      map[string]any{"userName": user},
			"requestParameters": map[string]any{"dashboardId": dashboardID},
		},
	}
}

func newTestAggregator(t *testing.T, reader AuditLogReader) *Aggregator {
	t.Helper()
	svc, err := catalog.NewService(newMemStore(), nil, nil)
	if err != nil {
		t.Fatalf("catalog.NewService() error = %v", err)
	}
	agg, err := NewAggregator(svc, reader, newTestCompactor(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	return agg
}

func TestRefreshDashboardScenario(t *testing.T) {
	now := time.Now().UTC()
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {
			rawView(now.Add(-48*time.Hour), "u1", "D"),
			rawView(now.Add(-24*time.Hour), "u1", "D"),
			rawView(now.Add(-2*time.Hour), "u2", "D"),
		},
	}}
	agg := newTestAggregator(t, reader)

	result := agg.Refresh(context.Background(), []string{"dashboard"}, 7)
	if !result.Success {
		t.Fatalf("Refresh() failed: %s", result.Message)
	}
	if result.Refreshed["dashboard"] != 3 {
		t.Fatalf("refreshed[dashboard] = %d, want 3", result.Refreshed["dashboard"])
	}

	data, err := agg.AssetActivity(context.Background(), catalog.AssetDashboard, "D")
	if err != nil {
		t.Fatalf("AssetActivity() error = %v", err)
	}
	if data == nil {
		t.Fatal("AssetActivity() = nil, want data")
	}
	if data.TotalViews != 3 {
		t.Fatalf("TotalViews = %d, want 3", data.TotalViews)
	}
	if len(data.Viewers) != 2 {
		t.Fatalf("unique viewers = %d, want 2", len(data.Viewers))
	}
	wantLast := now.Add(-2 * time.Hour).Format(time.RFC3339)
	if data.LastViewed != wantLast {
		t.Fatalf("LastViewed = %q, want %q", data.LastViewed, wantLast)
	}
	if data.Viewers["u1"].Count != 2 || data.Viewers["u2"].Count != 1 {
		t.Fatalf("viewer counts = %+v", data.Viewers)
	}

	if phase := agg.Phase(); phase != PhaseIdle {
		t.Fatalf("Phase() after refresh = %s, want IDLE", phase)
	}
}

func TestSummaryWithoutRefreshIsAllZero(t *testing.T) {
	agg := newTestAggregator(t, &stubReader{})

	summary, err := agg.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalEvents != 0 {
		t.Fatalf("TotalEvents = %d, want 0", summary.TotalEvents)
	}
	if summary.ByType == nil || summary.UserActivity == nil {
		t.Fatal("Summary maps must be non-nil for an empty system")
	}
}

func TestClampDays(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero uses default", in: 0, want: DefaultLookbackDays},
		{name: "negative uses default", in: -5, want: DefaultLookbackDays},
		{name: "inside range passes through", in: 14, want: 14},
		{name: "over max clamps to 90", in: 200, want: MaxLookbackDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampDays(tt.in); got != tt.want {
				t.Fatalf("ClampDays(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRefreshRejectsUnknownType(t *testing.T) {
	agg := newTestAggregator(t, &stubReader{})

	result := agg.Refresh(context.Background(), []string{"widget"}, 7)
	if result.Success {
		t.Fatal("Refresh() succeeded for unknown asset type")
	}
}

func TestRefreshDropsUnresolvableRecords(t *testing.T) {
	now := time.Now().UTC()
	noResource := RawRecord{
		EventTime: now.Add(-time.Hour),
		Source:    testSource,
		Detail:    map[string]any{"userIdentity": map[string]any{"userName": "u1"}},
	}
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {noResource},
	}}
	agg := newTestAggregator(t, reader)

	result := agg.Refresh(context.Background(), []string{"dashboard"}, 7)
	if !result.Success {
		t.Fatalf("Refresh() failed: %s", result.Message)
	}

	summary, err := agg.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalEvents != 0 {
		t.Fatalf("TotalEvents = %d, want 0 (record had no resource)", summary.TotalEvents)
	}
}

func TestRefreshFailureLeavesPreviousWindow(t *testing.T) {
	now := time.Now().UTC()
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {rawView(now.Add(-time.Hour), "u1", "D1")},
	}}
	agg := newTestAggregator(t, reader)

	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("first Refresh() failed: %s", result.Message)
	}

	reader.err = errors.New("audit log down")
	result := agg.Refresh(context.Background(), []string{"dashboard"}, 7)
	if result.Success {
		t.Fatal("second Refresh() succeeded despite reader failure")
	}

	summary, err := agg.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalEvents != 1 {
		t.Fatalf("TotalEvents = %d, want 1 (previous window intact)", summary.TotalEvents)
	}
	if phase := agg.Phase(); phase != PhaseIdle {
		t.Fatalf("Phase() after failed refresh = %s, want IDLE", phase)
	}
}

func TestAssetActivityFallsBackToPersistedDate(t *testing.T) {
	now := time.Now().UTC()
	seen := now.Add(-3 * time.Hour)
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {rawView(seen, "u1", "D1")},
	}}
	agg := newTestAggregator(t, reader)

	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("first Refresh() failed: %s", result.Message)
	}

	// The event ages out: a later refresh finds nothing, replacing the
	// window wholesale, but the persisted date must survive.
	reader.records = nil
	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("second Refresh() failed: %s", result.Message)
	}

	data, err := agg.AssetActivity(context.Background(), catalog.AssetDashboard, "D1")
	if err != nil {
		t.Fatalf("AssetActivity() error = %v", err)
	}
	if data == nil {
		t.Fatal("AssetActivity() = nil, want persisted fallback")
	}
	if data.TotalViews != 0 {
		t.Fatalf("TotalViews = %d, want 0", data.TotalViews)
	}
	if data.LastViewed != seen.Format(time.RFC3339) {
		t.Fatalf("LastViewed = %q, want %q", data.LastViewed, seen.Format(time.RFC3339))
	}

	user, err := agg.UserActivity(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserActivity() error = %v", err)
	}
	if user == nil || user.LastActive != seen.Format(time.RFC3339) {
		t.Fatalf("UserActivity() = %+v, want persisted last active", user)
	}

	missing, err := agg.AssetActivity(context.Background(), catalog.AssetDashboard, "never-seen")
	if err != nil {
		t.Fatalf("AssetActivity() error = %v", err)
	}
	if missing != nil {
		t.Fatalf("AssetActivity(never-seen) = %+v, want nil", missing)
	}
}

func TestBulkAssetActivityCounts(t *testing.T) {
	now := time.Now().UTC()
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {
			rawView(now.Add(-30*time.Hour), "u1", "D1"),
			rawView(now.Add(-20*time.Hour), "u2", "D1"),
			rawView(now.Add(-10*time.Hour), "u1", "D2"),
		},
	}}
	agg := newTestAggregator(t, reader)

	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("Refresh() failed: %s", result.Message)
	}

	counts, err := agg.AssetActivityCounts(context.Background(), catalog.AssetDashboard, []string{"D1", "D2", "D3"})
	if err != nil {
		t.Fatalf("AssetActivityCounts() error = %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("len(counts) = %d, want 3 (every requested id present)", len(counts))
	}
	if counts["D1"].Views != 2 || counts["D1"].UniqueViewers != 2 {
		t.Fatalf("counts[D1] = %+v", counts["D1"])
	}
	if counts["D2"].Views != 1 || counts["D2"].UniqueViewers != 1 {
		t.Fatalf("counts[D2] = %+v", counts["D2"])
	}
	if counts["D3"].Views != 0 {
		t.Fatalf("counts[D3] = %+v, want zero entry", counts["D3"])
	}
}

func TestBulkUserActivityCounts(t *testing.T) {
	now := time.Now().UTC()
	reader := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {
			rawView(now.Add(-5*time.Hour), "u1", "D1"),
			rawView(now.Add(-4*time.Hour), "u1", "D2"),
			rawView(now.Add(-3*time.Hour), "u2", "D1"),
		},
	}}
	agg := newTestAggregator(t, reader)

	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("Refresh() failed: %s", result.Message)
	}

	counts, err := agg.UserActivityCounts(context.Background(), []string{"u1", "u3"})
	if err != nil {
		t.Fatalf("UserActivityCounts() error = %v", err)
	}
	if counts["u1"].Views != 2 {
		t.Fatalf("counts[u1] = %+v, want 2 views", counts["u1"])
	}
	if counts["u1"].LastViewed != now.Add(-4*time.Hour).Format(time.RFC3339) {
		t.Fatalf("counts[u1].LastViewed = %q", counts["u1"].LastViewed)
	}
	if counts["u3"].Views != 0 {
		t.Fatalf("counts[u3] = %+v, want zero entry", counts["u3"])
	}
}

// Bulk lookups must scale with the event count, not events times ids:
// a large id set over a fixed window should cost about the same as a
// small one.
func TestBulkCountsSinglePass(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive")
	}

	now := time.Now().UTC()
	var records []RawRecord
	for i := 0; i < 5000; i++ {
		records = append(records, rawView(now.Add(-time.Duration(i)*time.Minute), fmt.Sprintf("u%d", i%50), fmt.Sprintf("D%d", i%200)))
	}
	reader := &stubReader{records: map[string][]RawRecord{"GetDashboard": records}}
	agg := newTestAggregator(t, reader)

	if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
		t.Fatalf("Refresh() failed: %s", result.Message)
	}

	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("D%d", i)
		}
		return out
	}

	timeOnce := func(k int) time.Duration {
		start := time.Now()
		if _, err := agg.AssetActivityCounts(context.Background(), catalog.AssetDashboard, ids(k)); err != nil {
			t.Fatalf("AssetActivityCounts() error = %v", err)
		}
		return time.Since(start)
	}

	small := timeOnce(10)
	large := timeOnce(2000)

	// Generous bound: a per-id pass would be ~200x slower.
	if large > small*50+10*time.Millisecond {
		t.Fatalf("bulk lookup scaled with id count: 10 ids took %s, 2000 ids took %s", small, large)
	}
}

type flakyStore struct {
	*memStore
	failKey string
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	if f.failKey != "" && key == f.failKey {
		return errors.New("durable store down")
	}
	return f.memStore.Put(ctx, key, data)
}

func TestRefreshCommitIsAllOrNothing(t *testing.T) {
	cases := []struct {
		name    string
		failKey string
	}{
		{"persistence write fails", catalog.ActivityPersistenceKey()},
		{"window write fails", catalog.ActivityCacheKey()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Now().UTC()
			reader := &stubReader{records: map[string][]RawRecord{
				"GetDashboard": {rawView(now.Add(-time.Hour), "u1", "D1")},
			}}
			store := &flakyStore{memStore: newMemStore()}
			svc, err := catalog.NewService(store, nil, nil)
			if err != nil {
				t.Fatalf("catalog.NewService() error = %v", err)
			}
			agg, err := NewAggregator(svc, reader, newTestCompactor(t), nil, nil, nil)
			if err != nil {
				t.Fatalf("NewAggregator() error = %v", err)
			}

			if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
				t.Fatalf("first Refresh() failed: %s", result.Message)
			}

			reader.records["GetDashboard"] = append(reader.records["GetDashboard"],
				rawView(now.Add(-30*time.Minute), "u2", "D9"))
			store.failKey = tc.failKey

			if result := agg.Refresh(context.Background(), []string{"dashboard"}, 7); result.Success {
				t.Fatal("second Refresh() succeeded despite durable failure")
			}

			summary, err := agg.Summary(context.Background())
			if err != nil {
				t.Fatalf("Summary() error = %v", err)
			}
			if summary.TotalEvents != 1 {
				t.Fatalf("TotalEvents = %d, want 1 (previous window intact)", summary.TotalEvents)
			}

			data, err := agg.AssetActivity(context.Background(), catalog.AssetDashboard, "D9")
			if err != nil {
				t.Fatalf("AssetActivity() error = %v", err)
			}
			if data != nil {
				t.Fatalf("failed refresh leaked its window: D9 visible with %d view(s)", data.TotalViews)
			}

			user, err := agg.UserActivity(context.Background(), "u2")
			if err != nil {
				t.Fatalf("UserActivity() error = %v", err)
			}
			if user != nil {
				t.Fatal("failed refresh leaked its persistence merge: u2 visible")
			}

			if phase := agg.Phase(); phase != PhaseIdle {
				t.Fatalf("Phase() after failed refresh = %s, want IDLE", phase)
			}
		})
	}
}

func TestConcurrentRefreshWindowIsNotMixed(t *testing.T) {
	now := time.Now().UTC()
	svc, err := catalog.NewService(newMemStore(), nil, nil)
	if err != nil {
		t.Fatalf("catalog.NewService() error = %v", err)
	}

	readerA := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {rawView(now.Add(-time.Hour), "uA", "DA")},
	}}
	readerB := &stubReader{records: map[string][]RawRecord{
		"GetDashboard": {
			rawView(now.Add(-3*time.Hour), "uB", "DB"),
			rawView(now.Add(-2*time.Hour), "uB", "DB"),
		},
	}}

	aggA, err := NewAggregator(svc, readerA, newTestCompactor(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	aggB, err := NewAggregator(svc, readerB, newTestCompactor(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, agg := range []*Aggregator{aggA, aggB} {
		wg.Add(1)
		go func(a *Aggregator) {
			defer wg.Done()
			if result := a.Refresh(context.Background(), []string{"dashboard"}, 7); !result.Success {
				t.Errorf("Refresh() failed: %s", result.Message)
			}
		}(agg)
	}
	wg.Wait()

	var window ActivityCache
	if err := svc.Get(context.Background(), catalog.ActivityCacheKey(), &window); err != nil {
		t.Fatalf("load committed window: %v", err)
	}

	counts := map[string]int{}
	for _, events := range window.Events {
		for _, ev := range events {
			counts[ev.R]++
		}
	}
	switch {
	case len(counts) == 1 && counts["DA"] == 1:
	case len(counts) == 1 && counts["DB"] == 2:
	default:
		t.Fatalf("window mixes concurrent refreshes: %v", counts)
	}
}
