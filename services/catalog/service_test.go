package catalog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
	puts    int
	putErr  error
	failKey string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	if f.failKey != "" && key == f.failKey {
		return errors.New("durable store down")
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStore) calls() (gets, puts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.puts
}

type fakeLister struct {
	assets map[AssetType][]CacheEntry
	err    error
}

func (f *fakeLister) ListAssets(_ context.Context, at AssetType) ([]CacheEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assets[at], nil
}

func newTestService(t *testing.T, store DurableStore, lister AssetLister) *Service {
	t.Helper()
	svc, err := NewService(store, lister, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestJobIndexFastPath(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	jobs := []JobRecord{
		{JobID: uuid.New(), JobType: "bulk-export", Status: "running", Progress: 40},
		{JobID: uuid.New(), JobType: "bulk-delete", Status: "queued"},
	}

	svc.UpdateJobIndex(jobs)

	got, err := svc.GetJobIndex(context.Background())
	if err != nil {
		t.Fatalf("GetJobIndex() error = %v", err)
	}
	if !reflect.DeepEqual(got, jobs) {
		t.Fatalf("GetJobIndex() = %+v, want %+v", got, jobs)
	}

	gets, puts := store.calls()
	if gets != 0 || puts != 0 {
		t.Fatalf("durable calls = %d gets, %d puts; want zero for the fast path", gets, puts)
	}
}

func TestJobIndexColdFallback(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	got, err := svc.GetJobIndex(context.Background())
	if err != nil {
		t.Fatalf("GetJobIndex() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetJobIndex() on empty store = %+v, want empty list", got)
	}
	if got == nil {
		t.Fatal("GetJobIndex() = nil, want non-nil empty list")
	}
}

func TestGetServesUnflushedJobIndex(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	v1 := []JobRecord{{JobID: uuid.New(), JobType: "bulk-export", Status: "done", Progress: 100}}
	svc.UpdateJobIndex(v1)
	if err := svc.PersistJobIndex(context.Background()); err != nil {
		t.Fatalf("PersistJobIndex() error = %v", err)
	}

	v2 := []JobRecord{{JobID: uuid.New(), JobType: "bulk-export", Status: "running", Progress: 10}}
	svc.UpdateJobIndex(v2)

	getsBefore, _ := store.calls()
	var decoded []JobRecord
	if err := svc.Get(context.Background(), JobIndexKey(), &decoded); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(decoded) != 1 || decoded[0].JobID != v2[0].JobID {
		t.Fatalf("Get() = %+v, want the unflushed update %s", decoded, v2[0].JobID)
	}
	if getsAfter, _ := store.calls(); getsAfter != getsBefore {
		t.Fatal("Get() hit the durable store despite a live memory value")
	}

	jobs, err := svc.GetJobIndex(context.Background())
	if err != nil {
		t.Fatalf("GetJobIndex() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != v2[0].JobID {
		t.Fatalf("GetJobIndex() = %+v, want %s; memory tier lost the unflushed update", jobs, v2[0].JobID)
	}
}

func TestPutBatchPartialFailureInvisible(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	if err := svc.Put(context.Background(), "alpha.json", map[string]string{"v": "old"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	store.failKey = "beta.json"
	err := svc.PutBatch(context.Background(),
		BatchEntry{Key: "alpha.json", Value: map[string]string{"v": "new"}},
		BatchEntry{Key: "beta.json", Value: map[string]string{"v": "new"}},
	)
	if err == nil {
		t.Fatal("PutBatch() succeeded despite a durable failure")
	}

	var got map[string]string
	if err := svc.Get(context.Background(), "alpha.json", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["v"] != "old" {
		t.Fatalf("Get() = %v, want the previously committed value; memory exposed a partial batch", got)
	}
}

func TestPersistJobIndexFlushesMemory(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	jobs := []JobRecord{{JobID: uuid.New(), JobType: "bulk-export", Status: "done", Progress: 100}}
	svc.UpdateJobIndex(jobs)

	if err := svc.PersistJobIndex(context.Background()); err != nil {
		t.Fatalf("PersistJobIndex() error = %v", err)
	}
	if _, puts := store.calls(); puts != 1 {
		t.Fatalf("durable puts = %d, want 1", puts)
	}

	// A cold process sees the persisted list.
	cold := newTestService(t, store, nil)
	got, err := cold.GetJobIndex(context.Background())
	if err != nil {
		t.Fatalf("GetJobIndex() error = %v", err)
	}
	if len(got) != 1 || got[0].JobID != jobs[0].JobID {
		t.Fatalf("cold GetJobIndex() = %+v, want %+v", got, jobs)
	}
}

func TestGetReadThroughPopulatesMemory(t *testing.T) {
	store := newFakeStore()
	store.objects["activity/cache.json"] = []byte(`{"version":1}`)
	svc := newTestService(t, store, nil)

	var first map[string]any
	if err := svc.Get(context.Background(), "activity/cache.json", &first); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var second map[string]any
	if err := svc.Get(context.Background(), "activity/cache.json", &second); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gets, _ := store.calls(); gets != 1 {
		t.Fatalf("durable gets = %d, want 1 (second read served from memory)", gets)
	}
}

func TestGetMissingKey(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)

	var dest map[string]any
	err := svc.Get(context.Background(), "activity/cache.json", &dest)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPutFailureLeavesMemoryUntouched(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("boom")
	svc := newTestService(t, store, nil)

	err := svc.Put(context.Background(), "activity/cache.json", map[string]int{"version": 2})
	if err == nil {
		t.Fatal("Put() error = nil, want durable failure")
	}

	var dest map[string]any
	if err := svc.Get(context.Background(), "activity/cache.json", &dest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after failed Put error = %v, want ErrNotFound", err)
	}
}

func rebuildFixture() map[AssetType][]CacheEntry {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return map[AssetType][]CacheEntry{
		AssetDashboard: {
			{AssetID: "d1", AssetType: AssetDashboard, AssetName: "Revenue", Status: StatusActive, CreatedTime: now, LastUpdatedTime: now},
			{AssetID: "d2", AssetType: AssetDashboard, AssetName: "Churn", Status: StatusArchived, CreatedTime: now, LastUpdatedTime: now, StorageType: StorageIndividual},
		},
		AssetUser: {
			{AssetID: "u1", AssetType: AssetUser, AssetName: "analyst", Status: StatusActive, CreatedTime: now, LastUpdatedTime: now},
		},
	}
}

func TestRebuildSwapsAndPersists(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, &fakeLister{assets: rebuildFixture()})

	res, err := svc.Rebuild(context.Background(), nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if res.Counts[AssetDashboard] != 2 || res.Counts[AssetUser] != 1 {
		t.Fatalf("Rebuild() counts = %+v", res.Counts)
	}

	master, err := svc.GetMasterCache(context.Background(), MasterFilter{})
	if err != nil {
		t.Fatalf("GetMasterCache() error = %v", err)
	}
	if len(master[AssetDashboard]) != 2 {
		t.Fatalf("master dashboards = %d, want 2", len(master[AssetDashboard]))
	}

	// One collection object per type, plus the individual entry.
	if _, ok := store.objects[collectionKey(AssetDashboard)]; !ok {
		t.Fatal("dashboard collection object missing")
	}
	if _, ok := store.objects[individualKey(AssetDashboard, "d2")]; !ok {
		t.Fatal("individual object for d2 missing")
	}

	// A cold process reads the persisted index.
	cold := newTestService(t, store, nil)
	coldMaster, err := cold.GetMasterCache(context.Background(), MasterFilter{})
	if err != nil {
		t.Fatalf("cold GetMasterCache() error = %v", err)
	}
	if len(coldMaster[AssetDashboard]) != 2 {
		t.Fatalf("cold master dashboards = %d, want 2", len(coldMaster[AssetDashboard]))
	}
}

func TestRebuildFailureKeepsPreviousMaster(t *testing.T) {
	store := newFakeStore()
	lister := &fakeLister{assets: rebuildFixture()}
	svc := newTestService(t, store, lister)

	if _, err := svc.Rebuild(context.Background(), nil); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	lister.err = errors.New("listing down")
	if _, err := svc.Rebuild(context.Background(), nil); err == nil {
		t.Fatal("Rebuild() error = nil, want listing failure")
	}

	master, err := svc.GetMasterCache(context.Background(), MasterFilter{})
	if err != nil {
		t.Fatalf("GetMasterCache() error = %v", err)
	}
	if len(master[AssetDashboard]) != 2 {
		t.Fatalf("master dashboards after failed rebuild = %d, want 2", len(master[AssetDashboard]))
	}
}

func TestGetMasterCacheStatusFilter(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, &fakeLister{assets: rebuildFixture()})

	if _, err := svc.Rebuild(context.Background(), nil); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	tests := []struct {
		name   string
		filter MasterFilter
		want   int
	}{
		{name: "unfiltered", filter: MasterFilter{}, want: 2},
		{name: "active only", filter: MasterFilter{Status: StatusActive}, want: 1},
		{name: "archived only", filter: MasterFilter{Status: StatusArchived}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			master, err := svc.GetMasterCache(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("GetMasterCache() error = %v", err)
			}
			if got := len(master[AssetDashboard]); got != tt.want {
				t.Fatalf("dashboards = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResetClearsMemoryOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	if err := svc.Put(context.Background(), "activity/cache.json", map[string]int{"version": 1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	svc.Reset()

	var dest map[string]any
	if err := svc.Get(context.Background(), "activity/cache.json", &dest); err != nil {
		t.Fatalf("Get() after Reset error = %v", err)
	}
	if gets, _ := store.calls(); gets != 1 {
		t.Fatalf("durable gets = %d, want 1 (memory was cleared)", gets)
	}
}
