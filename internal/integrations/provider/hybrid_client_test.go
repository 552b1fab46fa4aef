package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
)

type fakeBackend struct {
	name    fr.ProviderType
	healthy bool

	compareErr error
	// similarity je Zielbild, Schlüssel ist das erste Byte des Zielbilds
	similarities map[byte]float64

	compareCalls atomic.Int32
	healthCalls  atomic.Int32
}

func (f *fakeBackend) Name() fr.ProviderType { return f.name }

func (f *fakeBackend) IsHealthy(ctx context.Context) bool {
	f.healthCalls.Add(1)
	return f.healthy
}

func (f *fakeBackend) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	f.compareCalls.Add(1)
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	sim := 50.0
	if len(target) > 0 {
		if s, ok := f.similarities[target[0]]; ok {
			sim = s
		}
	}
	return &fr.FaceComparisonResult{Similarity: sim, FaceMatches: []fr.FaceMatch{}, UnmatchedFaces: []fr.FaceRef{}, Provider: f.name}, nil
}

func (f *fakeBackend) DetectFaces(ctx context.Context, image []byte) ([]fr.FaceDetails, error) {
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return []fr.FaceDetails{{Confidence: 99}}, nil
}

type familyBackend struct {
	*fakeBackend
}

func (f familyBackend) CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) (*fr.FamilySimilarity, error) {
	return &fr.FamilySimilarity{Similarity: 0.42, Confidence: 0.9}, nil
}

type recordingSink struct {
	mu        sync.Mutex
	fallbacks []FallbackEvent
	statuses  []fr.HealthStatus
}

func (s *recordingSink) PublishFallback(e FallbackEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks, e)
}

func (s *recordingSink) PublishStatus(st fr.HealthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func testConfig(mode fr.Mode, primary fr.ProviderType, fallback bool) Config {
	return Config{
		Mode:             mode,
		Primary:          primary,
		FallbackEnabled:  fallback,
		UseLocalForBatch: true,
		LocalTimeoutMS:   1000,
		BatchConcurrency: 1,
	}
}

func newClient(t *testing.T, cfg Config, cloud, local fr.Backend) *HybridClient {
	t.Helper()
	c, err := NewHybridClient(cfg, cloud, local)
	if err != nil {
		t.Fatalf("NewHybridClient failed: %v", err)
	}
	return c
}

func TestSelectProvider(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		localHealthy bool
		isBatch      bool
		want         fr.ProviderType
		wantErr      error
		wantProbe    bool
	}{
		{"cloud mode never probes", testConfig(fr.ModeCloud, fr.ProviderLocal, true), true, false, fr.ProviderCloud, nil, false},
		{"local mode healthy", testConfig(fr.ModeLocal, fr.ProviderLocal, false), true, false, fr.ProviderLocal, nil, true},
		{"local mode unhealthy with fallback", testConfig(fr.ModeLocal, fr.ProviderLocal, true), false, false, fr.ProviderCloud, nil, true},
		{"local mode unhealthy without fallback", testConfig(fr.ModeLocal, fr.ProviderLocal, false), false, false, "", fr.ErrProviderUnavailable, true},
		{"hybrid local primary unhealthy", testConfig(fr.ModeHybrid, fr.ProviderLocal, true), false, false, fr.ProviderCloud, nil, true},
		{"hybrid local primary healthy", testConfig(fr.ModeHybrid, fr.ProviderLocal, true), true, false, fr.ProviderLocal, nil, true},
		{"hybrid cloud primary", testConfig(fr.ModeHybrid, fr.ProviderCloud, true), true, false, fr.ProviderCloud, nil, false},
		{"batch prefers healthy local", testConfig(fr.ModeCloud, fr.ProviderCloud, false), true, true, fr.ProviderLocal, nil, true},
		{"batch with unhealthy local", testConfig(fr.ModeCloud, fr.ProviderCloud, false), false, true, fr.ProviderCloud, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &fakeBackend{name: fr.ProviderLocal, healthy: tt.localHealthy}
			c := newClient(t, tt.cfg, &fakeBackend{name: fr.ProviderCloud, healthy: true}, local)

			got, err := c.SelectProvider(context.Background(), fr.OpCompareFaces, tt.isBatch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectProvider = %s, want %s", got, tt.want)
			}
			if probed := local.healthCalls.Load() > 0; probed != tt.wantProbe {
				t.Errorf("local probed = %v, want %v", probed, tt.wantProbe)
			}
		})
	}
}

func TestCompareFaces_LocalOnlyUnavailable(t *testing.T) {
	cloud := &fakeBackend{name: fr.ProviderCloud, healthy: true}
	c := newClient(t, testConfig(fr.ModeLocal, fr.ProviderLocal, false), cloud, &fakeBackend{name: fr.ProviderLocal})

	res := c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 80)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err(), fr.ErrProviderUnavailable) {
		t.Errorf("expected ProviderUnavailable, got %v", res.Err())
	}
	if res.Error.Kind != "ProviderUnavailable" {
		t.Errorf("error kind = %q", res.Error.Kind)
	}
	if cloud.compareCalls.Load() != 0 {
		t.Error("cloud must not be called without fallback")
	}
}

func TestCompareFaces_FallbackOnLocalFailure(t *testing.T) {
	local := &fakeBackend{name: fr.ProviderLocal, healthy: true, compareErr: fr.RequestFailed(fr.ProviderLocal, fr.OpCompareFaces, 500, errors.New("boom"))}
	cloud := &fakeBackend{name: fr.ProviderCloud, healthy: true}
	sink := &recordingSink{}

	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true), cloud, local)
	c.SetEventSink(sink)

	res := c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 80)
	if !res.Success {
		t.Fatalf("expected fallback success, got %+v", res.Error)
	}
	if res.Data.Provider != fr.ProviderCloud {
		t.Errorf("result provider = %s, want cloud", res.Data.Provider)
	}
	if local.compareCalls.Load() != 1 || cloud.compareCalls.Load() != 1 {
		t.Errorf("expected exactly one call per backend, got local=%d cloud=%d", local.compareCalls.Load(), cloud.compareCalls.Load())
	}
	if len(sink.fallbacks) != 1 || sink.fallbacks[0].From != fr.ProviderLocal {
		t.Errorf("fallback events = %+v", sink.fallbacks)
	}
}

func TestCompareFaces_FallbackFailureIsReturned(t *testing.T) {
	local := &fakeBackend{name: fr.ProviderLocal, healthy: true, compareErr: errors.New("local broken")}
	cloud := &fakeBackend{name: fr.ProviderCloud, compareErr: fr.RequestFailed(fr.ProviderCloud, fr.OpCompareFaces, 400, errors.New("bad image"))}

	c := newClient(t, testConfig(fr.ModeLocal, fr.ProviderLocal, true), cloud, local)
	res := c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 80)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Provider != fr.ProviderCloud || res.Error.Retryable {
		t.Errorf("unexpected error info %+v", res.Error)
	}
	if cloud.compareCalls.Load() != 1 {
		t.Errorf("cloud should be tried exactly once, got %d", cloud.compareCalls.Load())
	}
}

func TestCompareFaces_NoFallbackFromCloud(t *testing.T) {
	local := &fakeBackend{name: fr.ProviderLocal, healthy: true}
	cloud := &fakeBackend{name: fr.ProviderCloud, compareErr: errors.New("cloud down")}

	c := newClient(t, testConfig(fr.ModeCloud, fr.ProviderCloud, true), cloud, local)
	res := c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 80)
	if res.Success {
		t.Fatal("expected failure")
	}
	if local.compareCalls.Load() != 0 {
		t.Error("cloud failures must not fall back to local")
	}
	if !errors.Is(res.Err(), fr.ErrBackendRequestFailed) {
		t.Errorf("expected BackendRequestFailed, got %v", res.Err())
	}
}

func TestDetectFaces_Fallback(t *testing.T) {
	local := &fakeBackend{name: fr.ProviderLocal, healthy: true, compareErr: context.DeadlineExceeded}
	cloud := &fakeBackend{name: fr.ProviderCloud}

	c := newClient(t, testConfig(fr.ModeLocal, fr.ProviderLocal, true), cloud, local)
	res := c.DetectFaces(context.Background(), []byte{1})
	if !res.Success || len(res.Data) != 1 {
		t.Fatalf("expected fallback success, got %+v", res)
	}
}

func TestFindSimilarFaces_Ranking(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		local := &fakeBackend{name: fr.ProviderLocal, healthy: true, similarities: map[byte]float64{0: 20, 1: 90, 2: 50}}
		cfg := testConfig(fr.ModeLocal, fr.ProviderLocal, false)
		cfg.BatchConcurrency = concurrency
		c := newClient(t, cfg, nil, local)

		res := c.FindSimilarFaces(context.Background(), []byte{9}, [][]byte{{0}, {1}, {2}})
		if !res.Success {
			t.Fatalf("FindSimilarFaces failed: %+v", res.Error)
		}
		want := []int{1, 2, 0}
		for i, idx := range want {
			if res.Data[i].ImageIndex != idx {
				t.Errorf("concurrency %d: rank %d = index %d, want %d", concurrency, i, res.Data[i].ImageIndex, idx)
			}
		}
	}
}

func TestFindSimilarFaces_StableTies(t *testing.T) {
	local := &fakeBackend{name: fr.ProviderLocal, healthy: true, similarities: map[byte]float64{0: 40, 1: 70, 2: 40, 3: 70}}
	cfg := testConfig(fr.ModeLocal, fr.ProviderLocal, false)
	cfg.BatchConcurrency = 4
	c := newClient(t, cfg, nil, local)

	res := c.FindSimilarFaces(context.Background(), nil, [][]byte{{0}, {1}, {2}, {3}})
	want := []int{1, 3, 0, 2}
	for i, idx := range want {
		if res.Data[i].ImageIndex != idx {
			t.Errorf("rank %d = index %d, want %d", i, res.Data[i].ImageIndex, idx)
		}
	}
}

type batchCloud struct {
	*fakeBackend
	batchCalls int
}

func (b *batchCloud) FindSimilarFaces(ctx context.Context, source []byte, targets [][]byte) ([]fr.SimilarFace, error) {
	b.batchCalls++
	return []fr.SimilarFace{{ImageIndex: 0, Similarity: 10}}, nil
}

func TestFindSimilarFaces_CloudUsesNativeBatch(t *testing.T) {
	cloud := &batchCloud{fakeBackend: &fakeBackend{name: fr.ProviderCloud}}
	cfg := testConfig(fr.ModeCloud, fr.ProviderCloud, false)
	cfg.UseLocalForBatch = false
	c := newClient(t, cfg, cloud, &fakeBackend{name: fr.ProviderLocal, healthy: true})

	res := c.FindSimilarFaces(context.Background(), nil, [][]byte{{0}, {1}})
	if !res.Success || cloud.batchCalls != 1 || cloud.compareCalls.Load() != 0 {
		t.Errorf("expected one native batch call, got batch=%d compare=%d", cloud.batchCalls, cloud.compareCalls.Load())
	}
}

func TestFindSimilarFaces_Empty(t *testing.T) {
	c := newClient(t, testConfig(fr.ModeCloud, fr.ProviderCloud, false), nil, nil)
	res := c.FindSimilarFaces(context.Background(), nil, nil)
	if !res.Success || res.Data == nil || len(res.Data) != 0 {
		t.Errorf("expected empty success, got %+v", res)
	}
}

func TestCompareFamilyFaces(t *testing.T) {
	local := familyBackend{&fakeBackend{name: fr.ProviderLocal, healthy: true}}

	c := newClient(t, testConfig(fr.ModeLocal, fr.ProviderLocal, false), nil, local)
	res := c.CompareFamilyFaces(context.Background(), nil, nil, nil, nil)
	if !res.Success || res.Data.Similarity != 0.42 {
		t.Fatalf("expected local family comparison, got %+v", res)
	}

	cloud := &fakeBackend{name: fr.ProviderCloud}
	c = newClient(t, testConfig(fr.ModeCloud, fr.ProviderCloud, true), cloud, local)
	res = c.CompareFamilyFaces(context.Background(), nil, nil, nil, nil)
	if !errors.Is(res.Err(), fr.ErrUnsupportedOperation) {
		t.Fatalf("expected UnsupportedOperation, got %v", res.Err())
	}
	if cloud.compareCalls.Load() != 0 {
		t.Error("cloud must not be called for family comparison")
	}
}

func TestGetProviderStatus(t *testing.T) {
	sink := &recordingSink{}
	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true),
		&fakeBackend{name: fr.ProviderCloud, healthy: true},
		&fakeBackend{name: fr.ProviderLocal, healthy: false})
	c.SetEventSink(sink)

	res := c.GetProviderStatus(context.Background())
	if !res.Data.Cloud.Available || res.Data.Local.Available {
		t.Errorf("unexpected status %+v", res.Data)
	}
	if res.Data.Local.Error == "" {
		t.Error("unavailable local provider should carry an error")
	}
	if res.Data.Current != fr.ModeHybrid {
		t.Errorf("current = %s", res.Data.Current)
	}
	if len(sink.statuses) != 1 {
		t.Errorf("expected one status event, got %d", len(sink.statuses))
	}

	none := newClient(t, testConfig(fr.ModeCloud, fr.ProviderCloud, false), nil, nil)
	if st := none.GetProviderStatus(context.Background()).Data; st.Cloud.Available || st.Local.Available {
		t.Errorf("missing providers must be unavailable: %+v", st)
	}
}

func TestUpdateConfig(t *testing.T) {
	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true), nil, nil)
	before := c.GetConfig()

	mode := fr.ModeCloud
	fallback := false
	res := c.UpdateConfig(ConfigUpdate{Mode: &mode, FallbackEnabled: &fallback})
	if !res.Success {
		t.Fatalf("UpdateConfig failed: %+v", res.Error)
	}
	got := c.GetConfig()
	if got.Mode != fr.ModeCloud || got.FallbackEnabled || got.Primary != before.Primary || got.LocalTimeoutMS != before.LocalTimeoutMS {
		t.Errorf("unexpected config after update: %+v", got)
	}
	if before.Mode != fr.ModeHybrid {
		t.Error("previously returned config must not change")
	}

	bad := fr.Mode("satellite")
	if res := c.UpdateConfig(ConfigUpdate{Mode: &bad}); res.Success {
		t.Error("invalid mode should be rejected")
	}
	if c.GetConfig().Mode != fr.ModeCloud {
		t.Error("rejected update must not change the config")
	}
}

func TestUpdateConfig_Concurrent(t *testing.T) {
	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true), nil, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n := i
			c.UpdateConfig(ConfigUpdate{BatchConcurrency: &n})
		}()
		go func() {
			defer wg.Done()
			if cfg := c.GetConfig(); cfg.Validate() != nil {
				t.Errorf("reader observed invalid config %+v", cfg)
			}
		}()
	}
	wg.Wait()
}

type slowBackend struct {
	*fakeBackend
}

func (s slowBackend) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Second):
		return s.fakeBackend.CompareFaces(ctx, source, target, threshold)
	}
}

func TestCompareFaces_LocalTimeout(t *testing.T) {
	local := slowBackend{&fakeBackend{name: fr.ProviderLocal, healthy: true}}
	cfg := testConfig(fr.ModeLocal, fr.ProviderLocal, false)
	cfg.LocalTimeoutMS = 20
	c := newClient(t, cfg, nil, local)

	res := c.CompareFaces(context.Background(), nil, nil, 0)
	if !errors.Is(res.Err(), fr.ErrBackendTimeout) {
		t.Fatalf("expected BackendTimeout, got %v", res.Err())
	}
	if !res.Error.Retryable {
		t.Error("timeouts should be retryable")
	}
}

func TestSinks_FanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true),
		&fakeBackend{name: fr.ProviderCloud, healthy: true},
		&fakeBackend{name: fr.ProviderLocal, healthy: true})
	c.SetEventSink(Sinks{a, b})

	c.GetProviderStatus(context.Background())
	if len(a.statuses) != 1 || len(b.statuses) != 1 {
		t.Errorf("status should reach every sink: %d, %d", len(a.statuses), len(b.statuses))
	}
}

// delayBackend antwortet je Zielbild nach einer festen Verzögerung, Schlüssel ist das erste Byte
type delayBackend struct {
	*fakeBackend
	delays map[byte]time.Duration
}

func (d delayBackend) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.delays[target[0]]):
		return d.fakeBackend.CompareFaces(ctx, source, target, threshold)
	}
}

func TestFindSimilarFaces_TimeoutPerComparison(t *testing.T) {
	local := delayBackend{
		fakeBackend: &fakeBackend{name: fr.ProviderLocal, healthy: true, similarities: map[byte]float64{0: 20, 1: 90, 2: 50, 3: 70}},
		delays:      map[byte]time.Duration{0: 60 * time.Millisecond, 1: 60 * time.Millisecond, 2: 60 * time.Millisecond, 3: 60 * time.Millisecond},
	}
	cfg := testConfig(fr.ModeLocal, fr.ProviderLocal, false)
	cfg.LocalTimeoutMS = 100
	c := newClient(t, cfg, nil, local)

	// Jeder Vergleich bleibt unter dem Timeout, der Batch insgesamt nicht
	res := c.FindSimilarFaces(context.Background(), []byte{9}, [][]byte{{0}, {1}, {2}, {3}})
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Err())
	}
	want := []int{1, 3, 2, 0}
	if len(res.Data) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(res.Data))
	}
	for i, idx := range want {
		if res.Data[i].ImageIndex != idx {
			t.Errorf("rank %d: index %d, want %d", i, res.Data[i].ImageIndex, idx)
		}
	}
}

func TestFindSimilarFaces_SlowTargetSkipped(t *testing.T) {
	local := delayBackend{
		fakeBackend: &fakeBackend{name: fr.ProviderLocal, healthy: true, similarities: map[byte]float64{0: 20, 1: 90, 2: 50}},
		delays:      map[byte]time.Duration{0: 10 * time.Millisecond, 1: time.Second, 2: 10 * time.Millisecond},
	}
	cfg := testConfig(fr.ModeLocal, fr.ProviderLocal, false)
	cfg.LocalTimeoutMS = 100
	c := newClient(t, cfg, nil, local)

	res := c.FindSimilarFaces(context.Background(), []byte{9}, [][]byte{{0}, {1}, {2}})
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Err())
	}
	if len(res.Data) != 2 || res.Data[0].ImageIndex != 2 || res.Data[1].ImageIndex != 0 {
		t.Errorf("timed out target should be skipped, got %+v", res.Data)
	}
}

func TestSetEventSink_Concurrent(t *testing.T) {
	c := newClient(t, testConfig(fr.ModeHybrid, fr.ProviderLocal, true),
		&fakeBackend{name: fr.ProviderCloud, healthy: true},
		&fakeBackend{name: fr.ProviderLocal, healthy: false})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetEventSink(&recordingSink{})
		}()
		go func() {
			defer wg.Done()
			c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 0)
			c.GetProviderStatus(context.Background())
		}()
	}
	wg.Wait()

	sink := &recordingSink{}
	c.SetEventSink(sink)
	c.CompareFaces(context.Background(), []byte{1}, []byte{2}, 0)
	if len(sink.fallbacks) != 1 {
		t.Errorf("expected one fallback event, got %d", len(sink.fallbacks))
	}

	c.SetEventSink(nil)
	c.GetProviderStatus(context.Background())
	if len(sink.statuses) != 0 {
		t.Error("removed sink should not receive events")
	}
}
