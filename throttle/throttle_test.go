package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tsukikage7/throttle-kit/logger"
	"github.com/Tsukikage7/throttle-kit/store"
)

// newTestThrottle 创建测试用的限速器.
func newTestThrottle(t *testing.T, cfg *Config) (*Throttle, store.Store) {
	t.Helper()

	st, err := store.NewMemoryStore(store.NewMemoryConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg.Store = st
	cfg.Logger = logger.NewNop()

	th, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return th, st
}

func TestConfigValidate(t *testing.T) {
	st, _ := store.NewMemoryStore(store.NewMemoryConfig(), logger.NewNop())
	defer st.Close()

	tests := []struct {
		name string
		cfg  *Config
		want error
	}{
		{"nil config", nil, ErrNilConfig},
		{"nil store", &Config{RPM: 60, Logger: logger.NewNop()}, ErrNilStore},
		{"nil logger", &Config{RPM: 60, Store: st}, ErrNilLogger},
		{"missing rpm", &Config{Store: st, Logger: logger.NewNop()}, ErrInvalidRPM},
		{"negative rpm", &Config{RPM: -1, Store: st, Logger: logger.NewNop()}, ErrInvalidRPM},
		{"negative db", &Config{RPM: 60, DB: -1, Store: st, Logger: logger.NewNop()}, ErrInvalidDB},
		{"negative threshold", &Config{RPM: 60, ResetThreshold: -1, Store: st, Logger: logger.NewNop()}, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	th, _ := newTestThrottle(t, &Config{RPM: 60})

	if th.RPM() != 60 {
		t.Errorf("expected rpm 60, got %f", th.RPM())
	}
	if th.Interval() != 1.0 {
		t.Errorf("expected interval 1s, got %f", th.Interval())
	}
	if th.CountKey() != DefaultCountKey {
		t.Errorf("expected default count key, got %s", th.CountKey())
	}
	if th.TimerKey() != DefaultTimerKey {
		t.Errorf("expected default timer key, got %s", th.TimerKey())
	}
	if th.DB() != 0 {
		t.Errorf("expected db 0, got %d", th.DB())
	}
	if th.ResetThreshold() != DefaultResetThreshold {
		t.Errorf("expected default reset threshold, got %f", th.ResetThreshold())
	}
	if th.MutexKey() != DefaultMutexKey {
		t.Errorf("expected default mutex key, got %s", th.MutexKey())
	}
	if th.MutexInitKey() != DefaultMutexInitKey {
		t.Errorf("expected default mutex init key, got %s", th.MutexInitKey())
	}
}

func TestCustomKeys(t *testing.T) {
	th, _ := newTestThrottle(t, &Config{
		RPM:          120,
		CountKey:     "api:count",
		TimerKey:     "api:timer",
		MutexKey:     "api:mutex",
		MutexInitKey: "api:mutex:init",
		DB:           2,
	})

	if th.CountKey() != "api:count" {
		t.Errorf("unexpected count key: %s", th.CountKey())
	}
	if th.TimerKey() != "api:timer" {
		t.Errorf("unexpected timer key: %s", th.TimerKey())
	}
	if th.MutexKey() != "api:mutex" {
		t.Errorf("unexpected mutex key: %s", th.MutexKey())
	}
	if th.DB() != 2 {
		t.Errorf("unexpected db: %d", th.DB())
	}
	if th.Interval() != 0.5 {
		t.Errorf("expected interval 0.5s, got %f", th.Interval())
	}
}

func TestThrottleSpacing(t *testing.T) {
	// 6000 rpm = 10ms 间隔
	th, st := newTestThrottle(t, &Config{RPM: 6000})
	ctx := context.Background()

	const calls = 10
	start := time.Now()
	for i := 0; i < calls; i++ {
		if err := th.Throttle(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)

	// 相邻调用之间至少间隔 interval，总耗时不少于 (calls-1) 个间隔
	min := time.Duration(float64(calls-1) * th.Interval() * float64(time.Second))
	if elapsed < min {
		t.Errorf("expected at least %v elapsed, got %v", min, elapsed)
	}

	count, err := st.Get(ctx, 0, th.CountKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != "10" {
		t.Errorf("expected final counter 10, got %s", count)
	}
}

func TestThrottleScenario240RPM(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow scenario test")
	}

	// 240 rpm = 0.25s 间隔，4 次调用至少需要 3 个间隔
	th, st := newTestThrottle(t, &Config{RPM: 240})
	ctx := context.Background()

	const calls = 4
	start := time.Now()
	for i := 0; i < calls; i++ {
		if err := th.Throttle(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if min := 750 * time.Millisecond; elapsed < min {
		t.Errorf("expected at least %v elapsed, got %v", min, elapsed)
	}

	count, err := st.Get(ctx, 0, th.CountKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != "4" {
		t.Errorf("expected final counter 4, got %s", count)
	}
}

func TestThrottleNoDelayAfterWindow(t *testing.T) {
	th, st := newTestThrottle(t, &Config{RPM: 60})
	ctx := context.Background()

	// 共享时间戳远在一个间隔之前，调用不应等待
	old := nowSeconds() - 10
	if err := st.Set(ctx, 0, th.TimerKey(), formatSeconds(old)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := th.Throttle(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("expected immediate return, took %v", elapsed)
	}

	// 时间戳被推进到本次调用
	raw, err := st.Get(ctx, 0, th.TimerKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw == formatSeconds(old) {
		t.Error("expected timer to advance")
	}
}

func TestCounterReset(t *testing.T) {
	// 阈值 1 倍：计数器达到 rpm 即归零
	th, st := newTestThrottle(t, &Config{RPM: 5, ResetThreshold: 1})
	ctx := context.Background()

	if err := st.Set(ctx, 0, th.CountKey(), "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 窗口已过，不等待
	if err := st.Set(ctx, 0, th.TimerKey(), formatSeconds(nowSeconds()-60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := th.Throttle(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 归零后再计入本次调用
	count, err := st.Get(ctx, 0, th.CountKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != "1" {
		t.Errorf("expected counter 1 after reset, got %s", count)
	}
}

func TestCounterBelowThresholdNotReset(t *testing.T) {
	th, st := newTestThrottle(t, &Config{RPM: 5, ResetThreshold: 2})
	ctx := context.Background()

	if err := st.Set(ctx, 0, th.CountKey(), "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Set(ctx, 0, th.TimerKey(), formatSeconds(nowSeconds()-60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := th.Throttle(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := st.Get(ctx, 0, th.CountKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != "6" {
		t.Errorf("expected counter 6, got %s", count)
	}
}

// trackedStore 记录临界区重叠的插桩存储.
//
// 进入临界区的第一步是读共享计数器，最后一步是写共享时间戳，
// 两者之间的并发度超过 1 说明互斥失效.
type trackedStore struct {
	store.Store
	countKey string
	timerKey string

	mu        sync.Mutex
	active    int
	maxActive int
}

func (s *trackedStore) Get(ctx context.Context, db int, key string) (string, error) {
	if key == s.countKey {
		s.mu.Lock()
		s.active++
		if s.active > s.maxActive {
			s.maxActive = s.active
		}
		s.mu.Unlock()
	}
	return s.Store.Get(ctx, db, key)
}

func (s *trackedStore) Set(ctx context.Context, db int, key string, value any) error {
	err := s.Store.Set(ctx, db, key, value)
	if key == s.timerKey {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}
	return err
}

func TestMutualExclusion(t *testing.T) {
	mem, err := store.NewMemoryStore(store.NewMemoryConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mem.Close()

	tracked := &trackedStore{
		Store:    mem,
		countKey: DefaultCountKey,
		timerKey: DefaultTimerKey,
	}

	ctx := context.Background()

	const participants = 4
	const callsEach = 3

	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		// 每个参与者是独立的限速器实例，模拟独立进程
		th, err := New(&Config{
			RPM:    600000,
			Store:  tracked,
			Logger: logger.NewNop(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				if err := th.Throttle(ctx); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if tracked.maxActive != 1 {
		t.Errorf("expected critical sections to never overlap, max concurrency %d", tracked.maxActive)
	}

	count, err := mem.Get(ctx, 0, DefaultCountKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "12"; count != want {
		t.Errorf("expected final counter %s, got %s", want, count)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	th, st := newTestThrottle(t, &Config{RPM: 600000})
	ctx := context.Background()

	if err := th.Throttle(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := th.Cleanup(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for _, key := range []string{th.CountKey(), th.TimerKey(), th.MutexInitKey()} {
		if _, err := st.Get(ctx, 0, key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected key %s absent, got %v", key, err)
		}
	}
}

func TestThrottleContextCancel(t *testing.T) {
	// 6 rpm = 10s 间隔，取消应在等待期间生效
	th, _ := newTestThrottle(t, &Config{RPM: 6})
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- th.Throttle(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("throttle did not observe cancellation")
	}

	// 取消发生在锁内等待期间，互斥锁必须已被释放：
	// 下一次调用不应死锁
	done := make(chan error, 1)
	go func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel2()
		// 窗口已过大半，调用仍会等待剩余间隔，但不会永久阻塞
		done <- th.mutex.Acquire(ctx2)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected mutex to be available, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("mutex leaked after cancelled throttle")
	}
}
