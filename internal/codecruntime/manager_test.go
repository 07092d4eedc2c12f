package codecruntime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"alphareel/internal/codecruntime"
	"alphareel/internal/engine"
	"alphareel/internal/services"
	"alphareel/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEnsureReadySharesOneLoad(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadGate = make(chan struct{})
	mgr := codecruntime.New(eng.Factory())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = mgr.EnsureReady(context.Background())
		}()
	}
	waitForState(t, mgr, codecruntime.Initializing)
	time.Sleep(20 * time.Millisecond)
	close(eng.LoadGate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: EnsureReady returned error: %v", i, err)
		}
	}
	if got := eng.LoadCalls(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	if !mgr.IsReady() {
		t.Fatalf("expected Ready, got %s", mgr.State())
	}
}

func TestEnsureReadyFailureReachesEveryWaiter(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadGate = make(chan struct{})
	eng.LoadErr = errors.New("asset fetch failed")
	mgr := codecruntime.New(eng.Factory())

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = mgr.EnsureReady(context.Background())
		}()
	}
	waitForState(t, mgr, codecruntime.Initializing)
	time.Sleep(20 * time.Millisecond)
	close(eng.LoadGate)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, services.ErrRuntimeInit) {
			t.Fatalf("caller %d: expected ErrRuntimeInit, got %v", i, err)
		}
		if err != errs[0] {
			t.Fatalf("caller %d: expected the shared error value", i)
		}
	}
	if eng.LoadCalls() != 1 {
		t.Fatalf("expected one load attempt, got %d", eng.LoadCalls())
	}
	if mgr.State() != codecruntime.Failed {
		t.Fatalf("expected Failed, got %s", mgr.State())
	}
	if !errors.Is(mgr.LastError(), services.ErrRuntimeInit) {
		t.Fatalf("expected LastError to carry the failure, got %v", mgr.LastError())
	}
}

func TestFailedLoadRetriesLazily(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadErr = errors.New("missing binary")
	mgr := codecruntime.New(eng.Factory())

	if err := mgr.EnsureReady(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	time.Sleep(10 * time.Millisecond)
	if eng.LoadCalls() != 1 {
		t.Fatalf("expected no background retry, got %d loads", eng.LoadCalls())
	}

	eng.LoadErr = nil
	if err := mgr.EnsureReady(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if eng.LoadCalls() != 2 {
		t.Fatalf("expected second load, got %d", eng.LoadCalls())
	}
}

func TestWaiterCancellationDoesNotCancelLoad(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadGate = make(chan struct{})
	mgr := codecruntime.New(eng.Factory())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.EnsureReady(ctx) }()
	waitForState(t, mgr, codecruntime.Initializing)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(eng.LoadGate)
	if err := mgr.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady returned error: %v", err)
	}
	if eng.LoadCalls() != 1 {
		t.Fatalf("expected the abandoned load to complete and be reused, got %d loads", eng.LoadCalls())
	}
}

func TestAcquireQueuesSecondJob(t *testing.T) {
	eng := testsupport.NewEngine()
	mgr := codecruntime.New(eng.Factory())

	first, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}

	acquired := make(chan *codecruntime.Session, 1)
	go func() {
		second, err := mgr.Acquire(context.Background())
		if err != nil {
			t.Errorf("second Acquire returned error: %v", err)
			close(acquired)
			return
		}
		acquired <- second
	}()

	select {
	case <-acquired:
		t.Fatal("second job must wait while the first holds the runtime")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()
	first.Release()
	select {
	case second := <-acquired:
		if second == nil {
			t.Fatal("second Acquire failed")
		}
		second.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("second job never acquired the runtime")
	}
}

func TestAcquireHonoursContextWhileQueued(t *testing.T) {
	mgr := codecruntime.New(testsupport.NewEngine().Factory())
	first, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer first.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := mgr.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestAcquireReleasesGateOnLoadFailure(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadErr = errors.New("boom")
	mgr := codecruntime.New(eng.Factory())

	if _, err := mgr.Acquire(context.Background()); !errors.Is(err, services.ErrRuntimeInit) {
		t.Fatalf("expected ErrRuntimeInit, got %v", err)
	}
	eng.LoadErr = nil
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected gate to be free after failed load, got %v", err)
	}
	session.Release()
}

func TestRunFailureThatUnloadsResetsManager(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.OnInvoke = func(e *testsupport.Engine, _ []string, _ engine.RatioFunc) error {
		e.Crash()
		return errors.New("encoder aborted")
	}
	observer := &recordingObserver{}
	mgr := codecruntime.New(eng.Factory(), codecruntime.WithObserver(observer))

	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if err := session.Run(context.Background(), []string{"output.webm"}, nil); err == nil {
		t.Fatal("expected Run to fail")
	}
	session.Release()

	if mgr.State() != codecruntime.Uninitialized {
		t.Fatalf("expected Uninitialized after a crash, got %s", mgr.State())
	}
	if eng.DisposeCalls() != 1 {
		t.Fatalf("expected the crashed runtime to be disposed, got %d", eng.DisposeCalls())
	}
	if observer.resets != 1 || observer.loads != 1 {
		t.Fatalf("unexpected observer counts: %+v", observer)
	}

	eng.OnInvoke = nil
	session, err = mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after reset returned error: %v", err)
	}
	defer session.Release()
	if eng.LoadCalls() != 2 {
		t.Fatalf("expected a fresh load, got %d", eng.LoadCalls())
	}
}

func TestAcquireReloadsRuntimeLostBetweenJobs(t *testing.T) {
	eng := testsupport.NewEngine()
	observer := &recordingObserver{}
	mgr := codecruntime.New(eng.Factory(), codecruntime.WithObserver(observer))

	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	session.Release()
	eng.Crash()

	session, err = mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after crash returned error: %v", err)
	}
	defer session.Release()
	if eng.LoadCalls() != 2 || eng.DisposeCalls() != 1 {
		t.Fatalf("expected dispose then reload, got loads=%d disposes=%d", eng.LoadCalls(), eng.DisposeCalls())
	}
	if !eng.Loaded() || mgr.State() != codecruntime.Ready {
		t.Fatalf("expected a loaded runtime, got state %s", mgr.State())
	}
	if observer.resets != 1 {
		t.Fatalf("expected one reset, got %+v", observer)
	}
}

func TestFileFailureThatUnloadsResetsManager(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.FailWrite = func(name string) bool {
		if name == "frame_00001.png" {
			eng.Crash()
			return true
		}
		return false
	}
	mgr := codecruntime.New(eng.Factory())

	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if err := session.WriteFile("frame_00000.png", []byte("a")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := session.WriteFile("frame_00001.png", []byte("b")); err == nil {
		t.Fatal("expected second write to fail")
	}
	session.Release()

	if mgr.State() != codecruntime.Uninitialized {
		t.Fatalf("expected Uninitialized after a lost runtime, got %s", mgr.State())
	}
	if eng.DisposeCalls() != 1 {
		t.Fatalf("expected the lost runtime to be disposed, got %d", eng.DisposeCalls())
	}
}

func TestFileFailureThatKeepsRuntimeLoaded(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.FailWrite = func(string) bool { return true }
	mgr := codecruntime.New(eng.Factory())

	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer session.Release()
	if err := session.WriteFile("frame_00000.png", nil); err == nil {
		t.Fatal("expected write to fail")
	}
	if mgr.State() != codecruntime.Ready || eng.DisposeCalls() != 0 {
		t.Fatalf("a loaded runtime must survive a file error, got %s", mgr.State())
	}
}

func TestSessionExists(t *testing.T) {
	eng := testsupport.NewEngine()
	mgr := codecruntime.New(eng.Factory())
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer session.Release()

	if err := session.WriteFile("output.webm", []byte("x")); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	for name, want := range map[string]bool{"output.webm": true, "palette.png": false} {
		got, err := session.Exists(name)
		if err != nil {
			t.Fatalf("Exists(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Fatalf("Exists(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRunThatSilentlyUnloadsFails(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.OnInvoke = func(e *testsupport.Engine, _ []string, _ engine.RatioFunc) error {
		e.Crash()
		return nil
	}
	mgr := codecruntime.New(eng.Factory())
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer session.Release()

	if err := session.Run(context.Background(), []string{"x"}, nil); !errors.Is(err, codecruntime.ErrRuntimeLost) {
		t.Fatalf("expected ErrRuntimeLost, got %v", err)
	}
	if mgr.IsReady() {
		t.Fatal("expected manager reset")
	}
}

func TestRunFailureThatKeepsRuntimeLoaded(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.OnInvoke = func(*testsupport.Engine, []string, engine.RatioFunc) error {
		return errors.New("bad argument")
	}
	mgr := codecruntime.New(eng.Factory())
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer session.Release()

	if err := session.Run(context.Background(), []string{"x"}, nil); err == nil {
		t.Fatal("expected Run to fail")
	}
	if !mgr.IsReady() {
		t.Fatalf("expected runtime kept after an ordinary failure, got %s", mgr.State())
	}
	if eng.DisposeCalls() != 0 {
		t.Fatal("runtime must not be disposed")
	}
}

func TestRunIsDetachedFromCallerCancellation(t *testing.T) {
	eng := testsupport.NewEngine()
	mgr := codecruntime.New(eng.Factory())
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	defer session.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := session.Run(ctx, []string{"output.webm"}, nil); err != nil {
		t.Fatalf("expected detached invocation to succeed, got %v", err)
	}
	if eng.CanceledInvocations() != 0 {
		t.Fatal("invocation observed caller cancellation")
	}
	if ok, _ := session.Exists("output.webm"); !ok {
		t.Fatal("expected output written")
	}
}

func TestSessionAfterRelease(t *testing.T) {
	mgr := codecruntime.New(testsupport.NewEngine().Factory())
	session, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	session.Release()
	if err := session.WriteFile("frame_00000.png", []byte("x")); !errors.Is(err, codecruntime.ErrSessionReleased) {
		t.Fatalf("expected ErrSessionReleased, got %v", err)
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	eng := testsupport.NewEngine()
	mgr := codecruntime.New(eng.Factory())
	if err := mgr.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady returned error: %v", err)
	}
	if err := mgr.Dispose(); err != nil {
		t.Fatalf("Dispose returned error: %v", err)
	}
	if err := mgr.Dispose(); err != nil {
		t.Fatalf("second Dispose returned error: %v", err)
	}
	if mgr.State() != codecruntime.Uninitialized {
		t.Fatalf("expected Uninitialized, got %s", mgr.State())
	}
	if eng.DisposeCalls() != 1 {
		t.Fatalf("expected one engine dispose, got %d", eng.DisposeCalls())
	}
	if err := mgr.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady after Dispose returned error: %v", err)
	}
	if eng.LoadCalls() != 2 {
		t.Fatalf("expected reload after Dispose, got %d", eng.LoadCalls())
	}
}

func TestDisposeDuringLoadDiscardsEngine(t *testing.T) {
	eng := testsupport.NewEngine()
	eng.LoadGate = make(chan struct{})
	mgr := codecruntime.New(eng.Factory())

	done := make(chan error, 1)
	go func() {
		done <- mgr.EnsureReady(context.Background())
	}()
	waitForState(t, mgr, codecruntime.Initializing)
	if err := mgr.Dispose(); err != nil {
		t.Fatalf("Dispose returned error: %v", err)
	}
	close(eng.LoadGate)

	if err := <-done; !errors.Is(err, services.ErrRuntimeInit) {
		t.Fatalf("expected the superseded load to fail, got %v", err)
	}
	if mgr.State() != codecruntime.Uninitialized {
		t.Fatalf("expected Uninitialized, got %s", mgr.State())
	}
	if eng.Loaded() || eng.DisposeCalls() != 1 {
		t.Fatalf("expected the late engine to be disposed, loaded=%v disposes=%d", eng.Loaded(), eng.DisposeCalls())
	}

	eng.LoadGate = nil
	if err := mgr.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady after Dispose returned error: %v", err)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[codecruntime.State]string{
		codecruntime.Uninitialized: "uninitialized",
		codecruntime.Initializing:  "initializing",
		codecruntime.Ready:         "ready",
		codecruntime.Failed:        "failed",
		codecruntime.State(42):     "unknown",
	} {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	loads  int
	resets int
}

func (o *recordingObserver) RuntimeLoaded(time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
}

func (o *recordingObserver) RuntimeReset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets++
}

func waitForState(t *testing.T, mgr *codecruntime.Manager, want codecruntime.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mgr.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %s, have %s", want, mgr.State())
		}
		time.Sleep(time.Millisecond)
	}
}
