package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/kvwait/internal/core/domain"
)

// waitTimeout bounds how long a test waits for a watcher that should wake.
const waitTimeout = 5 * time.Second

type getWhenResult struct {
	value []byte
	ok    bool
	err   error
}

func startGetWhen(ctx context.Context, s *Store, key, condKey string, condValue []byte) <-chan getWhenResult {
	out := make(chan getWhenResult, 1)
	go func() {
		v, ok, err := s.GetWhen(ctx, key, condKey, condValue)
		out <- getWhenResult{value: v, ok: ok, err: err}
	}()
	return out
}

// waitForWatchers spins until n watchers are registered on the store.
func waitForWatchers(t *testing.T, s *Store, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if s.Stats().ActiveWatchers >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d watchers, have %d", n, s.Stats().ActiveWatchers)
}

func TestStore_PutGet(t *testing.T) {
	s := New()

	s.Put("x", []byte("1"))

	v, ok := s.Get("x")
	if !ok || string(v) != "1" {
		t.Errorf("Get(x) = (%q, %v), want (\"1\", true)", v, ok)
	}

	if v, ok := s.Get("y"); ok {
		t.Errorf("Get(y) = (%q, true), want absent", v)
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	s := New()

	s.Put("k", []byte("first value"))
	s.Put("k", []byte("2nd"))

	v, _ := s.Get("k")
	if string(v) != "2nd" {
		t.Errorf("Get(k) = %q, want %q", v, "2nd")
	}
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	s := New()

	s.Put("empty", nil)

	v, ok := s.Get("empty")
	if !ok {
		t.Fatal("zero-length value should be present")
	}
	if v == nil || len(v) != 0 {
		t.Errorf("Get(empty) = %#v, want non-nil empty slice", v)
	}
}

func TestStore_ValuesAreCopied(t *testing.T) {
	s := New()

	in := []byte("abc")
	s.Put("k", in)
	in[0] = 'X'

	out, _ := s.Get("k")
	if string(out) != "abc" {
		t.Errorf("stored value changed through caller buffer: %q", out)
	}

	out[1] = 'Y'
	again, _ := s.Get("k")
	if string(again) != "abc" {
		t.Errorf("stored value changed through returned buffer: %q", again)
	}
}

func TestStore_MultiPutMultiGet(t *testing.T) {
	s := New()

	s.MultiPut([]Pair{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	})

	got := s.MultiGet([]string{"a", "b", "c"})
	if len(got) != 2 {
		t.Fatalf("MultiGet returned %d keys, want 2: %v", len(got), got)
	}
	if string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("MultiGet = %q, want a=1 b=2", got)
	}
	if _, ok := got["c"]; ok {
		t.Error("absent key c should be omitted")
	}
}

func TestStore_MultiPutDuplicateKeyLastWins(t *testing.T) {
	s := New()

	s.MultiPut([]Pair{
		{Key: "a", Value: []byte("first")},
		{Key: "a", Value: []byte("last")},
	})

	v, _ := s.Get("a")
	if string(v) != "last" {
		t.Errorf("Get(a) = %q, want %q", v, "last")
	}
}

func TestStore_MultiPutEmpty(t *testing.T) {
	s := New()
	s.MultiPut(nil)

	if n := s.Stats().Keys; n != 0 {
		t.Errorf("Keys = %d, want 0", n)
	}
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	s := New()

	ok, err := s.RegisterUser("alice", "pw1")
	if err != nil || !ok {
		t.Fatalf("RegisterUser(alice, pw1) = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = s.RegisterUser("alice", "pw2")
	if err != nil || ok {
		t.Fatalf("RegisterUser(alice, pw2) = (%v, %v), want (false, nil)", ok, err)
	}

	tests := []struct {
		user, password string
		want           bool
	}{
		{"alice", "pw1", true},
		{"alice", "wrong", false},
		{"alice", "pw2", false},
		{"bob", "pw1", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := s.AuthenticateUser(tt.user, tt.password); got != tt.want {
			t.Errorf("AuthenticateUser(%q, %q) = %v, want %v", tt.user, tt.password, got, tt.want)
		}
	}
}

func TestStore_ConcurrentRegisterSameUser(t *testing.T) {
	s := New()

	const n = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.RegisterUser("carol", "pw"+strconv.Itoa(i))
			if err != nil {
				t.Errorf("RegisterUser error = %v", err)
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("successful registrations = %d, want 1", wins.Load())
	}
	if s.Stats().Users != 1 {
		t.Errorf("Users = %d, want 1", s.Stats().Users)
	}
}

func TestStore_ConcurrentPutsNeverInterleave(t *testing.T) {
	s := New()

	const writers = 16
	payloads := make([][]byte, writers)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 64*1024)
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Put("shared", payloads[i])
			}
		}(i)
	}
	wg.Wait()

	final, ok := s.Get("shared")
	if !ok {
		t.Fatal("shared key missing")
	}
	for _, p := range payloads {
		if bytes.Equal(final, p) {
			return
		}
	}
	t.Error("final value does not equal any single writer's payload")
}

func TestStore_GetWhen_AlreadySatisfied(t *testing.T) {
	s := New()
	s.Put("ready", []byte("yes"))
	s.Put("x", []byte("42"))

	v, ok, err := s.GetWhen(context.Background(), "x", "ready", []byte("yes"))
	if err != nil || !ok || string(v) != "42" {
		t.Errorf("GetWhen = (%q, %v, %v), want (\"42\", true, nil)", v, ok, err)
	}
}

func TestStore_GetWhen_TargetAbsent(t *testing.T) {
	s := New()
	s.Put("ready", []byte("yes"))

	v, ok, err := s.GetWhen(context.Background(), "missing", "ready", []byte("yes"))
	if err != nil {
		t.Fatalf("GetWhen error = %v", err)
	}
	if ok || v != nil {
		t.Errorf("GetWhen = (%q, %v), want absent", v, ok)
	}
}

func TestStore_GetWhen_WakesOnConditionKeyWrite(t *testing.T) {
	s := New()

	res := startGetWhen(context.Background(), s, "x", "ready", []byte("yes"))
	waitForWatchers(t, s, 1)

	s.Put("x", []byte("42"))
	s.Put("ready", []byte("yes"))

	select {
	case r := <-res:
		if r.err != nil || !r.ok || string(r.value) != "42" {
			t.Errorf("GetWhen = (%q, %v, %v), want (\"42\", true, nil)", r.value, r.ok, r.err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("watcher was not woken by the write to its condition key")
	}
}

func TestStore_GetWhen_RechecksAfterWake(t *testing.T) {
	s := New()

	res := startGetWhen(context.Background(), s, "x", "state", []byte("done"))
	waitForWatchers(t, s, 1)

	s.Put("state", []byte("running"))

	// Woken, condition false, registers again.
	waitForWatchers(t, s, 1)
	select {
	case r := <-res:
		t.Fatalf("GetWhen returned early: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	s.Put("x", []byte("result"))
	s.Put("state", []byte("done"))

	select {
	case r := <-res:
		if r.err != nil || string(r.value) != "result" {
			t.Errorf("GetWhen = (%q, %v), want \"result\"", r.value, r.err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("watcher was not woken after condition became true")
	}
}

func TestStore_GetWhen_WakesOnMultiPut(t *testing.T) {
	s := New()

	res := startGetWhen(context.Background(), s, "b", "a", []byte("go"))
	waitForWatchers(t, s, 1)

	s.MultiPut([]Pair{
		{Key: "a", Value: []byte("go")},
		{Key: "b", Value: []byte("payload")},
	})

	select {
	case r := <-res:
		if r.err != nil || string(r.value) != "payload" {
			t.Errorf("GetWhen = (%q, %v), want \"payload\"", r.value, r.err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("watcher was not woken by MultiPut")
	}
}

func TestStore_GetWhen_WakesAllWatchers(t *testing.T) {
	s := New()

	const n = 10
	results := make([]<-chan getWhenResult, n)
	for i := 0; i < n; i++ {
		results[i] = startGetWhen(context.Background(), s, "k"+strconv.Itoa(i), "go", []byte("1"))
	}
	waitForWatchers(t, s, n)

	for i := 0; i < n; i++ {
		s.Put("k"+strconv.Itoa(i), []byte(strconv.Itoa(i)))
	}
	s.Put("go", []byte("1"))

	for i, res := range results {
		select {
		case r := <-res:
			if string(r.value) != strconv.Itoa(i) {
				t.Errorf("watcher %d got %q", i, r.value)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("watcher %d not woken", i)
		}
	}
}

func TestStore_GetWhen_Cancel(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	res := startGetWhen(ctx, s, "x", "never", []byte("1"))
	waitForWatchers(t, s, 1)

	cancel()

	select {
	case r := <-res:
		if !errors.Is(r.err, domain.ErrWaitCancelled) {
			t.Errorf("err = %v, want ErrWaitCancelled", r.err)
		}
		if !errors.Is(r.err, context.Canceled) {
			t.Errorf("err = %v, want to wrap context.Canceled", r.err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("cancelled watcher did not return")
	}

	st := s.Stats()
	if st.ActiveWatchers != 0 || st.WatchedKeys != 0 {
		t.Errorf("registry not clean after cancel: %+v", st)
	}
}

func TestStore_GetWhen_CancelLeavesOtherWatchers(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := startGetWhen(ctx, s, "x", "c", []byte("1"))
	kept := startGetWhen(context.Background(), s, "x", "c", []byte("1"))
	waitForWatchers(t, s, 2)

	cancel()
	<-cancelled

	if n := s.Stats().ActiveWatchers; n != 1 {
		t.Fatalf("ActiveWatchers = %d, want 1", n)
	}

	s.Put("c", []byte("1"))
	select {
	case r := <-kept:
		if r.err != nil {
			t.Errorf("remaining watcher error = %v", r.err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("remaining watcher not woken")
	}
}

func TestStore_GetWhen_NoLostWakeup(t *testing.T) {
	s := New()

	for i := 0; i < 500; i++ {
		cond := "c" + strconv.Itoa(i)
		res := startGetWhen(context.Background(), s, "x", cond, []byte("v"))
		// Race the write against the watcher's check-and-subscribe.
		s.Put(cond, []byte("v"))

		select {
		case r := <-res:
			if r.err != nil {
				t.Fatalf("iteration %d: err = %v", i, r.err)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("iteration %d: wakeup lost", i)
		}
	}
}

func TestStore_GetWhen_SeesWholeBatch(t *testing.T) {
	s := New()

	for i := 0; i < 100; i++ {
		v := []byte(strconv.Itoa(i))
		res := startGetWhen(context.Background(), s, "b", "a", v)
		s.MultiPut([]Pair{{Key: "a", Value: v}, {Key: "b", Value: v}})

		select {
		case r := <-res:
			if !bytes.Equal(r.value, v) {
				t.Fatalf("batch %d observed partially: b = %q", i, r.value)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("batch %d: watcher not woken", i)
		}
	}
}

func TestStore_MultiGetAfterMultiPut(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k1 := fmt.Sprintf("w%d-k1-%d", w, i)
				k2 := fmt.Sprintf("w%d-k2-%d", w, i)
				s.MultiPut([]Pair{{Key: k1, Value: []byte("v1")}, {Key: k2, Value: []byte("v2")}})
				got := s.MultiGet([]string{k1, k2})
				if len(got) != 2 {
					t.Errorf("MultiGet after MultiPut saw %d of 2 keys", len(got))
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

type countingRecorder struct {
	started  atomic.Int32
	finished atomic.Int32
	wakeups  atomic.Int32
}

func (r *countingRecorder) WatchStarted()     { r.started.Add(1) }
func (r *countingRecorder) WatchFinished()    { r.finished.Add(1) }
func (r *countingRecorder) WakeupsSent(n int) { r.wakeups.Add(int32(n)) }

func TestStore_Recorder(t *testing.T) {
	rec := &countingRecorder{}
	s := New(WithRecorder(rec))

	res := startGetWhen(context.Background(), s, "x", "c", []byte("1"))
	waitForWatchers(t, s, 1)

	// No watchers on this key: no wakeups reported.
	s.Put("other", []byte("1"))
	s.Put("c", []byte("1"))
	<-res

	if rec.started.Load() != 1 || rec.finished.Load() != 1 {
		t.Errorf("started/finished = %d/%d, want 1/1", rec.started.Load(), rec.finished.Load())
	}
	if rec.wakeups.Load() != 1 {
		t.Errorf("wakeups = %d, want 1", rec.wakeups.Load())
	}

	// Satisfied immediately: never counted as a watcher.
	if _, _, err := s.GetWhen(context.Background(), "x", "c", []byte("1")); err != nil {
		t.Fatalf("GetWhen error = %v", err)
	}
	if rec.started.Load() != 1 {
		t.Errorf("started = %d, want 1", rec.started.Load())
	}
}

func TestStore_Stats(t *testing.T) {
	s := New()
	s.Put("a", []byte("1"))
	s.Put("b", []byte("2"))
	if _, err := s.RegisterUser("u", "p"); err != nil {
		t.Fatal(err)
	}

	st := s.Stats()
	if st.Keys != 2 || st.Users != 1 || st.ActiveWatchers != 0 {
		t.Errorf("Stats = %+v", st)
	}
}
