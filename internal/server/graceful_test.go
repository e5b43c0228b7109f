package server

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockCloser struct {
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

func TestShutdownFunc(t *testing.T) {
	called := false
	fn := NewShutdownFunc("test", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "test", fn.Name())
	require.NoError(t, fn.Shutdown(context.Background()))
	assert.True(t, called)
}

func TestGracefulShutdown_AllComponentsRun(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	component := func(name string) Shutdownable {
		return NewShutdownFunc(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		})
	}

	gs := New(Config{
		Server:          &http.Server{Addr: ":0"},
		Logger:          zaptest.NewLogger(t),
		Shutdownables:   []Shutdownable{component("cache"), component("database")},
		ShutdownTimeout: 5 * time.Second,
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	gs.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"cache", "database"}, ran)
}

func TestGracefulShutdown_SlowComponentTimesOut(t *testing.T) {
	slow := NewShutdownFunc("slow", func(ctx context.Context) error {
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	gs := New(Config{
		Server:          &http.Server{Addr: ":0"},
		Logger:          zaptest.NewLogger(t),
		Shutdownables:   []Shutdownable{slow},
		ShutdownTimeout: 100 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	gs.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestGracefulShutdown_ComponentErrorDoesNotAbort(t *testing.T) {
	ok := false
	gs := New(Config{
		Server: &http.Server{Addr: ":0"},
		Logger: zaptest.NewLogger(t),
		Shutdownables: []Shutdownable{
			NewShutdownFunc("failing", func(ctx context.Context) error { return assert.AnError }),
			NewShutdownFunc("ok", func(ctx context.Context) error { ok = true; return nil }),
		},
		ShutdownTimeout: time.Second,
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	gs.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}
	assert.True(t, ok)
}

func TestCloseHelpers(t *testing.T) {
	db := &mockCloser{}
	s := CloseDB(db)
	assert.Equal(t, "database", s.Name())
	require.NoError(t, s.Shutdown(context.Background()))
	assert.True(t, db.closed)

	redis := &mockCloser{}
	s = CloseRedis(redis)
	assert.Equal(t, "redis", s.Name())
	require.NoError(t, s.Shutdown(context.Background()))
	assert.True(t, redis.closed)
}

func TestAddShutdownFunc(t *testing.T) {
	gs := New(Config{
		Server: &http.Server{Addr: ":0"},
		Logger: zaptest.NewLogger(t),
	})

	called := false
	gs.AddShutdownFunc("late", func(ctx context.Context) error {
		called = true
		return nil
	})

	done := make(chan struct{})
	go func() {
		gs.Start()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	gs.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}
	assert.True(t, called)
}
