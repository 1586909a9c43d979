package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmit_RunsTaskAndCallsOnSuccess(t *testing.T) {
	p := New(2)
	defer p.Shutdown(time.Second)

	done := make(chan struct{})
	p.Submit(func(ctx context.Context) error {
		return nil
	}, func() { close(done) }, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onSuccess was not called")
	}
}

func TestSubmit_CallsOnErrorWithTaskError(t *testing.T) {
	p := New(1)
	defer p.Shutdown(time.Second)

	wantErr := errors.New("boom")
	gotErr := make(chan error, 1)
	p.Submit(func(ctx context.Context) error {
		return wantErr
	}, nil, func(err error) { gotErr <- err })

	select {
	case err := <-gotErr:
		assert.Equal(t, wantErr, err)
	case <-time.After(time.Second):
		t.Fatal("onError was not called")
	}
}

func TestSubmit_RecoversPanic(t *testing.T) {
	p := New(1)
	defer p.Shutdown(time.Second)

	gotErr := make(chan error, 1)
	p.Submit(func(ctx context.Context) error {
		panic("boom")
	}, nil, func(err error) { gotErr <- err })

	select {
	case <-gotErr:
	case <-time.After(time.Second):
		t.Fatal("onError was not called after panic")
	}
}

func TestShutdown_CancelsTaskContext(t *testing.T) {
	p := New(1)
	var cancelled int32
	p.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return nil
	}, nil, nil)

	time.Sleep(10 * time.Millisecond)
	p.Shutdown(time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&cancelled))
}
