package monitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAwaitConnectReturnsResult(t *testing.T) {
	got, err := awaitConnect(context.Background(),
		func() (int, error) { return 7, nil },
		func(int) { t.Error("drop called for a result that was delivered") },
	)
	if err != nil || got != 7 {
		t.Errorf("awaitConnect() = %d, %v; want 7, nil", got, err)
	}

	wantErr := errors.New("out of range")
	if _, err := awaitConnect(context.Background(),
		func() (int, error) { return 0, wantErr },
		func(int) {},
	); !errors.Is(err, wantErr) {
		t.Errorf("awaitConnect() error = %v, want %v", err, wantErr)
	}
}

func TestAwaitConnectDropsLateSuccess(t *testing.T) {
	gate := make(chan struct{})
	dropped := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitConnect(ctx,
		func() (int, error) {
			<-gate
			return 42, nil
		},
		func(v int) { dropped <- v },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("awaitConnect() error = %v, want context.Canceled", err)
	}

	close(gate)
	select {
	case v := <-dropped:
		if v != 42 {
			t.Errorf("dropped %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("late connection was not dropped")
	}
}

func TestAwaitConnectIgnoresLateFailure(t *testing.T) {
	gate := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitConnect(ctx,
		func() (int, error) {
			<-gate
			return 0, errors.New("timeout")
		},
		func(int) { t.Error("drop called for a failed dial") },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("awaitConnect() error = %v, want context.Canceled", err)
	}
	close(gate)
	time.Sleep(20 * time.Millisecond)
}
