package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJoinContexts_CancelsOnEither(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	b, cancelB := context.WithCancel(context.Background())

	ctx, cancel := joinContexts(a, b)
	defer cancel()
	cancelB()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context not canceled when b was")
	}
	if !errors.Is(context.Cause(ctx), context.Canceled) {
		t.Fatalf("cause=%v", context.Cause(ctx))
	}

	ctx2, cancel2 := joinContexts(a, context.Background())
	defer cancel2()
	cancelA()
	select {
	case <-ctx2.Done():
	case <-time.After(time.Second):
		t.Fatal("joined context not canceled when a was")
	}
}

func TestJoinContexts_CancelFuncReleases(t *testing.T) {
	ctx, cancel := joinContexts(context.Background(), context.Background())
	cancel()
	if ctx.Err() == nil {
		t.Fatal("expected canceled context after cancel()")
	}
}

func TestSetBaseContext(t *testing.T) {
	defer SetBaseContext(nil)
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	if serverBaseCtx != ctx {
		t.Fatal("base context not installed")
	}
	cancel()
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatal("nil should restore a live background context")
	}
}
