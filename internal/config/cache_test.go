package config

import (
	"context"
	"testing"
	"time"

	"github.com/webwatch/monitor/internal/model"
)

func TestCacheLoadsOnce(t *testing.T) {
	calls := 0
	c := NewCache(func(ctx context.Context) (model.ScanConfig, error) {
		calls++
		return model.ScanConfig{HTTPMaxResponseMS: 1000}, nil
	}, time.Hour)

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if v.HTTPMaxResponseMS != 1000 {
			t.Errorf("unexpected value: %+v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 load call, got %d", calls)
	}
}

func TestCacheExpiresAndReloads(t *testing.T) {
	calls := 0
	c := NewCache(func(ctx context.Context) (model.ScanConfig, error) {
		calls++
		return model.ScanConfig{HTTPMaxResponseMS: calls * 100}, nil
	}, time.Millisecond)

	v1, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	v2, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v1.HTTPMaxResponseMS == v2.HTTPMaxResponseMS {
		t.Error("expected reload after TTL expiry to change the value")
	}
	if calls != 2 {
		t.Errorf("expected 2 load calls, got %d", calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	calls := 0
	c := NewCache(func(ctx context.Context) (model.ScanConfig, error) {
		calls++
		return model.ScanConfig{}, nil
	}, time.Hour)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 load calls after Invalidate, got %d", calls)
	}
}

func TestCacheServesStaleOnLoadError(t *testing.T) {
	first := true
	c := NewCache(func(ctx context.Context) (model.ScanConfig, error) {
		if first {
			first = false
			return model.ScanConfig{HTTPMaxResponseMS: 42}, nil
		}
		return model.ScanConfig{}, context.DeadlineExceeded
	}, time.Nanosecond)

	v, err := c.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.HTTPMaxResponseMS != 42 {
		t.Fatalf("unexpected initial value: %+v", v)
	}

	time.Sleep(time.Millisecond)
	v2, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("expected stale value served without error, got %v", err)
	}
	if v2.HTTPMaxResponseMS != 42 {
		t.Errorf("expected stale value preserved, got %+v", v2)
	}
}
