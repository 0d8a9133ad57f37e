package progress

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("get = %q, %v", got, err)
	}

	// Overwrite replaces wholesale
	if err := s.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("after overwrite got %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.Get(ctx, "k")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) after delete, got %q, %v", got, err)
	}

	// Deleting an absent key is fine
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemoryStore_GetAbsent(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Get(context.Background(), "never-written")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %q, %v", got, err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if err := s.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock = clock.Add(59 * time.Minute)
	if got, _ := s.Get(ctx, "k"); string(got) != "v" {
		t.Fatalf("key should still be live, got %q", got)
	}

	clock = clock.Add(2 * time.Minute)
	got, err := s.Get(ctx, "k")
	if err != nil || got != nil {
		t.Fatalf("expected expired key to read as absent, got %q, %v", got, err)
	}
}

func TestMemoryStore_SetReArmsTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	_ = s.Set(ctx, "k", []byte("v1"), time.Hour)
	clock = clock.Add(50 * time.Minute)
	_ = s.Set(ctx, "k", []byte("v2"), time.Hour)

	// 70 minutes after the first write, 20 after the second.
	clock = clock.Add(20 * time.Minute)
	if got, _ := s.Get(ctx, "k"); string(got) != "v2" {
		t.Fatalf("rewrite should have re-armed the TTL, got %q", got)
	}
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("original")
	_ = s.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'X'

	if got, _ := s.Get(ctx, "k"); string(got) != "original" {
		t.Fatalf("store must not alias the caller's buffer, got %q", got)
	}
}
