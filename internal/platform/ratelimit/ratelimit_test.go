package ratelimit

import (
	"testing"
	"time"
)

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewFixedWindow(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("third request should be limited")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("other key should not be affected")
	}
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewFixedWindow(1, time.Minute, func() time.Time { return now })

	if !limiter.Allow("key") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow("key") {
		t.Fatalf("second request should be limited")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("key") {
		t.Fatalf("request after window should pass")
	}
}

func TestFixedWindowEmptyKeyBucketsAsAnonymous(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewFixedWindow(1, time.Minute, func() time.Time { return now })

	if !limiter.Allow("") {
		t.Fatalf("first anonymous request should pass")
	}
	if limiter.Allow("  ") {
		t.Fatalf("second anonymous request should share the bucket")
	}
}

func TestFixedWindowNilAllowsEverything(t *testing.T) {
	var limiter *FixedWindow
	for i := 0; i < 10; i++ {
		if !limiter.Allow("key") {
			t.Fatalf("nil limiter must allow")
		}
	}
	if NewFixedWindow(0, time.Minute, nil) != nil {
		t.Fatalf("non-positive limit should produce nil limiter")
	}
}
