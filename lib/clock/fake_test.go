// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFunc(t *testing.T) {
	clock := Fake(epoch)
	fired := 0
	clock.AfterFunc(3*time.Second, func() { fired++ })

	clock.Advance(2 * time.Second)
	if fired != 0 {
		t.Fatalf("callback fired early (%d)", fired)
	}

	clock.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("callback fired %d times after deadline, want 1", fired)
	}

	clock.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("callback fired %d times after second Advance, want 1", fired)
	}
}

func TestFakeClockAfterFuncZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Fatal("AfterFunc(0) should call f synchronously")
	}
	if timer.Stop() {
		t.Error("Stop() on an already-fired timer returned true")
	}
}

func TestFakeClockStop(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer returned false")
	}
	if timer.Stop() {
		t.Error("second Stop() returned true")
	}
	clock.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
	if count := clock.PendingCount(); count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}
}

func TestFakeClockDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	clock.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})

	go func() {
		clock.AfterFunc(time.Second, func() { close(done) })
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("timer registered from goroutine did not fire")
	}
}

func TestRealClockAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("real AfterFunc did not fire")
	}
}
