// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/peerlink/lib/testutil"
)

func TestCallbackQueue_Order(t *testing.T) {
	var queue callbackQueue
	const count = 200

	results := make(chan int, count)
	for index := 0; index < count; index++ {
		queue.push(func() { results <- index })
	}

	for want := 0; want < count; want++ {
		got := testutil.RequireReceive(t, results, 5*time.Second, "waiting for callback %d", want)
		if got != want {
			t.Fatalf("callback %d ran at position %d", got, want)
		}
	}
}

func TestCallbackQueue_Serial(t *testing.T) {
	var queue callbackQueue
	var mu sync.Mutex
	active := 0
	overlapped := false
	done := make(chan struct{})

	const count = 50
	var finished int
	for index := 0; index < count; index++ {
		queue.push(func() {
			mu.Lock()
			active++
			if active > 1 {
				overlapped = true
			}
			mu.Unlock()

			time.Sleep(100 * time.Microsecond)

			mu.Lock()
			active--
			finished++
			if finished == count {
				close(done)
			}
			mu.Unlock()
		})
	}

	testutil.RequireClosed(t, done, 10*time.Second, "waiting for callbacks")
	if overlapped {
		t.Error("two callbacks ran concurrently")
	}
}

func TestCallbackQueue_SealDropsLater(t *testing.T) {
	var queue callbackQueue
	results := make(chan string, 4)

	queue.push(func() { results <- "before" })
	if !queue.seal(func() { results <- "final" }) {
		t.Fatal("first seal returned false")
	}
	if queue.seal(func() { results <- "second final" }) {
		t.Error("second seal returned true")
	}
	queue.push(func() { results <- "after" })

	if got := testutil.RequireReceive(t, results, 5*time.Second, "before"); got != "before" {
		t.Errorf("first = %q, want before", got)
	}
	if got := testutil.RequireReceive(t, results, 5*time.Second, "final"); got != "final" {
		t.Errorf("second = %q, want final", got)
	}
	testutil.RequireNoReceive(t, results, 50*time.Millisecond, "nothing runs after seal")
}
