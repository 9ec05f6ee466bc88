package locking

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedSerializesSameID(t *testing.T) {
	k := NewKeyed()
	id := uuid.New()

	var inCritical, max, counter int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(id)
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > max {
				max = inCritical
			}
			mu.Unlock()

			counter++

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("expected one holder at a time, saw %d", max)
	}
	if counter != 16 {
		t.Errorf("expected 16 increments, got %d", counter)
	}
}

func TestKeyedDropsEntryAfterLastUnlock(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock(uuid.New())
	unlockB := k.Lock(uuid.New())
	if k.Len() != 2 {
		t.Fatalf("expected 2 live entries, got %d", k.Len())
	}

	unlockA()
	if k.Len() != 1 {
		t.Errorf("expected entry removed after unlock, have %d", k.Len())
	}
	unlockB()
	if k.Len() != 0 {
		t.Errorf("expected empty map, have %d entries", k.Len())
	}
}

func TestKeyedIndependentIDsDoNotBlock(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock(uuid.New())
		unlock()
		close(done)
	}()
	<-done
}
