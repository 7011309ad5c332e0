package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := km.Lock("conv-1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*iterations, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	// Holding "a" must not block "b".
	<-done
	unlockA()
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("conv-1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
