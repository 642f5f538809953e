package visit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepLocks_SerializesPerRepresentative(t *testing.T) {
	l := newRepLocks()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("rep-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.size())
}

func TestRepLocks_IndependentRepresentatives(t *testing.T) {
	l := newRepLocks()
	unlockA := l.lock("rep-a")
	done := make(chan struct{})
	go func() {
		unlock := l.lock("rep-b")
		unlock()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, l.size())
	unlockA()
	assert.Zero(t, l.size())
}
