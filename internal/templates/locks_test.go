// internal/templates/locks_test.go
package templates

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSet_SerializesSameID(t *testing.T) {
	locks := NewLockSet()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("cbse_ssc_1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Zero(t, locks.size())
}

func TestLockSet_IndependentIDs(t *testing.T) {
	locks := NewLockSet()

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Zero(t, locks.size())
}
