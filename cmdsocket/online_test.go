package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlineCounterLocal(t *testing.T) {
	o := newOnlineCounter(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Add(1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, o.Count())

	assert.EqualValues(t, 49, o.Add(-1))
	assert.EqualValues(t, 49, o.Local())
}
