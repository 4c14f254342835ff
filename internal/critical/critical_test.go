//go:build !tinygo

package critical

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionSerializes(t *testing.T) {
	var (
		s  Section
		wg sync.WaitGroup
		n  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Enter()
				n++
				s.Exit()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, n)
}
