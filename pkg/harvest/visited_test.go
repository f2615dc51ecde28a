package harvest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seekmed/medharvest/pkg/concepts"
)

func TestVisitedSet(t *testing.T) {
	s := NewVisitedSet()

	assert.False(t, s.Seen("Q1"))
	assert.True(t, s.Visit("Q1"), "first visit")
	assert.False(t, s.Visit("Q1"), "second visit")
	assert.True(t, s.Seen("Q1"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Visit("Q2"))
	assert.Equal(t, 2, s.Len())
}

func TestVisitedSetConcurrent(t *testing.T) {
	s := NewVisitedSet()
	ids := []concepts.QID{"Q1", "Q2", "Q3", "Q4"}

	var wg sync.WaitGroup
	firsts := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for _, id := range ids {
				if s.Visit(id) {
					firsts[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range firsts {
		total += n
	}
	assert.Equal(t, len(ids), total, "each id has exactly one first visit")
	assert.Equal(t, len(ids), s.Len())
}
