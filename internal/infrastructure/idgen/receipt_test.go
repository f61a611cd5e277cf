package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptGenerator_Next(t *testing.T) {
	gen, err := NewReceiptGenerator(1, "")
	require.NoError(t, err)

	first := gen.Next()
	second := gen.Next()
	assert.True(t, strings.HasPrefix(first, "RCV-"))
	assert.NotEqual(t, first, second)
}

func TestReceiptGenerator_UniqueUnderConcurrency(t *testing.T) {
	gen, err := NewReceiptGenerator(7, "R")
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				n := gen.Next()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}

func TestNewReceiptGenerator_InvalidNode(t *testing.T) {
	_, err := NewReceiptGenerator(5000, "")
	assert.Error(t, err)
}
