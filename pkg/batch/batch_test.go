package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCut(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  []int
	}{
		{"No batching", 101, 0, []int{101}},
		{"Size one", 3, 1, []int{1, 2, 3}},
		{"Remainder", 101, 20, []int{20, 40, 60, 80, 100, 101}},
		{"Exact multiple", 40, 20, []int{20, 40}},
		{"Size larger than input", 5, 127, []int{5}},
		{"Empty input", 0, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cut(tt.total, tt.size))
		})
	}
}

func TestEach_BatchSizes(t *testing.T) {
	items := make([]int, 101)

	var sizes []int
	err := Each(items, 20, func(b []int) error {
		sizes = append(sizes, len(b))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{20, 20, 20, 20, 20, 1}, sizes, "最后一批是余数")
}

func TestEach_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Each(make([]int, 10), 3, func(b []int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
