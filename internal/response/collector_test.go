package response

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		response []int
		targets  []int
		want     float64
	}{
		{"same set any order", []int{4, 1, 6}, []int{1, 4, 6}, 1},
		{"one miss shifts the rest", []int{4, 1, 2}, []int{1, 4, 6}, 1.0 / 3},
		{"nothing right", []int{0, 2, 3}, []int{1, 4, 6}, 0},
		{"unfilled slots", []int{-1, 4, 6}, []int{1, 4, 6}, 2.0 / 3},
		{"no targets", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.response, tt.targets), 1e-12)
		})
	}
}

func TestScore_DoesNotReorderInputs(t *testing.T) {
	resp := []int{6, 1, 4}
	Score(resp, []int{4, 6, 1})
	assert.Equal(t, []int{6, 1, 4}, resp)
}

func TestCollector_IgnoresInputWhileDisabled(t *testing.T) {
	c := NewCollector(8, []int{1, 4, 6})
	c.Scroll(3)
	c.Confirm()

	assert.Equal(t, 0, c.Cursor())
	assert.False(t, c.Complete())
	assert.False(t, c.Chosen(0))
}

func TestCollector_ScrollWraps(t *testing.T) {
	c := NewCollector(5, []int{0})
	c.Enable(true)

	c.Scroll(-1)
	assert.Equal(t, 4, c.Cursor())
	c.Scroll(2)
	assert.Equal(t, 1, c.Cursor())
	c.Scroll(-11)
	assert.Equal(t, 0, c.Cursor())
	c.Scroll(7)
	assert.Equal(t, 2, c.Cursor())
}

func TestCollector_ConfirmSequence(t *testing.T) {
	c := NewCollector(8, []int{1, 4, 6})
	c.Enable(true)

	pick := func(i int) {
		c.Scroll(i - c.Cursor())
		c.Confirm()
	}

	pick(4)
	assert.False(t, c.Complete())
	pick(1)
	assert.False(t, c.Complete())
	pick(6)
	assert.True(t, c.Complete())
	assert.InDelta(t, 1.0, c.Score(), 1e-12)

	if diff := cmp.Diff([]int{4, 1, 6}, c.Response()); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	for _, i := range []int{1, 4, 6} {
		assert.True(t, c.Chosen(i), "ball %d", i)
	}
	assert.False(t, c.Chosen(2))
	assert.False(t, c.Chosen(99))
}

func TestCollector_SlotsCycle(t *testing.T) {
	c := NewCollector(8, []int{1, 4, 6})
	c.Enable(true)

	for _, i := range []int{4, 1, 6, 2} {
		c.Scroll(i - c.Cursor())
		c.Confirm()
	}

	assert.Equal(t, []int{2, 1, 6}, c.Response())
	assert.InDelta(t, 2.0/3, c.Score(), 1e-12)
	assert.True(t, c.Chosen(4), "overwritten choices stay marked")
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(8, []int{1, 4, 6})
	c.Enable(true)
	c.Scroll(3)
	c.Confirm()

	c.Reset(4, []int{2, 3})

	assert.False(t, c.Enabled())
	assert.Equal(t, 0, c.Cursor())
	assert.Equal(t, []int{-1, -1}, c.Response())
	assert.Equal(t, []int{2, 3}, c.Targets())
	assert.False(t, c.Chosen(3))
	assert.Zero(t, c.Score())
}
