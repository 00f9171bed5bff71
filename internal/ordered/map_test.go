package ordered

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := New[string]()
	m.Set("l", "0.5")
	m.Set("k1", "0.3")
	m.Set("tilt", "0.1")

	assert.Equal(t, []string{"l", "k1", "tilt"}, m.Keys())
}

func TestMapUpdateKeepsPosition(t *testing.T) {
	m := New[string]()
	m.Set("l", "0.5")
	m.Set("k1", "0.3")
	m.Set("l", "0.75")

	assert.Equal(t, []string{"l", "k1"}, m.Keys())
	v, ok := m.Get("l")
	assert.True(t, ok)
	assert.Equal(t, "0.75", v)
}

func TestMapDeleteShiftsIndex(t *testing.T) {
	m := New[string]()
	m.Set("a", "1")
	m.Set("b", "2")
	m.Set("c", "3")
	m.Delete("b")

	assert.Equal(t, []string{"a", "c"}, m.Keys())
	_, ok := m.Get("b")
	assert.False(t, ok)
	v, ok := m.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestMapGetMissing(t *testing.T) {
	m := New[int]()
	_, ok := m.Get("nope")
	assert.False(t, ok)
	assert.False(t, m.Has("nope"))
	assert.Equal(t, 0, m.Len())
}

func TestMapEachStopsEarly(t *testing.T) {
	m := New[int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var seen []string
	m.Each(func(key string, val int) bool {
		seen = append(seen, key)
		return key != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}
