package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nandc.dev/toolchain/pkg/utils"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	om := utils.OrderedMap[string, int]{}
	om.Set("c", 3)
	om.Set("a", 1)
	om.Set("b", 2)

	require.Equal(t, []string{"c", "a", "b"}, om.Keys())
	require.Equal(t, []int{3, 1, 2}, om.Values())
	require.Equal(t, 3, om.Size())

	value, found := om.Get("a")
	require.True(t, found)
	require.Equal(t, 1, value)

	_, found = om.Get("missing")
	require.False(t, found)
}

func TestOrderedMapSetUpdatesInPlace(t *testing.T) {
	om := utils.OrderedMap[string, int]{}
	om.Set("a", 1)
	om.Set("b", 2)
	om.Set("a", 99)

	require.Equal(t, []string{"a", "b"}, om.Keys())
	value, _ := om.Get("a")
	require.Equal(t, 99, value)
}

func TestNewOrderedMapFromList(t *testing.T) {
	type named struct {
		Name string
		N    int
	}
	values := []named{{"x", 1}, {"y", 2}}
	om := utils.NewOrderedMapFromList(values, func(n named) string { return n.Name })

	require.Equal(t, 2, om.Size())
	entries := om.Entries()
	require.Equal(t, "x", entries[0].Key)
	require.Equal(t, "y", entries[1].Key)
}
