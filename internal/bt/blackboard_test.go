package bt

import (
	"strings"
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlackboard_ZeroValue(t *testing.T) {
	t.Parallel()

	var bb Blackboard
	assert.Nil(t, bb.Get("missing"))
	assert.False(t, bb.Has("missing"))
	assert.Nil(t, bb.Keys())
	assert.Equal(t, 0, bb.Len())
	assert.Nil(t, bb.Snapshot())
	bb.Delete("missing")

	bb.Set("a", 1)
	assert.Equal(t, 1, bb.Get("a"))
	assert.Equal(t, 1, bb.Len())
}

func TestBlackboard_BasicOperations(t *testing.T) {
	t.Parallel()

	bb := New()
	bb.Set("b", "two")
	bb.Set("a", 1)
	v, ok := bb.Lookup("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	_, ok = bb.Lookup("zzz")
	require.False(t, ok)

	require.Equal(t, []string{"a", "b"}, bb.Keys())

	bb.Delete("a")
	require.False(t, bb.Has("a"))

	bb.Clear()
	require.Equal(t, 0, bb.Len())
}

func TestBlackboard_Clone(t *testing.T) {
	t.Parallel()

	bb := FromMap(map[string]any{"x": 1})
	bb.Push()
	clone := bb.Clone()
	clone.Set("x", 2)
	clone.Set("y", true)

	require.Equal(t, 1, bb.Get("x"))
	require.False(t, bb.Has("y"))
	require.Equal(t, 0, clone.Depth(), "scopes are not cloned")
	require.Equal(t, 1, bb.Depth())
}

func TestBlackboard_Scopes(t *testing.T) {
	t.Parallel()

	bb := FromMap(map[string]any{"fire": true, "water": 10})

	t.Run("pop discards", func(t *testing.T) {
		b := bb.Clone()
		b.Push()
		b.Set("fire", false)
		b.Delete("water")
		b.Set("new", "x")
		b.Pop()
		require.Equal(t, map[string]any{"fire": true, "water": 10}, b.Snapshot())
		require.Equal(t, 0, b.Depth())
	})

	t.Run("commit keeps", func(t *testing.T) {
		b := bb.Clone()
		b.Push()
		b.Set("fire", false)
		b.Commit()
		require.Equal(t, false, b.Get("fire"))
		require.Equal(t, 0, b.Depth())
	})

	t.Run("nested commit then outer pop", func(t *testing.T) {
		b := bb.Clone()
		b.Push()
		b.Set("outer", 1)
		b.Push()
		b.Set("inner", 2)
		b.Commit()
		require.Equal(t, 2, b.Get("inner"))
		b.Pop()
		require.False(t, b.Has("outer"))
		require.False(t, b.Has("inner"))
	})

	t.Run("inner pop keeps outer writes", func(t *testing.T) {
		b := bb.Clone()
		b.Push()
		b.Set("outer", 1)
		b.Push()
		b.Set("inner", 2)
		b.Pop()
		require.Equal(t, 1, b.Get("outer"))
		require.False(t, b.Has("inner"))
		b.Commit()
		require.Equal(t, 1, b.Get("outer"))
	})

	t.Run("unbalanced", func(t *testing.T) {
		b := New()
		require.Panics(t, b.Pop)
		require.Panics(t, b.Commit)
	})
}

type symbol string

func (s symbol) String() string { return "sym:" + string(s) }

func TestBlackboard_Variable(t *testing.T) {
	t.Parallel()

	bb := FromMap(map[string]any{
		"k":      "v",
		"7":      "seven",
		"sym:id": 42,
	})

	tests := []struct {
		name    string
		key     any
		want    any
		wantErr bool
	}{
		{name: "string", key: "k", want: "v"},
		{name: "int", key: 7, want: "seven"},
		{name: "uint8", key: uint8(7), want: "seven"},
		{name: "stringer", key: symbol("id"), want: 42},
		{name: "missing", key: "nope", want: nil},
		{name: "nil", key: nil, wantErr: true},
		{name: "unsupported", key: struct{}{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bb.Variable(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBlackboard_ExposeToJS(t *testing.T) {
	t.Parallel()

	bb := FromMap(map[string]any{"fireVisible": true})
	vm := goja.New()
	require.NoError(t, vm.Set("bb", bb.ExposeToJS(vm)))

	v, err := vm.RunString(`bb.get("fireVisible") && bb.has("fireVisible") && !bb.has("x") && bb.len() === 1`)
	require.NoError(t, err)
	require.True(t, v.ToBoolean())

	_, err = vm.RunString(`bb.set("x", 1)`)
	require.Error(t, err, "the JS view is read-only")
}

func TestBlackboard_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	bb := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				bb.Set("k", i*j)
				_ = bb.Get("k")
				_ = bb.Keys()
			}
		}()
	}
	wg.Wait()
	require.True(t, bb.Has("k"))
}

func TestLoadBlackboard(t *testing.T) {
	t.Parallel()

	bb, err := LoadBlackboard(strings.NewReader(`
fireVisible: true
water: 3
position: hq
`))
	require.NoError(t, err)
	require.Equal(t, true, bb.Get("fireVisible"))
	require.Equal(t, 3, bb.Get("water"))
	require.Equal(t, "hq", bb.Get("position"))

	empty, err := LoadBlackboard(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	_, err = LoadBlackboard(strings.NewReader("- a\n- b\n"))
	require.Error(t, err)
}
