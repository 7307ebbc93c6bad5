package apkres

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringPoolDecoding(t *testing.T) {
	strs := []string{"", "plain", "größe", "日本語", "emoji 😀", strings.Repeat("x", 300)}

	for _, utf8 := range []bool{false, true} {
		name := "utf16"
		if utf8 {
			name = "utf8"
		}
		t.Run(name, func(t *testing.T) {
			pool, err := NewStringPool(buildStringPool(strs, utf8), false)
			require.NoError(t, err)
			assert.Equal(t, utf8, pool.IsUTF8())
			assert.False(t, pool.IsSorted())
			assert.Equal(t, len(strs), pool.Len())
			assert.Equal(t, 0, pool.StyleCount())

			for i, want := range strs {
				got, err := pool.StringAt(uint32(i))
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			// cached
			got, err := pool.StringAt(3)
			require.NoError(t, err)
			assert.Equal(t, "日本語", got)

			_, err = pool.StringAt(uint32(len(strs)))
			assert.True(t, errors.Is(err, ErrBadIndex), "%v", err)

			assert.Equal(t, 2, pool.IndexOfString("größe"))
			assert.Equal(t, -1, pool.IndexOfString("missing"))
		})
	}
}

func TestStringPoolLongUtf16(t *testing.T) {
	long := strings.Repeat("a", 40000)
	pool, err := NewStringPool(buildStringPool([]string{"short", long}, false), false)
	require.NoError(t, err)

	got, err := pool.StringAt(1)
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestStringPoolLongUtf8(t *testing.T) {
	// 0x7fff is the largest length the two byte UTF-8 form can carry
	strs := []string{
		strings.Repeat("b", 0x7f),
		strings.Repeat("c", 0x80),
		strings.Repeat("d", 0x7fff),
	}
	pool, err := NewStringPool(buildStringPool(strs, true), false)
	require.NoError(t, err)

	for i, want := range strs {
		got, err := pool.StringAt(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, len(want), len(got), "string %d", i)
		assert.Equal(t, want, got, "string %d", i)
	}
}

func TestStringPoolCopyData(t *testing.T) {
	data := buildStringPool([]string{"abc"}, true)
	pool, err := NewStringPool(data, true)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	got, err := pool.StringAt(0)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestStringPoolInvalidUtf8(t *testing.T) {
	pool, err := NewStringPool(buildStringPool([]string{"a\xffb"}, true), false)
	require.NoError(t, err)

	got, err := pool.StringAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a\uFFFEb", got)
}

func TestStringPoolStyles(t *testing.T) {
	spans := []StyleSpan{{Name: 2, FirstChar: 0, LastChar: 3}, {Name: 3, FirstChar: 5, LastChar: 8}}
	data := buildPool([]string{"bold text", "plain", "b", "i"}, [][]StyleSpan{spans}, false, false)

	pool, err := NewStringPool(data, false)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.StyleCount())

	got, err := pool.StyleAt(0)
	require.NoError(t, err)
	assert.Equal(t, spans, got)

	got, err = pool.StyleAt(1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStringPoolSorted(t *testing.T) {
	pool, err := NewStringPool(buildPool([]string{"alpha", "beta", "gamma"}, nil, true, true), false)
	require.NoError(t, err)
	assert.True(t, pool.IsSorted())

	assert.Equal(t, 0, pool.IndexOfString("alpha"))
	assert.Equal(t, 2, pool.IndexOfString("gamma"))
	assert.Equal(t, -1, pool.IndexOfString("delta"))
	assert.Equal(t, -1, pool.IndexOfString("zeta"))
}

func TestStringPoolMalformed(t *testing.T) {
	t.Run("not terminated", func(t *testing.T) {
		data := buildStringPool([]string{"ab"}, false)
		data[len(data)-2] = 'x'
		_, err := NewStringPool(data, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
		assert.Contains(t, err.Error(), "0-terminated")
	})

	t.Run("truncated", func(t *testing.T) {
		data := buildStringPool([]string{"abc", "def"}, true)
		_, err := NewStringPool(data[:len(data)-4], false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})

	t.Run("too many strings", func(t *testing.T) {
		data := buildStringPool([]string{"abc"}, true)
		binary.LittleEndian.PutUint32(data[8:], 1000)
		_, err := NewStringPool(data, false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})

	t.Run("string past end", func(t *testing.T) {
		data := buildStringPool([]string{"abc"}, false)
		// first entry points past the string data
		binary.LittleEndian.PutUint32(data[stringPoolHeaderSize:], 0x100)
		pool, err := NewStringPool(data, false)
		require.NoError(t, err)
		_, err = pool.StringAt(0)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})

	t.Run("styles not terminated", func(t *testing.T) {
		data := buildPool([]string{"a"}, [][]StyleSpan{nil}, false, false)
		data[len(data)-1] = 0
		_, err := NewStringPool(data, false)
		assert.True(t, errors.Is(err, ErrBadType), "%v", err)
	})
}
