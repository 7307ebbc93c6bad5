package apkres

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIdmap(t *testing.T) {
	data := buildIdmap(AppPackageID, "/vendor/overlay/theme.apk",
		idmapType{target: 2, overlay: 1, entryIDOffset: 3, entries: []uint32{0, noEntry, 7}},
		idmapType{target: 5, overlay: 2, entries: []uint32{1}},
	)

	m, err := LoadIdmap(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(AppPackageID), m.TargetPackageID())
	assert.Equal(t, "/vendor/overlay/theme.apk", m.OverlayPath())
	assert.Equal(t, 2, m.TypeCount())

	target, ok := m.TargetTypeFor(2)
	assert.True(t, ok)
	assert.Equal(t, uint16(5), target)
	_, ok = m.TargetTypeFor(9)
	assert.False(t, ok)
	assert.Nil(t, m.TypeMapping(9))

	e := m.TypeMapping(1)
	require.NotNil(t, e)
	assert.Equal(t, uint16(2), e.TargetTypeID)
	assert.Equal(t, 3, e.EntryCount())

	tests := []struct {
		entry  uint16
		mapped uint16
		ok     bool
	}{
		{2, 0, false}, // below the offset
		{3, 0, true},
		{4, 0, false}, // unmapped slot
		{5, 7, true},
		{6, 0, false}, // past the end
	}
	for _, tt := range tests {
		mapped, ok := e.Lookup(tt.entry)
		assert.Equal(t, tt.ok, ok, "entry %d", tt.entry)
		assert.Equal(t, tt.mapped, mapped, "entry %d", tt.entry)
	}
}

func TestLoadIdmapErrors(t *testing.T) {
	valid := func() []byte {
		return buildIdmap(AppPackageID, "overlay.apk", idmapType{target: 1, overlay: 1, entries: []uint32{0}})
	}

	tests := []struct {
		name   string
		modify func([]byte) []byte
	}{
		{"misaligned", func(d []byte) []byte { return append(d, 0) }},
		{"too small", func(d []byte) []byte { return d[:idmapHeaderSize-4] }},
		{"bad magic", func(d []byte) []byte { binary.LittleEndian.PutUint32(d, 0x12345678); return d }},
		{"bad version", func(d []byte) []byte { binary.LittleEndian.PutUint32(d[4:], 2); return d }},
		{"no target package", func(d []byte) []byte { binary.LittleEndian.PutUint16(d[8:], 0); return d }},
		{"type count mismatch", func(d []byte) []byte { binary.LittleEndian.PutUint16(d[10:], 2); return d }},
		{"zero type", func(d []byte) []byte { binary.LittleEndian.PutUint16(d[idmapHeaderSize:], 0); return d }},
		{"entries past end", func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[idmapHeaderSize+4:], 5)
			return d
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadIdmap(tt.modify(valid()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknown), "%v", err)
		})
	}

	_, err := LoadIdmap(valid())
	assert.NoError(t, err)
}

func TestLoadIdmapDuplicateType(t *testing.T) {
	data := buildIdmap(AppPackageID, "overlay.apk",
		idmapType{target: 1, overlay: 1, entries: []uint32{0}},
		idmapType{target: 2, overlay: 1, entries: []uint32{0}},
	)
	_, err := LoadIdmap(data)
	assert.True(t, errors.Is(err, ErrUnknown), "%v", err)
}
