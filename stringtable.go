package apkres

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	stringFlagSorted = 0x00000001
	stringFlagUtf8   = 0x00000100

	stringPoolHeaderSize = chunkHeaderSize + 5*4

	// Marks the end of a style span list.
	spanEnd = 0xFFFFFFFF
)

// StringPool is a decoded RES_STRING_POOL_TYPE chunk. It is immutable once
// created and safe for concurrent use.
type StringPool struct {
	data []byte // whole chunk

	stringCount  uint32
	styleCount   uint32
	flags        uint32
	stringsStart uint32
	stylesStart  uint32

	// in units of the pool's character size
	stringPoolSize uint32
	// in uint32 units
	stylePoolSize uint32

	cache sync.Map // uint32 -> string
}

// StyleSpan is one styled range of a pool string. Name is a pool index of the
// tag name (e.g. "b"), the char range is inclusive and counted in UTF-16 units.
type StyleSpan struct {
	Name      uint32
	FirstChar uint32
	LastChar  uint32
}

// NewStringPool decodes the string pool chunk at the start of data. When
// copyData is set the pool keeps a private copy of the chunk.
func NewStringPool(data []byte, copyData bool) (*StringPool, error) {
	hdr, err := validateChunk(data, 0, stringPoolHeaderSize, "string pool")
	if err != nil {
		return nil, err
	}

	chunk := data[:hdr.Size]
	if copyData {
		chunk = append([]byte(nil), chunk...)
	}

	p := &StringPool{
		data:         chunk,
		stringCount:  u32(chunk, 8),
		styleCount:   u32(chunk, 12),
		flags:        u32(chunk, 16),
		stringsStart: u32(chunk, 20),
		stylesStart:  u32(chunk, 24),
	}
	size := hdr.Size
	headerSize := uint32(hdr.HeaderSize)

	if p.stringCount > 0 {
		if uint64(headerSize)+uint64(p.stringCount)*4 > uint64(size) {
			return nil, badType("bad string block: entry of %d items extends past data size %d", p.stringCount, size)
		}

		charSize := uint32(2)
		if p.IsUTF8() {
			charSize = 1
		}

		// There should be at least space for the smallest string
		// (2 bytes length, null terminator).
		if p.stringsStart >= size-2 {
			return nil, badType("bad string block: string pool starts at %d, after total size %d", p.stringsStart, size)
		}

		if p.styleCount == 0 {
			p.stringPoolSize = (size - p.stringsStart) / charSize
		} else {
			if p.stylesStart >= size-2 {
				return nil, badType("bad style block: style block starts at %d past data size of %d", p.stylesStart, size)
			}
			if p.stylesStart <= p.stringsStart {
				return nil, badType("bad style block: style block starts at %d, before strings at %d", p.stylesStart, p.stringsStart)
			}
			p.stringPoolSize = (p.stylesStart - p.stringsStart) / charSize
		}

		if p.stringPoolSize == 0 {
			return nil, badType("bad string block: stringCount is %d but pool size is 0", p.stringCount)
		}

		last := p.stringsStart + (p.stringPoolSize-1)*charSize
		if p.IsUTF8() && chunk[last] != 0 || !p.IsUTF8() && u16(chunk, int(last)) != 0 {
			return nil, badType("bad string block: last string is not 0-terminated")
		}
	}

	if p.styleCount > 0 {
		entryStylesEnd := uint64(headerSize) + uint64(p.stringCount)*4 + uint64(p.styleCount)*4
		if entryStylesEnd > uint64(size) {
			return nil, badType("bad string block: entry of %d styles extends past data size %d", p.styleCount, size)
		}
		if p.stylesStart >= size {
			return nil, badType("bad string block: style pool starts %d, after total size %d", p.stylesStart, size)
		}

		p.stylePoolSize = (size - p.stylesStart) / 4
		if p.stylePoolSize < 3 {
			return nil, badType("bad string block: style pool is too small")
		}
		endOff := int(p.stylesStart + (p.stylePoolSize-3)*4)
		for i := 0; i < 3; i++ {
			if u32(chunk, endOff+4*i) != spanEnd {
				return nil, badType("bad string block: last style is not 0xFFFFFFFF-terminated")
			}
		}
	}

	return p, nil
}

// Len returns the number of strings in the pool.
func (p *StringPool) Len() int {
	return int(p.stringCount)
}

// StyleCount returns the number of style entries in the pool.
func (p *StringPool) StyleCount() int {
	return int(p.styleCount)
}

func (p *StringPool) IsUTF8() bool {
	return (p.flags & stringFlagUtf8) != 0
}

func (p *StringPool) IsSorted() bool {
	return (p.flags & stringFlagSorted) != 0
}

func (p *StringPool) entryOffset(idx uint32) uint32 {
	return u32(p.data, int(readChunkHeader(p.data, 0).HeaderSize)+4*int(idx))
}

// decodeLength16 decodes a UTF-16 pool length at unit index pos.
func (p *StringPool) decodeLength16(pos uint32) (length uint32, next uint32) {
	base := int(p.stringsStart)
	first := uint32(u16(p.data, base+2*int(pos)))
	pos++
	if (first&0x8000) != 0 && pos < p.stringPoolSize {
		length = ((first & 0x7FFF) << 16) | uint32(u16(p.data, base+2*int(pos)))
		pos++
		return length, pos
	}
	return first, pos
}

func (p *StringPool) decodeLength8(pos uint32) (length uint32, next uint32) {
	base := int(p.stringsStart)
	first := uint32(p.data[base+int(pos)])
	pos++
	if (first&0x80) != 0 && pos < p.stringPoolSize {
		length = ((first & 0x7F) << 8) | uint32(p.data[base+int(pos)])
		pos++
		return length, pos
	}
	return first, pos
}

// StringAt returns the string at idx.
func (p *StringPool) StringAt(idx uint32) (string, error) {
	if idx >= p.stringCount {
		return "", badIndex("string with idx %d not found, pool has %d", idx, p.stringCount)
	}

	if str, prs := p.cache.Load(idx); prs {
		return str.(string), nil
	}

	var res string
	var err error
	if p.IsUTF8() {
		res, err = p.string8(idx)
	} else {
		res, err = p.string16(idx)
	}
	if err != nil {
		return "", err
	}

	if !utf8.ValidString(res) || strings.ContainsRune(res, 0) {
		res = strings.Map(func(r rune) rune {
			switch r {
			case 0, utf8.RuneError:
				return '\uFFFE'
			default:
				return r
			}
		}, res)
	}

	p.cache.Store(idx, res)
	return res, nil
}

func (p *StringPool) string16(idx uint32) (string, error) {
	off := p.entryOffset(idx) / 2
	if off >= p.stringPoolSize-1 {
		return "", badType("bad string block: string #%d entry is at %d, past end at %d", idx, off, p.stringPoolSize)
	}

	u16len, pos := p.decodeLength16(off)
	if uint64(pos)+uint64(u16len) >= uint64(p.stringPoolSize) {
		return "", badType("bad string block: string #%d extends to %d, past end at %d", idx, uint64(pos)+uint64(u16len), p.stringPoolSize)
	}

	base := int(p.stringsStart) + 2*int(pos)
	if u16(p.data, base+2*int(u16len)) != 0 {
		return "", badType("bad string block: string #%d is not null-terminated", idx)
	}

	buf := make([]uint16, u16len)
	for i := range buf {
		buf[i] = u16(p.data, base+2*i)
	}
	return string(utf16.Decode(buf)), nil
}

func (p *StringPool) string8(idx uint32) (string, error) {
	off := p.entryOffset(idx)
	if off >= p.stringPoolSize-1 {
		return "", badType("bad string block: string #%d entry is at %d, past end at %d", idx, off, p.stringPoolSize)
	}

	// Length of the string in UTF16, not needed for decoding.
	_, pos := p.decodeLength8(off)
	if pos >= p.stringPoolSize {
		return "", badType("bad string block: string #%d length runs past end at %d", idx, p.stringPoolSize)
	}
	u8len, pos := p.decodeLength8(pos)
	if uint64(pos)+uint64(u8len) >= uint64(p.stringPoolSize) {
		return "", badType("bad string block: string #%d extends to %d, past end at %d", idx, uint64(pos)+uint64(u8len), p.stringPoolSize)
	}

	base := int(p.stringsStart) + int(pos)
	if p.data[base+int(u8len)] != 0 {
		return "", badType("bad string block: string #%d is not null-terminated", idx)
	}
	return string(p.data[base : base+int(u8len)]), nil
}

// StyleAt returns the style spans of the string at idx. Strings past the
// style entry table have no style.
func (p *StringPool) StyleAt(idx uint32) ([]StyleSpan, error) {
	if idx >= p.styleCount {
		return nil, nil
	}

	headerSize := int(readChunkHeader(p.data, 0).HeaderSize)
	styleOff := u32(p.data, headerSize+4*int(p.stringCount)+4*int(idx))
	if styleOff%4 != 0 {
		return nil, badType("bad string block: style #%d offset 0x%x is not aligned", idx, styleOff)
	}

	var spans []StyleSpan
	for pos := styleOff / 4; ; pos += 3 {
		if pos >= p.stylePoolSize {
			return nil, badType("bad string block: style #%d runs past end of style pool", idx)
		}
		base := int(p.stylesStart) + 4*int(pos)
		name := u32(p.data, base)
		if name == spanEnd {
			return spans, nil
		}
		if pos+3 > p.stylePoolSize {
			return nil, badType("bad string block: style #%d span is truncated", idx)
		}
		spans = append(spans, StyleSpan{
			Name:      name,
			FirstChar: u32(p.data, base+4),
			LastChar:  u32(p.data, base+8),
		})
	}
}

// IndexOfString returns the index of str, or -1. Sorted pools are binary
// searched.
func (p *StringPool) IndexOfString(str string) int {
	if p.IsSorted() {
		n := int(p.stringCount)
		i := sort.Search(n, func(i int) bool {
			s, err := p.StringAt(uint32(i))
			return err != nil || s >= str
		})
		if i < n {
			if s, err := p.StringAt(uint32(i)); err == nil && s == str {
				return i
			}
		}
		return -1
	}

	for i := uint32(0); i < p.stringCount; i++ {
		if s, err := p.StringAt(i); err == nil && s == str {
			return int(i)
		}
	}
	return -1
}
