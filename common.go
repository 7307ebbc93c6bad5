package apkres

import (
	"encoding/binary"

	"github.com/rs/zerolog"
)

const (
	chunkNull          = 0x0000
	chunkStringTable   = 0x0001
	chunkTable         = 0x0002
	chunkAxmlFile      = 0x0003
	chunkResourceIds   = 0x0180
	chunkTablePackage  = 0x0200
	chunkTableType     = 0x0201
	chunkTableTypeSpec = 0x0202
	chunkTableLibrary  = 0x0203

	chunkXmlFirst    = 0x0100
	chunkXmlNsStart  = 0x0100
	chunkXmlNsEnd    = 0x0101
	chunkXmlTagStart = 0x0102
	chunkXmlTagEnd   = 0x0103
	chunkXmlText     = 0x0104
	chunkXmlLast     = 0x017f

	chunkHeaderSize = (2 + 2 + 4)
)

// Sentinel used by string references and entry offset tables.
const noEntry = 0xFFFFFFFF

// ChunkHeader is the header every chunk of the container format starts with.
type ChunkHeader struct {
	Type       uint16
	HeaderSize uint16
	Size       uint32
}

// readChunkHeader reads the header at off without any validation. The caller
// must make sure off+8 <= len(data).
func readChunkHeader(data []byte, off int) ChunkHeader {
	return ChunkHeader{
		Type:       u16(data, off),
		HeaderSize: u16(data, off+2),
		Size:       u32(data, off+4),
	}
}

// validateChunk checks the chunk at data[off:] against minSize and the end of
// data. Checks run in a fixed order and the first failing one is reported.
func validateChunk(data []byte, off int, minSize int, name string) (ChunkHeader, error) {
	if off < 0 || off > len(data) || len(data)-off < chunkHeaderSize {
		return ChunkHeader{}, badType("%s chunk header at 0x%x is truncated", name, off)
	}

	hdr := readChunkHeader(data, off)
	if int(hdr.HeaderSize) < minSize {
		return hdr, badType("%s header size 0x%04x is too small", name, hdr.HeaderSize)
	}
	if uint32(hdr.HeaderSize) > hdr.Size {
		return hdr, badType("%s size 0x%x is smaller than header size 0x%x", name, hdr.Size, hdr.HeaderSize)
	}
	if ((uint32(hdr.HeaderSize) | hdr.Size) & 0x3) != 0 {
		return hdr, badType("%s size 0x%x or headerSize 0x%x is not on an integer boundary", name, hdr.Size, hdr.HeaderSize)
	}
	if uint64(hdr.Size) > uint64(len(data)-off) {
		return hdr, badType("%s data size 0x%x extends beyond resource end 0x%x", name, hdr.Size, len(data)-off)
	}
	return hdr, nil
}

func u8(data []byte, off int) uint8 {
	return data[off]
}

func u16(data []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(data[off:])
}

func u32(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off:])
}

// inBounds reports whether [off, off+n) lies inside data.
func inBounds(data []byte, off int, n int) bool {
	return off >= 0 && n >= 0 && off <= len(data) && n <= len(data)-off
}

var logger = zerolog.Nop()

// SetLogger sets the logger used for warnings about tolerated malformed input.
// The default logger discards everything, pass zerolog.Nop() to restore it.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// warn logs msg with fields given as key, value pairs.
func warn(msg string, fields ...any) {
	logger.Warn().Fields(fields).Msg(msg)
}
