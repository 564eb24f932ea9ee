package objman

import (
	"encoding/binary"
)

// Every allocation is laid out as [extra prefix][header][payload]. The prefix is rounded up to a
// multiple of 8 so that the header and payload stay 8-byte aligned.
const (
	headerSize = 24

	headerMagic uint32 = 0xabcdefed

	headerFlagDestructor uint32 = 1 << 0
)

const (
	headerMagicOffset  = 0
	headerFlagsOffset  = 4
	headerPrefixOffset = 8
	headerSizeOffset   = 16
)

func writeHeader(header []byte, prefix, size int, hasDestructor bool) {
	var flags uint32
	if hasDestructor {
		flags |= headerFlagDestructor
	}

	binary.LittleEndian.PutUint32(header[headerMagicOffset:], headerMagic)
	binary.LittleEndian.PutUint32(header[headerFlagsOffset:], flags)
	binary.LittleEndian.PutUint64(header[headerPrefixOffset:], uint64(prefix))
	binary.LittleEndian.PutUint64(header[headerSizeOffset:], uint64(size))
}

func readHeaderMagic(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[headerMagicOffset:])
}

func readHeaderPrefix(header []byte) int {
	return int(binary.LittleEndian.Uint64(header[headerPrefixOffset:]))
}

func readHeaderSize(header []byte) int {
	return int(binary.LittleEndian.Uint64(header[headerSizeOffset:]))
}

func readHeaderFlags(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[headerFlagsOffset:])
}

func clearHeaderMagic(header []byte) {
	binary.LittleEndian.PutUint32(header[headerMagicOffset:], 0)
}
