package utils

import (
	"math/bits"
	"strconv"
	"strings"
)

type Flags interface {
	~int32 | ~uint32
}

// FlagStringMapping renders bit flag sets as a pipe-separated list of registered names
type FlagStringMapping[T Flags] struct {
	names map[T]string
}

func NewFlagStringMapping[T Flags]() FlagStringMapping[T] {
	return FlagStringMapping[T]{names: make(map[T]string)}
}

func (m FlagStringMapping[T]) Register(flag T, name string) {
	m.names[flag] = name
}

func (m FlagStringMapping[T]) FlagsToString(flags T) string {
	if flags == 0 {
		return "None"
	}

	var sb strings.Builder
	remaining := uint32(flags)
	for remaining != 0 {
		bit := uint32(1) << bits.TrailingZeros32(remaining)
		remaining &^= bit

		if sb.Len() > 0 {
			sb.WriteByte('|')
		}

		name, ok := m.names[T(bit)]
		if !ok {
			name = "0x" + strconv.FormatUint(uint64(bit), 16)
		}
		sb.WriteString(name)
	}

	return sb.String()
}
