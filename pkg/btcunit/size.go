package btcunit

import "fmt"

// VByte is a transaction size in virtual bytes.
type VByte uint64

// NewVByte returns a size of val vbytes.
func NewVByte(val uint64) VByte {
	return VByte(val)
}

// String returns the size in vb.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", uint64(v))
}
