package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/llir/llvm/ir"
)

// EmitIRText renders a lowered module as textual LLVM IR (the ".ll"
// format), suitable for feeding to lli or llc directly.
func EmitIRText(mod *ir.Module) []byte {
	return []byte(mod.String())
}

// containerMagic identifies the custom binary envelope produced by
// EmitContainer. This is not LLVM bitcode — it is a thin wrapper around
// the textual IR, versioned so a future encoding change doesn't silently
// misparse an older container.
var containerMagic = [4]byte{'L', 'M', 'I', 'R'}

const containerVersion uint32 = 1

// EmitContainer wraps a module's textual IR in a small versioned binary
// envelope: a 4-byte magic, a uint32 version, a uint32 length, then that
// many bytes of IR text. Producing real LLVM bitcode would mean carrying
// llvm-as/llvm-as-compatible bitstream writing that nothing in this
// program's dependency graph provides; this container is the honest
// alternative (see DESIGN.md).
func EmitContainer(mod *ir.Module) []byte {
	text := EmitIRText(mod)
	var buf bytes.Buffer
	buf.Write(containerMagic[:])
	binary.Write(&buf, binary.LittleEndian, containerVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(len(text)))
	buf.Write(text)
	return buf.Bytes()
}

// DecodeContainer reverses EmitContainer, returning the embedded IR text.
func DecodeContainer(data []byte) ([]byte, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], containerMagic[:]) {
		return nil, fmt.Errorf("not a lumen IR container")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != containerVersion {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}
	length := binary.LittleEndian.Uint32(data[8:12])
	if uint32(len(data)-12) < length {
		return nil, fmt.Errorf("truncated container: want %d bytes, have %d", length, len(data)-12)
	}
	return data[12 : 12+length], nil
}
