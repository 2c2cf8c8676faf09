package hash

import (
	"encoding/binary"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization.
//
// Encoding conventions:
//   - First byte: HashVersion
//   - Integers: big-endian fixed-width (int64=8B, uint16=2B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces the byte stream hashed by Expr.
func Serialize(expr ast.Expr) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.node(expr)
	return s.buf
}

// frame is one binder's names in declaration order.
type frame []string

type serializer struct {
	buf    []byte
	frames []frame // innermost last
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint16(v uint16) {
	s.buf = binary.BigEndian.AppendUint16(s.buf, v)
}

func (s *serializer) writeInt64(v int64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, uint64(v))
}

func (s *serializer) writeString(v string) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

// writeType encodes an annotation; nil means absent.
func (s *serializer) writeType(t types.Type) {
	if t == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.writeByte(TagPresent)
	s.writeString(types.Format(t))
}

func (s *serializer) optional(expr ast.Expr) {
	if expr == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.writeByte(TagPresent)
	s.node(expr)
}

func (s *serializer) bind(names ...string) {
	s.frames = append(s.frames, frame(names))
}

func (s *serializer) unbind() {
	s.frames = s.frames[:len(s.frames)-1]
}

// resolve finds name searching innermost first, returning the number of
// frames skipped and its position within the frame.
func (s *serializer) resolve(name string) (depth, pos int, ok bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		// Later duplicates shadow earlier ones.
		for j := len(f) - 1; j >= 0; j-- {
			if f[j] == name {
				return len(s.frames) - 1 - i, j, true
			}
		}
	}
	return 0, 0, false
}

func (s *serializer) node(expr ast.Expr) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *ast.StringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *ast.BoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *ast.UnitLiteral:
		s.writeByte(TagUnitLiteral)

	case *ast.Identifier:
		if depth, pos, ok := s.resolve(n.Name); ok {
			s.writeByte(TagBoundRef)
			s.writeUint16(uint16(depth))
			s.writeUint16(uint16(pos))
		} else {
			s.writeByte(TagFreeRef)
			s.writeString(n.Name)
		}

	case *ast.Grouping:
		s.node(n.Inner)

	case *ast.Block:
		s.node(n.Inner)

	case *ast.Unary:
		s.writeByte(TagUnary)
		s.writeByte(byte(n.Op))
		s.node(n.Operand)

	case *ast.Binary:
		s.writeByte(TagBinary)
		s.writeByte(byte(n.Op))
		s.node(n.Left)
		s.node(n.Right)

	case *ast.Let:
		s.writeByte(TagLet)
		s.writeType(n.Annotation)
		s.node(n.Init)
		s.bind(n.Name)
		s.node(n.Body)
		s.unbind()

	case *ast.If:
		s.writeByte(TagIf)
		s.node(n.Cond)
		s.node(n.Then)
		s.optional(n.Else)

	case *ast.FuncLit:
		s.fn(n)

	case *ast.Funk:
		s.writeByte(TagFunk)
		s.bind(n.Name)
		s.fn(n.Fn)
		s.optional(n.Then)
		s.unbind()

	case *ast.Call:
		s.writeByte(TagCall)
		s.writeUint16(uint16(len(n.Args)))
		s.node(n.Callee)
		for _, arg := range n.Args {
			s.node(arg)
		}

	default:
		s.writeByte(TagReservedZero)
	}
}

func (s *serializer) fn(n *ast.FuncLit) {
	s.writeByte(TagFunc)
	s.writeUint16(uint16(len(n.Params)))
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		s.writeType(p.Type)
		names[i] = p.Name
	}
	s.writeType(n.Ret)
	s.bind(names...)
	s.node(n.Body)
	s.unbind()
}
