// Package image serializes compiled chunks to a portable binary form.
//
// An image is a canonical CBOR document holding a header (magic, format
// version, a unique image id and the SHA-256 of the source it was built
// from), the code bytes, the constant pool and the span map. Images let a
// program be compiled once and run many times, and back the compile cache.
package image

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/vm"
)

// Magic identifies a pico image.
const Magic = "PICO"

// FormatVersion is the current image format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

var (
	// ErrUnencodable is returned for chunks holding values with no image
	// representation, i.e. functions.
	ErrUnencodable = errors.New("image: value cannot be encoded")

	// ErrBadImage is returned for data that is not a valid image of the
	// current format.
	ErrBadImage = errors.New("image: invalid image")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header describes an image.
type Header struct {
	Magic      string   `cbor:"1,keyasint"`
	Version    uint16   `cbor:"2,keyasint"`
	ID         string   `cbor:"3,keyasint"`
	SourceHash [32]byte `cbor:"4,keyasint"`
	Created    int64    `cbor:"5,keyasint"` // unix seconds
}

// Image is the serialized form of a chunk.
type Image struct {
	Header    Header     `cbor:"1,keyasint"`
	Code      []byte     `cbor:"2,keyasint"`
	Constants []Constant `cbor:"3,keyasint,omitempty"`
	Spans     []SpanRun  `cbor:"4,keyasint,omitempty"`
}

// Constant is one constant pool entry.
type Constant struct {
	Kind uint8  `cbor:"1,keyasint"`
	Int  int64  `cbor:"2,keyasint,omitempty"`
	Str  string `cbor:"3,keyasint,omitempty"`
	Bool bool   `cbor:"4,keyasint,omitempty"`
}

// SpanRun is one span map entry.
type SpanRun struct {
	Start int `cbor:"1,keyasint"`
	End   int `cbor:"2,keyasint"`
	Count int `cbor:"3,keyasint"`
}

// HashSource returns the digest recorded in an image header.
func HashSource(source string) [32]byte {
	return sha256.Sum256([]byte(source))
}

// New captures chunk as an image with a fresh id.
func New(chunk *vm.Chunk, source string) (*Image, error) {
	img := &Image{
		Header: Header{
			Magic:      Magic,
			Version:    FormatVersion,
			ID:         uuid.New().String(),
			SourceHash: HashSource(source),
			Created:    time.Now().Unix(),
		},
		Code: append([]byte(nil), chunk.Code()...),
	}

	for i, v := range chunk.Constants() {
		c, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		img.Constants = append(img.Constants, c)
	}
	for _, r := range chunk.Spans() {
		img.Spans = append(img.Spans, SpanRun{Start: r.Span.Start, End: r.Span.End, Count: r.Count})
	}
	return img, nil
}

// Chunk rebuilds the executable chunk. The result is validated, so a
// corrupted image fails here rather than in the VM.
func (img *Image) Chunk() (*vm.Chunk, error) {
	consts := make([]vm.Value, len(img.Constants))
	for i, c := range img.Constants {
		v, err := decodeValue(c)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		consts[i] = v
	}
	spans := make([]vm.SpanRun, len(img.Spans))
	for i, r := range img.Spans {
		spans[i] = vm.SpanRun{Span: ast.Span{Start: r.Start, End: r.End}, Count: r.Count}
	}

	chunk, err := vm.NewChunkFrom(img.Code, consts, spans)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if err := chunk.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return chunk, nil
}

// Marshal serializes img to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes and checks an image.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Header.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadImage, img.Header.Magic)
	}
	if img.Header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadImage, img.Header.Version, FormatVersion)
	}
	if _, err := uuid.Parse(img.Header.ID); err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrBadImage, err)
	}
	return &img, nil
}

// Encode is New followed by Marshal.
func Encode(chunk *vm.Chunk, source string) ([]byte, *Header, error) {
	img, err := New(chunk, source)
	if err != nil {
		return nil, nil, err
	}
	data, err := Marshal(img)
	if err != nil {
		return nil, nil, err
	}
	return data, &img.Header, nil
}

// Decode is Unmarshal followed by Chunk.
func Decode(data []byte) (*vm.Chunk, *Header, error) {
	img, err := Unmarshal(data)
	if err != nil {
		return nil, nil, err
	}
	chunk, err := img.Chunk()
	if err != nil {
		return nil, nil, err
	}
	return chunk, &img.Header, nil
}

func encodeValue(v vm.Value) (Constant, error) {
	c := Constant{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case vm.KindUnit:
	case vm.KindInt:
		c.Int, _ = v.AsInt()
	case vm.KindStr:
		c.Str, _ = v.AsStr()
	case vm.KindBool:
		c.Bool, _ = v.AsBool()
	default:
		return Constant{}, fmt.Errorf("%w: %s", ErrUnencodable, v.Kind())
	}
	return c, nil
}

func decodeValue(c Constant) (vm.Value, error) {
	switch vm.Kind(c.Kind) {
	case vm.KindUnit:
		return vm.Unit(), nil
	case vm.KindInt:
		return vm.Int(c.Int), nil
	case vm.KindStr:
		return vm.Str(c.Str), nil
	case vm.KindBool:
		return vm.Bool(c.Bool), nil
	}
	return vm.Value{}, fmt.Errorf("%w: constant kind %d", ErrBadImage, c.Kind)
}
