// Package hash computes content hashes of pico programs.
//
// The hash is taken over a deterministic serialization in which variables
// are replaced by de Bruijn indices and grouping parentheses and braces are
// dropped. Programs that differ only in layout, comments, redundant
// grouping or the names of their bindings hash identically.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
)

// Sum is a program content hash.
type Sum [32]byte

// String returns the hash in hex.
func (s Sum) String() string { return hex.EncodeToString(s[:]) }

// Short returns the first 12 hex digits, enough to tell programs apart
// in logs.
func (s Sum) Short() string { return s.String()[:12] }

// Expr computes the SHA-256 content hash of expr.
func Expr(expr ast.Expr) Sum {
	return sha256.Sum256(Serialize(expr))
}
