// Package vm implements the pico bytecode virtual machine.
//
// This package contains:
//   - Tagged value representation (unit, int, string, bool, function)
//   - Opcode table with operand widths and stack effects
//   - Chunks: code bytes, constant pool and run-length span map
//   - Disassembler
//   - Stack interpreter with typed runtime errors
//
// The machine has no call frames or heap. Expression temporaries and
// let-bound locals share one flat value stack; a local is addressed by its
// absolute stack index.
package vm
