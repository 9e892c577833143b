// Package vm implements the TulipScript virtual machine.
//
// This package contains:
//   - the tagged value representation and heap objects
//   - bytecode definitions, builder and disassembler
//   - the bytecode interpreter with closures over heap environments
//   - the builtin function library
//   - CBOR encoding of compiled functions
//
// The compiler lives in package compiler and is installed with UseCompiler.
package vm
