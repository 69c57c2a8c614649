// Package compiler turns snippet text into loadable units.
//
// A snippet is the body of an async function taking (input, api). The text
// is wrapped, parsed and checked to still be exactly that one function
// before it is compiled; code that closes the body early is rejected with
// the rest of the syntax errors. Compilation never executes snippet code.
package compiler
