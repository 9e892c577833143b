// Package main is the tulip command: it runs TulipScript files, starts a
// REPL, and serves the language server.
//
// Usage:
//
//	tulip [flags] [script [args...]]
//	tulip run [script]
//	tulip lsp [--tcp address]
//	tulip cache list|clear
//	tulip version
//
// Exit codes follow the runtime status: 0 success, 65 compile error,
// 70 runtime error, 74 file error.
package main

import "os"

func main() {
	os.Exit(Execute())
}
