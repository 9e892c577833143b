package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/tulip/compiler"
	runtime "github.com/chazu/tulip/lib/runtime"
)

const (
	promptFirst = ">>> "
	promptMore  = "... "
	replUnit    = "<repl>"
)

type repl struct {
	rt     *runtime.Runtime
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newREPL(rt *runtime.Runtime, in io.Reader, out, errOut io.Writer) *repl {
	return &repl{rt: rt, in: in, out: out, errOut: errOut}
}

// Run reads input until EOF or "exit". Each complete chunk is interpreted
// and its non-null result echoed.
func (r *repl) Run() error {
	fmt.Fprintf(r.out, "tulip %s REPL (Ctrl+D or 'exit' to quit, ':help' for commands)\n", runtime.Version)

	scanner := bufio.NewScanner(r.in)
	var buffer strings.Builder
	depth := 0

	for {
		if depth > 0 {
			fmt.Fprint(r.out, promptMore)
		} else {
			fmt.Fprint(r.out, promptFirst)
		}

		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		if buffer.Len() == 0 {
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}
			if strings.HasPrefix(line, ":") {
				r.command(line)
				continue
			}
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		depth += braceDelta(line)
		if depth < 0 {
			fmt.Fprintln(r.errOut, styles.Error.Render("unmatched closing brace '}'"))
			buffer.Reset()
			depth = 0
			continue
		}
		if depth > 0 {
			continue
		}

		r.eval(buffer.String())
		buffer.Reset()
	}

	fmt.Fprintln(r.out)
	return scanner.Err()
}

func (r *repl) eval(source string) {
	out := r.rt.InterpretResult(source, replUnit)
	defer out.Payload.Release()

	if !out.OK() {
		reportFailure(r.errOut, out)
		return
	}
	if text := out.Payload.String(); text != "null" {
		fmt.Fprintln(r.out, styles.Result.Render(text))
	}
}

// command handles REPL meta-commands.
func (r *repl) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :globals          List defined globals")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":globals":
		fmt.Fprintln(r.out, strings.Join(r.rt.Globals(), " "))
	default:
		fmt.Fprintln(r.errOut, styles.Help.Render("Unknown command: "+cmd+" (type :help)"))
	}
}

// braceDelta counts '{' minus '}' tokens in line. Braces inside strings and
// comments do not count.
func braceDelta(line string) int {
	n := 0
	for _, tok := range compiler.Tokenize(line) {
		switch tok.Type {
		case compiler.TokenLBrace:
			n++
		case compiler.TokenRBrace:
			n--
		}
	}
	return n
}
