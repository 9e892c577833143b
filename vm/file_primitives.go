package vm

import (
	"os"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// File I/O Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerFilePrimitives() {
	vm.DefineNative("read_file", 1, "read_file(path) returns the file's contents.",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsString() || args[0].Str() == "" {
				return Null, Errorf("read_file() requires a path string.")
			}
			content, err := os.ReadFile(args[0].Str())
			if err != nil {
				return Null, Errorf("Cannot read file: %s", err.Error())
			}
			return FromString(string(content)), nil
		})

	// write_file creates parent directories as needed.
	vm.DefineNative("write_file", 2, "write_file(path, content) writes content, replacing the file.",
		func(_ *VM, args []Value) (Value, error) {
			if !args[0].IsString() || args[0].Str() == "" {
				return Null, Errorf("write_file() requires a path string.")
			}
			path := args[0].Str()
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return Null, Errorf("Cannot create directory: %s", err.Error())
				}
			}
			if err := os.WriteFile(path, []byte(Render(args[1])), 0644); err != nil {
				return Null, Errorf("Cannot write file: %s", err.Error())
			}
			return True, nil
		})
}
