package aof

import (
	"fmt"
	"os"

	"gokv/internal/resp"
)

// Load reads every command in the AOF file at path, in order, and
// invokes apply with its argument vector. apply is expected to
// dispatch the command through the same execution path a live
// connection would use, without performing any network I/O. A
// missing file is not an error: a server with no prior AOF history
// simply starts empty.
func Load(path string, apply func(args []string) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("aof: read %s: %w", path, err)
	}

	pos := 0
	for pos < len(data) {
		f, err := resp.Parse(data, &pos)
		if err != nil {
			return fmt.Errorf("aof: malformed entry at offset %d: %w", pos, err)
		}
		if f.Kind != resp.Array {
			return fmt.Errorf("aof: entry at offset %d is not a command array", pos)
		}
		args := make([]string, len(f.Elems))
		for i, e := range f.Elems {
			args[i] = string(e.Str)
		}
		if err := apply(args); err != nil {
			return fmt.Errorf("aof: replaying %v: %w", args, err)
		}
	}
	return nil
}
