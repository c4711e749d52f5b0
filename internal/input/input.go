// Package input expands command arguments that name a file (@file) or
// standard input (-) into the lines they contain.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrStdinReused is returned when "-" appears more than once
var ErrStdinReused = errors.New("stdin can only be read once")

// ExpandArgs replaces "-" with the lines of stdin and "@path" with the lines
// of that file. Other arguments pass through unchanged.
func ExpandArgs(args []string, stdin io.Reader) ([]string, error) {
	var out []string
	stdinUsed := false
	for _, a := range args {
		switch {
		case a == "-":
			if stdinUsed {
				return nil, ErrStdinReused
			}
			stdinUsed = true
			lines, err := ReadLines(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			out = append(out, lines...)
		case strings.HasPrefix(a, "@") && len(a) > 1:
			lines, err := readFile(a[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadLines reads the non-empty lines of r, skipping lines starting with #
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
