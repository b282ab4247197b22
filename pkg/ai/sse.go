package ai

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxStreamLine = 1 << 20

// errStreamDone stops scanning once the provider sends its terminal event.
var errStreamDone = errors.New("stream done")

// scanLines calls fn for each non-empty line of r until fn returns an error
// or the context is cancelled. errStreamDone from fn ends the scan
// successfully; reaching EOF first yields ErrIncompleteStream.
func scanLines(ctx context.Context, r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			if errors.Is(err, errStreamDone) {
				return nil
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrIncompleteStream
}

// scanSSE is scanLines restricted to "data:" payloads of a server-sent
// event stream.
func scanSSE(ctx context.Context, r io.Reader, fn func(data string) error) error {
	return scanLines(ctx, r, func(line string) error {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			return nil
		}
		return fn(strings.TrimSpace(data))
	})
}
