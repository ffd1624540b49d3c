package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxResponseSize bounds how much data a single fetch may return (16MB).
const maxResponseSize int64 = 16 << 20

// FileConnector reads a local JSON file.
type FileConnector struct {
	path string
}

// NewFileConnector creates a connector for the JSON file at path.
func NewFileConnector(path string) *FileConnector {
	return &FileConnector{path: path}
}

// Fetch reads and decodes the file.
func (c *FileConnector) Fetch(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.path, Err: err}
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.path, Err: err}
	}
	defer func() { _ = f.Close() }()

	data, err := readLimited(f)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.path, Err: err}
	}
	v, err := decodeJSON(data)
	if err != nil {
		return nil, &FetchError{Op: opFetch, Target: c.path, Err: err}
	}
	return v, nil
}

// HealthCheck reports whether the file exists. The contents are not decoded.
func (c *FileConnector) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &FetchError{Op: opHealth, Target: c.path, Err: err}
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return &FetchError{Op: opHealth, Target: c.path, Err: err}
	}
	if info.IsDir() {
		return &FetchError{Op: opHealth, Target: c.path, Err: fmt.Errorf("%s is a directory", c.path)}
	}
	return nil
}

// String describes the connector.
func (c *FileConnector) String() string {
	return "File " + c.path
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, maxResponseSize)
	}
	return data, nil
}

func decodeJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}
