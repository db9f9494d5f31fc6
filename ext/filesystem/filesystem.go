// Package filesystem reaches files through the host. Paths are relative
// to the host's sandbox root.
package filesystem

import (
	"context"
	"time"

	"ezi-bridge/ext"
)

const Namespace = "filesystem"

type Stat struct {
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// PathArgs names one file.
type PathArgs struct {
	Path string `json:"path"`
}

// WriteArgs carries file contents, base64 encoded on the wire.
type WriteArgs struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

type FS struct {
	c ext.Caller
}

func New(c ext.Caller) *FS {
	return &FS{c: c}
}

func (f *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := f.c.Invoke(ctx, Namespace, "readFile", PathArgs{Path: path}, &data)
	return data, err
}

func (f *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	return f.c.Invoke(ctx, Namespace, "writeFile", WriteArgs{Path: path, Data: data}, nil)
}

func (f *FS) DeleteFile(ctx context.Context, path string) error {
	return f.c.Invoke(ctx, Namespace, "deleteFile", PathArgs{Path: path}, nil)
}

func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := f.c.Invoke(ctx, Namespace, "isExists", PathArgs{Path: path}, &ok)
	return ok, err
}

func (f *FS) Stat(ctx context.Context, path string) (Stat, error) {
	var st Stat
	err := f.c.Invoke(ctx, Namespace, "readFileStats", PathArgs{Path: path}, &st)
	return st, err
}
