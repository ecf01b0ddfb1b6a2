package classifier

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6"
)

// Camera is the image source the service pulls frames from.
type Camera interface {
	Name() string
	// Image captures one frame. mimeType is a hint; cameras may return
	// their native container instead.
	Image(ctx context.Context, mimeType MimeType) (Encoded, error)
}

// DirCamera replays the image files of a directory in lexical order,
// wrapping around at the end. Files added while running are picked up on
// the next capture.
type DirCamera struct {
	name string
	fs   billy.Filesystem
	dir  string

	mu   sync.Mutex
	next int
}

func NewDirCamera(name string, fs billy.Filesystem, dir string) *DirCamera {
	return &DirCamera{name: name, fs: fs, dir: dir}
}

func (c *DirCamera) Name() string { return c.name }

func (c *DirCamera) frames() ([]string, error) {
	entries, err := c.fs.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("while listing frames in '%s': %w", c.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (c *DirCamera) Image(ctx context.Context, _ MimeType) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := c.frames()
	if err != nil {
		return Encoded{}, err
	}
	if len(names) == 0 {
		return Encoded{}, fmt.Errorf("no frames in '%s'", c.dir)
	}
	name := names[c.next%len(names)]
	c.next = (c.next + 1) % len(names)

	f, err := c.fs.Open(c.fs.Join(c.dir, name))
	if err != nil {
		return Encoded{}, fmt.Errorf("while opening frame '%s': %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return Encoded{}, fmt.Errorf("while reading frame '%s': %w", name, err)
	}
	return Encoded{Data: data, MimeType: DetectMimeType(data)}, nil
}
