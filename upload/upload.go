// Package upload stores uploaded run files.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists an uploaded file under the client-supplied name, replacing
// any previous file of the same name.
type Sink interface {
	Save(ctx context.Context, filename string, content []byte) error
}

// DirSink writes files into a local directory
type DirSink struct {
	Dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Save writes content to Dir/filename. The filename is used as given.
func (d *DirSink) Save(ctx context.Context, filename string, content []byte) error {
	dest := filepath.Join(d.Dir, filename)
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}
	return nil
}
