package signal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

// FilePublisher writes the Set as a JSON array to Path. The array is written to
// a temporary file in the same directory, synced, then renamed over Path, so a
// reader sees either the previous complete Set or the new one.
type FilePublisher struct {
	Path string
}

// NewFilePublisher creates a publisher for path.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{Path: path}
}

func (p *FilePublisher) Publish(ctx context.Context, set Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pairs := set.Pairs
	if pairs == nil {
		pairs = []Pair{}
	}
	for _, pair := range pairs {
		if err := pair.Validate(); err != nil {
			return err
		}
	}
	data, err := sonnet.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("encode signal set: %w", err)
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create signal dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	committed = true
	return nil
}

// FileReader loads the Set written by FilePublisher. A missing file is an
// empty Set, since the screener may not have finished its first cycle.
type FileReader struct {
	Path string
}

// NewFileReader creates a reader for path.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

func (r *FileReader) Load(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return Set{}, err
	}
	f, err := os.Open(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return Set{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Set{}, fmt.Errorf("stat artifact: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return Set{}, fmt.Errorf("read artifact: %w", err)
	}
	var pairs []Pair
	if err := sonnet.Unmarshal(data, &pairs); err != nil {
		return Set{}, fmt.Errorf("decode artifact: %w", err)
	}
	return Set{Pairs: pairs, PublishedAt: info.ModTime()}, nil
}
