package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// collection stores one JSON document per entity under root/name/<id>.json.
// Callers hold the persistence lock.
type collection[T any] struct {
	dir string
	id  func(*T) string
}

func newCollection[T any](root, name string, id func(*T) string) *collection[T] {
	return &collection[T]{dir: path.Join(root, name), id: id}
}

func (c *collection[T]) all() ([]*T, error) {
	files, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	items := make([]*T, 0, len(files))

	for _, file := range files {
		item, err := c.get(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if item != nil {
			items = append(items, item)
		}
	}

	return items, nil
}

// get returns nil without error when the document does not exist.
func (c *collection[T]) get(id string) (*T, error) {
	body, err := os.ReadFile(c.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var item T

	err = json.Unmarshal(body, &item)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &item, nil
}

func (c *collection[T]) put(item *T) error {
	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", c.dir, err)
	}

	id := c.id(item)

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	err = os.WriteFile(c.filePath(id), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return nil
}

// remove reports whether a document was deleted.
func (c *collection[T]) remove(id string) (bool, error) {
	err := os.Remove(c.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return true, nil
}

func (c *collection[T]) filePath(id string) string {
	return filepath.Clean(path.Join(c.dir, filepath.Base(id)+".json"))
}
