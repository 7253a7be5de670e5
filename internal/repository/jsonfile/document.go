// Package jsonfile stores the user document as a JSON file on local disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/model"
)

// Document is a JSON array of user records at a fixed path.
type Document struct {
	path string
}

// New returns a document stored at path. The file is not touched until Load or Save.
func New(path string) *Document { return &Document{path: path} }

// Path returns the document location.
func (d *Document) Path() string { return d.path }

// Load reads and decodes the document.
func (d *Document) Load(_ context.Context) ([]model.User, error) {
	b, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.path, err)
	}
	return users, nil
}

// Save writes users to a temporary file in the same directory and renames it
// over the document.
func (d *Document) Save(_ context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	b, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return err
	}
	return renameio.WriteFile(d.path, b, 0o600)
}
