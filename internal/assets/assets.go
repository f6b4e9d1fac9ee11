// Package assets reads the static HTML pages and stylesheets served by the site.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kjstillabower/company-portal/internal/validation"
)

const maxStyleNameLen = 128

// ErrNotFound is returned when a requested asset does not exist or its name is rejected.
var ErrNotFound = errors.New("asset not found")

// Server reads pages and stylesheets from two file trees.
type Server struct {
	pages  fs.FS
	styles fs.FS
}

// NewServer returns a Server over the given trees. Tests pass fstest.MapFS.
func NewServer(pages, styles fs.FS) *Server {
	return &Server{pages: pages, styles: styles}
}

// NewDirServer returns a Server reading from directories on disk.
func NewDirServer(pagesDir, stylesDir string) *Server {
	return NewServer(os.DirFS(pagesDir), os.DirFS(stylesDir))
}

// Page returns the named HTML page. Missing pages yield ErrNotFound; other read
// failures are returned wrapped.
func (s *Server) Page(name string) ([]byte, error) {
	return readAsset(s.pages, name)
}

// Style returns a stylesheet by request name. Directory components are stripped
// before lookup so the name cannot leave the styles tree.
func (s *Server) Style(requested string) ([]byte, error) {
	name, err := validation.AssetName(requested, maxStyleNameLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, requested, err)
	}
	return readAsset(s.styles, name)
}

func readAsset(fsys fs.FS, name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read asset %s: %w", name, err)
	}
	return data, nil
}
