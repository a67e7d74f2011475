package tracemark

import (
	"fmt"
	"path"
	"strings"

	"github.com/jward/tracemark/internal/vault"
)

// Folders is the document layout below the documentation base path. All
// paths are vault relative.
type Folders struct {
	Stories      string
	Solutions    string
	Marker       string
	Comments     string
	TestComments string
	UnitTests    string
}

// NewFolders lays out the six document folders under docPath.
func NewFolders(docPath string) Folders {
	base := strings.Trim(path.Clean("/"+strings.TrimSpace(docPath)), "/")
	join := func(name string) string { return path.Join(base, name) }
	return Folders{
		Stories:      join("stories"),
		Solutions:    join("solutions"),
		Marker:       join("marker"),
		Comments:     join("comments"),
		TestComments: join("test comments"),
		UnitTests:    join("unit tests"),
	}
}

// All returns the folders in creation order.
func (f Folders) All() []string {
	return []string{f.Stories, f.Solutions, f.Marker, f.Comments, f.TestComments, f.UnitTests}
}

// MarkerTable is the path of the flat marker index.
func (f Folders) MarkerTable() string {
	return path.Join(f.Marker, "marker-table.md")
}

// Ensure creates any missing folder.
func (f Folders) Ensure(fs vault.FileStore) error {
	for _, dir := range f.All() {
		if err := fs.Mkdir(dir); err != nil {
			return fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	return nil
}
