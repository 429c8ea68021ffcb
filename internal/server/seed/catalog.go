// Package seed holds the starter content every new board is filled with.
package seed

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed images/*.png
var bundled embed.FS

// DefaultProfileName is the name of the profile created for a user that has none.
const DefaultProfileName = "Vaikimisi"

type CategorySeed struct {
	Name  string
	Image string
}

type WordSeed struct {
	Category string
	Word     string
	Image    string
}

// Catalog describes the categories and words of a seeded profile. Words are
// attached by category name.
type Catalog struct {
	Categories []CategorySeed
	Words      []WordSeed
	Images     fs.FS
}

// Default returns the catalog shipped with the server.
func Default() Catalog {
	images, err := fs.Sub(bundled, "images")
	if err != nil {
		panic(err)
	}
	return Catalog{
		Categories: []CategorySeed{
			{Name: "Algused", Image: "beginning.png"},
			{Name: "Tegevused", Image: "activity.png"},
		},
		Words: []WordSeed{
			{Category: "Algused", Word: "Ma tahan", Image: "i_want.png"},
			{Category: "Algused", Word: "Jah", Image: "yes.png"},
			{Category: "Algused", Word: "Ei", Image: "no.png"},
			{Category: "Tegevused", Word: "mängima", Image: "play.png"},
			{Category: "Tegevused", Word: "sööma", Image: "eat.png"},
			{Category: "Tegevused", Word: "magama", Image: "sleep.png"},
		},
		Images: images,
	}
}

// Image reads a bundled image by file name.
func (c Catalog) Image(name string) ([]byte, error) {
	b, err := fs.ReadFile(c.Images, name)
	if err != nil {
		return nil, fmt.Errorf("seed image %q: %w", name, err)
	}
	return b, nil
}
