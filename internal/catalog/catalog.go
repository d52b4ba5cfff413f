// Package catalog reads and writes the image collections that compression
// jobs operate on.
package catalog

import (
	"context"
	"errors"
	"path/filepath"
)

// ErrNotFound is returned when a collection ID is unknown.
var ErrNotFound = errors.New("collection not found")

// Image is one source image in a collection. Thumbnail holds the file name of
// the current thumbnail inside the collection's thumbnails directory.
type Image struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Title     string `json:"title,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Collection is an ordered group of images stored under one directory.
type Collection struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Store is the persistence gateway for the catalog.
type Store interface {
	ReadAll(ctx context.Context) ([]Collection, error)
	WriteAll(ctx context.Context, collections []Collection) error
}

// Find returns the collection with the given ID.
func Find(collections []Collection, id string) (Collection, error) {
	for _, c := range collections {
		if c.ID == id {
			return c, nil
		}
	}
	return Collection{}, ErrNotFound
}

// Load reads the catalog and returns the collection with the given ID.
func Load(ctx context.Context, s Store, id string) (Collection, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return Collection{}, err
	}
	return Find(all, id)
}

// Merge copies the generated fields (dimensions and thumbnail) of updated
// into the matching images of collections, leaving every other field and
// every image absent from updated as it was. It reports whether the
// collection was present.
func Merge(collections []Collection, updated Collection) bool {
	for i := range collections {
		if collections[i].ID != updated.ID {
			continue
		}
		byID := make(map[string]Image, len(updated.Images))
		for _, im := range updated.Images {
			byID[im.ID] = im
		}
		for j, im := range collections[i].Images {
			u, ok := byID[im.ID]
			if !ok {
				continue
			}
			collections[i].Images[j].Width = u.Width
			collections[i].Images[j].Height = u.Height
			collections[i].Images[j].Thumbnail = u.Thumbnail
		}
		return true
	}
	return false
}

// Layout maps collections onto the media directory tree:
// <root>/<collection>/<file> for sources and <root>/<collection>/thumbnails for thumbnails.
type Layout struct {
	Root string
}

const thumbnailsDir = "thumbnails"

func (l Layout) CollectionDir(collectionID string) string {
	return filepath.Join(l.Root, filepath.Base(collectionID))
}

func (l Layout) SourcePath(collectionID, filename string) string {
	return filepath.Join(l.CollectionDir(collectionID), filepath.Base(filename))
}

func (l Layout) ThumbDir(collectionID string) string {
	return filepath.Join(l.CollectionDir(collectionID), thumbnailsDir)
}
