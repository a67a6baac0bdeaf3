// Package catalog holds the music-library entities the search index refers
// to: artists, albums, and tracks. The index never owns entity data; it
// stores catalog keys and resolves them back through this package's types.
//
// Any entity can opt into indexing by implementing Indexable. The indexer
// needs no compile-time knowledge of entity types beyond that capability.
package catalog

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/indexer/tokenizer"
)

// Entity kind names, as stored in posting records.
const (
	KindArtist = "Artist"
	KindAlbum  = "Album"
	KindTrack  = "Track"
)

// CompilationArtistName is the synthetic label shown for compilations. It
// is deliberately never indexed; searching for "various" should not return
// every compilation in the library.
const CompilationArtistName = "Various Artists"

const missingArtistName = "*MISSING ARTIST*"

// Indexable is the capability an entity offers to the indexer: a stable
// datastore key plus the text fields worth indexing, keyed by field name.
type Indexable interface {
	SearchKey() index.Key
	SearchFields() map[string]string
}

// Artist is an individual musician or a band.
type Artist struct {
	ID   string
	Name string
}

// NewArtist creates an Artist with an automatically-assigned key derived
// from the name.
func NewArtist(name string) *Artist {
	hashed := sha1.Sum([]byte(name))
	return &Artist{
		ID:   fmt.Sprintf("artist:%x", hashed),
		Name: name,
	}
}

func (a *Artist) SearchKey() index.Key {
	return index.Key{Kind: KindArtist, ID: a.ID}
}

func (a *Artist) SearchFields() map[string]string {
	return map[string]string{
		"name": a.Name,
	}
}

// Album is an album in the station's digital library, a series of numbered
// tracks.
type Album struct {
	ID      string
	Title   string
	AlbumID int64

	// IsCompilation marks albums containing songs by many different
	// artists. AlbumArtist is set if and only if IsCompilation is false.
	IsCompilation bool
	AlbumArtist   *Artist

	NumTracks  int
	ImportedAt time.Time
}

// NewAlbum creates an Album keyed by its library-assigned album ID.
func NewAlbum(title string, albumID int64) *Album {
	return &Album{
		ID:      fmt.Sprintf("a:%x", albumID),
		Title:   title,
		AlbumID: albumID,
	}
}

// ArtistName returns a human-readable string describing the album's
// creator.
func (al *Album) ArtistName() string {
	if al.IsCompilation {
		return CompilationArtistName
	}
	if al.AlbumArtist != nil {
		return al.AlbumArtist.Name
	}
	return missingArtistName
}

func (al *Album) SearchKey() index.Key {
	return index.Key{Kind: KindAlbum, ID: al.ID}
}

// SearchFields indexes the album's title and, for single-artist albums,
// the denormalized artist name under the album's own key. The compilation
// label is skipped entirely.
func (al *Album) SearchFields() map[string]string {
	fields := map[string]string{
		"title": tokenizer.StripTags(al.Title),
	}
	if !al.IsCompilation && al.AlbumArtist != nil {
		fields["artist"] = al.AlbumArtist.Name
	}
	return fields
}

// Track is a single track in the digital library. Its audio lives in a
// separate MP3 file identified by UFID.
type Track struct {
	ID    string
	UFID  string
	Title string
	Album *Album

	// TrackArtist must be set when the owning album is a compilation and
	// may be set otherwise.
	TrackArtist *Artist

	TrackNum   int
	DurationMS int
}

// NewTrack creates a Track keyed by its UFID.
func NewTrack(title, ufid string, album *Album) *Track {
	return &Track{
		ID:    "t:" + ufid,
		UFID:  ufid,
		Title: title,
		Album: album,
	}
}

// ArtistName returns the name of the track's creator, falling back to the
// owning album's artist.
func (t *Track) ArtistName() string {
	if t.TrackArtist != nil {
		return t.TrackArtist.Name
	}
	if t.Album != nil {
		return t.Album.ArtistName()
	}
	return missingArtistName
}

func (t *Track) SearchKey() index.Key {
	return index.Key{Kind: KindTrack, ID: t.ID}
}

// SearchFields indexes the track's title, its album title, and its artist
// name, all under the track's own key. An artist name that resolves to the
// compilation label is skipped.
func (t *Track) SearchFields() map[string]string {
	fields := map[string]string{
		"title": tokenizer.StripTags(t.Title),
	}
	if t.Album != nil {
		fields["album"] = tokenizer.StripTags(t.Album.Title)
	}
	if name := t.ArtistName(); name != CompilationArtistName {
		fields["artist"] = name
	}
	return fields
}
