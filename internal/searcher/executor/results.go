package executor

import (
	"sort"

	"github.com/openradio/librarysearch/internal/catalog"
	"github.com/openradio/librarysearch/internal/index"
)

// SegmentKeys groups the keys of a query result by entity kind, each group
// sorted for stable presentation. Callers resolve the keys to entities
// through their own domain stores.
func SegmentKeys(result Result) map[string][]index.Key {
	segmented := make(map[string][]index.Key)
	for key := range result {
		segmented[key.Kind] = append(segmented[key.Kind], key)
	}
	for _, keys := range segmented {
		sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	}
	return segmented
}

// DropIncidentalTracks removes track matches that did not hit on the
// track's own title. A track matching only through its album or artist
// text duplicates the album or artist entity already in the result; quick
// search applies this before segmenting.
func DropIncidentalTracks(result Result) {
	for key, fields := range result {
		if key.Kind == catalog.KindTrack && !fields.Contains("title") {
			delete(result, key)
		}
	}
}

// Kinds are discarded from search results in this order when a limit is
// enforced: tracks first, artists last.
var discardOrder = []string{catalog.KindTrack, catalog.KindAlbum, catalog.KindArtist}

// EnforceLimit trims segmented matches down to at most max total keys,
// discarding whole kinds in discard order. Kinds emptied by trimming are
// removed from the map. A max <= 0 means no limit.
func EnforceLimit(segmented map[string][]index.Key, max int) {
	if max <= 0 {
		return
	}
	total := 0
	for _, keys := range segmented {
		total += len(keys)
	}
	for _, kind := range discardOrder {
		if total <= max {
			return
		}
		keys := segmented[kind]
		drop := total - max
		if drop > len(keys) {
			drop = len(keys)
		}
		segmented[kind] = keys[:len(keys)-drop]
		total -= drop
		if len(segmented[kind]) == 0 {
			delete(segmented, kind)
		}
	}
}
