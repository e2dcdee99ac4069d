// Package hierarchy rebuilds full collection paths from a flat collection list
// and maps every collection to a composite identifier derived from its path.
package hierarchy

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/models"

	"go.uber.org/zap"
)

const (
	Separator    = "/"
	UnsortedPath = "Unsorted"
)

// UnsortedCompositeID is the composite ID reserved for the Unsorted collection.
var UnsortedCompositeID = strconv.FormatInt(models.UnsortedCollectionID, 10)

// CompositeID is the md5 hex digest of a resolved path. Equal paths collide on purpose.
func CompositeID(path string) string {
	hash := md5.Sum([]byte(path))
	return fmt.Sprintf("%x", hash)
}

type Resolution struct {
	// Paths maps composite ID to the human-readable path.
	Paths map[string]string
	// IDs maps collection ID to composite ID.
	IDs map[int64]string
}

type Entry struct {
	CompositeID string
	Path        string
}

func newResolution() *Resolution {
	return &Resolution{
		Paths: map[string]string{UnsortedCompositeID: UnsortedPath},
		IDs:   map[int64]string{models.UnsortedCollectionID: UnsortedCompositeID},
	}
}

// Lookup returns the path of a collection and whether it was resolved.
func (r *Resolution) Lookup(collectionID int64) (string, bool) {
	composite, ok := r.IDs[collectionID]
	if !ok {
		return "", false
	}
	path, ok := r.Paths[composite]
	return path, ok
}

// Sorted lists the distinct paths ordered by path.
func (r *Resolution) Sorted() []Entry {
	entries := make([]Entry, 0, len(r.Paths))
	for id, path := range r.Paths {
		entries = append(entries, Entry{CompositeID: id, Path: path})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path == entries[j].Path {
			return entries[i].CompositeID < entries[j].CompositeID
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}

type Resolver struct {
	log *zap.Logger
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log}
}

// Resolve walks each collection's parent chain up to a root. A parent that is
// not in the fetched set ends the walk as if the node were top-level. A cycle
// in the parent graph fails the whole resolution.
func (r *Resolver) Resolve(collections []models.Collection) (*Resolution, error) {
	index := make(map[int64]models.Collection, len(collections))
	for _, c := range collections {
		if _, dup := index[c.ID]; dup {
			r.log.Warn("Duplicate collection ID, keeping first occurrence",
				zap.Int64("id", c.ID), zap.String("title", c.Title))
			continue
		}
		index[c.ID] = c
	}

	res := newResolution()
	memo := make(map[int64]string, len(collections))

	for _, c := range collections {
		path, err := r.pathOf(c, index, memo)
		if err != nil {
			return nil, err
		}
		composite := CompositeID(path)
		res.Paths[composite] = path
		res.IDs[c.ID] = composite
	}

	r.log.Info("Resolved collection paths",
		zap.Int("collections", len(collections)),
		zap.Int("distinct_paths", len(res.Paths)-1))
	return res, nil
}

func (r *Resolver) pathOf(c models.Collection, index map[int64]models.Collection, memo map[int64]string) (string, error) {
	if path, ok := memo[c.ID]; ok {
		return path, nil
	}

	var (
		titles  []string
		chain   []int64
		visited = make(map[int64]bool)
		prefix  string
		cur     = c
	)

	for {
		if visited[cur.ID] {
			return "", apperr.Newf(apperr.KindCyclicHierarchy, "resolve collection path",
				"collection %q (ID %d) is part of a parent cycle: %s",
				c.DisplayTitle(), c.ID, formatChain(append(chain, cur.ID)))
		}
		visited[cur.ID] = true
		chain = append(chain, cur.ID)
		titles = append(titles, cur.DisplayTitle())

		parentID, ok := cur.ParentID()
		if !ok {
			r.log.Debug("No parent ID, treating as top-level",
				zap.String("title", cur.DisplayTitle()), zap.Int64("id", cur.ID))
			break
		}
		parent, found := index[parentID]
		if !found {
			r.log.Warn("Parent collection not found, treating as top-level",
				zap.String("title", cur.DisplayTitle()),
				zap.Int64("id", cur.ID),
				zap.Int64("parent_id", parentID))
			break
		}
		if path, ok := memo[parent.ID]; ok {
			prefix = path
			break
		}
		cur = parent
	}

	// titles run leaf-first; chain[i] owns titles[i].
	for i := len(titles) - 1; i >= 0; i-- {
		if prefix == "" {
			prefix = titles[i]
		} else {
			prefix = prefix + Separator + titles[i]
		}
		memo[chain[i]] = prefix
	}

	r.log.Debug("Resolved path",
		zap.String("title", c.DisplayTitle()), zap.Int64("id", c.ID), zap.String("path", prefix))
	return prefix, nil
}

func formatChain(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " -> ")
}
