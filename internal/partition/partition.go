// Package partition classifies bookmarks as tagged or untagged by their
// resolved collection path and streams each one as a markdown record.
package partition

import (
	"context"
	"fmt"
	"io"
	"strings"

	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/hierarchy"
	"raindrop_sync/internal/models"

	"go.uber.org/zap"
)

const (
	UncategorizedPath = "Uncategorized"
	DefaultExcerpt    = "No description available."
	noTags            = "None"
	tagPrefix         = "#"
)

var tagSanitizer = strings.NewReplacer(" ", "_", "/", "_")

// ExcerptSource supplies an excerpt for bookmarks that arrive without one.
type ExcerptSource interface {
	Excerpt(ctx context.Context, link string) (string, error)
}

type Record struct {
	Title    string
	Link     string
	Path     string
	Tags     []string
	Excerpt  string
	// Resolved is false when Path is the Uncategorized fallback.
	Resolved bool
}

func (r Record) Tagged() bool {
	return len(r.Tags) > 0
}

type Stats struct {
	Tagged   int
	Untagged int
	Skipped  int
	Enriched int
}

type Partitioner struct {
	log     *zap.Logger
	excerpt ExcerptSource
}

func NewPartitioner(log *zap.Logger, excerpt ExcerptSource) *Partitioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Partitioner{log: log, excerpt: excerpt}
}

// IsReserved reports whether bookmarks in the collection are never exported.
func IsReserved(collectionID int64) bool {
	return collectionID == models.UnsortedCollectionID || collectionID == models.TrashCollectionID
}

// DeriveTags returns one tag per path segment below the top level.
func DeriveTags(path string) []string {
	if path == UncategorizedPath || !strings.Contains(path, hierarchy.Separator) {
		return nil
	}
	segments := strings.Split(path, hierarchy.Separator)[1:]
	tags := make([]string, 0, len(segments))
	for _, s := range segments {
		tags = append(tags, tagPrefix+tagSanitizer.Replace(s))
	}
	return tags
}

func Render(r Record) string {
	tags := noTags
	if r.Tagged() {
		tags = strings.Join(r.Tags, " ")
	}
	excerpt := r.Excerpt
	if strings.TrimSpace(excerpt) == "" {
		excerpt = DefaultExcerpt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## [%s](%s)\n", r.Title, r.Link)
	fmt.Fprintf(&b, "**Collection**: %s\n", r.Path)
	fmt.Fprintf(&b, "**Tags**: %s\n\n", tags)
	fmt.Fprintf(&b, "%s\n\n", excerpt)
	b.WriteString("---\n\n")
	return b.String()
}

// Classify builds the record for a bookmark. ok is false for reserved collections.
// A bookmark without a collection reference, or whose collection did not
// resolve, gets the Uncategorized path.
func Classify(b models.Bookmark, res *hierarchy.Resolution) (rec Record, ok bool) {
	collectionID, hasRef := b.SourceCollection()
	if hasRef && IsReserved(collectionID) {
		return Record{}, false
	}

	path, resolved := UncategorizedPath, false
	if hasRef && res != nil {
		if p, found := res.Lookup(collectionID); found {
			path, resolved = p, true
		}
	}

	return Record{
		Title:    b.Title,
		Link:     b.Link,
		Path:     path,
		Tags:     DeriveTags(path),
		Excerpt:  b.Excerpt,
		Resolved: resolved,
	}, true
}

// Partition writes each bookmark to tagged or untagged as soon as it is classified.
func (p *Partitioner) Partition(ctx context.Context, bookmarks []models.Bookmark, res *hierarchy.Resolution, tagged, untagged io.Writer) (Stats, error) {
	var stats Stats

	for _, b := range bookmarks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		collectionID, hasRef := b.SourceCollection()
		rec, ok := Classify(b, res)
		if !ok {
			p.log.Info("Ignoring bookmark in reserved collection",
				zap.String("title", b.Title), zap.Int64("collection_id", collectionID))
			stats.Skipped++
			continue
		}
		if !rec.Resolved {
			fields := []zap.Field{zap.String("title", b.Title), zap.String("path", UncategorizedPath)}
			if hasRef {
				fields = append(fields, zap.Int64("collection_id", collectionID))
			} else {
				fields = append(fields, zap.Bool("missing_collection_ref", true))
			}
			p.log.Warn("Bookmark collection not resolved, using fallback path", fields...)
		}

		if p.excerpt != nil && strings.TrimSpace(rec.Excerpt) == "" {
			if text, err := p.excerpt.Excerpt(ctx, rec.Link); err != nil {
				p.log.Warn("Excerpt enrichment failed", zap.String("link", rec.Link), zap.Error(err))
			} else if text != "" {
				rec.Excerpt = text
				stats.Enriched++
			}
		}

		dst, name := untagged, "untagged"
		if rec.Tagged() {
			dst, name = tagged, "tagged"
		}
		if _, err := io.WriteString(dst, Render(rec)); err != nil {
			return stats, apperr.New(apperr.KindOutput, "write "+name+" record", err)
		}
		if rec.Tagged() {
			stats.Tagged++
		} else {
			stats.Untagged++
		}

		p.log.Debug("Bookmark written",
			zap.String("title", rec.Title),
			zap.String("path", rec.Path),
			zap.String("output", name))
	}

	return stats, nil
}
