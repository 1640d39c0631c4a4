package core

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dataview/internal/schema"
)

// Inferred type tags, in the order a chunk tries them.
const (
	TagInt      = "int64"
	TagFloat    = "float64"
	TagBool     = "bool"
	TagDate     = "datetime64[ns]"
	TagDuration = "timedelta64[ns]"
	TagComplex  = "complex128"
	TagCategory = "category"
	TagObject   = "object"
)

// Category detection: fewer than CategoryRatio distinct values per value,
// over at least CategoryMinValues values.
const (
	CategoryRatio     = 0.1
	CategoryMinValues = 10
)

// DefaultChunkSize is the number of rows analysed per inference task.
const DefaultChunkSize = 50_000

// Inferrer decides a type tag for each column of a table.
type Inferrer struct {
	ChunkSize   int
	Parallelism int
}

// Infer returns the tag of every column. Rows are split into chunks that
// are analysed concurrently; each chunk votes for one tag per column and
// the most voted tag wins.
func (inf Inferrer) Infer(ctx context.Context, header []string, records [][]string) (schema.Raw, error) {
	chunkSize := inf.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	votes := make([]map[string]int, len(header))
	for i := range votes {
		votes[i] = make(map[string]int)
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if inf.Parallelism > 0 {
		g.SetLimit(inf.Parallelism)
	}

	for start := 0; start < len(records); start += chunkSize {
		chunk := records[start:min(start+chunkSize, len(records))]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tags := inferChunk(len(header), chunk)

			mu.Lock()
			defer mu.Unlock()
			for col, tag := range tags {
				if tag != "" {
					votes[col][tag]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return schema.Raw{}, err
	}

	var raw schema.Raw
	for i, name := range header {
		raw.Set(name, pickTag(votes[i]))
	}
	return raw, nil
}

// inferChunk returns one tag per column, "" for columns with no values.
func inferChunk(width int, chunk [][]string) []string {
	tags := make([]string, width)
	values := make([]string, 0, len(chunk))

	for col := 0; col < width; col++ {
		values = values[:0]
		for _, rec := range chunk {
			if col < len(rec) && rec[col] != "" {
				values = append(values, rec[col])
			}
		}
		if len(values) > 0 {
			tags[col] = InferColumn(values)
		}
	}
	return tags
}

// InferColumn returns the tag that fits every value in values.
// values must be non-empty cleaned cells.
func InferColumn(values []string) string {
	switch {
	case all(values, func(s string) bool { _, ok := ParseInt(s); return ok }):
		return TagInt
	case all(values, func(s string) bool { _, ok := ParseFloat(s); return ok }):
		return TagFloat
	case all(values, func(s string) bool { _, ok := ParseBool(s); return ok }):
		return TagBool
	case all(values, func(s string) bool { _, ok := ParseDate(s); return ok }):
		return TagDate
	case all(values, func(s string) bool { _, ok := ParseTimeDelta(s); return ok }):
		return TagDuration
	case all(values, func(s string) bool { _, ok := ParseComplex(s); return ok }):
		return TagComplex
	case isCategorical(values):
		return TagCategory
	default:
		return TagObject
	}
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isCategorical(values []string) bool {
	if len(values) < CategoryMinValues {
		return false
	}
	distinct := make(map[string]struct{})
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	return float64(len(distinct))/float64(len(values)) < CategoryRatio
}

// pickTag returns the most voted tag. A tie between int64 and float64
// goes to float64, any other tie to object. No votes means object.
func pickTag(votes map[string]int) string {
	bestN := 0
	for _, n := range votes {
		bestN = max(bestN, n)
	}
	if bestN == 0 {
		return TagObject
	}

	var leaders []string
	for tag, n := range votes {
		if n == bestN {
			leaders = append(leaders, tag)
		}
	}
	switch {
	case len(leaders) == 1:
		return leaders[0]
	case len(leaders) == 2 && votes[TagInt] == bestN && votes[TagFloat] == bestN:
		return TagFloat
	default:
		return TagObject
	}
}
