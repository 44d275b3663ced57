package panel

import "fmt"

// DimensionSpec is a caller-supplied grouping request: a hierarchy domain, a
// requested level, and an optional partial path prefix for drill-down.
type DimensionSpec struct {
	Domain Domain   `json:"domain"`
	Level  Level    `json:"level"`
	Path   []string `json:"path,omitempty"`
}

// Dimension is a resolved DimensionSpec: a concrete grouping column over
// transaction lines. Resolution is pure; a Dimension is safe to share.
type Dimension struct {
	Domain Domain
	Level  Level
	Path   []string

	levelIdx int
}

// ResolveDimension resolves a spec to its effective grouping dimension.
//
// The effective grouping level is one level deeper than the deepest non-empty
// prefix entry; with no prefix the requested level is used directly. A path
// that already fixes l4 has nothing deeper to group by and is invalid.
func ResolveDimension(spec DimensionSpec) (Dimension, error) {
	switch spec.Domain {
	case DomainProduct, DomainCommerce:
	default:
		return Dimension{}, fmt.Errorf("%w: unknown domain %q", ErrInvalidDimension, spec.Domain)
	}

	reqIdx, ok := spec.Level.Index()
	if !ok {
		return Dimension{}, fmt.Errorf("%w: unknown level %q", ErrInvalidDimension, spec.Level)
	}

	// Only the contiguous non-empty prefix counts; a blank entry ends it.
	prefix := make([]string, 0, len(spec.Path))
	for _, v := range spec.Path {
		if v == "" {
			break
		}
		prefix = append(prefix, v)
	}

	idx := reqIdx
	if len(prefix) > 0 {
		idx = len(prefix)
		if idx > 3 {
			return Dimension{}, fmt.Errorf("%w: path already fixes the deepest level", ErrInvalidDimension)
		}
	}

	level, _ := LevelAt(idx)
	return Dimension{
		Domain:   spec.Domain,
		Level:    level,
		Path:     prefix,
		levelIdx: idx,
	}, nil
}

// path returns the line's category path for the dimension's domain.
func (d Dimension) path(l TransactionLine) CategoryPath {
	if d.Domain == DomainCommerce {
		return l.Commerce
	}
	return l.Product
}

// ValueOf returns the line's value at the effective grouping level,
// normalized to UnknownValue when blank.
func (d Dimension) ValueOf(l TransactionLine) string {
	return d.path(l).At(d.levelIdx)
}

// MatchesPath reports whether the line falls under the dimension's path
// prefix. Lines carrying UnknownValue at a compared level always pass:
// UNKNOWN is never dropped by filters.
func (d Dimension) MatchesPath(l TransactionLine) bool {
	cp := d.path(l)
	for i, want := range d.Path {
		got := cp.At(i)
		if got != want && got != UnknownValue {
			return false
		}
	}
	return true
}

// DefaultDimension is the grouping used when a request supplies none:
// product hierarchy at the top level.
func DefaultDimension() Dimension {
	d, _ := ResolveDimension(DimensionSpec{Domain: DomainProduct, Level: LevelL1})
	return d
}
