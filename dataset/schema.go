// Package dataset holds tabular regression data: named continuous or
// categorical feature columns plus one continuous target, with every row
// remembering where it came from.
package dataset

import (
	"strings"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Kind is the type of a feature column.
type Kind int

const (
	// Continuous columns hold real values.
	Continuous Kind = iota
	// Categorical columns hold integer codes into Column.Levels.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column describes one feature.
type Column struct {
	Name   string
	Kind   Kind
	Levels []string // categorical only; code i means Levels[i]
}

// Schema is the ordered feature columns plus the target name.
type Schema struct {
	Columns []Column
	Target  string
}

// Validate checks that names are unique and non-empty and that the target
// is not also a feature.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Target) == "" {
		return errors.NewConfigurationError("target", "target column name is required", s.Target)
	}
	if len(s.Columns) == 0 {
		return errors.NewConfigurationError("columns", "at least one feature column is required", 0)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return errors.NewConfigurationError("columns", "feature column without a name", c.Name)
		}
		if c.Name == s.Target {
			return errors.NewConfigurationError("columns", "target must not be a feature column", c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return errors.NewConfigurationError("columns", "duplicate feature column", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Kind == Categorical && len(c.Levels) == 0 {
			return errors.NewConfigurationError("columns", "categorical column has no levels", c.Name)
		}
	}
	return nil
}

// NumFeatures returns the number of feature columns.
func (s Schema) NumFeatures() int { return len(s.Columns) }

// Index returns the position of the named feature, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ContinuousIndices returns the positions of continuous columns.
func (s Schema) ContinuousIndices() []int { return s.indices(Continuous) }

// CategoricalIndices returns the positions of categorical columns.
func (s Schema) CategoricalIndices() []int { return s.indices(Categorical) }

func (s Schema) indices(k Kind) []int {
	var out []int
	for i, c := range s.Columns {
		if c.Kind == k {
			out = append(out, i)
		}
	}
	return out
}

// Names returns the feature names in column order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Without returns a copy of s with the named columns removed, plus the
// kept column positions in the original schema.
func (s Schema) Without(names ...string) (Schema, []int) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := Schema{Target: s.Target}
	var kept []int
	for i, c := range s.Columns {
		if _, ok := drop[c.Name]; ok {
			continue
		}
		out.Columns = append(out.Columns, c)
		kept = append(kept, i)
	}
	return out, kept
}
