package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// DefaultSentinel marks a missing measurement in the wildfire source data.
const DefaultSentinel = -9997

// NAMode decides what happens to missing values.
type NAMode int

const (
	// NAFill replaces missing values with FillValue.
	NAFill NAMode = iota
	// NADrop removes rows with any missing value.
	NADrop
	// NAReject fails on the first missing value.
	NAReject
)

func (m NAMode) String() string {
	switch m {
	case NAFill:
		return "fill"
	case NADrop:
		return "drop"
	case NAReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseNAMode parses "fill", "drop" or "reject".
func ParseNAMode(s string) (NAMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fill", "":
		return NAFill, nil
	case "drop":
		return NADrop, nil
	case "reject":
		return NAReject, nil
	default:
		return NAFill, errors.NewConfigurationError("na_policy.mode", "must be fill, drop or reject", s)
	}
}

// NAPolicy declares how missing values are treated before resampling.
type NAPolicy struct {
	// Sentinels are values that mean "missing" and are turned into NaN.
	Sentinels []float64
	Mode      NAMode
	// FillValue is used by NAFill. For categorical columns it must be a
	// valid level code.
	FillValue float64
	// DropColumns are removed from the schema before anything else.
	DropColumns []string
}

// DefaultNAPolicy replaces DefaultSentinel and fills with zero.
func DefaultNAPolicy() NAPolicy {
	return NAPolicy{Sentinels: []float64{DefaultSentinel}, Mode: NAFill}
}

// Stats describes what Preprocess changed.
type Stats struct {
	SentinelsReplaced int
	Filled            int
	RowsDropped       int
	ColumnsDropped    int
}

// Preprocess applies p to ds and returns a new dataset. Origins are kept.
func Preprocess(ds *Dataset, p NAPolicy) (*Dataset, Stats, error) {
	var st Stats

	schema, kept := ds.schema.Without(p.DropColumns...)
	st.ColumnsDropped = ds.NumFeatures() - len(kept)
	if err := schema.Validate(); err != nil {
		return nil, st, err
	}
	if p.Mode == NAFill {
		for _, c := range schema.Columns {
			if c.Kind == Categorical && (p.FillValue != math.Trunc(p.FillValue) || p.FillValue < 0 || int(p.FillValue) >= len(c.Levels)) {
				return nil, st, errors.NewConfigurationError("na_policy.fill_value", "not a valid level code for categorical column "+c.Name, p.FillValue)
			}
		}
	}

	isSentinel := func(v float64) bool {
		for _, s := range p.Sentinels {
			if v == s {
				return true
			}
		}
		return false
	}
	clean := func(v float64) (float64, bool) {
		if isSentinel(v) {
			st.SentinelsReplaced++
			v = math.NaN()
		}
		return v, math.IsNaN(v)
	}

	b := NewBuilder(schema, ds.NumRows())
	row := make([]float64, len(kept))
	for i := 0; i < ds.NumRows(); i++ {
		missing := 0
		for k, j := range kept {
			v, na := clean(ds.x[i][j])
			if na {
				missing++
			}
			row[k] = v
		}
		target, na := clean(ds.y[i])
		if na {
			missing++
		}

		if missing > 0 {
			switch p.Mode {
			case NAReject:
				return nil, st, errors.NewValueError("dataset.Preprocess", fmt.Sprintf("row %d has %d missing values and na_policy is reject", i, missing))
			case NADrop:
				st.RowsDropped++
				continue
			case NAFill:
				for k := range row {
					if math.IsNaN(row[k]) {
						row[k] = p.FillValue
					}
				}
				if math.IsNaN(target) {
					target = p.FillValue
				}
				st.Filled += missing
			}
		}
		b.Add(row, target, ds.origin[i])
	}
	return b.Build(), st, nil
}
