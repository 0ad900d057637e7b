package state

import (
	"fmt"
	"time"
)

// PairKey identifies one pair position. Y always sorts before X.
type PairKey struct {
	Y string
	X string
}

func (k PairKey) String() string { return k.Y + "/" + k.X }

// Less orders keys by Y then X.
func (k PairKey) Less(o PairKey) bool {
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.X < o.X
}

// Direction is the side of the spread a position holds.
type Direction int

const (
	// LongSpread is long y, short x.
	LongSpread Direction = iota + 1
	// ShortSpread is short y, long x.
	ShortSpread
)

func (d Direction) String() string {
	switch d {
	case LongSpread:
		return "long_spread"
	case ShortSpread:
		return "short_spread"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "long_spread":
		return LongSpread, nil
	case "short_spread":
		return ShortSpread, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// Position is an open pair trade. Fields are fixed at entry.
type Position struct {
	Key       PairKey
	Direction Direction
	QtyY      float64
	QtyX      float64
	PriceY    float64
	PriceX    float64
	EntryTime time.Time

	HedgeRatio float64
	MeanSpread float64
	StdSpread  float64
}
