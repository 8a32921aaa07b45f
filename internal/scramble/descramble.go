package scramble

import (
	"image"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remapTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scramble_remap_total",
		Help: "Tile remap calls by direction and outcome",
	}, []string{"direction", "outcome"})

	remapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scramble_remap_duration_seconds",
		Help:    "Tile remap duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"direction"})
)

// Move copies one tile: From is read from the source image, To is written on
// the surface. Both are in natural image coordinates.
type Move struct {
	From image.Rectangle
	To   image.Rectangle
}

// DescrambleMoves returns the gridSize^2 tile copies that undo the shuffle for
// a width x height image. ok is false when the inputs mean "not scrambled":
// gridSize below 2, a non-finite seed, or an image smaller than the grid.
func DescrambleMoves(gridSize int, seed float64, width, height int) ([]Move, bool) {
	perm, ok := permutationFor(gridSize, seed, width, height)
	if !ok {
		return nil, false
	}
	inv := InvertPermutation(perm)
	moves := make([]Move, len(perm))
	for orig := range moves {
		moves[orig] = Move{
			From: TileRect(inv[orig], gridSize, width, height),
			To:   TileRect(orig, gridSize, width, height),
		}
	}
	return moves, true
}

// ScrambleMoves is the forward direction: scrambled slot d receives original
// tile perm[d].
func ScrambleMoves(gridSize int, seed float64, width, height int) ([]Move, bool) {
	perm, ok := permutationFor(gridSize, seed, width, height)
	if !ok {
		return nil, false
	}
	moves := make([]Move, len(perm))
	for slot := range moves {
		moves[slot] = Move{
			From: TileRect(perm[slot], gridSize, width, height),
			To:   TileRect(slot, gridSize, width, height),
		}
	}
	return moves, true
}

func permutationFor(gridSize int, seed float64, width, height int) ([]int, bool) {
	if gridSize < 2 {
		return nil, false
	}
	s, ok := ToInt32(seed)
	if !ok {
		return nil, false
	}
	if width < gridSize || height < gridSize {
		return nil, false
	}
	return GeneratePermutation(gridSize*gridSize, s), true
}

// Descramble redraws src onto dst with every tile moved back to its original
// slot. Inputs that mean "not scrambled" leave dst untouched and return false;
// callers then render src as-is.
func Descramble(src image.Image, dst Surface, gridSize int, seed float64) bool {
	return remap("descramble", src, dst, gridSize, seed, DescrambleMoves)
}

// Scramble is the inverse of Descramble, used for uploads and fixtures.
func Scramble(src image.Image, dst Surface, gridSize int, seed float64) bool {
	return remap("scramble", src, dst, gridSize, seed, ScrambleMoves)
}

type movesFunc func(gridSize int, seed float64, width, height int) ([]Move, bool)

func remap(direction string, src image.Image, dst Surface, gridSize int, seed float64, plan movesFunc) bool {
	if src == nil || dst == nil {
		remapTotal.WithLabelValues(direction, "skipped").Inc()
		return false
	}
	start := time.Now()
	bounds := src.Bounds()
	moves, ok := plan(gridSize, seed, bounds.Dx(), bounds.Dy())
	if !ok {
		remapTotal.WithLabelValues(direction, "skipped").Inc()
		return false
	}
	dst.Resize(bounds.Dx(), bounds.Dy())
	for _, mv := range moves {
		dst.CopyTile(src, mv.From.Add(bounds.Min), mv.To)
	}
	remapTotal.WithLabelValues(direction, "remapped").Inc()
	remapDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	return true
}
