// Package puzzle implements the sliding-tile board and a single play attempt.
package puzzle

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Blank marks the empty cell.
const Blank = 0

// Board is a square sliding-tile arrangement stored row-major.
// Tiles are numbered 1..n*n-1; the blank is 0.
type Board struct {
	size  int
	tiles []int
}

// Solved returns the winning arrangement for a grid of the given size:
// tiles in order with the blank in the last cell.
func Solved(size int) Board {
	if size < 2 {
		size = 2
	}
	tiles := make([]int, size*size)
	for i := range tiles[:len(tiles)-1] {
		tiles[i] = i + 1
	}
	tiles[len(tiles)-1] = Blank
	return Board{size: size, tiles: tiles}
}

// FromTiles builds a board from a row-major tile list.
func FromTiles(size int, tiles []int) (Board, error) {
	if size < 2 || len(tiles) != size*size {
		return Board{}, fmt.Errorf("need %d tiles for a %dx%d board, got %d", size*size, size, size, len(tiles))
	}
	seen := make([]bool, len(tiles))
	for _, t := range tiles {
		if t < 0 || t >= len(tiles) || seen[t] {
			return Board{}, fmt.Errorf("tiles must be a permutation of 0..%d", len(tiles)-1)
		}
		seen[t] = true
	}
	return Board{size: size, tiles: append([]int(nil), tiles...)}, nil
}

func (b Board) Size() int { return b.size }

// Tiles returns a copy of the row-major tiles.
func (b Board) Tiles() []int { return append([]int(nil), b.tiles...) }

// BlankIndex returns the position of the empty cell.
func (b Board) BlankIndex() int {
	for i, t := range b.tiles {
		if t == Blank {
			return i
		}
	}
	return -1
}

// Neighbors returns the indexes orthogonally adjacent to index, in up, down, left, right order.
func (b Board) Neighbors(index int) []int {
	n := b.size
	row, col := index/n, index%n
	out := make([]int, 0, 4)
	if row > 0 {
		out = append(out, index-n)
	}
	if row < n-1 {
		out = append(out, index+n)
	}
	if col > 0 {
		out = append(out, index-1)
	}
	if col < n-1 {
		out = append(out, index+1)
	}
	return out
}

// Slide moves the tile at index into the blank. It reports false if the
// tile is not adjacent to the blank.
func (b *Board) Slide(index int) bool {
	if index < 0 || index >= len(b.tiles) {
		return false
	}
	blank := b.BlankIndex()
	for _, nb := range b.Neighbors(blank) {
		if nb == index {
			b.tiles[blank], b.tiles[index] = b.tiles[index], Blank
			return true
		}
	}
	return false
}

// Shuffle makes n random legal blank moves, so the result is always solvable.
func (b *Board) Shuffle(rng *rand.Rand, n int) {
	for i := 0; i < n; i++ {
		nbs := b.Neighbors(b.BlankIndex())
		b.Slide(nbs[rng.IntN(len(nbs))])
	}
}

// IsSolved reports whether the board matches the winning arrangement.
func (b Board) IsSolved() bool {
	last := len(b.tiles) - 1
	for i, t := range b.tiles {
		if i == last {
			return t == Blank
		}
		if t != i+1 {
			return false
		}
	}
	return true
}

// String renders the board as a text grid.
func (b Board) String() string {
	width := len(fmt.Sprint(len(b.tiles) - 1))
	var sb strings.Builder
	for i, t := range b.tiles {
		if i > 0 && i%b.size == 0 {
			sb.WriteByte('\n')
		} else if i > 0 {
			sb.WriteByte(' ')
		}
		if t == Blank {
			sb.WriteString(strings.Repeat(".", width))
			continue
		}
		fmt.Fprintf(&sb, "%*d", width, t)
	}
	return sb.String()
}
