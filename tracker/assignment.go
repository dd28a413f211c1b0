package tracker

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jonoton/mcmot/envelope"
)

// iou computes intersection-over-union of two normalized bounding boxes,
// the same formula as other_examples/adverant-.../multi_object_tracker.go's
// computeIOU.
func iou(a, b envelope.BBox) float64 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X+a.W, a.Y+a.H
	bx1, by1, bx2, by2 := b.X, b.Y, b.X+b.W, b.Y+b.H

	ix1 := math.Max(ax1, bx1)
	iy1 := math.Max(ay1, by1)
	ix2 := math.Min(ax2, bx2)
	iy2 := math.Min(ay2, by2)

	iw := math.Max(0, ix2-ix1)
	ih := math.Max(0, iy2-iy1)
	interArea := iw * ih

	unionArea := a.W*a.H + b.W*b.H - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}

// assignment is the result of matching tracks to detections.
type assignment struct {
	trackToDetection map[int]int
	unmatchedTracks  []int
	unmatchedDets    []int
}

// assign builds a class-gated 1-IoU cost matrix between tracks and
// detections and solves it via the Hungarian algorithm, rejecting any
// pairing whose IoU falls below threshold, generalizing
// multi_object_tracker.go's greedy per-track best-IoU search into an
// optimal assignment (gonum.org/v1/gonum/mat backs the cost matrix, as in
// other_examples/swdee-go-rknnlite__strack.go's covariance use of gonum).
func assign(tracks []*Track, detections []envelope.Detection, threshold float64) assignment {
	result := assignment{trackToDetection: make(map[int]int)}

	if len(tracks) == 0 || len(detections) == 0 {
		for i := range tracks {
			result.unmatchedTracks = append(result.unmatchedTracks, i)
		}
		for j := range detections {
			result.unmatchedDets = append(result.unmatchedDets, j)
		}
		return result
	}

	n := len(tracks)
	m := len(detections)
	size := n
	if m > size {
		size = m
	}

	const unmatchedCost = 10.0
	cost := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i >= n || j >= m {
				cost.Set(i, j, unmatchedCost)
				continue
			}
			if tracks[i].ClassID != detections[j].ClassID {
				cost.Set(i, j, unmatchedCost)
				continue
			}
			score := iou(tracks[i].BBox(), detections[j].BBox)
			if score < threshold {
				cost.Set(i, j, unmatchedCost)
				continue
			}
			cost.Set(i, j, 1-score)
		}
	}

	colForRow := hungarian(cost, size)

	matchedDet := make(map[int]bool)
	matchedTrack := make(map[int]bool)
	for i := 0; i < n; i++ {
		j := colForRow[i]
		if j < 0 || j >= m {
			continue
		}
		if cost.At(i, j) >= unmatchedCost {
			continue
		}
		result.trackToDetection[i] = j
		matchedTrack[i] = true
		matchedDet[j] = true
	}

	for i := 0; i < n; i++ {
		if !matchedTrack[i] {
			result.unmatchedTracks = append(result.unmatchedTracks, i)
		}
	}
	for j := 0; j < m; j++ {
		if !matchedDet[j] {
			result.unmatchedDets = append(result.unmatchedDets, j)
		}
	}

	return result
}

// hungarian solves the square assignment problem for cost (size x size)
// via the classic O(n^3) Jonker-ish augmenting-path formulation, returning
// for each row i its assigned column.
func hungarian(cost *mat.Dense, n int) []int {
	const inf = 1e9
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for k := range minv {
			minv[k] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost.At(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	colForRow := make([]int, n)
	for i := range colForRow {
		colForRow[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			colForRow[p[j]-1] = j - 1
		}
	}
	return colForRow
}
