package rig

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/pkg/scene"
)

// DefaultPruneThreshold is the weight below which an influence is dropped.
const DefaultPruneThreshold = 0.001

// NormalizeWeights rescales each vertex's weight list so it sums to 1. A
// vertex whose weights sum to exactly zero gets the weight distributed
// equally across its existing influences; that is a data quirk worth a
// warning but not an error.
func NormalizeWeights(weights [][]scene.VertexWeight, log *zap.Logger) [][]scene.VertexWeight {
	out := make([][]scene.VertexWeight, len(weights))
	for v, ws := range weights {
		if len(ws) == 0 {
			out[v] = nil
			continue
		}
		sum := 0.0
		for _, w := range ws {
			sum += w.Weight
		}
		norm := make([]scene.VertexWeight, len(ws))
		if sum == 0 {
			if log != nil {
				log.Warn("vertex weights sum to zero, distributing equally", zap.Int("vertex", v))
			}
			equal := 1.0 / float64(len(ws))
			for i, w := range ws {
				norm[i] = scene.VertexWeight{Joint: w.Joint, Weight: equal}
			}
		} else {
			for i, w := range ws {
				norm[i] = scene.VertexWeight{Joint: w.Joint, Weight: w.Weight / sum}
			}
		}
		out[v] = norm
	}
	return out
}

// PruneZeroWeights drops influences below threshold. The single largest
// influence of a vertex is always retained, even when it falls under the
// threshold, so no vertex is left unweighted.
func PruneZeroWeights(weights [][]scene.VertexWeight, threshold float64) [][]scene.VertexWeight {
	out := make([][]scene.VertexWeight, len(weights))
	for v, ws := range weights {
		if len(ws) == 0 {
			out[v] = nil
			continue
		}
		largest := 0
		for i, w := range ws {
			if w.Weight > ws[largest].Weight {
				largest = i
			}
		}
		kept := make([]scene.VertexWeight, 0, len(ws))
		for i, w := range ws {
			if w.Weight >= threshold || i == largest {
				kept = append(kept, w)
			}
		}
		out[v] = kept
	}
	return out
}

// CapInfluences keeps at most limit influences per vertex, preferring the
// heaviest ones. Original influence order is kept among the survivors. A
// limit below 1 leaves the weights untouched.
func CapInfluences(weights [][]scene.VertexWeight, limit int) [][]scene.VertexWeight {
	if limit < 1 {
		return weights
	}
	out := make([][]scene.VertexWeight, len(weights))
	for v, ws := range weights {
		if len(ws) <= limit {
			out[v] = append([]scene.VertexWeight(nil), ws...)
			continue
		}
		idx := make([]int, len(ws))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return ws[idx[a]].Weight > ws[idx[b]].Weight
		})
		keep := make(map[int]bool, limit)
		for _, i := range idx[:limit] {
			keep[i] = true
		}
		kept := make([]scene.VertexWeight, 0, limit)
		for i, w := range ws {
			if keep[i] {
				kept = append(kept, w)
			}
		}
		out[v] = kept
	}
	return out
}

// MaxInfluencesPerVertex scans a skin cluster for the widest per-vertex
// influence list; this is the padding width used when flattening to
// fixed-stride arrays.
func MaxInfluencesPerVertex(cluster *scene.SkinClusterData) int {
	maxN := 0
	for _, ws := range cluster.Weights {
		if len(ws) > maxN {
			maxN = len(ws)
		}
	}
	return maxN
}

// maxWidth returns the widest influence list in an already-processed weight
// table, never less than 1.
func maxWidth(weights [][]scene.VertexWeight) int {
	w := 1
	for _, ws := range weights {
		if len(ws) > w {
			w = len(ws)
		}
	}
	return w
}

// flattenWeights pads every vertex's influences to width with zero-index,
// zero-weight filler and splits the result into 4-wide attribute sets, the
// stride the target format uses for joint and weight vertex attributes.
func flattenWeights(weights [][]scene.VertexWeight, width int) (joints [][][4]uint16, values [][][4]float32) {
	sets := (width + 3) / 4
	joints = make([][][4]uint16, sets)
	values = make([][][4]float32, sets)
	for s := 0; s < sets; s++ {
		joints[s] = make([][4]uint16, len(weights))
		values[s] = make([][4]float32, len(weights))
	}
	for v, ws := range weights {
		for i, w := range ws {
			s, lane := i/4, i%4
			joints[s][v][lane] = uint16(w.Joint)
			values[s][v][lane] = float32(w.Weight)
		}
	}
	return joints, values
}
