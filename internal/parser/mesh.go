package parser

import (
	"fmt"
	"math"

	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
	"github.com/mikestumbo/sceneport/pkg/transform"
)

// ExtractMesh extracts a single mesh by name. Face winding is preserved
// exactly as authored. Per-face-vertex normal samples are averaged at each
// shared position; this smooths intentional hard edges and is kept as-is.
func (p *Parser) ExtractMesh(doc *source.Document, name string) (*scene.MeshData, error) {
	rec := doc.Mesh(name)
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrMeshNotFound, name)
	}

	mesh := &scene.MeshData{
		Name:          rec.Name,
		TransformName: rec.Transform,
	}
	if mesh.TransformName == "" {
		mesh.TransformName = rec.Name + "_transform"
	}

	var err error
	if mesh.Vertices, err = vec3Slice(rec.Vertices); err != nil {
		return nil, fmt.Errorf("mesh %q vertices: %w", name, err)
	}
	mesh.FaceCounts = append([]int(nil), rec.FaceCounts...)
	mesh.FaceIdx = append([]int(nil), rec.FaceIndices...)

	if mesh.WorldMat, err = mat16(rec.WorldMatrix); err != nil {
		return nil, fmt.Errorf("mesh %q world matrix: %w", name, err)
	}

	if len(rec.UVs) > 0 {
		if mesh.UVs, err = vec2Slice(rec.UVs); err != nil {
			return nil, fmt.Errorf("mesh %q uvs: %w", name, err)
		}
		mesh.UVIdx = append([]int(nil), rec.UVIndices...)
	}

	if len(rec.Colors) > 0 {
		if len(rec.Colors) != len(mesh.Vertices) {
			return nil, fmt.Errorf("mesh %q: %d colors for %d vertices",
				name, len(rec.Colors), len(mesh.Vertices))
		}
		if mesh.Colors, err = vec4Slice(rec.Colors); err != nil {
			return nil, fmt.Errorf("mesh %q colors: %w", name, err)
		}
	}

	if len(rec.Materials) > 0 {
		mesh.Materials = make(map[string][]int, len(rec.Materials))
		for mat, faces := range rec.Materials {
			for _, f := range faces {
				if f < 0 || f >= len(mesh.FaceCounts) {
					return nil, fmt.Errorf("mesh %q: material %q references face %d (face count %d)",
						name, mat, f, len(mesh.FaceCounts))
				}
			}
			mesh.Materials[mat] = append([]int(nil), faces...)
		}
	}

	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	if len(rec.Normals) > 0 {
		normals, err := p.averageNormals(rec, len(mesh.Vertices))
		if err != nil {
			return nil, fmt.Errorf("mesh %q normals: %w", name, err)
		}
		mesh.Normals = normals
	}

	return mesh, nil
}

// averageNormals condenses per-face-vertex normal samples into one normal per
// position by accumulating every sample that lands on the position and
// renormalizing the sum.
func (p *Parser) averageNormals(rec *source.Mesh, vertexCount int) ([][3]float64, error) {
	if len(rec.Normals) != len(rec.FaceIndices) {
		return nil, fmt.Errorf("%d normal samples for %d face vertices",
			len(rec.Normals), len(rec.FaceIndices))
	}
	samples, err := vec3Slice(rec.Normals)
	if err != nil {
		return nil, err
	}

	acc := make([][3]float64, vertexCount)
	for i, idx := range rec.FaceIndices {
		acc[idx][0] += samples[i][0]
		acc[idx][1] += samples[i][1]
		acc[idx][2] += samples[i][2]
	}

	for i := range acc {
		l := math.Sqrt(acc[i][0]*acc[i][0] + acc[i][1]*acc[i][1] + acc[i][2]*acc[i][2])
		if l < 1e-12 {
			// Opposing samples cancelled out; fall back to +Y.
			acc[i] = [3]float64{0, 1, 0}
			continue
		}
		acc[i][0] /= l
		acc[i][1] /= l
		acc[i][2] /= l
	}
	return acc, nil
}

// vec3Slice converts raw float rows into 3-vectors.
func vec3Slice(rows [][]float64) ([][3]float64, error) {
	out := make([][3]float64, len(rows))
	for i, r := range rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("%w: row %d has %d components, want 3", ErrBadVector, i, len(r))
		}
		out[i] = [3]float64{r[0], r[1], r[2]}
	}
	return out, nil
}

// vec2Slice converts raw float rows into 2-vectors.
func vec2Slice(rows [][]float64) ([][2]float64, error) {
	out := make([][2]float64, len(rows))
	for i, r := range rows {
		if len(r) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d components, want 2", ErrBadVector, i, len(r))
		}
		out[i] = [2]float64{r[0], r[1]}
	}
	return out, nil
}

// vec4Slice converts raw float rows into 4-vectors. RGB rows get alpha 1.
func vec4Slice(rows [][]float64) ([][4]float64, error) {
	out := make([][4]float64, len(rows))
	for i, r := range rows {
		switch len(r) {
		case 4:
			out[i] = [4]float64{r[0], r[1], r[2], r[3]}
		case 3:
			out[i] = [4]float64{r[0], r[1], r[2], 1}
		default:
			return nil, fmt.Errorf("%w: row %d has %d components, want 3 or 4", ErrBadVector, i, len(r))
		}
	}
	return out, nil
}

// quatSlice converts raw float rows into quaternions. Unlike colors there is
// no sensible fill-in for a missing component, so rows must carry exactly 4.
func quatSlice(rows [][]float64) ([][4]float64, error) {
	out := make([][4]float64, len(rows))
	for i, r := range rows {
		if len(r) != 4 {
			return nil, fmt.Errorf("%w: row %d has %d components, want 4", ErrBadVector, i, len(r))
		}
		out[i] = [4]float64{r[0], r[1], r[2], r[3]}
	}
	return out, nil
}

// mat16 converts a raw matrix row. An absent matrix becomes identity.
func mat16(raw []float64) ([16]float64, error) {
	if len(raw) == 0 {
		return transform.Identity(), nil
	}
	if len(raw) != 16 {
		return [16]float64{}, fmt.Errorf("%w: got %d", ErrBadMatrix, len(raw))
	}
	var m [16]float64
	copy(m[:], raw)
	return m, nil
}
