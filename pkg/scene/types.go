// Package scene defines the source-agnostic interchange data model produced
// by parsing an authoring document: meshes, materials, joints, skin clusters
// and animation clips. Parsers fill these structures; converters read them and
// build the target document. A SceneData is constructed fresh per export call
// and discarded once the output document has been written.
package scene

import (
	"errors"
	"fmt"
)

// Scene data errors.
var (
	ErrFaceIndexCount   = errors.New("face index count does not match face vertex counts")
	ErrVertexIndexRange = errors.New("face vertex index out of range")
	ErrUVIndexCount     = errors.New("uv index count does not match face index count")
	ErrJointIndexRange  = errors.New("skin weight joint index out of range")
	ErrNoInfluences     = errors.New("skin cluster has no influence joints")
)

// Identity is the 16-element row-major identity matrix.
var Identity = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// MeshData holds the topology and attributes of a single polygonal mesh.
// Positions, normals and colors are per vertex; UVs carry their own index
// array so UV topology may diverge from position topology. Face winding is
// preserved exactly as authored.
type MeshData struct {
	Name          string
	TransformName string

	Vertices   [][3]float64
	FaceCounts []int // vertices per face
	FaceIdx    []int // flattened face-vertex indices into Vertices

	Normals   [][3]float64 // optional, per vertex
	UVs       [][2]float64 // optional, indexed by UVIdx
	UVIdx     []int        // optional, parallel to FaceIdx
	Colors    [][4]float64 // optional, per vertex
	WorldMat  [16]float64  // row-major world transform
	Materials map[string][]int // material name -> face indices
}

// Validate checks the mesh topology invariants: the face-count sum must equal
// the face-index length, every position index must be in range, and a UV index
// array (when present) must parallel the face index array.
func (m *MeshData) Validate() error {
	sum := 0
	for _, c := range m.FaceCounts {
		sum += c
	}
	if sum != len(m.FaceIdx) {
		return fmt.Errorf("%w: mesh %q: counts sum %d, indices %d",
			ErrFaceIndexCount, m.Name, sum, len(m.FaceIdx))
	}
	for i, idx := range m.FaceIdx {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("%w: mesh %q: index %d at %d (vertex count %d)",
				ErrVertexIndexRange, m.Name, idx, i, len(m.Vertices))
		}
	}
	if len(m.UVIdx) > 0 {
		if len(m.UVIdx) != len(m.FaceIdx) {
			return fmt.Errorf("%w: mesh %q: %d uv indices, %d face indices",
				ErrUVIndexCount, m.Name, len(m.UVIdx), len(m.FaceIdx))
		}
		for i, idx := range m.UVIdx {
			if idx < 0 || idx >= len(m.UVs) {
				return fmt.Errorf("%w: mesh %q: uv index %d at %d (uv count %d)",
					ErrVertexIndexRange, m.Name, idx, i, len(m.UVs))
			}
		}
	}
	return nil
}

// FaceCount returns the number of faces in the mesh.
func (m *MeshData) FaceCount() int {
	return len(m.FaceCounts)
}

// TriangleCount returns the number of triangles a fan triangulation yields.
func (m *MeshData) TriangleCount() int {
	n := 0
	for _, c := range m.FaceCounts {
		if c >= 3 {
			n += c - 2
		}
	}
	return n
}

// MaterialData holds normalized shading properties plus an optional vendor
// passthrough bag. The normalized fields are always populated, even when the
// source shader is vendor specific; the passthrough bag is additive only.
type MaterialData struct {
	Name      string
	Shader    ShaderKind
	ShaderTag string // raw shader type string from the source

	DiffuseColor  [3]float64
	SpecularColor [3]float64
	Roughness     float64
	Metallic      float64
	Opacity       float64

	Textures map[string]string // slot name -> file reference

	IsVendorSpecific bool
	Passthrough      map[string]any // raw attributes keyed by source name
}

// JointData describes one joint in a skeletal hierarchy. Parent is empty for
// the root joint. Matrices are 16-element row-major.
type JointData struct {
	Name     string
	Parent   string
	BindMat  [16]float64 // bind-pose world transform
	WorldMat [16]float64 // rest world transform
	Children []string
}

// VertexWeight associates one influence joint with a weight for a vertex.
// Joint indexes the skin cluster's influence list, not the scene joint list.
type VertexWeight struct {
	Joint  int
	Weight float64
}

// SkinClusterData binds a mesh to a set of influence joints with per-vertex
// weights. BindPre holds per-joint bind-pre matrices parallel to Influences;
// it may be empty, in which case bind matrices come from the joints.
type SkinClusterData struct {
	Name       string
	Mesh       string
	Influences []string
	Weights    [][]VertexWeight // per vertex
	BindPre    [][16]float64    // optional, parallel to Influences
}

// Validate checks that every per-vertex joint index refers to an influence.
func (s *SkinClusterData) Validate() error {
	if len(s.Influences) == 0 {
		return fmt.Errorf("%w: cluster %q", ErrNoInfluences, s.Name)
	}
	for v, ws := range s.Weights {
		for _, w := range ws {
			if w.Joint < 0 || w.Joint >= len(s.Influences) {
				return fmt.Errorf("%w: cluster %q: vertex %d joint %d (influences %d)",
					ErrJointIndexRange, s.Name, v, w.Joint, len(s.Influences))
			}
		}
	}
	return nil
}

// JointChannel holds time-sampled local transform values for one joint.
// Sample counts match the owning clip's time array; a nil slice means the
// channel is absent for that joint.
type JointChannel struct {
	Translations [][3]float64
	Rotations    [][4]float64 // quaternion XYZW
	Scales       [][3]float64
}

// AnimationData is one clip of joint animation.
type AnimationData struct {
	Name     string
	Times    []float64 // seconds, ascending
	Channels map[string]JointChannel // joint name -> samples
}

// SceneData aggregates everything extracted from one source document.
type SceneData struct {
	Source string

	Meshes       []*MeshData
	Materials    []*MaterialData
	Joints       []*JointData
	SkinClusters []*SkinClusterData
	Animations   []*AnimationData
}

// Empty reports whether the scene contains no extracted entities.
func (s *SceneData) Empty() bool {
	return len(s.Meshes) == 0 && len(s.Materials) == 0 &&
		len(s.Joints) == 0 && len(s.SkinClusters) == 0 && len(s.Animations) == 0
}

// Mesh returns the mesh with the given name, or nil.
func (s *SceneData) Mesh(name string) *MeshData {
	for _, m := range s.Meshes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// SkinForMesh returns the skin cluster targeting the given mesh, or nil.
func (s *SceneData) SkinForMesh(mesh string) *SkinClusterData {
	for _, sc := range s.SkinClusters {
		if sc.Mesh == mesh {
			return sc
		}
	}
	return nil
}
