package exporter

import (
	"fmt"
	"sort"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/internal/rig"
	"github.com/mikestumbo/sceneport/pkg/scene"
	"github.com/mikestumbo/sceneport/pkg/transform"
)

// exportGeometry writes every mesh into the target document. A single mesh
// failing to convert is logged and skipped; the phase itself only fails on
// cancellation.
func (o *Orchestrator) exportGeometry(sess *session) error {
	total := len(sess.data.Meshes)
	for i, mesh := range sess.data.Meshes {
		if err := o.checkCancel(); err != nil {
			return err
		}
		if err := o.writeMesh(sess, mesh); err != nil {
			sess.log.Warn("skipping mesh", zap.String("mesh", mesh.Name), zap.Error(err))
			continue
		}
		o.setProgress(lerp(progressDocument, progressGeometryEnd, i+1, total))
	}
	return nil
}

// weldKey identifies a render vertex: a position index paired with a UV
// index. Positions shared between faces with diverging UV topology must be
// split into distinct render vertices.
type weldKey struct {
	pos int
	uv  int
}

// writeMesh converts one mesh: welds render vertices, fan-triangulates each
// face preserving the authored winding, groups triangles into one primitive
// per assigned material, and hangs the result under a node carrying the
// mesh's world transform.
func (o *Orchestrator) writeMesh(sess *session, mesh *scene.MeshData) error {
	if err := mesh.Validate(); err != nil {
		return err
	}

	hasUV := len(mesh.UVIdx) > 0

	lookup := make(map[weldKey]int)
	var vertexMap []int // welded index -> source position index
	var uvMap []int     // welded index -> source uv index
	corners := make([]int, len(mesh.FaceIdx))
	for i, pos := range mesh.FaceIdx {
		uv := -1
		if hasUV {
			uv = mesh.UVIdx[i]
		}
		key := weldKey{pos: pos, uv: uv}
		w, ok := lookup[key]
		if !ok {
			w = len(vertexMap)
			lookup[key] = w
			vertexMap = append(vertexMap, pos)
			uvMap = append(uvMap, uv)
		}
		corners[i] = w
	}

	// Per-face material assignment; unassigned faces form the default group.
	faceMat := make([]string, len(mesh.FaceCounts))
	for mat, faces := range mesh.Materials {
		for _, f := range faces {
			faceMat[f] = mat
		}
	}

	// Fan-triangulate into per-material index groups. The fan keeps the
	// original corner order, so winding survives intact.
	groups := make(map[string][]uint32)
	base := 0
	for f, count := range mesh.FaceCounts {
		if count >= 3 {
			mat := faceMat[f]
			for k := 1; k < count-1; k++ {
				groups[mat] = append(groups[mat],
					uint32(corners[base]), uint32(corners[base+k]), uint32(corners[base+k+1]))
			}
		}
		base += count
	}
	if len(groups) == 0 {
		return fmt.Errorf("mesh %q has no triangulatable faces", mesh.Name)
	}

	attrs := gltf.Attribute{}
	attrs["POSITION"] = modeler.WritePosition(sess.doc, weldVec3(mesh.Vertices, vertexMap))
	if len(mesh.Normals) > 0 {
		attrs["NORMAL"] = modeler.WriteNormal(sess.doc, weldVec3(mesh.Normals, vertexMap))
	}
	if hasUV {
		uvs := make([][2]float32, len(uvMap))
		for w, uv := range uvMap {
			uvs[w] = [2]float32{float32(mesh.UVs[uv][0]), float32(mesh.UVs[uv][1])}
		}
		attrs["TEXCOORD_0"] = modeler.WriteTextureCoord(sess.doc, uvs)
	}
	if len(mesh.Colors) > 0 {
		colors := make([][4]uint8, len(vertexMap))
		for w, pos := range vertexMap {
			colors[w] = colorToBytes(mesh.Colors[pos])
		}
		attrs["COLOR_0"] = modeler.WriteColor(sess.doc, colors)
	}

	gltfMesh := &gltf.Mesh{Name: mesh.Name}

	matNames := make([]string, 0, len(groups))
	for mat := range groups {
		matNames = append(matNames, mat)
	}
	sort.Strings(matNames)
	for _, mat := range matNames {
		prim := &gltf.Primitive{
			Attributes: cloneAttrs(attrs),
			Indices:    gltf.Index(modeler.WriteIndices(sess.doc, groups[mat])),
		}
		gltfMesh.Primitives = append(gltfMesh.Primitives, prim)
		if mat != "" {
			sess.byMat[mat] = append(sess.byMat[mat], prim)
		}
	}

	meshIdx := uint32(len(sess.doc.Meshes))
	sess.doc.Meshes = append(sess.doc.Meshes, gltfMesh)

	world := mesh.WorldMat
	if transform.IsZero(world) {
		world = transform.Identity()
	}
	node := &gltf.Node{
		Name:   mesh.TransformName,
		Mesh:   gltf.Index(meshIdx),
		Matrix: transform.ColumnMajor(world),
	}
	nodeIdx := uint32(len(sess.doc.Nodes))
	sess.doc.Nodes = append(sess.doc.Nodes, node)
	if len(sess.doc.Scenes) > 0 {
		sess.doc.Scenes[0].Nodes = append(sess.doc.Scenes[0].Nodes, nodeIdx)
	}

	sess.bindings[mesh.Name] = rig.MeshBinding{
		Node:      nodeIdx,
		Mesh:      gltfMesh,
		VertexMap: vertexMap,
	}
	return nil
}

// weldVec3 gathers per-position vectors into the welded vertex layout.
func weldVec3(src [][3]float64, vertexMap []int) [][3]float32 {
	out := make([][3]float32, len(vertexMap))
	for w, pos := range vertexMap {
		out[w] = [3]float32{float32(src[pos][0]), float32(src[pos][1]), float32(src[pos][2])}
	}
	return out
}

// cloneAttrs copies the shared attribute map so later per-primitive writes
// (skin weight sets) stay independent.
func cloneAttrs(attrs gltf.Attribute) gltf.Attribute {
	out := make(gltf.Attribute, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func colorToBytes(c [4]float64) [4]uint8 {
	var out [4]uint8
	for i, v := range c {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[i] = uint8(v*255 + 0.5)
	}
	return out
}
