package rig

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/pkg/scene"
	"github.com/mikestumbo/sceneport/pkg/transform"
)

// Conversion errors.
var (
	ErrUnknownInfluence = errors.New("skin cluster influence not in skeleton")
	ErrNoSkeleton       = errors.New("no skeleton to bind skin weights to")
)

// Skeleton is the converted rig: joint paths in parent-before-child order,
// the target-document node per joint, and bind/rest transform arrays parallel
// to the path list.
type Skeleton struct {
	Paths []string // slash-separated, pre-order
	Names []string // joint names, parallel to Paths

	Root      uint32   // skeleton root node in the target document
	NodeIndex []uint32 // target node per joint, parallel to Paths

	Bind [][16]float64 // bind-pose world transforms, row-major
	Rest [][16]float64 // rest world transforms, row-major

	indexByName map[string]int
}

// Index returns a joint's position in the skeleton order.
func (s *Skeleton) Index(name string) (int, bool) {
	i, ok := s.indexByName[name]
	return i, ok
}

// MeshBinding identifies the target mesh a skin cluster is written onto.
// VertexMap maps the target mesh's welded vertices back to source vertex
// indices, since geometry conversion may split shared positions.
type MeshBinding struct {
	Node      uint32
	Mesh      *gltf.Mesh
	VertexMap []int
}

// Converter builds target skeletons and skin weight attributes.
type Converter struct {
	log *zap.Logger
}

// NewConverter creates a rig converter. A nil logger becomes a no-op logger.
func NewConverter(log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{log: log}
}

// ConvertSkeleton validates the joint topology, builds the ordered joint
// hierarchy under a root node named skeletonName, and fills the bind pose.
// On topology failure it logs and returns the error with no document writes.
func (c *Converter) ConvertSkeleton(joints []*scene.JointData, doc *gltf.Document, skeletonName string) (*Skeleton, error) {
	paths, ordered, err := BuildJointPaths(joints)
	if err != nil {
		c.log.Error("joint topology rejected", zap.Error(err))
		return nil, err
	}

	skel := &Skeleton{
		Paths:       paths,
		Names:       make([]string, len(ordered)),
		NodeIndex:   make([]uint32, len(ordered)),
		indexByName: make(map[string]int, len(ordered)),
	}
	for i, j := range ordered {
		skel.Names[i] = j.Name
		skel.indexByName[j.Name] = i
	}

	rootNode := &gltf.Node{Name: skeletonName}
	skel.Root = uint32(len(doc.Nodes))
	doc.Nodes = append(doc.Nodes, rootNode)

	for i, j := range ordered {
		world := worldOrIdentity(j.WorldMat)
		local := world
		if j.Parent != "" {
			parentWorld := worldOrIdentity(ordered[skel.indexByName[j.Parent]].WorldMat)
			local = transform.RelativeTo(world, parentWorld)
		}
		node := &gltf.Node{
			Name:   j.Name,
			Matrix: transform.ColumnMajor(local),
		}
		idx := uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, node)
		skel.NodeIndex[i] = idx

		if j.Parent == "" {
			rootNode.Children = append(rootNode.Children, idx)
		} else {
			parent := doc.Nodes[skel.NodeIndex[skel.indexByName[j.Parent]]]
			parent.Children = append(parent.Children, idx)
		}
	}

	if len(doc.Scenes) > 0 {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, skel.Root)
	}

	if err := c.CreateBindPose(skel, ordered); err != nil {
		return nil, err
	}
	return skel, nil
}

// CreateBindPose fills the skeleton's bind and rest transform arrays in joint
// order. Joints must already match the skeleton order.
func (c *Converter) CreateBindPose(skel *Skeleton, ordered []*scene.JointData) error {
	if len(ordered) != len(skel.Paths) {
		return fmt.Errorf("bind pose joint count %d does not match skeleton %d",
			len(ordered), len(skel.Paths))
	}
	skel.Bind = make([][16]float64, len(ordered))
	skel.Rest = make([][16]float64, len(ordered))
	for i, j := range ordered {
		bind := j.BindMat
		if transform.IsZero(bind) {
			bind = worldOrIdentity(j.WorldMat)
		}
		skel.Bind[i] = bind
		skel.Rest[i] = worldOrIdentity(j.WorldMat)
	}
	return nil
}

// ConvertSkinWeights writes per-vertex joint indices and weights for a skin
// cluster onto the bound mesh and attaches a skin joining it to the skeleton.
// The weight table is capped to maxInfluences, pruned, normalized and padded
// to a uniform stride before flattening. When writeBindMatrices is false the
// skin omits inverse bind matrices (the target format then assumes identity).
func (c *Converter) ConvertSkinWeights(cluster *scene.SkinClusterData, skel *Skeleton, doc *gltf.Document,
	binding MeshBinding, maxInfluences int, writeBindMatrices bool) error {

	if skel == nil {
		return ErrNoSkeleton
	}
	if err := cluster.Validate(); err != nil {
		return err
	}

	// Remap cluster-local influence indices onto skeleton joint order.
	remap := make([]int, len(cluster.Influences))
	for i, name := range cluster.Influences {
		idx, ok := skel.Index(name)
		if !ok {
			return fmt.Errorf("%w: cluster %q influence %q", ErrUnknownInfluence, cluster.Name, name)
		}
		remap[i] = idx
	}
	remapped := make([][]scene.VertexWeight, len(cluster.Weights))
	for v, ws := range cluster.Weights {
		rw := make([]scene.VertexWeight, len(ws))
		for i, w := range ws {
			rw[i] = scene.VertexWeight{Joint: remap[w.Joint], Weight: w.Weight}
		}
		remapped[v] = rw
	}

	processed := CapInfluences(remapped, maxInfluences)
	processed = PruneZeroWeights(processed, DefaultPruneThreshold)
	processed = NormalizeWeights(processed, c.log)

	// Re-order the table to the welded vertex layout of the target mesh.
	welded, missing := weldWeights(processed, binding.VertexMap, remap[0])
	if missing > 0 {
		c.log.Warn("weight table shorter than mesh, defaulting to first influence",
			zap.String("cluster", cluster.Name), zap.Int("vertices", missing))
	}

	width := maxWidth(welded)
	jointSets, weightSets := flattenWeights(welded, width)

	skin := &gltf.Skin{
		Name:     cluster.Name,
		Skeleton: gltf.Index(skel.Root),
		Joints:   append([]uint32(nil), skel.NodeIndex...),
	}
	if writeBindMatrices {
		ibms := c.inverseBindMatrices(cluster, skel, remap)
		skin.InverseBindMatrices = gltf.Index(writeMat4Accessor(doc, ibms))
	}
	skinIdx := uint32(len(doc.Skins))
	doc.Skins = append(doc.Skins, skin)

	for s := range jointSets {
		jointsAcc := modeler.WriteJoints(doc, jointSets[s])
		weightsAcc := modeler.WriteWeights(doc, weightSets[s])
		for _, prim := range binding.Mesh.Primitives {
			prim.Attributes[fmt.Sprintf("JOINTS_%d", s)] = jointsAcc
			prim.Attributes[fmt.Sprintf("WEIGHTS_%d", s)] = weightsAcc
		}
	}

	doc.Nodes[binding.Node].Skin = gltf.Index(skinIdx)
	return nil
}

// weldWeights re-orders a processed weight table to the welded vertex layout.
// A vertex the cluster never weighted gets its full weight on fallbackJoint,
// so no output vertex is left unweighted. Returns the table and the number of
// vertices that needed the fallback.
func weldWeights(processed [][]scene.VertexWeight, vertexMap []int, fallbackJoint int) ([][]scene.VertexWeight, int) {
	welded := make([][]scene.VertexWeight, len(vertexMap))
	missing := 0
	for wv, orig := range vertexMap {
		if orig >= 0 && orig < len(processed) && len(processed[orig]) > 0 {
			welded[wv] = processed[orig]
			continue
		}
		welded[wv] = []scene.VertexWeight{{Joint: fallbackJoint, Weight: 1}}
		missing++
	}
	return welded, missing
}

// inverseBindMatrices builds one inverse bind matrix per skeleton joint. A
// joint influencing the cluster uses the cluster's bind-pre matrix when
// present; everything else falls back to inverting the joint's bind pose.
func (c *Converter) inverseBindMatrices(cluster *scene.SkinClusterData, skel *Skeleton, remap []int) [][16]float32 {
	out := make([][16]float32, len(skel.NodeIndex))
	for i := range out {
		out[i] = transform.ColumnMajor32(transform.Inverse(skel.Bind[i]))
	}
	for clusterIdx, skelIdx := range remap {
		if clusterIdx < len(cluster.BindPre) {
			out[skelIdx] = transform.ColumnMajor32(cluster.BindPre[clusterIdx])
		}
	}
	return out
}

// writeMat4Accessor appends a MAT4 float accessor to the document buffer,
// returning the accessor index. The modeler package has no matrix writer, so
// the buffer view is assembled by hand.
func writeMat4Accessor(doc *gltf.Document, mats [][16]float32) uint32 {
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	buf := doc.Buffers[len(doc.Buffers)-1]

	// Align the payload to 4 bytes.
	for len(buf.Data)%4 != 0 {
		buf.Data = append(buf.Data, 0)
	}
	offset := uint32(len(buf.Data))
	for _, m := range mats {
		for _, v := range m {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
			buf.Data = append(buf.Data, b[:]...)
		}
	}
	buf.ByteLength = uint32(len(buf.Data))

	view := &gltf.BufferView{
		Buffer:     uint32(len(doc.Buffers) - 1),
		ByteOffset: offset,
		ByteLength: uint32(len(mats) * 64),
	}
	viewIdx := uint32(len(doc.BufferViews))
	doc.BufferViews = append(doc.BufferViews, view)

	acc := &gltf.Accessor{
		BufferView:    gltf.Index(viewIdx),
		ComponentType: gltf.ComponentFloat,
		Count:         uint32(len(mats)),
		Type:          gltf.AccessorMat4,
	}
	accIdx := uint32(len(doc.Accessors))
	doc.Accessors = append(doc.Accessors, acc)
	return accIdx
}

// worldOrIdentity substitutes identity for an absent (all-zero) transform.
func worldOrIdentity(m [16]float64) [16]float64 {
	if transform.IsZero(m) {
		return transform.Identity()
	}
	return m
}
