package rig

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/pkg/scene"
)

// ConvertAnimations writes joint animation clips against a converted
// skeleton. Channels targeting joints the skeleton does not contain are
// skipped with a warning; a clip whose channels all miss is dropped. Returns
// the number of clips written.
func (c *Converter) ConvertAnimations(clips []*scene.AnimationData, skel *Skeleton, doc *gltf.Document) int {
	if skel == nil {
		return 0
	}
	written := 0
	for _, clip := range clips {
		if c.convertClip(clip, skel, doc) {
			written++
		}
	}
	return written
}

func (c *Converter) convertClip(clip *scene.AnimationData, skel *Skeleton, doc *gltf.Document) bool {
	times := make([]float32, len(clip.Times))
	for i, t := range clip.Times {
		times[i] = float32(t)
	}

	anim := &gltf.Animation{Name: clip.Name}
	input := writeScalarAccessor(doc, times)

	// Map iteration order is random; sort for a stable channel layout.
	jointNames := make([]string, 0, len(clip.Channels))
	for name := range clip.Channels {
		jointNames = append(jointNames, name)
	}
	sort.Strings(jointNames)

	for _, name := range jointNames {
		jointIdx, ok := skel.Index(name)
		if !ok {
			c.log.Warn("animation channel targets unknown joint",
				zap.String("clip", clip.Name), zap.String("joint", name))
			continue
		}
		node := skel.NodeIndex[jointIdx]
		ch := clip.Channels[name]

		if len(ch.Translations) > 0 {
			out := writeVec3Accessor(doc, toVec3f32(ch.Translations))
			addChannel(anim, node, input, out, gltf.TRSTranslation)
		}
		if len(ch.Rotations) > 0 {
			out := writeVec4Accessor(doc, toVec4f32(ch.Rotations))
			addChannel(anim, node, input, out, gltf.TRSRotation)
		}
		if len(ch.Scales) > 0 {
			out := writeVec3Accessor(doc, toVec3f32(ch.Scales))
			addChannel(anim, node, input, out, gltf.TRSScale)
		}
	}

	if len(anim.Channels) == 0 {
		return false
	}
	doc.Animations = append(doc.Animations, anim)
	return true
}

func addChannel(anim *gltf.Animation, node, input, output uint32, path gltf.TRSProperty) {
	sampler := &gltf.AnimationSampler{
		Input:         input,
		Output:        output,
		Interpolation: gltf.InterpolationLinear,
	}
	anim.Samplers = append(anim.Samplers, sampler)
	samplerIdx := uint32(len(anim.Samplers) - 1)
	anim.Channels = append(anim.Channels, &gltf.Channel{
		Sampler: gltf.Index(samplerIdx),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(node),
			Path: path,
		},
	})
}

func toVec3f32(in [][3]float64) [][3]float32 {
	out := make([][3]float32, len(in))
	for i, v := range in {
		out[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	return out
}

func toVec4f32(in [][4]float64) [][4]float32 {
	out := make([][4]float32, len(in))
	for i, v := range in {
		out[i] = [4]float32{float32(v[0]), float32(v[1]), float32(v[2]), float32(v[3])}
	}
	return out
}

// appendFloats appends float32 payload bytes to the document buffer and
// returns the view offset.
func appendFloats(doc *gltf.Document, values []float32) (bufferIdx, offset uint32) {
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	buf := doc.Buffers[len(doc.Buffers)-1]
	for len(buf.Data)%4 != 0 {
		buf.Data = append(buf.Data, 0)
	}
	offset = uint32(len(buf.Data))
	for _, v := range values {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf.Data = append(buf.Data, b[:]...)
	}
	buf.ByteLength = uint32(len(buf.Data))
	return uint32(len(doc.Buffers) - 1), offset
}

func writeFloatAccessor(doc *gltf.Document, values []float32, accType gltf.AccessorType, count uint32) uint32 {
	bufferIdx, offset := appendFloats(doc, values)
	view := &gltf.BufferView{
		Buffer:     bufferIdx,
		ByteOffset: offset,
		ByteLength: uint32(len(values) * 4),
	}
	viewIdx := uint32(len(doc.BufferViews))
	doc.BufferViews = append(doc.BufferViews, view)

	acc := &gltf.Accessor{
		BufferView:    gltf.Index(viewIdx),
		ComponentType: gltf.ComponentFloat,
		Count:         count,
		Type:          accType,
	}
	doc.Accessors = append(doc.Accessors, acc)
	return uint32(len(doc.Accessors) - 1)
}

func writeScalarAccessor(doc *gltf.Document, values []float32) uint32 {
	return writeFloatAccessor(doc, values, gltf.AccessorScalar, uint32(len(values)))
}

func writeVec3Accessor(doc *gltf.Document, values [][3]float32) uint32 {
	flat := make([]float32, 0, len(values)*3)
	for _, v := range values {
		flat = append(flat, v[0], v[1], v[2])
	}
	return writeFloatAccessor(doc, flat, gltf.AccessorVec3, uint32(len(values)))
}

func writeVec4Accessor(doc *gltf.Document, values [][4]float32) uint32 {
	flat := make([]float32, 0, len(values)*4)
	for _, v := range values {
		flat = append(flat, v[0], v[1], v[2], v[3])
	}
	return writeFloatAccessor(doc, flat, gltf.AccessorVec4, uint32(len(values)))
}
