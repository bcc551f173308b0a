package parser

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
)

// JointHierarchy extracts the joint hierarchy. With an empty root every joint
// in the document is returned; otherwise only the named joint and its
// descendants. Child name lists are populated and sorted for deterministic
// traversal downstream.
func (p *Parser) JointHierarchy(doc *source.Document, root string) ([]*scene.JointData, error) {
	if len(doc.Joints) == 0 {
		return nil, nil
	}

	byName := make(map[string]*scene.JointData, len(doc.Joints))
	ordered := make([]*scene.JointData, 0, len(doc.Joints))
	for i := range doc.Joints {
		rec := &doc.Joints[i]
		bind, err := mat16(rec.BindMatrix)
		if err != nil {
			return nil, fmt.Errorf("joint %q bind matrix: %w", rec.Name, err)
		}
		world, err := mat16(rec.WorldMatrix)
		if err != nil {
			return nil, fmt.Errorf("joint %q world matrix: %w", rec.Name, err)
		}
		j := &scene.JointData{
			Name:     rec.Name,
			Parent:   rec.Parent,
			BindMat:  bind,
			WorldMat: world,
		}
		byName[j.Name] = j
		ordered = append(ordered, j)
	}

	for _, j := range ordered {
		if j.Parent == "" {
			continue
		}
		if parent, ok := byName[j.Parent]; ok {
			parent.Children = append(parent.Children, j.Name)
		}
	}
	for _, j := range ordered {
		sort.Strings(j.Children)
	}

	if root == "" {
		return ordered, nil
	}

	start, ok := byName[root]
	if !ok {
		return nil, fmt.Errorf("joint %q not found in source document", root)
	}

	// Collect the subtree with an explicit stack.
	var subtree []*scene.JointData
	stack := []*scene.JointData{start}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		subtree = append(subtree, j)
		for _, child := range j.Children {
			stack = append(stack, byName[child])
		}
	}
	// The subtree root keeps no parent link; it roots its own hierarchy.
	if start.Parent != "" {
		clone := *start
		clone.Parent = ""
		subtree[0] = &clone
	}
	return subtree, nil
}

// ExtractSkinCluster extracts the skin cluster bound to a mesh. Returns
// (nil, nil) when the mesh is not skinned.
func (p *Parser) ExtractSkinCluster(doc *source.Document, meshName string) (*scene.SkinClusterData, error) {
	rec := doc.SkinForMesh(meshName)
	if rec == nil {
		return nil, nil
	}

	cluster := &scene.SkinClusterData{
		Name:       rec.Name,
		Mesh:       rec.Mesh,
		Influences: append([]string(nil), rec.Joints...),
	}
	if cluster.Name == "" {
		cluster.Name = meshName + "_skin"
	}

	cluster.Weights = make([][]scene.VertexWeight, len(rec.Weights))
	for v, pairs := range rec.Weights {
		ws := make([]scene.VertexWeight, 0, len(pairs))
		for _, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: cluster %q vertex %d", ErrBadWeightPair, cluster.Name, v)
			}
			joint := int(pair[0])
			if float64(joint) != pair[0] {
				return nil, fmt.Errorf("%w: cluster %q vertex %d joint index %v",
					ErrBadWeightPair, cluster.Name, v, pair[0])
			}
			ws = append(ws, scene.VertexWeight{Joint: joint, Weight: pair[1]})
		}
		cluster.Weights[v] = ws
	}

	if len(rec.BindPre) > 0 {
		if len(rec.BindPre) != len(rec.Joints) {
			return nil, fmt.Errorf("cluster %q: %d bind-pre matrices for %d influences",
				cluster.Name, len(rec.BindPre), len(rec.Joints))
		}
		cluster.BindPre = make([][16]float64, len(rec.BindPre))
		for i, raw := range rec.BindPre {
			m, err := mat16(raw)
			if err != nil {
				return nil, fmt.Errorf("cluster %q bind-pre %d: %w", cluster.Name, i, err)
			}
			cluster.BindPre[i] = m
		}
	}

	if err := cluster.Validate(); err != nil {
		return nil, err
	}
	return cluster, nil
}

// extractAnimations converts the document's clips. A clip whose channel
// sample counts disagree with its time array is skipped with a warning.
func (p *Parser) extractAnimations(doc *source.Document) []*scene.AnimationData {
	var out []*scene.AnimationData
	for i := range doc.Animations {
		clip, err := p.extractClip(&doc.Animations[i])
		if err != nil {
			p.log.Warn("skipping animation clip",
				zap.String("clip", doc.Animations[i].Name), zap.Error(err))
			continue
		}
		out = append(out, clip)
	}
	return out
}

func (p *Parser) extractClip(rec *source.Animation) (*scene.AnimationData, error) {
	clip := &scene.AnimationData{
		Name:     rec.Name,
		Times:    append([]float64(nil), rec.Times...),
		Channels: make(map[string]scene.JointChannel, len(rec.Channels)),
	}
	frames := len(clip.Times)
	if frames == 0 {
		return nil, fmt.Errorf("clip %q has no time samples", rec.Name)
	}

	for joint, ch := range rec.Channels {
		var out scene.JointChannel
		var err error
		if len(ch.Translations) > 0 {
			if len(ch.Translations) != frames {
				return nil, fmt.Errorf("%w: clip %q joint %q translations", ErrSampleMismatch, rec.Name, joint)
			}
			if out.Translations, err = vec3Slice(ch.Translations); err != nil {
				return nil, fmt.Errorf("clip %q joint %q translations: %w", rec.Name, joint, err)
			}
		}
		if len(ch.Rotations) > 0 {
			if len(ch.Rotations) != frames {
				return nil, fmt.Errorf("%w: clip %q joint %q rotations", ErrSampleMismatch, rec.Name, joint)
			}
			if out.Rotations, err = quatSlice(ch.Rotations); err != nil {
				return nil, fmt.Errorf("clip %q joint %q rotations: %w", rec.Name, joint, err)
			}
		}
		if len(ch.Scales) > 0 {
			if len(ch.Scales) != frames {
				return nil, fmt.Errorf("%w: clip %q joint %q scales", ErrSampleMismatch, rec.Name, joint)
			}
			if out.Scales, err = vec3Slice(ch.Scales); err != nil {
				return nil, fmt.Errorf("clip %q joint %q scales: %w", rec.Name, joint, err)
			}
		}
		clip.Channels[joint] = out
	}
	return clip, nil
}
