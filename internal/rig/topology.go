// Package rig converts joint hierarchies and skin clusters into the target
// skeletal representation: an ordered joint-path list where every parent path
// strictly precedes its children, parallel bind and rest transform arrays,
// and fixed-stride per-vertex joint index and weight attributes.
package rig

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mikestumbo/sceneport/pkg/scene"
)

// Topology errors.
var (
	ErrNoJoints       = errors.New("joint set is empty")
	ErrDuplicateJoint = errors.New("duplicate joint name")
	ErrNoRoot         = errors.New("joint hierarchy has no root")
	ErrMultipleRoots  = errors.New("joint hierarchy has multiple roots")
	ErrDanglingParent = errors.New("joint references unknown parent")
	ErrJointCycle     = errors.New("joint hierarchy contains a cycle")
)

// ValidateJointTopology rejects duplicate names, zero or multiple roots,
// dangling parent references and cycles. Cycles are detected by walking each
// joint's ancestor chain with a visited set, so a malformed A→B→C→A chain
// fails cleanly instead of recursing forever.
func ValidateJointTopology(joints []*scene.JointData) error {
	if len(joints) == 0 {
		return ErrNoJoints
	}

	byName := make(map[string]*scene.JointData, len(joints))
	var roots []string
	for _, j := range joints {
		if _, ok := byName[j.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateJoint, j.Name)
		}
		byName[j.Name] = j
		if j.Parent == "" {
			roots = append(roots, j.Name)
		}
	}

	switch len(roots) {
	case 0:
		return ErrNoRoot
	case 1:
	default:
		sort.Strings(roots)
		return fmt.Errorf("%w: %v", ErrMultipleRoots, roots)
	}

	for _, j := range joints {
		if j.Parent == "" {
			continue
		}
		if _, ok := byName[j.Parent]; !ok {
			return fmt.Errorf("%w: joint %q parent %q", ErrDanglingParent, j.Name, j.Parent)
		}
	}

	for _, j := range joints {
		visited := map[string]bool{j.Name: true}
		for cur := j.Parent; cur != ""; {
			if visited[cur] {
				return fmt.Errorf("%w: reached %q twice from %q", ErrJointCycle, cur, j.Name)
			}
			visited[cur] = true
			cur = byName[cur].Parent
		}
	}
	return nil
}

// BuildJointPaths runs an explicit-stack pre-order depth-first traversal from
// the single root and returns slash-separated joint paths plus the joints in
// the same order. A joint's path always appears strictly after its parent's.
// Children are visited in name order so the output is deterministic.
func BuildJointPaths(joints []*scene.JointData) ([]string, []*scene.JointData, error) {
	if err := ValidateJointTopology(joints); err != nil {
		return nil, nil, err
	}

	byName := make(map[string]*scene.JointData, len(joints))
	children := make(map[string][]string, len(joints))
	var root *scene.JointData
	for _, j := range joints {
		byName[j.Name] = j
		if j.Parent == "" {
			root = j
		} else {
			children[j.Parent] = append(children[j.Parent], j.Name)
		}
	}

	type frame struct {
		joint *scene.JointData
		path  string
	}

	paths := make([]string, 0, len(joints))
	ordered := make([]*scene.JointData, 0, len(joints))
	stack := []frame{{joint: root, path: root.Name}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		paths = append(paths, f.path)
		ordered = append(ordered, f.joint)

		kids := append([]string(nil), children[f.joint.Name]...)
		sort.Strings(kids)
		// Push in reverse so the stack pops children in name order.
		for i := len(kids) - 1; i >= 0; i-- {
			child := byName[kids[i]]
			stack = append(stack, frame{joint: child, path: f.path + "/" + child.Name})
		}
	}
	return paths, ordered, nil
}
