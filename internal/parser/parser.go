// Package parser extracts a source-agnostic scene graph from an authoring
// document. Extraction primitives (single mesh, material, skin cluster, joint
// hierarchy) are independent and individually testable; the full-scene and
// selection paths compose them and skip individual bad entities instead of
// aborting the whole parse.
package parser

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
)

// Parse errors.
var (
	ErrNoUsableMeshes   = errors.New("source document yields no usable meshes")
	ErrMeshNotFound     = errors.New("mesh not found in source document")
	ErrMaterialNotFound = errors.New("material not found in source document")
	ErrBadVector        = errors.New("vector has wrong component count")
	ErrBadMatrix        = errors.New("matrix must have 16 elements")
	ErrBadWeightPair    = errors.New("weight entry must be a [joint, weight] pair")
	ErrSampleMismatch   = errors.New("animation channel sample count does not match time array")
)

// Parser turns source documents into scene data.
type Parser struct {
	log *zap.Logger
}

// New creates a parser. A nil logger falls back to a no-op logger.
func New(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// ValidateSource fail-fast checks a source path before parsing.
func (p *Parser) ValidateSource(path string) error {
	return source.Validate(path)
}

// ParseFullScene validates, loads and extracts an entire source document.
// Individual bad meshes, materials or skin clusters are logged and skipped; a
// parse yielding zero usable meshes is a parse failure.
func (p *Parser) ParseFullScene(path string) (*scene.SceneData, error) {
	doc, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	data := p.parseDocument(doc, doc.Name)
	if len(data.Meshes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUsableMeshes, path)
	}
	return data, nil
}

// ParseSelection extracts only the session's selected objects. Explicit names
// override the session selection for the duration of the call; the previous
// selection is restored afterwards. An empty selection produces an empty
// SceneData, not an error.
func (p *Parser) ParseSelection(sess *source.Session, names ...string) (*scene.SceneData, error) {
	data := &scene.SceneData{Source: sess.Document().Name}
	run := func() error {
		p.parseSelected(sess, data)
		return nil
	}
	if len(names) > 0 {
		if err := sess.WithSelection(names, run); err != nil {
			return nil, err
		}
	} else if err := run(); err != nil {
		return nil, err
	}
	return data, nil
}

// parseDocument extracts everything from a document into a fresh SceneData.
func (p *Parser) parseDocument(doc *source.Document, name string) *scene.SceneData {
	data := &scene.SceneData{Source: name}

	for i := range doc.Meshes {
		mesh, err := p.ExtractMesh(doc, doc.Meshes[i].Name)
		if err != nil {
			p.log.Warn("skipping mesh", zap.String("mesh", doc.Meshes[i].Name), zap.Error(err))
			continue
		}
		data.Meshes = append(data.Meshes, mesh)
	}

	for i := range doc.Materials {
		mat, err := p.ExtractMaterial(doc, doc.Materials[i].Name)
		if err != nil {
			p.log.Warn("skipping material", zap.String("material", doc.Materials[i].Name), zap.Error(err))
			continue
		}
		data.Materials = append(data.Materials, mat)
	}

	joints, err := p.JointHierarchy(doc, "")
	if err != nil {
		p.log.Warn("skipping joint hierarchy", zap.Error(err))
	} else {
		data.Joints = joints
	}

	for _, mesh := range data.Meshes {
		cluster, err := p.ExtractSkinCluster(doc, mesh.Name)
		if err != nil {
			p.log.Warn("skipping skin cluster", zap.String("mesh", mesh.Name), zap.Error(err))
			continue
		}
		if cluster != nil {
			data.SkinClusters = append(data.SkinClusters, cluster)
		}
	}

	data.Animations = p.extractAnimations(doc)
	return data
}

// parseSelected extracts the currently selected objects into data.
func (p *Parser) parseSelected(sess *source.Session, data *scene.SceneData) {
	doc := sess.Document()
	needJoints := false

	for _, name := range sess.Selection() {
		switch {
		case doc.Mesh(name) != nil:
			mesh, err := p.ExtractMesh(doc, name)
			if err != nil {
				p.log.Warn("skipping selected mesh", zap.String("mesh", name), zap.Error(err))
				continue
			}
			data.Meshes = append(data.Meshes, mesh)

			for matName := range mesh.Materials {
				if hasMaterial(data, matName) {
					continue
				}
				mat, err := p.ExtractMaterial(doc, matName)
				if err != nil {
					p.log.Warn("skipping assigned material", zap.String("material", matName), zap.Error(err))
					continue
				}
				data.Materials = append(data.Materials, mat)
			}

			cluster, err := p.ExtractSkinCluster(doc, name)
			if err != nil {
				p.log.Warn("skipping skin cluster", zap.String("mesh", name), zap.Error(err))
			} else if cluster != nil {
				data.SkinClusters = append(data.SkinClusters, cluster)
				needJoints = true
			}

		case doc.Material(name) != nil:
			mat, err := p.ExtractMaterial(doc, name)
			if err != nil {
				p.log.Warn("skipping selected material", zap.String("material", name), zap.Error(err))
				continue
			}
			data.Materials = append(data.Materials, mat)

		case hasJoint(doc, name):
			needJoints = true

		default:
			p.log.Warn("selected object not found", zap.String("object", name))
		}
	}

	if needJoints && len(data.Joints) == 0 {
		joints, err := p.JointHierarchy(doc, "")
		if err != nil {
			p.log.Warn("skipping joint hierarchy", zap.Error(err))
		} else {
			data.Joints = joints
		}
	}
}

func hasJoint(doc *source.Document, name string) bool {
	for i := range doc.Joints {
		if doc.Joints[i].Name == name {
			return true
		}
	}
	return false
}

// hasMaterial reports whether a material name was already extracted.
func hasMaterial(data *scene.SceneData, name string) bool {
	for _, m := range data.Materials {
		if m.Name == name {
			return true
		}
	}
	return false
}
