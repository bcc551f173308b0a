// Package source reads authoring-tool scene documents. A document is a YAML
// (or JSON) dump of the authoring application's scene graph: meshes with full
// face topology, shader networks flattened to attribute maps, the joint
// hierarchy and skin clusters, plus optional animation clips. The package
// also models a live editing session whose current selection drives partial
// exports.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source validation errors.
var (
	ErrSourceMissing     = errors.New("source document does not exist")
	ErrSourceEmpty       = errors.New("source document is empty")
	ErrSourceExtension   = errors.New("unrecognized source document extension")
	ErrSourceIsDirectory = errors.New("source path is a directory")
	ErrMalformedDocument = errors.New("malformed source document")
)

// allowedExtensions is the extension allow-list for source documents.
var allowedExtensions = map[string]bool{
	".scene": true,
	".yaml":  true,
	".yml":   true,
	".json":  true,
}

// Mesh is the raw mesh record of a source document. Normals are per
// face-vertex sample (parallel to FaceIndices); positions and colors are per
// vertex; UVs carry their own index array.
type Mesh struct {
	Name        string           `yaml:"name"`
	Transform   string           `yaml:"transform"`
	WorldMatrix []float64        `yaml:"world_matrix"`
	Vertices    [][]float64      `yaml:"vertices"`
	FaceCounts  []int            `yaml:"face_counts"`
	FaceIndices []int            `yaml:"face_indices"`
	Normals     [][]float64      `yaml:"normals"`
	UVs         [][]float64      `yaml:"uvs"`
	UVIndices   []int            `yaml:"uv_indices"`
	Colors      [][]float64      `yaml:"colors"`
	Materials   map[string][]int `yaml:"materials"`
}

// Material is the raw shader record: a type tag plus a flat attribute map.
type Material struct {
	Name       string            `yaml:"name"`
	Shader     string            `yaml:"shader"`
	Attributes map[string]any    `yaml:"attributes"`
	Textures   map[string]string `yaml:"textures"`
}

// Joint is the raw joint record. Parent is empty for the root.
type Joint struct {
	Name        string    `yaml:"name"`
	Parent      string    `yaml:"parent"`
	BindMatrix  []float64 `yaml:"bind_matrix"`
	WorldMatrix []float64 `yaml:"world_matrix"`
}

// Skin is the raw skin cluster record. Weights holds, per vertex, a list of
// [joint_index, weight] pairs indexing into Joints.
type Skin struct {
	Name    string        `yaml:"name"`
	Mesh    string        `yaml:"mesh"`
	Joints  []string      `yaml:"joints"`
	BindPre [][]float64   `yaml:"bind_pre"`
	Weights [][][]float64 `yaml:"weights"`
}

// Channel holds one joint's animation samples.
type Channel struct {
	Translations [][]float64 `yaml:"translations"`
	Rotations    [][]float64 `yaml:"rotations"`
	Scales       [][]float64 `yaml:"scales"`
}

// Animation is one clip: a shared time array plus per-joint channels.
type Animation struct {
	Name     string             `yaml:"name"`
	Times    []float64          `yaml:"times"`
	Channels map[string]Channel `yaml:"channels"`
}

// Document is a parsed source scene document.
type Document struct {
	Name       string      `yaml:"scene"`
	Selection  []string    `yaml:"selection"`
	Meshes     []Mesh      `yaml:"meshes"`
	Materials  []Material  `yaml:"materials"`
	Joints     []Joint     `yaml:"joints"`
	Skins      []Skin      `yaml:"skins"`
	Animations []Animation `yaml:"animations"`

	// Path the document was loaded from; empty for in-memory documents.
	Path string `yaml:"-"`
}

// Validate fail-fast checks a source path before any parsing begins: the file
// must exist, be non-empty and carry an allow-listed extension.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceIsDirectory, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrSourceEmpty, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrSourceExtension, ext)
	}
	return nil
}

// Load validates and decodes a source document from disk.
func Load(path string) (*Document, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source document: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Decode parses a source document from a byte slice. YAML is a superset of
// JSON, so .json dumps decode through the same path.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}

// Mesh returns the mesh record with the given name, or nil.
func (d *Document) Mesh(name string) *Mesh {
	for i := range d.Meshes {
		if d.Meshes[i].Name == name {
			return &d.Meshes[i]
		}
	}
	return nil
}

// Material returns the material record with the given name, or nil.
func (d *Document) Material(name string) *Material {
	for i := range d.Materials {
		if d.Materials[i].Name == name {
			return &d.Materials[i]
		}
	}
	return nil
}

// SkinForMesh returns the skin cluster record targeting a mesh, or nil.
func (d *Document) SkinForMesh(mesh string) *Skin {
	for i := range d.Skins {
		if d.Skins[i].Mesh == mesh {
			return &d.Skins[i]
		}
	}
	return nil
}

// HasObject reports whether name refers to a mesh, material or joint.
func (d *Document) HasObject(name string) bool {
	if d.Mesh(name) != nil || d.Material(name) != nil {
		return true
	}
	for i := range d.Joints {
		if d.Joints[i].Name == name {
			return true
		}
	}
	return false
}
