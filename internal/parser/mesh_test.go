package parser

import (
	"errors"
	"math"
	"testing"

	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/transform"
)

func quadDoc() *source.Document {
	return &source.Document{
		Meshes: []source.Mesh{{
			Name:        "quad",
			Vertices:    [][]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
			FaceCounts:  []int{4},
			FaceIndices: []int{0, 1, 2, 3},
		}},
	}
}

func TestExtractMesh(t *testing.T) {
	p := New(nil)
	mesh, err := p.ExtractMesh(quadDoc(), "quad")
	if err != nil {
		t.Fatalf("ExtractMesh: %v", err)
	}

	if mesh.Name != "quad" {
		t.Errorf("Name = %q", mesh.Name)
	}
	if mesh.TransformName != "quad_transform" {
		t.Errorf("TransformName = %q, want quad_transform", mesh.TransformName)
	}
	if len(mesh.Vertices) != 4 || len(mesh.FaceIdx) != 4 {
		t.Errorf("topology: %d vertices, %d indices", len(mesh.Vertices), len(mesh.FaceIdx))
	}
	// Winding must survive untouched.
	for i, want := range []int{0, 1, 2, 3} {
		if mesh.FaceIdx[i] != want {
			t.Errorf("FaceIdx[%d] = %d, want %d", i, mesh.FaceIdx[i], want)
		}
	}
	// Absent world matrix becomes identity.
	if !transform.IsIdentity(mesh.WorldMat) {
		t.Errorf("WorldMat = %v, want identity", mesh.WorldMat)
	}
}

func TestExtractMeshNotFound(t *testing.T) {
	p := New(nil)
	_, err := p.ExtractMesh(quadDoc(), "missing")
	if !errors.Is(err, ErrMeshNotFound) {
		t.Errorf("got %v, want ErrMeshNotFound", err)
	}
}

func TestExtractMeshBadVector(t *testing.T) {
	doc := quadDoc()
	doc.Meshes[0].Vertices[1] = []float64{1, 0} // two components
	p := New(nil)
	if _, err := p.ExtractMesh(doc, "quad"); !errors.Is(err, ErrBadVector) {
		t.Errorf("got %v, want ErrBadVector", err)
	}
}

func TestExtractMeshBadMatrix(t *testing.T) {
	doc := quadDoc()
	doc.Meshes[0].WorldMatrix = []float64{1, 2, 3}
	p := New(nil)
	if _, err := p.ExtractMesh(doc, "quad"); !errors.Is(err, ErrBadMatrix) {
		t.Errorf("got %v, want ErrBadMatrix", err)
	}
}

func TestExtractMeshMaterialFaceOutOfRange(t *testing.T) {
	doc := quadDoc()
	doc.Meshes[0].Materials = map[string][]int{"mat": {3}}
	p := New(nil)
	if _, err := p.ExtractMesh(doc, "quad"); err == nil {
		t.Error("expected error for material referencing face 3 of a 1-face mesh")
	}
}

func TestExtractMeshColorAlphaDefault(t *testing.T) {
	doc := quadDoc()
	doc.Meshes[0].Colors = [][]float64{
		{1, 0, 0}, {0, 1, 0, 0.5}, {0, 0, 1}, {1, 1, 1},
	}
	p := New(nil)
	mesh, err := p.ExtractMesh(doc, "quad")
	if err != nil {
		t.Fatalf("ExtractMesh: %v", err)
	}
	if mesh.Colors[0][3] != 1 {
		t.Errorf("RGB color alpha = %v, want 1", mesh.Colors[0][3])
	}
	if mesh.Colors[1][3] != 0.5 {
		t.Errorf("RGBA color alpha = %v, want 0.5", mesh.Colors[1][3])
	}
}

func TestAverageNormals(t *testing.T) {
	// Two triangles share vertex 1; its normal is the renormalized sum of
	// the two face-vertex samples.
	doc := &source.Document{
		Meshes: []source.Mesh{{
			Name:        "wedge",
			Vertices:    [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 1}},
			FaceCounts:  []int{3, 3},
			FaceIndices: []int{0, 1, 2, 1, 3, 2},
			Normals: [][]float64{
				{0, 0, 1}, {0, 0, 1}, {0, 0, 1},
				{1, 0, 0}, {1, 0, 0}, {1, 0, 0},
			},
		}},
	}
	p := New(nil)
	mesh, err := p.ExtractMesh(doc, "wedge")
	if err != nil {
		t.Fatalf("ExtractMesh: %v", err)
	}

	n := mesh.Normals[1]
	inv := 1 / math.Sqrt(2)
	if math.Abs(n[0]-inv) > 1e-9 || math.Abs(n[2]-inv) > 1e-9 || math.Abs(n[1]) > 1e-9 {
		t.Errorf("shared vertex normal = %v, want (%v, 0, %v)", n, inv, inv)
	}

	// Unshared vertex keeps its single sample.
	if mesh.Normals[0] != [3]float64{0, 0, 1} {
		t.Errorf("vertex 0 normal = %v", mesh.Normals[0])
	}
}

func TestAverageNormalsCancellation(t *testing.T) {
	// Opposing samples at vertex 0 sum to zero; the fallback is +Y.
	doc := &source.Document{
		Meshes: []source.Mesh{{
			Name:        "folded",
			Vertices:    [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			FaceCounts:  []int{3, 3},
			FaceIndices: []int{0, 1, 2, 0, 2, 1},
			Normals: [][]float64{
				{0, 0, 1}, {0, 0, 1}, {0, 0, 1},
				{0, 0, -1}, {0, 0, -1}, {0, 0, -1},
			},
		}},
	}
	p := New(nil)
	mesh, err := p.ExtractMesh(doc, "folded")
	if err != nil {
		t.Fatalf("ExtractMesh: %v", err)
	}
	if mesh.Normals[0] != [3]float64{0, 1, 0} {
		t.Errorf("cancelled normal = %v, want +Y", mesh.Normals[0])
	}
}

func TestAverageNormalsSampleCountMismatch(t *testing.T) {
	doc := quadDoc()
	doc.Meshes[0].Normals = [][]float64{{0, 0, 1}} // 1 sample for 4 face vertices
	p := New(nil)
	if _, err := p.ExtractMesh(doc, "quad"); err == nil {
		t.Error("expected error for normal sample count mismatch")
	}
}
