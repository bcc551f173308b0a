package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `
scene: character
selection: [body]
meshes:
  - name: body
    transform: body_transform
    vertices: [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
    face_counts: [4]
    face_indices: [0, 1, 2, 3]
    materials:
      skin_mat: [0]
materials:
  - name: skin_mat
    shader: standardSurface
    attributes:
      base_color: [0.8, 0.6, 0.5]
      specular_roughness: 0.4
joints:
  - name: root
  - name: spine
    parent: root
skins:
  - name: body_skin
    mesh: body
    joints: [root, spine]
    weights:
      - [[0, 0.7], [1, 0.3]]
      - [[0, 1.0]]
      - [[1, 1.0]]
      - [[0, 0.5], [1, 0.5]]
animations:
  - name: walk
    times: [0.0, 0.5, 1.0]
    channels:
      spine:
        rotations: [[0, 0, 0, 1], [0, 0.1, 0, 0.99], [0, 0, 0, 1]]
`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate(t *testing.T) {
	good := writeDoc(t, "good.scene", sampleDoc)
	empty := writeDoc(t, "empty.yaml", "")
	badExt := writeDoc(t, "scene.txt", sampleDoc)

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"valid document", good, nil},
		{"missing file", filepath.Join(t.TempDir(), "nope.scene"), ErrSourceMissing},
		{"directory", t.TempDir(), ErrSourceIsDirectory},
		{"empty file", empty, ErrSourceEmpty},
		{"bad extension", badExt, ErrSourceExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeDoc(t, "character.scene", sampleDoc)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Name != "character" {
		t.Errorf("Name = %q, want %q", doc.Name, "character")
	}
	if doc.Path != path {
		t.Errorf("Path = %q, want %q", doc.Path, path)
	}
	if len(doc.Meshes) != 1 || len(doc.Materials) != 1 || len(doc.Joints) != 2 {
		t.Fatalf("got %d meshes, %d materials, %d joints",
			len(doc.Meshes), len(doc.Materials), len(doc.Joints))
	}
	if len(doc.Skins) != 1 || len(doc.Animations) != 1 {
		t.Fatalf("got %d skins, %d animations", len(doc.Skins), len(doc.Animations))
	}

	mesh := doc.Mesh("body")
	if mesh == nil {
		t.Fatal("Mesh(body) = nil")
	}
	if len(mesh.Vertices) != 4 || len(mesh.FaceIndices) != 4 {
		t.Errorf("mesh topology: %d vertices, %d face indices", len(mesh.Vertices), len(mesh.FaceIndices))
	}

	skin := doc.SkinForMesh("body")
	if skin == nil {
		t.Fatal("SkinForMesh(body) = nil")
	}
	if len(skin.Weights) != 4 {
		t.Errorf("skin weights: %d vertices, want 4", len(skin.Weights))
	}
	if len(skin.Weights[0]) != 2 || skin.Weights[0][0][1] != 0.7 {
		t.Errorf("vertex 0 weights = %v", skin.Weights[0])
	}
}

func TestLoadNameFallsBackToFilename(t *testing.T) {
	path := writeDoc(t, "prop.yaml", "meshes:\n  - name: crate\n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Name != "prop" {
		t.Errorf("Name = %q, want %q", doc.Name, "prop")
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("meshes: [unclosed"))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("got %v, want ErrMalformedDocument", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc, err := Decode([]byte(`{"scene": "box", "meshes": [{"name": "cube"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Name != "box" || doc.Mesh("cube") == nil {
		t.Errorf("JSON decode: name %q, cube %v", doc.Name, doc.Mesh("cube"))
	}
}

func TestHasObject(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"body", "skin_mat", "root", "spine"} {
		if !doc.HasObject(name) {
			t.Errorf("HasObject(%q) = false", name)
		}
	}
	if doc.HasObject("body_skin") {
		t.Error("skin names are not selectable objects")
	}
	if doc.HasObject("missing") {
		t.Error("HasObject(missing) = true")
	}
}
