package exporter

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/mikestumbo/sceneport/internal/material"
	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
)

// cubeScene is a skinned 8-vertex cube with 6 quad faces, a two-joint chain
// and one animation clip.
const cubeScene = `
scene: cube
meshes:
  - name: cube
    transform: cube_transform
    vertices:
      - [0, 0, 0]
      - [1, 0, 0]
      - [1, 1, 0]
      - [0, 1, 0]
      - [0, 0, 1]
      - [1, 0, 1]
      - [1, 1, 1]
      - [0, 1, 1]
    face_counts: [4, 4, 4, 4, 4, 4]
    face_indices: [0, 1, 2, 3, 4, 5, 6, 7, 0, 1, 5, 4, 1, 2, 6, 5, 2, 3, 7, 6, 3, 0, 4, 7]
    materials:
      cube_mat: [0, 1, 2, 3, 4, 5]
materials:
  - name: cube_mat
    shader: standardSurface
    attributes:
      base_color: [0.9, 0.5, 0.1]
      specular_roughness: 0.4
joints:
  - name: root
  - name: child
    parent: root
skins:
  - name: cube_skin
    mesh: cube
    joints: [root, child]
    weights:
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
      - [[0, 0.7], [1, 0.3]]
animations:
  - name: sway
    times: [0.0, 1.0]
    channels:
      child:
        rotations: [[0, 0, 0, 1], [0, 0.1, 0, 0.995]]
`

func writeScene(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cube.scene")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportSceneBinary(t *testing.T) {
	src := writeScene(t, cubeScene)
	out := filepath.Join(t.TempDir(), "cube.glb")

	orch := New(nil, material.NewPBRConverter(nil))
	opts := DefaultOptions(out)
	opts.ExportAnimation = true

	if err := orch.ExportScene(src, opts); err != nil {
		t.Fatalf("ExportScene: %v", err)
	}

	if orch.State() != StateComplete {
		t.Errorf("state = %v, want complete", orch.State())
	}
	if pct, _ := orch.Progress(); pct != 100 {
		t.Errorf("progress = %v, want 100", pct)
	}
	if orch.LastError() != nil {
		t.Errorf("LastError = %v", orch.LastError())
	}

	doc, err := gltf.Open(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	if len(doc.Meshes) != 1 {
		t.Fatalf("got %d meshes, want 1", len(doc.Meshes))
	}
	mesh := doc.Meshes[0]
	// Single material, no UV splits: one primitive, 8 welded vertices,
	// 6 quads fan to 12 triangles.
	if len(mesh.Primitives) != 1 {
		t.Fatalf("got %d primitives, want 1", len(mesh.Primitives))
	}
	prim := mesh.Primitives[0]
	if pos, ok := prim.Attributes["POSITION"]; !ok {
		t.Error("POSITION missing")
	} else if doc.Accessors[pos].Count != 8 {
		t.Errorf("position count = %d, want 8", doc.Accessors[pos].Count)
	}
	if prim.Indices == nil {
		t.Fatal("indices missing")
	}
	if n := doc.Accessors[*prim.Indices].Count; n != 36 {
		t.Errorf("index count = %d, want 36", n)
	}
	if prim.Material == nil {
		t.Error("primitive has no material")
	}
	if _, ok := prim.Attributes["JOINTS_0"]; !ok {
		t.Error("JOINTS_0 missing")
	}

	if len(doc.Materials) != 1 || doc.Materials[0].Name != "cube_mat" {
		t.Errorf("materials = %v", doc.Materials)
	}

	if len(doc.Skins) != 1 {
		t.Fatalf("got %d skins, want 1", len(doc.Skins))
	}
	if len(doc.Skins[0].Joints) != 2 {
		t.Errorf("skin joints = %v, want 2", doc.Skins[0].Joints)
	}

	// Joint nodes present and wired root -> child.
	names := map[string]int{}
	for i, n := range doc.Nodes {
		names[n.Name] = i
	}
	rootIdx, ok := names["root"]
	if !ok {
		t.Fatal("root joint node missing")
	}
	childIdx, ok := names["child"]
	if !ok {
		t.Fatal("child joint node missing")
	}
	wired := false
	for _, c := range doc.Nodes[rootIdx].Children {
		if int(c) == childIdx {
			wired = true
		}
	}
	if !wired {
		t.Error("child joint not parented under root")
	}

	if len(doc.Animations) != 1 || doc.Animations[0].Name != "sway" {
		t.Errorf("animations = %v", doc.Animations)
	}
}

func TestExportSceneText(t *testing.T) {
	src := writeScene(t, cubeScene)
	out := filepath.Join(t.TempDir(), "cube.gltf")

	orch := New(nil, material.NewPBRConverter(nil))
	opts := DefaultOptions(out)
	opts.Format = FormatText

	if err := orch.ExportScene(src, opts); err != nil {
		t.Fatalf("ExportScene: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[0] != '{' {
		t.Error("text output should be a JSON document")
	}
	// Buffers must travel inside the file as data URIs.
	if !bytes.Contains(data, []byte("data:application/octet-stream;base64,")) {
		t.Error("text output should embed buffers as data URIs")
	}
}

func TestExportScenePackage(t *testing.T) {
	src := writeScene(t, cubeScene)
	out := filepath.Join(t.TempDir(), "cube.zip")

	orch := New(nil, material.NewPBRConverter(nil))
	opts := DefaultOptions(out)
	opts.Format = FormatPackage

	if err := orch.ExportScene(src, opts); err != nil {
		t.Fatalf("ExportScene: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("opening package: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 {
		t.Fatalf("package holds %d entries, want 1", len(zr.File))
	}
	entry := zr.File[0]
	if entry.Name != "cube.glb" {
		t.Errorf("entry name = %q, want cube.glb", entry.Name)
	}
	if entry.Method != zip.Store {
		t.Errorf("entry method = %d, want Store (uncompressed)", entry.Method)
	}
}

func TestExportSceneWithoutRig(t *testing.T) {
	src := writeScene(t, cubeScene)
	out := filepath.Join(t.TempDir(), "cube.glb")

	orch := New(nil, material.NewPBRConverter(nil))
	opts := DefaultOptions(out)
	opts.ExportSkeleton = false
	opts.ExportSkinWeights = false

	if err := orch.ExportScene(src, opts); err != nil {
		t.Fatalf("ExportScene: %v", err)
	}
	doc, err := gltf.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Skins) != 0 {
		t.Errorf("got %d skins with rigging disabled", len(doc.Skins))
	}
	if _, ok := doc.Meshes[0].Primitives[0].Attributes["JOINTS_0"]; ok {
		t.Error("skin attributes written with rigging disabled")
	}
}

func TestExportSceneMissingSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cube.glb")
	orch := New(nil, nil)

	err := orch.ExportScene(filepath.Join(t.TempDir(), "nope.scene"), DefaultOptions(out))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if orch.State() != StateFailed {
		t.Errorf("state = %v, want failed", orch.State())
	}
	if orch.LastError() == nil {
		t.Error("LastError should record the failure")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("failed export should leave no output file")
	}
}

func TestExportSceneNilMaterialConverter(t *testing.T) {
	src := writeScene(t, cubeScene)
	out := filepath.Join(t.TempDir(), "cube.glb")

	// No converter: materials phase degrades to a warning, export succeeds.
	orch := New(nil, nil)
	if err := orch.ExportScene(src, DefaultOptions(out)); err != nil {
		t.Fatalf("ExportScene: %v", err)
	}
	doc, err := gltf.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Materials) != 0 {
		t.Errorf("got %d materials without a converter", len(doc.Materials))
	}
}

func TestExportSelection(t *testing.T) {
	doc, err := source.Decode([]byte(cubeScene))
	if err != nil {
		t.Fatal(err)
	}
	sess := source.NewSession(doc)
	out := filepath.Join(t.TempDir(), "sel.glb")

	orch := New(nil, material.NewPBRConverter(nil))
	if err := orch.ExportSelection(sess, DefaultOptions(out), "cube"); err != nil {
		t.Fatalf("ExportSelection: %v", err)
	}

	got, err := gltf.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Meshes) != 1 || len(got.Skins) != 1 {
		t.Errorf("got %d meshes, %d skins", len(got.Meshes), len(got.Skins))
	}
}

func TestExportSelectionEmptyWritesEmptyDocument(t *testing.T) {
	sess := source.NewSession(&source.Document{Name: "empty"})
	out := filepath.Join(t.TempDir(), "empty.glb")

	orch := New(nil, nil)
	if err := orch.ExportSelection(sess, DefaultOptions(out)); err != nil {
		t.Fatalf("ExportSelection: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("empty selection should still write a document: %v", err)
	}
}

func TestExportRejectedWhileBusy(t *testing.T) {
	orch := New(nil, nil)
	opts := DefaultOptions(filepath.Join(t.TempDir(), "out.glb"))

	// Claim the orchestrator, then try a second export.
	if _, err := orch.begin(opts); err != nil {
		t.Fatalf("begin: %v", err)
	}
	err := orch.ExportScene("whatever.scene", opts)
	if !errors.Is(err, ErrExportInProgress) {
		t.Errorf("got %v, want ErrExportInProgress", err)
	}
}

func TestCancelledExport(t *testing.T) {
	orch := New(nil, nil)
	src := writeScene(t, cubeScene)
	opts := DefaultOptions(filepath.Join(t.TempDir(), "out.glb"))

	sess, err := orch.begin(opts)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	orch.Cancel()
	err = orch.finish(sess, orch.run(sess, func() (*scene.SceneData, error) {
		return orch.parser.ParseFullScene(src)
	}))

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if orch.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled, not failed", orch.State())
	}
	if !errors.Is(orch.LastError(), ErrCancelled) {
		t.Errorf("LastError = %v, want ErrCancelled", orch.LastError())
	}
}

func TestExportReusableAfterTerminalState(t *testing.T) {
	src := writeScene(t, cubeScene)
	dir := t.TempDir()
	orch := New(nil, nil)

	if err := orch.ExportScene(src, DefaultOptions(filepath.Join(dir, "a.glb"))); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if err := orch.ExportScene(src, DefaultOptions(filepath.Join(dir, "b.glb"))); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if orch.State() != StateComplete {
		t.Errorf("state = %v", orch.State())
	}
}
