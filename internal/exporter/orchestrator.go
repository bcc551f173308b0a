package exporter

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/internal/material"
	"github.com/mikestumbo/sceneport/internal/parser"
	"github.com/mikestumbo/sceneport/internal/rig"
	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
)

// Session errors.
var (
	// ErrCancelled is the distinct terminal outcome of a cancelled export.
	// It is not a failure: the state machine lands in Cancelled, not Failed.
	ErrCancelled = errors.New("export cancelled")
	// ErrExportInProgress rejects a second export while one is active.
	ErrExportInProgress = errors.New("export already in progress")
)

// Orchestrator drives the export pipeline. One orchestrator runs at most one
// export session at a time; a concurrent second call is rejected, not queued.
// The pipeline itself is synchronous — callers wanting progress polling run
// the export on their own goroutine.
type Orchestrator struct {
	log     *zap.Logger
	parser  *parser.Parser
	rigConv *rig.Converter
	matConv material.Converter // optional; nil skips the materials phase

	mu       sync.Mutex
	state    State
	progress float64
	stage    string
	lastErr  error

	cancel atomic.Bool
}

// New creates an orchestrator. matConv may be nil, in which case the
// materials phase degrades to a warning instead of failing the export.
func New(log *zap.Logger, matConv material.Converter) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		log:     log,
		parser:  parser.New(log),
		rigConv: rig.NewConverter(log),
		matConv: matConv,
		state:   StateIdle,
	}
}

// session carries the per-call pipeline state so nothing about an export
// lives in process-wide mutable variables.
type session struct {
	id   string
	opts Options
	log  *zap.Logger

	data *scene.SceneData
	doc  *gltf.Document

	skeleton *rig.Skeleton
	bindings map[string]rig.MeshBinding   // mesh name -> target binding
	byMat    map[string][]*gltf.Primitive // material name -> primitives awaiting assignment
}

// ExportScene runs the full pipeline over a source document path.
func (o *Orchestrator) ExportScene(sourcePath string, opts Options) error {
	sess, err := o.begin(opts)
	if err != nil {
		return err
	}
	return o.finish(sess, o.run(sess, func() (*scene.SceneData, error) {
		if err := o.parser.ValidateSource(sourcePath); err != nil {
			return nil, err
		}
		return o.parser.ParseFullScene(sourcePath)
	}))
}

// ExportSelection runs the pipeline over a live session's selection. Explicit
// names override the selection for the duration of the call. An empty
// selection still produces a (mostly empty) document rather than an error.
func (o *Orchestrator) ExportSelection(src *source.Session, opts Options, names ...string) error {
	sess, err := o.begin(opts)
	if err != nil {
		return err
	}
	return o.finish(sess, o.run(sess, func() (*scene.SceneData, error) {
		return o.parser.ParseSelection(src, names...)
	}))
}

// Cancel requests cooperative cancellation. The flag is polled at phase
// boundaries and inside per-item loops, so latency is bounded by one item's
// processing time.
func (o *Orchestrator) Cancel() {
	o.cancel.Store(true)
}

// Progress returns the completion percentage and current stage label.
func (o *Orchestrator) Progress() (float64, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress, o.stage
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the error recorded by the most recent export, or nil.
// A cancelled export records ErrCancelled, not an internal failure.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// begin claims the orchestrator for a new session or rejects the call.
func (o *Orchestrator) begin(opts Options) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle && !o.state.Terminal() {
		return nil, ErrExportInProgress
	}
	o.state = StateValidating
	o.progress = 0
	o.stage = StateValidating.String()
	o.lastErr = nil
	o.cancel.Store(false)

	id := uuid.NewString()
	return &session{
		id:       id,
		opts:     opts,
		log:      o.log.With(zap.String("export_id", id)),
		bindings: make(map[string]rig.MeshBinding),
		byMat:    make(map[string][]*gltf.Primitive),
	}, nil
}

// finish records the session outcome and returns err unchanged.
func (o *Orchestrator) finish(sess *session, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err == nil:
		o.state = StateComplete
		o.progress = progressSaveEnd
		o.stage = StateComplete.String()
	case errors.Is(err, ErrCancelled):
		o.state = StateCancelled
		o.stage = StateCancelled.String()
		o.lastErr = ErrCancelled
		sess.log.Info("export cancelled")
	default:
		o.state = StateFailed
		o.stage = StateFailed.String()
		o.lastErr = err
		sess.log.Error("export failed", zap.Error(err))
	}
	return err
}

// run executes the pipeline phases in order. parse produces the scene data;
// everything after it is common to the full-scene and selection paths.
func (o *Orchestrator) run(sess *session, parse func() (*scene.SceneData, error)) error {
	if err := sess.opts.Validate(); err != nil {
		return pkgerrors.Wrap(err, "validating export options")
	}
	if err := o.checkCancel(); err != nil {
		return err
	}

	// Parsing: 0-30%.
	o.setPhase(StateParsing, progressParseStart)
	data, err := parse()
	if err != nil {
		return pkgerrors.Wrap(err, "parsing scene")
	}
	sess.data = data
	if data.Empty() {
		sess.log.Warn("nothing selected, writing empty document")
	}
	o.setProgress(progressParseEnd)
	if err := o.checkCancel(); err != nil {
		return err
	}

	// Document creation: 30%.
	o.setPhase(StateBuildingDocument, progressDocument)
	sess.doc = gltf.NewDocument()
	sess.doc.Asset.Generator = "sceneport"

	// Geometry: 30-60%.
	o.setPhase(StateExportingGeometry, progressDocument)
	if sess.opts.ExportMeshes {
		if err := o.exportGeometry(sess); err != nil {
			return err
		}
	} else {
		sess.log.Info("geometry export disabled")
	}
	o.setProgress(progressGeometryEnd)

	// Materials: 60-80%.
	o.setPhase(StateExportingMaterials, progressGeometryEnd)
	if err := o.exportMaterials(sess); err != nil {
		return err
	}
	o.setProgress(progressMaterialsEnd)

	// Rigging: 80-90%.
	o.setPhase(StateExportingRigging, progressMaterialsEnd)
	if err := o.exportRigging(sess); err != nil {
		return err
	}
	o.setProgress(progressRiggingEnd)

	// Save: 90-100%.
	o.setPhase(StateSaving, progressRiggingEnd)
	if err := o.checkCancel(); err != nil {
		return err
	}
	if err := o.save(sess); err != nil {
		return err
	}

	sess.log.Info("export complete",
		zap.String("output", sess.opts.OutputPath),
		zap.String("format", sess.opts.Format.String()),
		zap.Int("meshes", len(sess.data.Meshes)),
		zap.Int("materials", len(sess.data.Materials)),
		zap.Int("joints", len(sess.data.Joints)))
	return nil
}

// exportMaterials converts materials and assigns them to the primitives
// recorded during the geometry phase. A missing converter skips the phase; a
// single bad material is logged and skipped.
func (o *Orchestrator) exportMaterials(sess *session) error {
	if !sess.opts.ExportMaterials {
		sess.log.Info("material export disabled")
		return nil
	}
	if o.matConv == nil {
		sess.log.Warn("no material converter available, skipping materials phase")
		return nil
	}
	total := len(sess.data.Materials)
	for i, mat := range sess.data.Materials {
		if err := o.checkCancel(); err != nil {
			return err
		}
		idx, err := o.matConv.Convert(sess.doc, mat, sess.opts.MaterialStrategy)
		if err != nil {
			sess.log.Warn("skipping material", zap.String("material", mat.Name), zap.Error(err))
			continue
		}
		for _, prim := range sess.byMat[mat.Name] {
			prim.Material = gltf.Index(idx)
		}
		o.setProgress(lerp(progressGeometryEnd, progressMaterialsEnd, i+1, total))
	}
	return nil
}

// exportRigging converts the skeleton, binds skin weights and writes
// animation clips. Topology failure fails the phase; per-cluster problems
// are logged and skipped.
func (o *Orchestrator) exportRigging(sess *session) error {
	if !sess.opts.ExportSkeleton {
		sess.log.Info("skeleton export disabled")
		return nil
	}
	if len(sess.data.Joints) == 0 {
		sess.log.Info("scene has no joints, skipping rigging phase")
		return nil
	}

	skel, err := o.rigConv.ConvertSkeleton(sess.data.Joints, sess.doc, "Skeleton")
	if err != nil {
		return pkgerrors.Wrap(err, "converting skeleton")
	}
	sess.skeleton = skel

	if sess.opts.ExportSkinWeights {
		total := len(sess.data.SkinClusters)
		for i, cluster := range sess.data.SkinClusters {
			if err := o.checkCancel(); err != nil {
				return err
			}
			binding, ok := sess.bindings[cluster.Mesh]
			if !ok {
				sess.log.Warn("skin cluster targets unexported mesh",
					zap.String("cluster", cluster.Name), zap.String("mesh", cluster.Mesh))
				continue
			}
			err := o.rigConv.ConvertSkinWeights(cluster, skel, sess.doc, binding,
				sess.opts.MaxInfluencesPerVertex, sess.opts.PreserveBindPose)
			if err != nil {
				sess.log.Warn("skipping skin cluster",
					zap.String("cluster", cluster.Name), zap.Error(err))
				continue
			}
			o.setProgress(lerp(progressMaterialsEnd, progressRiggingEnd, i+1, total))
		}
	}

	if sess.opts.ExportAnimation && len(sess.data.Animations) > 0 {
		if err := o.checkCancel(); err != nil {
			return err
		}
		n := o.rigConv.ConvertAnimations(sess.data.Animations, skel, sess.doc)
		sess.log.Info("animation clips written", zap.Int("clips", n))
	}
	return nil
}

// checkCancel polls the cooperative cancellation flag.
func (o *Orchestrator) checkCancel() error {
	if o.cancel.Load() {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) setPhase(s State, progress float64) {
	o.mu.Lock()
	o.state = s
	o.stage = s.String()
	o.progress = progress
	o.mu.Unlock()
}

func (o *Orchestrator) setProgress(p float64) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
}

// lerp interpolates phase progress over done-of-total items.
func lerp(from, to float64, done, total int) float64 {
	if total <= 0 {
		return to
	}
	return from + (to-from)*float64(done)/float64(total)
}
