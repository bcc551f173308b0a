// sceneport is a CLI for exporting authoring-tool scene documents to
// portable interchange files.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mikestumbo/sceneport/internal/config"
	"github.com/mikestumbo/sceneport/internal/exporter"
	"github.com/mikestumbo/sceneport/internal/logger"
	"github.com/mikestumbo/sceneport/internal/material"
	"github.com/mikestumbo/sceneport/internal/parser"
	"github.com/mikestumbo/sceneport/internal/rig"
	"github.com/mikestumbo/sceneport/internal/source"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "export":
		cmdExport(args)
	case "info":
		cmdInfo(args)
	case "validate", "check":
		cmdValidate(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sceneport - scene document export utility

Usage:
  sceneport <command> [options]

Commands:
  export <scene> [options]   Export a scene document
  info <scene>               Show scene statistics
  validate <scene>           Validate source and joint topology

Export options:
  -o <path>            Output file (default: input name + format extension)
  -f <format>          text, binary or package (default: binary)
  -strategy <name>     Material strategy: generic or vendor-preserving
  -max-influences <n>  Per-vertex influence cap (default: 4)
  -anim                Include joint animation
  -no-materials        Skip materials
  -no-skeleton         Skip the skeleton
  -no-weights          Skip skin weights
  -no-bind-pose        Omit inverse bind matrices

Examples:
  sceneport export character.scene -f package -o character.zip
  sceneport info character.scene
  sceneport validate character.scene`)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output file path")
	format := fs.String("f", "", "output format: text, binary or package")
	strategy := fs.String("strategy", "", "material strategy: generic or vendor-preserving")
	maxInfl := fs.Int("max-influences", 0, "per-vertex influence cap")
	anim := fs.Bool("anim", false, "include joint animation")
	noMaterials := fs.Bool("no-materials", false, "skip materials")
	noSkeleton := fs.Bool("no-skeleton", false, "skip the skeleton")
	noWeights := fs.Bool("no-weights", false, "skip skin weights")
	noBindPose := fs.Bool("no-bind-pose", false, "omit inverse bind matrices")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sceneport export <scene> [options]")
		os.Exit(1)
	}
	input := fs.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)
	defer logger.Sync()

	if *format == "" {
		*format = cfg.Export.Format
	}
	fmtVal, err := exporter.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *maxInfl == 0 {
		*maxInfl = cfg.Export.MaxInfluences
	}
	strat, err := material.ParseStrategy(*strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := exporter.DefaultOptions(*out)
	opts.Format = fmtVal
	opts.MaterialStrategy = strat
	opts.MaxInfluencesPerVertex = *maxInfl
	opts.ExportAnimation = *anim
	opts.ExportMaterials = !*noMaterials
	opts.ExportSkeleton = !*noSkeleton
	opts.ExportSkinWeights = !*noWeights && !*noSkeleton
	opts.PreserveBindPose = cfg.Export.PreserveBindPose && !*noBindPose
	if opts.OutputPath == "" {
		name := filepath.Base(defaultOutputPath(input, fmtVal))
		opts.OutputPath = filepath.Join(cfg.Export.OutputDir, name)
	}

	conv := material.NewPBRConverter(logger.Log, cfg.Export.TexturePaths...)
	orch := exporter.New(logger.Log, conv)

	// Drive the export in the background so the foreground can poll
	// progress and forward Ctrl-C as a cooperative cancel.
	done := make(chan error, 1)
	go func() { done <- orch.ExportScene(input, opts) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Print("\r\033[K")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Exported: %s\n", opts.OutputPath)
			return
		case <-sigs:
			fmt.Fprintln(os.Stderr, "\nCancelling...")
			orch.Cancel()
		case <-ticker.C:
			pct, stage := orch.Progress()
			fmt.Printf("\r\033[K[%5.1f%%] %s", pct, stage)
		}
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sceneport info <scene>")
		os.Exit(1)
	}
	p := parser.New(nil)
	data, err := p.ParseFullScene(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scene:      %s\n", data.Source)
	fmt.Printf("Meshes:     %d\n", len(data.Meshes))
	fmt.Printf("Materials:  %d\n", len(data.Materials))
	fmt.Printf("Joints:     %d\n", len(data.Joints))
	fmt.Printf("Skins:      %d\n", len(data.SkinClusters))
	fmt.Printf("Animations: %d\n", len(data.Animations))

	vertices, faces := 0, 0
	for _, m := range data.Meshes {
		vertices += len(m.Vertices)
		faces += m.FaceCount()
	}
	fmt.Printf("Vertices:   %d\n", vertices)
	fmt.Printf("Faces:      %d\n", faces)
}

func cmdValidate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sceneport validate <scene>")
		os.Exit(1)
	}
	path := args[0]

	if err := source.Validate(path); err != nil {
		fmt.Fprintf(os.Stderr, "Source: FAIL (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("Source: OK")

	p := parser.New(nil)
	data, err := p.ParseFullScene(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse:  FAIL (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("Parse:  OK")

	if len(data.Joints) == 0 {
		fmt.Println("Rig:    (no joints)")
		return
	}
	if err := rig.ValidateJointTopology(data.Joints); err != nil {
		fmt.Fprintf(os.Stderr, "Rig:    FAIL (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("Rig:    OK")
}

func initLogging(cfg *config.Config) {
	opts := logger.DefaultOptions()
	opts.Level = cfg.Logging.Level
	opts.File = cfg.Logging.LogFile
	if err := logger.Init(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

// defaultOutputPath derives the output file name from the input path.
func defaultOutputPath(input string, f exporter.Format) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + f.Ext()
}
