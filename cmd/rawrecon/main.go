// rawrecon reconstructs an RGB image from a raw frame dump.
//
// The input is a .rrf frame file. The output format follows the output file
// extension: .tif/.tiff (16-bit deflate TIFF), .png (16-bit PNG) or .j2k
// (lossless JPEG 2000 codestream).
//
// Usage:
//
//	rawrecon [options] infile.rrf outfile
//
// Options:
//
//	-config <file>  tuning JSON file (defaults are built in)
//	-a <name>       demosaic algorithm (none, simple, bilinear, amaze, rcd, lmmse, ahd, igv)
//	-t <n>          worker threads, 0 for one per CPU
//	-dualiso        enable dual-ISO fusion (default from tuning)
//	-maps <dir>     directory of focus and bad pixel maps
//	-v              verbose output
//	-version        show version information
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	rawrecon "github.com/mrjoshuak/go-rawrecon"
	"github.com/mrjoshuak/go-rawrecon/config"
	"github.com/mrjoshuak/go-rawrecon/demosaic"
	"github.com/mrjoshuak/go-rawrecon/export"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/rawio"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "tuning JSON file")
	algorithm := flag.String("a", "", "demosaic algorithm")
	threads := flag.Int("t", -1, "worker threads, 0 for one per CPU")
	mapDir := flag.String("maps", "", "directory of focus and bad pixel maps")
	verbose := flag.Bool("v", false, "verbose output")
	showVersion := flag.Bool("version", false, "show version information")
	var dualISO optionalBool
	flag.Var(&dualISO, "dualiso", "enable dual-ISO fusion")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rawrecon [options] infile.rrf outfile\n\n")
		fmt.Fprintf(os.Stderr, "Reconstruct an RGB image from a raw Bayer frame.\n")
		fmt.Fprintf(os.Stderr, "The output format follows the extension: .tif, .png or .j2k.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("rawrecon version %s\n", version)
		fmt.Println("Algorithms:", demosaic.Algorithms())
		os.Exit(0)
	}
	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if !*verbose {
		monitoring.SetLogger(nil)
	}

	tuning := config.Empty()
	if *configPath != "" {
		t, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		tuning = t
	}
	if *algorithm != "" {
		tuning.Algorithm = algorithm
	}
	if *threads >= 0 {
		tuning.Threads = threads
	}
	if *mapDir != "" {
		tuning.MapDir = mapDir
	}
	if dualISO.set {
		tuning.DualISO = &dualISO.value
	}

	if err := run(args[0], args[1], tuning, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inFile, outFile string, tuning *config.Tuning, verbose bool) error {
	format, err := export.FormatFromPath(outFile)
	if err != nil {
		return err
	}
	engine, err := rawrecon.New(tuning)
	if err != nil {
		return err
	}

	f, err := os.Open(inFile)
	if err != nil {
		return fmt.Errorf("cannot open input file: %w", err)
	}
	frame, err := rawio.Read(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", inFile, err)
	}
	p := frame.Plane
	if verbose {
		fmt.Printf("Read %s: %dx%d %v, %d bits, black %v, white %v, camera %08x\n",
			inFile, p.Width, p.Height, p.CFA, p.BitDepth, p.Black, p.White, frame.CameraID)
	}

	start := time.Now()
	img, report, err := engine.Process(rawrecon.Job{
		Plane:    p,
		CameraID: frame.CameraID,
		Clip:     filepath.Base(inFile),
	})
	if err != nil {
		return err
	}
	if report.MapErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", report.MapErr)
	}
	if verbose {
		fmt.Printf("Processed in %v with %v\n", time.Since(start).Round(time.Millisecond), report.Algorithm)
		fmt.Printf("  focus pixels: %d, bad pixels: %d\n", report.FocusPixels, report.BadPixels)
		if gets, allocs := engine.ScratchStats(); gets > 0 {
			fmt.Printf("  tile scratch: %d arenas, %d allocated\n", gets, allocs)
		}
		switch {
		case report.DualISO:
			fmt.Println("  dual-ISO: fused")
		case report.DualISOErr != nil:
			fmt.Printf("  dual-ISO: %v\n", report.DualISOErr)
		}
	}

	if err := export.WriteFile(outFile, img, export.Options{Format: format}); err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Wrote %s (%v)\n", outFile, format)
	}
	return nil
}

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set, value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return fmt.Sprint(b.value)
}

func (b *optionalBool) Set(s string) error {
	switch s {
	case "true", "1", "on":
		b.value = true
	case "false", "0", "off":
		b.value = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	b.set = true
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }
