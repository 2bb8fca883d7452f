// rawcheck validates raw frame dumps and prints sample statistics.
//
// Usage:
//
//	rawcheck [-q|--quiet] [-s|--strict] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet   Only output errors. Exit code indicates pass/fail.
//	-s, --strict  Also flag suspicious levels and heavy clipping.
//	-h, --help    Show this help message.
//	--version     Show version information.
//
// Exit codes:
//
//	0: All files valid
//	1: One or more files invalid
//	2: Error (file not found, etc.)
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/mrjoshuak/go-rawrecon/dualiso"
	"github.com/mrjoshuak/go-rawrecon/internal/monitoring"
	"github.com/mrjoshuak/go-rawrecon/internal/rawio"
	"github.com/mrjoshuak/go-rawrecon/raw"
)

const version = "1.0.0"

// maxClipped is the clipped sample fraction above which strict mode warns.
const maxClipped = 0.01

// Issue is a single validation problem found in a file.
type Issue struct {
	Severity string // "error" or "warning"
	Message  string
}

// Result holds everything found while checking one file.
type Result struct {
	Filename string
	Issues   []Issue
	Info     []string
}

// IsValid returns true if there are no errors (warnings are ok).
func (r *Result) IsValid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == "error" {
			return false
		}
	}
	return true
}

func (r *Result) errorf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{"error", fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{"warning", fmt.Sprintf(format, args...)})
}

func main() {
	quiet := false
	strict := false
	files := []string{}

	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch arg {
		case "-q", "--quiet":
			quiet = true
		case "-s", "--strict":
			strict = true
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "--version":
			fmt.Printf("rawcheck version %s\n", version)
			os.Exit(0)
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "Unknown option: %s\n", arg)
				printUsage()
				os.Exit(2)
			}
			files = append(files, arg)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No input files specified")
		printUsage()
		os.Exit(2)
	}
	monitoring.SetLogger(nil)

	validCount := 0
	errorOccurred := false
	for _, filename := range files {
		result, err := checkFile(filename, strict)
		if err != nil {
			if !quiet {
				fmt.Fprintf(os.Stderr, "%s: error: %v\n", filename, err)
			}
			errorOccurred = true
			continue
		}
		if result.IsValid() {
			validCount++
		}
		if !quiet {
			printResult(result)
			continue
		}
		for _, issue := range result.Issues {
			if issue.Severity == "error" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", filename, issue.Message)
			}
		}
	}

	if len(files) > 1 && !quiet {
		fmt.Printf("\nSummary: %d of %d files valid\n", validCount, len(files))
	}
	if errorOccurred {
		os.Exit(2)
	}
	if validCount < len(files) {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: rawcheck [options] <filename> [<filename> ...]

Validate raw frame dumps (.rrf) and print sample statistics.

Options:
  -q, --quiet    Only output errors. Exit code indicates pass/fail.
  -s, --strict   Also flag suspicious levels and heavy clipping.
  -h, --help     Show this help message.
  --version      Show version information.

Exit codes:
  0: All files valid
  1: One or more files invalid
  2: Error (file not found, permission denied, etc.)`)
}

func printResult(r *Result) {
	if r.IsValid() {
		fmt.Printf("%s: OK\n", r.Filename)
	} else {
		fmt.Printf("%s: INVALID\n", r.Filename)
	}
	for _, issue := range r.Issues {
		fmt.Printf("  [%s] %s\n", strings.ToUpper(issue.Severity), issue.Message)
	}
	for _, line := range r.Info {
		fmt.Printf("  %s\n", line)
	}
}

// checkFile reads one frame file. Read failures are returned as errors;
// format and content problems become issues in the result.
func checkFile(filename string, strict bool) (*Result, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	r := &Result{Filename: filename}
	frame, err := rawio.Unmarshal(data)
	if err != nil {
		r.errorf("%v", err)
		return r, nil
	}
	p := frame.Plane
	if err := p.Validate(); err != nil {
		r.errorf("%v", err)
		return r, nil
	}
	r.Info = append(r.Info, fmt.Sprintf("%dx%d %v, %d bits, black %v, white %v, camera %08x",
		p.Width, p.Height, p.CFA, p.BitDepth, p.Black, p.White, frame.CameraID))

	checkLevels(r, p, strict)
	checkSamples(r, p, strict)

	il, err := dualiso.Analyze(p)
	switch {
	case err == nil:
		r.Info = append(r.Info, fmt.Sprintf("dual-ISO: %v", il))
	case errors.Is(err, dualiso.ErrNoInterlace):
		r.Info = append(r.Info, "dual-ISO: no")
	default:
		r.Info = append(r.Info, fmt.Sprintf("dual-ISO: interlaced but unusable (%v)", err))
	}
	return r, nil
}

func checkLevels(r *Result, p *raw.Plane, strict bool) {
	if p.BitDepth < 8 || p.BitDepth > 16 {
		r.errorf("bit depth %d outside 8..16", p.BitDepth)
		return
	}
	top := float32(int(1)<<p.BitDepth - 1)
	if p.White > top {
		r.errorf("white level %v exceeds %d-bit range", p.White, p.BitDepth)
	}
	if !strict {
		return
	}
	if p.Height%2 != 0 {
		r.warnf("odd height %d; the last row is not demosaiced", p.Height)
	}
	if p.Black > top/4 {
		r.warnf("black level %v is above a quarter of the range", p.Black)
	}
}

func checkSamples(r *Result, p *raw.Plane, strict bool) {
	n := p.Width * p.Height
	xs := make([]float64, n)
	clipped, below := 0, 0
	for i, v := range p.Pix[:n] {
		xs[i] = float64(v)
		if v >= p.White {
			clipped++
		}
		if v < p.Black {
			below++
		}
	}
	sort.Float64s(xs)
	mean, sd := stat.MeanStdDev(xs, nil)
	q := func(f float64) float64 { return stat.Quantile(f, stat.Empirical, xs, nil) }
	r.Info = append(r.Info,
		fmt.Sprintf("samples: mean %.1f sd %.1f min %.0f p1 %.0f median %.0f p99 %.0f max %.0f",
			mean, sd, xs[0], q(0.01), q(0.5), q(0.99), xs[n-1]),
		fmt.Sprintf("clipped %.3f%%, below black %.3f%%",
			100*float64(clipped)/float64(n), 100*float64(below)/float64(n)))

	if p.BitDepth > 0 && p.BitDepth < 16 && xs[n-1] > float64(int(1)<<p.BitDepth-1) {
		r.errorf("sample %v exceeds %d-bit range", xs[n-1], p.BitDepth)
	}
	if strict && float64(clipped)/float64(n) > maxClipped {
		r.warnf("%.1f%% of samples are clipped", 100*float64(clipped)/float64(n))
	}
	if strict && xs[n-1] <= float64(p.Black) {
		r.warnf("no sample above black; frame is empty")
	}
}
