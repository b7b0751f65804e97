// Command edf2cfs converts EDF polysomnography recordings to CFS
// artifacts.
//
// Usage:
//
//	edf2cfs -a C3A2 -b C4A1 -x ELA2 -z ERA1 file1.edf file2.edf
//	edf2cfs -a C3A2 -b C4A1 -x ELA2 -z ERA1 -d /data/edf -o -l
//
// When any of the four channel labels is missing, labels are read from
// the CFS_C3/CFS_C4/CFS_EL/CFS_ER environment (a .env file in the
// working directory is honoured); failing that, an interactive
// selection menu is shown when stdin is a terminal.
//
// The command exits 0 once all files have been attempted, even when
// individual conversions failed, and 1 on an unusable invocation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/amiyapatanaik/edf2cfs"
	"github.com/amiyapatanaik/edf2cfs/internal/edfio"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("edf2cfs", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: edf2cfs -a C3A2 -b C4A1 -x ELA2 -z ERA1 [-d edfDir] [-q] [-o] [-l] file1.edf ... fileN.edf\n")
		fmt.Fprintf(fs.Output(), "If no channel labels are given, a selection menu is shown.\n\n")
		fs.PrintDefaults()
	}

	var sel edf2cfs.ChannelSelection
	fs.StringVar(&sel.C3, "a", "", "C3-A2 channel label")
	fs.StringVar(&sel.C4, "b", "", "C4-A1 channel label")
	fs.StringVar(&sel.EL, "x", "", "EL-A2 channel label")
	fs.StringVar(&sel.ER, "z", "", "ER-A1 channel label")
	dir := fs.String("d", "", "directory of EDF files (non-recursive)")
	quiet := fs.Bool("q", false, "silent mode, suppress per-file success messages")
	overwrite := fs.Bool("o", false, "overwrite existing CFS files")
	saveLog := fs.Bool("l", false, "write an HTML log next to the first input")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	files := fs.Args()
	if *dir != "" {
		found, err := listEDFs(*dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Println("No EDF files provided.")
		fmt.Println("edf2cfs -h for usage details.")
		return 1
	}

	if !sel.Complete() {
		fillFromEnv(&sel)
	}
	if !sel.Complete() {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "error: channel labels missing and stdin is not a terminal")
			return 1
		}
		if err := selectChannels(files[0], &sel); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	var logw *htmlLog
	if *saveLog {
		path := logPath(files[0])
		w, err := newHTMLLog(path, sel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log %s: %v\n", path, err)
		} else {
			fmt.Printf("Log will be saved at:\n%s\n", path)
			logw = w
			defer logw.Close()
		}
	}

	opts := edf2cfs.Options{Channels: sel, Overwrite: *overwrite}

	fmt.Printf("Processing up to %d files simultaneously...\n", edf2cfs.Parallelism())
	start := time.Now()

	okColor := color.New(color.FgGreen)
	errColor := color.New(color.FgRed)

	summary := edf2cfs.ConvertAll(files, opts, func(res edf2cfs.Result) {
		if res.Ok() {
			if !*quiet {
				okColor.Printf("Filename: %s, processed successfully\n", res.Path)
			}
		} else if logw != nil {
			errColor.Printf("ERROR: Filename: %s, please check log.\n", res.Path)
		} else {
			errColor.Printf("ERROR: Filename: %s: %v\n", res.Path, res.Err)
		}
		if logw != nil {
			logw.LogResult(res)
		}
	})

	elapsed := int(time.Since(start).Seconds())
	fmt.Printf("%d Files processed in %d seconds.\n%d Files converted successfully. %d Files could not be converted.\n",
		len(files), elapsed, summary.Succeeded, summary.Failed)
	if logw != nil {
		logw.LogSummary(len(files), elapsed, summary.Succeeded, summary.Failed)
	}

	return 0
}

// listEDFs returns the .edf files directly inside dir, non-recursive.
func listEDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".edf" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// fillFromEnv loads missing labels from the environment, honouring a
// .env file in the working directory.
func fillFromEnv(sel *edf2cfs.ChannelSelection) {
	_ = godotenv.Load()

	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&sel.C3, "CFS_C3")
	fill(&sel.C4, "CFS_C4")
	fill(&sel.EL, "CFS_EL")
	fill(&sel.ER, "CFS_ER")
}

// selectChannels shows the first file's signal list and reads four
// 1-based channel numbers from stdin.
func selectChannels(path string, sel *edf2cfs.ChannelSelection) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := edfio.Open(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	signals := r.Header().Signals

	fmt.Println("Please make sure all files share the same channel labels.")
	fmt.Println("Following channels are found:")
	for i, sig := range signals {
		fmt.Printf("%d: %s\n", i+1, sig.Label)
	}

	in := bufio.NewReader(os.Stdin)
	prompts := []struct {
		name string
		dst  *string
	}{
		{"C3:A2", &sel.C3},
		{"C4:A1", &sel.C4},
		{"EOGl:A2", &sel.EL},
		{"EOGr:A1", &sel.ER},
	}
	for _, p := range prompts {
		fmt.Printf("Please select the %s channel number: \n", p.name)
		var n int
		if _, err := fmt.Fscan(in, &n); err != nil {
			return fmt.Errorf("reading channel number: %w", err)
		}
		if n < 1 || n > len(signals) {
			return fmt.Errorf("invalid channel number %d", n)
		}
		*p.dst = strings.ToLower(signals[n-1].Label)
	}
	return nil
}

// logPath derives the HTML log path next to the first input.
func logPath(firstInput string) string {
	abs, err := filepath.Abs(firstInput)
	if err != nil {
		abs = firstInput
	}
	stamp := time.Now().Format("02-Jan-2006-1504")
	return filepath.Join(filepath.Dir(abs), stamp+"_log.html")
}
