// ABOUTME: Command-line inspector for soittokone project files
// ABOUTME: Prints the audio path and markers, optionally as JSON
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/soittokone/soittokone-go/internal/ui"
	"github.com/soittokone/soittokone-go/pkg/project"
)

var (
	asJSON = flag.Bool("json", false, "Print JSON instead of text")
)

type projectInfo struct {
	Path      string   `json:"path"`
	AudioPath string   `json:"audio_path"`
	Markers   []uint32 `json:"markers_ms"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-json] <project%s>...\n", os.Args[0], project.Extension)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		if err := inspect(os.Stdout, path, *asJSON); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspect(w io.Writer, path string, asJSON bool) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}

	info := projectInfo{
		Path:      path,
		AudioPath: p.AudioPath,
		Markers:   p.Markers.Markers(),
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	audio := info.AudioPath
	if audio == "" {
		audio = "(none)"
	}
	fmt.Fprintf(w, "%s\n", info.Path)
	fmt.Fprintf(w, "  Audio:   %s\n", audio)
	fmt.Fprintf(w, "  Markers: %d\n", len(info.Markers))
	for i, ms := range info.Markers {
		fmt.Fprintf(w, "    %3d  %s  (%dms)\n", i+1, ui.FormatMs(int64(ms)), ms)
	}
	return nil
}
