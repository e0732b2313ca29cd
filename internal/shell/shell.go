// ABOUTME: Interactive command shell for the marker player
// ABOUTME: Line-oriented alternative to the TUI with history and completion
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/soittokone/soittokone-go/internal/app"
	"github.com/soittokone/soittokone-go/internal/recent"
	"github.com/soittokone/soittokone-go/internal/ui"
	"github.com/soittokone/soittokone-go/pkg/project"
)

// Controller is the part of the application the shell drives
type Controller interface {
	ui.Controller

	OpenAudio(path string) error
	ReplaceAudio(path string) error
	OpenProject(path string) error
	NewProject()
	Play() error
	Pause()
	AddMarkerAt(ms uint32) bool
	Status() app.Status
	Recent(limit int) ([]recent.Entry, error)
}

// Shell reads commands and applies them to the application
type Shell struct {
	ctrl Controller
	out  io.Writer

	// in replaces the terminal with a scripted command stream
	in io.ReadCloser
}

// New creates a shell writing its output to out
func New(ctrl Controller, out io.Writer) *Shell {
	return &Shell{ctrl: ctrl, out: out}
}

// Completer returns the auto-completion for the shell
func (s *Shell) Completer() readline.AutoCompleter {
	files := readline.PcItemDynamic(listFiles)
	return readline.NewPrefixCompleter(
		readline.PcItem("open", files),
		readline.PcItem("load", files),
		readline.PcItem("new"),
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("seek"),
		readline.PcItem("goto"),
		readline.PcItem("mark"),
		readline.PcItem("next"),
		readline.PcItem("until"),
		readline.PcItem("stops",
			readline.PcItem("on"),
			readline.PcItem("off"),
		),
		readline.PcItem("markers"),
		readline.PcItem("save", files),
		readline.PcItem("status"),
		readline.PcItem("recent"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// listFiles completes paths relative to the working directory
func listFiles(line string) []string {
	fields := strings.Fields(line)
	dir := "."
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		dir = filepath.Dir(fields[len(fields)-1])
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := filepath.Join(dir, e.Name())
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}
	return names
}

// Run reads commands until exit, EOF, interrupt or ctx is cancelled
func (s *Shell) Run(ctx context.Context, historyFile string) error {
	cfg := &readline.Config{
		Prompt:          "soittokone> ",
		HistoryFile:     historyFile,
		AutoComplete:    s.Completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.out,
	}
	if s.in != nil {
		cfg.Stdin = s.in
		cfg.FuncIsTerminal = func() bool { return false }
		cfg.FuncMakeRaw = func() error { return nil }
		cfg.FuncExitRaw = func() error { return nil }
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}

	// Closing the instance makes a pending Readline return io.EOF. The
	// close itself can block until stdin yields, so it is never waited on
	// from a cancelled shell.
	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer func() {
		if stop() {
			_ = rl.Close()
		}
	}()

	s.out = rl.Stdout()
	fmt.Fprintln(s.out, "Type 'help' for commands")

	for {
		input, err := rl.Readline()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !s.HandleCommand(input) {
			return nil
		}
	}
}

// HandleCommand executes one command line. It returns false when the
// shell should exit.
func (s *Shell) HandleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "exit", "quit", "q":
		return false
	case "help", "?":
		s.printCommands()
	case "open":
		err = s.open(args)
	case "load":
		err = s.load(args)
	case "new":
		s.ctrl.NewProject()
		s.println("New project")
	case "play":
		err = s.ctrl.Play()
	case "pause":
		s.ctrl.Pause()
	case "seek":
		err = s.seek(args)
	case "goto":
		err = s.gotoTime(args)
	case "mark":
		err = s.mark(args)
	case "next":
		if ms, ok := s.ctrl.NextMarker(); ok {
			s.printf("At marker %s\n", ui.FormatMs(int64(ms)))
		} else {
			s.println("No marker ahead")
		}
	case "until":
		err = s.ctrl.PlayToNextMarker()
	case "stops":
		err = s.stops(args)
	case "markers":
		s.printMarkers()
	case "save":
		err = s.save(args)
	case "status":
		s.printStatus()
	case "recent":
		err = s.printRecent()
	default:
		s.printf("Unknown command: %s (type 'help')\n", cmd)
	}

	if err != nil {
		s.printf("Error: %v\n", err)
	}
	return true
}

func (s *Shell) open(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: open <audio file|project file>")
	}
	path := strings.Join(args, " ")
	if strings.EqualFold(filepath.Ext(path), project.Extension) {
		if err := s.ctrl.OpenProject(path); err != nil {
			return err
		}
		st := s.ctrl.Status()
		s.printf("Opened project %s (%d markers)\n", path, len(st.Markers))
		return nil
	}
	if err := s.ctrl.OpenAudio(path); err != nil {
		return err
	}
	s.printf("Opened %s (%s)\n", path, ui.FormatMs(s.ctrl.Status().DurationMs))
	return nil
}

func (s *Shell) load(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: load <audio file>")
	}
	path := strings.Join(args, " ")
	if err := s.ctrl.ReplaceAudio(path); err != nil {
		return err
	}
	s.printf("Loaded %s into the project\n", path)
	return nil
}

func (s *Shell) seek(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: seek <+/-seconds>")
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q", args[0])
	}
	s.ctrl.Seek(time.Duration(secs * float64(time.Second)))
	s.printPosition()
	return nil
}

func (s *Shell) gotoTime(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: goto <seconds|mm:ss>")
	}
	secs, err := ParseTime(args[0])
	if err != nil {
		return err
	}
	s.ctrl.SeekTo(secs)
	s.printPosition()
	return nil
}

func (s *Shell) mark(args []string) error {
	if len(args) == 0 {
		ms, added, err := s.ctrl.AddMarker()
		if err != nil {
			return err
		}
		s.reportMarker(ms, added)
		return nil
	}

	secs, err := ParseTime(args[0])
	if err != nil {
		return err
	}
	ms := uint32(min(math.Round(secs*1000), math.MaxUint32))
	s.reportMarker(ms, s.ctrl.AddMarkerAt(ms))
	return nil
}

func (s *Shell) reportMarker(ms uint32, added bool) {
	if added {
		s.printf("Marker added at %s\n", ui.FormatMs(int64(ms)))
		return
	}
	s.printf("Marker already at %s\n", ui.FormatMs(int64(ms)))
}

func (s *Shell) stops(args []string) error {
	if len(args) == 0 {
		on := "off"
		if s.ctrl.Status().StopAtMarkers {
			on = "on"
		}
		s.printf("Stop at markers: %s\n", on)
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.ctrl.SetStopAtMarkers(true)
	case "off":
		s.ctrl.SetStopAtMarkers(false)
	default:
		return errors.New("usage: stops on|off")
	}
	return nil
}

func (s *Shell) save(args []string) error {
	path := strings.Join(args, " ")
	if path != "" && filepath.Ext(path) == "" {
		path += project.Extension
	}
	if err := s.ctrl.SaveProject(path); err != nil {
		if errors.Is(err, app.ErrNoProjectPath) {
			return errors.New("usage: save <file> (project has not been saved yet)")
		}
		return err
	}
	s.printf("Saved %s\n", s.ctrl.Status().ProjectPath)
	return nil
}

func (s *Shell) printPosition() {
	st := s.ctrl.Status()
	s.printf("%s / %s\n", ui.FormatMs(st.PositionMs), ui.FormatMs(st.DurationMs))
}

func (s *Shell) printMarkers() {
	st := s.ctrl.Status()
	if len(st.Markers) == 0 {
		s.println("No markers")
		return
	}
	for i, ms := range st.Markers {
		prefix := "  "
		if int64(ms) == st.NextMarkerMs {
			prefix = "> "
		}
		s.printf("%s%3d  %s  (%dms)\n", prefix, i+1, ui.FormatMs(int64(ms)), ms)
	}
}

func (s *Shell) printStatus() {
	st := s.ctrl.Status()
	audio := st.AudioPath
	if audio == "" {
		audio = "(none)"
	}
	proj := st.ProjectPath
	if proj == "" {
		proj = "(unsaved)"
	}
	if st.Dirty {
		proj += " (modified)"
	}
	next := "none"
	if st.NextMarkerMs >= 0 {
		next = ui.FormatMs(st.NextMarkerMs)
	}
	stops := "off"
	if st.StopAtMarkers {
		stops = "on"
	}

	s.printf("--- Status ---\n")
	s.printf("Audio:           %s\n", audio)
	s.printf("Project:         %s\n", proj)
	s.printf("State:           %s\n", st.State)
	s.printf("Position:        %s / %s\n", ui.FormatMs(st.PositionMs), ui.FormatMs(st.DurationMs))
	s.printf("Markers:         %d (next: %s)\n", len(st.Markers), next)
	s.printf("Stop at markers: %s\n", stops)
}

func (s *Shell) printRecent() error {
	entries, err := s.ctrl.Recent(10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.println("No recent projects")
		return nil
	}
	for _, e := range entries {
		s.printf("  %s  %s  at %s\n", e.OpenedAt.Format("2006-01-02 15:04"), e.Path, ui.FormatMs(e.PositionMs))
	}
	return nil
}

func (s *Shell) printCommands() {
	s.printf("\nCommands:\n")
	s.printf("  open <file>          Open an audio file or a %s project\n", project.Extension)
	s.printf("  load <file>          Replace the project's audio, keeping markers\n")
	s.printf("  new                  Start an empty project on the current audio\n")
	s.printf("  play / pause         Start or stop playback\n")
	s.printf("  seek <+/-secs>       Move the playhead relative to where it is\n")
	s.printf("  goto <secs|mm:ss>    Move the playhead to a time\n")
	s.printf("  mark [secs|mm:ss]    Add a marker at the playhead or at a time\n")
	s.printf("  next                 Jump to the next marker\n")
	s.printf("  until                Play to the next marker\n")
	s.printf("  stops on|off         Stop playback at every marker\n")
	s.printf("  markers              List markers\n")
	s.printf("  save [file]          Save the project\n")
	s.printf("  status               Show player status\n")
	s.printf("  recent               List recently opened projects\n")
	s.printf("  exit                 Quit\n\n")
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(text string) {
	fmt.Fprintln(s.out, text)
}

// ParseTime parses seconds ("90", "12.5") or clock time ("1:30", "1:02:03")
func ParseTime(text string) (float64, error) {
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", text)
	}

	var secs float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("invalid time %q", text)
		}
		if i < len(parts)-1 && v != float64(int64(v)) {
			return 0, fmt.Errorf("invalid time %q", text)
		}
		secs = secs*60 + v
	}
	return secs, nil
}
