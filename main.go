// ABOUTME: Entry point for the soittokone marker player
// ABOUTME: Loads configuration, wires the application and starts a front-end
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/soittokone/soittokone-go/internal/app"
	"github.com/soittokone/soittokone-go/internal/config"
	"github.com/soittokone/soittokone-go/internal/recent"
	"github.com/soittokone/soittokone-go/internal/shell"
	"github.com/soittokone/soittokone-go/internal/ui"
	"github.com/soittokone/soittokone-go/internal/version"
	"github.com/soittokone/soittokone-go/pkg/audio/decode"
	"github.com/soittokone/soittokone-go/pkg/audio/output"
	"github.com/soittokone/soittokone-go/pkg/playback"
	"github.com/soittokone/soittokone-go/pkg/project"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	useTUI := !cfg.NoTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Shell mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.Printf("Starting %s %s (output: %s)", version.Product, version.Version, cfg.Output)

	out, err := output.New(cfg.Output, cfg.BufferMs)
	if err != nil {
		log.Fatalf("Failed to create audio output: %v", err)
	}

	var history *recent.Store
	if cfg.HistoryDB != "" {
		history, err = recent.Open(cfg.HistoryDB)
		if err != nil {
			log.Printf("Recent projects disabled: %v", err)
			history = nil
		} else {
			defer func() { _ = history.Close() }()
		}
	}

	// The TUI program is created after the application it drives
	var tuiProg atomic.Pointer[tea.Program]
	updateTUI := func(st app.Status) {
		if p := tuiProg.Load(); p != nil {
			p.Send(ui.StatusMsg{Status: st})
		}
	}

	source := decode.NewFileSource()
	source.TargetRate = cfg.SampleRate

	a, err := app.New(app.Config{
		Source:        source,
		Output:        out,
		Recent:        history,
		StopAtMarkers: cfg.StopAtMarkers,
		OnStatus:      updateTUI,
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Error closing player: %v", err)
		}
		log.Printf("Player stopped")
	}()

	if cfg.Open != "" {
		if err := openPath(a, cfg.Open); err != nil {
			log.Printf("Failed to open %s: %v", cfg.Open, err)
		}
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if useTUI {
		runTUI(a, &tuiProg, sigChan)
		return
	}
	runShell(a, sigChan)
}

// openPath opens a project file or, for any other file, an audio file
func openPath(a *app.App, path string) error {
	if strings.EqualFold(filepath.Ext(path), project.Extension) {
		return a.OpenProject(path)
	}
	return a.OpenAudio(path)
}

func runTUI(a *app.App, tuiProg *atomic.Pointer[tea.Program], sigChan <-chan os.Signal) {
	prog := ui.Run(a)
	tuiProg.Store(prog)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			prog.Quit()
		case <-done:
		}
	}()

	go func() {
		prog.Send(ui.StatusMsg{Status: a.Status()})
		statusUpdateLoop(a, prog, done)
	}()

	if _, err := prog.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
	tuiProg.Store(nil)
}

// runShell returns when the shell exits or a signal arrives, leaving the
// deferred cleanup in main to run
func runShell(a *app.App, sigChan <-chan os.Signal) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := shell.New(a, os.Stdout).Run(ctx, historyFile()); err != nil {
		log.Printf("Shell error: %v", err)
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".soittokone_history"
	}
	dir := filepath.Join(home, ".soittokone")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "shell_history")
}

// statusUpdateLoop keeps the playhead moving in the TUI between engine events
func statusUpdateLoop(a *app.App, prog *tea.Program, done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if a.Engine().State() != playback.StatePlaying {
				continue
			}
			prog.Send(ui.StatusMsg{Status: a.Status()})
		}
	}
}
