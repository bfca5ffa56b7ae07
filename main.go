// Package main provides the entry point for the Mobile PDF viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	"mobile-pdf/internal/app"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/logging"
	"mobile-pdf/internal/pdfdoc"
	"mobile-pdf/internal/version"
	"mobile-pdf/ui/mainwindow"
	"mobile-pdf/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "io.github.mobile-pdf"

func main() {
	verbose := flag.Bool("v", false, "Debug logging")
	prefsPath := flag.String("prefs", "", "Preferences file (default: user config dir)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting Mobile PDF %s", version.String())

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var appPrefs *prefs.Prefs
	if *prefsPath != "" {
		appPrefs = prefs.LoadFrom(*prefsPath)
	} else {
		appPrefs = prefs.Load()
	}

	loop := host.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := loop.Run(ctx, host.DefaultFrameInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Event loop stopped: %v", err)
		}
	}()

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.ViewerTheme{})

	appState := app.NewState()
	win, err := mainwindow.New(fyneApp, appState, appPrefs, loop, pdfdoc.New())
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}

	// Handle command line arguments
	if flag.NArg() > 0 {
		win.OpenDocument(flag.Arg(0))
	} else {
		win.RestoreLastDocument()
	}

	win.ShowAndRun()
}
