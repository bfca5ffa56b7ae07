// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"mobile-pdf/internal/app"
	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/host"
	"mobile-pdf/internal/pagestack"
	"mobile-pdf/internal/render"
	"mobile-pdf/internal/version"
	"mobile-pdf/internal/viewer"
	"mobile-pdf/pkg/geometry"
	"mobile-pdf/ui/pageview"
	"mobile-pdf/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	appTitle      = "Mobile PDF"
	watchInterval = time.Second
	buttonZoom    = 1.25
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs
	loop  *host.Loop

	stack     *pagestack.Stack
	view      *pageview.PageView
	viewer    *viewer.Viewer
	statusBar *widget.Label
	pageLabel *widget.Label
	indicator pageIndicator

	mu      sync.Mutex
	watcher *app.DocumentWatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new main window.  The viewer runs on loop, which the
// caller must be running.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs, loop *host.Loop, dec decoder.Decoder) (*MainWindow, error) {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
		loop:   loop,
	}
	mw.ctx, mw.cancel = context.WithCancel(context.Background())

	cfg := p.ViewerConfig()
	cfg.Render.Hooks = state.Hooks()
	mw.stack = pagestack.New(loop, geometry.NewSize(400, 600))
	v, err := viewer.New(mw.stack, loop, dec, cfg)
	if err != nil {
		return nil, err
	}
	mw.viewer = v
	mw.view = pageview.New(mw.stack, loop)
	loop.Post(func() {
		v.OnTransform(state.TransformChanged)
		v.Attach(mw.view)
	})

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	win.SetOnClosed(mw.shutdown)
	win.Resize(fyne.NewSize(480, 800))

	return mw, nil
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.statusBar = widget.NewLabel("Ready")
	mw.pageLabel = widget.NewLabel("")

	content := container.NewBorder(
		mw.createToolbar(),                // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		mw.view,                           // center
	)
	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	return container.NewHBox(
		widget.NewButton("Open", mw.onOpen),
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", func() { mw.zoom(1 / buttonZoom) }),
		widget.NewButton("+", func() { mw.zoom(buttonZoom) }),
		widget.NewButton("Reset", mw.onResetView),
		mw.pageLabel,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open...", mw.onOpen),
		fyne.NewMenuItem("Reload", mw.onReload),
		fyne.NewMenuItem("Close Document", mw.onCloseDocument),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.zoom(buttonZoom) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.zoom(1 / buttonZoom) }),
		fyne.NewMenuItem("Reset View", mw.onResetView),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)
	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDocumentLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(appTitle + " - " + filepath.Base(path))
			mw.updateStatus("Opened " + path)
			mw.updatePageLabel()
		}
	})

	mw.state.On(app.EventLoadFailed, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.updateStatus("Open failed")
			dialog.ShowError(err, mw.Window)
		}
	})

	mw.state.On(app.EventDocumentClosed, func(data interface{}) {
		mw.SetTitle(appTitle)
		mw.updatePageLabel()
		mw.updateStatus("Ready")
	})

	mw.state.On(app.EventTransformChanged, func(data interface{}) {
		mw.updatePageLabel()
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) updatePageLabel() {
	if text, changed := mw.indicator.update(mw.stack.CurrentPage(), mw.state.Pages()); changed {
		mw.pageLabel.SetText(text)
	}
}

// OpenDocument loads path in the background and remembers it.
func (mw *MainWindow) OpenDocument(path string) {
	mw.updateStatus("Opening " + filepath.Base(path) + "...")
	go func() {
		err := mw.state.OpenDocument(mw.ctx, mw.viewer, path)
		if err != nil {
			if !errors.Is(err, render.ErrSuperseded) {
				log.Printf("Failed to open %s: %v", path, err)
			}
			return
		}
		mw.prefs.SetString(prefs.KeyLastDocument, path)
		mw.prefs.SetString(prefs.KeyLastDirectory, filepath.Dir(path))
		if mw.prefs.Bool(prefs.KeyWatchDocument, true) {
			mw.watch(path)
		}
	}()
}

// RestoreLastDocument reopens the document from the previous session.
func (mw *MainWindow) RestoreLastDocument() {
	if path := mw.prefs.String(prefs.KeyLastDocument); path != "" {
		mw.OpenDocument(path)
	}
}

// watch reloads path whenever it is rewritten.
func (mw *MainWindow) watch(path string) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.watcher != nil {
		if mw.watcher.Path() == path {
			return
		}
		mw.watcher.Stop()
		mw.watcher = nil
	}
	w, err := app.NewDocumentWatcher(path, watchInterval)
	if err != nil {
		log.Printf("Document watch: %v", err)
		return
	}
	w.OnChange(func(p string) {
		log.Printf("Document watch: %s changed, reloading", p)
		mw.OpenDocument(p)
	})
	w.Start()
	mw.watcher = w
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDirectory)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// SavePreferences writes preferences to disk.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

func (mw *MainWindow) stopWatching() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.watcher != nil {
		mw.watcher.Stop()
		mw.watcher = nil
	}
}

func (mw *MainWindow) shutdown() {
	mw.cancel()
	mw.stopWatching()
	mw.loop.Post(mw.viewer.Close)
	mw.SavePreferences()
}

// Menu action handlers

func (mw *MainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.OpenDocument(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onReload() {
	if path := mw.state.Path(); path != "" {
		mw.OpenDocument(path)
	}
}

func (mw *MainWindow) onCloseDocument() {
	mw.stopWatching()
	mw.loop.Post(mw.viewer.Unload)
	mw.state.CloseDocument()
	mw.prefs.SetString(prefs.KeyLastDocument, "")
}

func (mw *MainWindow) onResetView() {
	mw.loop.Post(mw.viewer.ResetView)
}

// zoom scales around the middle of the view.
func (mw *MainWindow) zoom(factor float64) {
	size := mw.view.Size()
	x, y := float64(size.Width)/2, float64(size.Height)/2
	mw.loop.Post(func() { mw.viewer.ZoomAt(x, y, factor) })
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"A touch-driven PDF viewer.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
