// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"fundus-viewer/internal/app"
	"fundus-viewer/internal/config"
	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/history"
	"fundus-viewer/internal/processing"
	"fundus-viewer/internal/version"
	"fundus-viewer/internal/viewer"
	"fundus-viewer/pkg/geometry"
	"fundus-viewer/ui/canvas"
	"fundus-viewer/ui/prefs"
)

const title = "Fundus Viewer"

// Auto window/level stretches these luminance quantiles.
const (
	autoLow  = 0.01
	autoHigh = 0.99
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	session *app.Session
	viewer  *viewer.Viewer
	canvas  *canvas.FundusCanvas
	history *history.History
	prefs   *prefs.Prefs
	log     zerolog.Logger

	toolButtons map[viewer.Tool]*widget.Button
	showBase    *widget.Check
	showSegment *widget.Check
	showAnnot   *widget.Check
	imageSelect *widget.Select
	segmentBtn  *widget.Button
	statusBar   *widget.Label

	undoItem   *fyne.MenuItem
	redoItem   *fyne.MenuItem
	recentMenu *fyne.Menu

	// syncing suppresses widget callbacks while widgets follow the model.
	syncing bool
}

// New creates the main window for session. A nil cfg uses the defaults.
func New(fyneApp fyne.App, session *app.Session, cfg *config.Config, p *prefs.Prefs, logger zerolog.Logger) *MainWindow {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}

	mw := &MainWindow{
		Window:  fyneApp.NewWindow(title),
		app:     fyneApp,
		session: session,
		viewer:  viewer.New(cfg, logger),
		history: history.New(cfg.History.Limit),
		prefs:   p,
		log:     logger.With().Str("component", "mainwindow").Logger(),
	}
	mw.viewer.SetHistory(mw.history)
	mw.viewer.SetTouchEnabled(fyne.CurrentDevice().IsMobile())
	mw.canvas = canvas.New(mw.viewer)

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.restorePrefs()

	return mw
}

// Viewer returns the viewer core shown in the window.
func (mw *MainWindow) Viewer() *viewer.Viewer {
	return mw.viewer
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.statusBar = widget.NewLabel("Ready")

	mw.imageSelect = widget.NewSelect(nil, func(string) { mw.onSelectImage() })
	mw.imageSelect.PlaceHolder = "No image"

	top := container.NewBorder(nil, nil, mw.createToolbar(), mw.imageSelect)

	mw.showBase = widget.NewCheck("Base", func(b bool) {
		mw.onDisplayToggle(prefs.KeyShowBase, b, (*fundus.Image).ShowBase)
	})
	mw.showSegment = widget.NewCheck("Segmentation", func(b bool) {
		mw.onDisplayToggle(prefs.KeyShowSegment, b, (*fundus.Image).ShowSegmented)
	})
	mw.showAnnot = widget.NewCheck("Annotation", func(b bool) {
		mw.onDisplayToggle(prefs.KeyShowAnnot, b, (*fundus.Image).ShowAnnotated)
	})
	mw.segmentBtn = widget.NewButton("Segment", mw.onSegment)
	autoBtn := widget.NewButton("Auto W/L", mw.onAutoWindowLevel)

	bottom := container.NewHBox(
		mw.showBase, mw.showSegment, mw.showAnnot,
		widget.NewSeparator(),
		autoBtn, mw.segmentBtn,
		layout.NewSpacer(),
		mw.statusBar,
	)

	mw.SetContent(container.NewBorder(top, bottom, nil, nil, mw.canvas))
	mw.syncDisplay(nil)
}

// createToolbar creates the tool selector and quick tool buttons.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.toolButtons = make(map[viewer.Tool]*widget.Button)
	tools := container.NewHBox()
	for _, tool := range []viewer.Tool{viewer.ToolCursor, viewer.ToolBrush, viewer.ToolZoom, viewer.ToolRange} {
		tool := tool
		btn := widget.NewButton(toolLabel(tool), func() { mw.viewer.SetTool(tool) })
		mw.toolButtons[tool] = btn
		tools.Add(btn)
	}
	mw.updateToolButtons(mw.viewer.Tool())

	quick := container.NewHBox(
		widget.NewButtonWithIcon("", theme.ViewFullScreenIcon(), mw.viewer.FitToPage),
		widget.NewButtonWithIcon("", theme.ZoomInIcon(), mw.onZoomIn),
		widget.NewButtonWithIcon("", theme.ZoomOutIcon(), mw.onZoomOut),
		widget.NewButtonWithIcon("", theme.DocumentSaveIcon(), mw.onSave),
		widget.NewButtonWithIcon("", theme.DocumentPrintIcon(), mw.onPrint),
	)

	return container.NewHBox(tools, widget.NewSeparator(), quick)
}

func toolLabel(tool viewer.Tool) string {
	name := tool.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	mw.recentMenu = fyne.NewMenu("")
	recent := fyne.NewMenuItem("Open Recent", nil)
	recent.ChildMenu = mw.recentMenu
	mw.updateRecentMenu()

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpen),
		recent,
		fyne.NewMenuItem("Open Segmentation...", mw.onOpenSegmentation),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Image...", mw.onSave),
		fyne.NewMenuItem("Print...", mw.onPrint),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Close Image", mw.onCloseImage),
	)

	mw.undoItem = fyne.NewMenuItem("Undo", func() { mw.history.Undo() })
	mw.redoItem = fyne.NewMenuItem("Redo", func() { mw.history.Redo() })
	mw.updateHistoryItems()

	editMenu := fyne.NewMenu("Edit",
		mw.undoItem,
		mw.redoItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Clear Annotations", mw.viewer.ClearAnnotations),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		fyne.NewMenuItem("Fit to Window", mw.viewer.FitToPage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Toggle Grayscale", mw.onToggleGrayscale),
		fyne.NewMenuItem("Auto Window/Level", mw.onAutoWindowLevel),
		fyne.NewMenuItem("Reset Window/Level", mw.onResetWindowLevel),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Generate Segmentation", mw.onSegment),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, toolsMenu, helpMenu))
}

func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.history.Undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift},
		func(fyne.Shortcut) { mw.history.Redo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onOpen() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSave() })
}

// setupEventHandlers registers for session and viewer events.
func (mw *MainWindow) setupEventHandlers() {
	mw.canvas.OnImageSet(mw.imageSet)
	mw.viewer.OnToolChange(func(tool viewer.Tool) {
		mw.updateToolButtons(tool)
		mw.prefs.SetString(prefs.KeyTool, tool.String())
	})
	mw.viewer.OnContextMenu(mw.showContextMenu)
	mw.history.OnChange(mw.updateHistoryItems)

	mw.session.On(app.EventImageOpened, func(data interface{}) {
		if img, ok := data.(*fundus.Image); ok {
			img.ShowBase(mw.prefs.Bool(prefs.KeyShowBase, true))
			img.ShowSegmented(mw.prefs.Bool(prefs.KeyShowSegment, true))
			img.ShowAnnotated(mw.prefs.Bool(prefs.KeyShowAnnot, true))
		}
		mw.updateImageSelect()
	})
	mw.session.On(app.EventImageClosed, func(data interface{}) {
		if img, ok := data.(*fundus.Image); ok && mw.viewer.Image() == img {
			mw.activateRemaining()
		}
		mw.updateImageSelect()
	})
	mw.session.On(app.EventLoadFailed, func(data interface{}) {
		loadErr, ok := data.(*app.LoadError)
		if !ok {
			return
		}
		if loadErr.Base {
			mw.prefs.RemoveRecent(loadErr.Path)
			mw.updateRecentMenu()
		}
		mw.updateStatus("Load failed")
		dialog.ShowError(loadErr, mw.Window)
	})
	mw.session.On(app.EventSegmentationReady, func(data interface{}) {
		if img, ok := data.(*fundus.Image); ok {
			mw.updateStatus("Segmentation ready: " + img.Name)
		}
	})

	mw.SetCloseIntercept(func() {
		mw.savePrefs()
		mw.Close()
	})
}

func (mw *MainWindow) restorePrefs() {
	if tool, ok := viewer.ParseTool(mw.prefs.String(prefs.KeyTool)); ok {
		mw.viewer.SetTool(tool)
	}
	w := mw.prefs.Float(prefs.KeyWindowW, 1024)
	h := mw.prefs.Float(prefs.KeyWindowH, 768)
	mw.Resize(fyne.NewSize(float32(w), float32(h)))
	if !mw.session.CanSegment() {
		mw.segmentBtn.Disable()
	}
}

func (mw *MainWindow) savePrefs() {
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefs.KeyWindowW, float64(size.Width))
	mw.prefs.SetFloat(prefs.KeyWindowH, float64(size.Height))
	if err := mw.prefs.Save(); err != nil {
		mw.log.Warn().Err(err).Str("path", mw.prefs.Path()).Msg("failed to save preferences")
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// imageSet syncs the chrome with a newly active image.
func (mw *MainWindow) imageSet(img *fundus.Image) {
	mw.syncDisplay(img)

	mw.syncing = true
	if img == nil {
		mw.imageSelect.ClearSelected()
		mw.SetTitle(title)
	} else {
		for i, open := range mw.session.Images() {
			if open == img {
				mw.imageSelect.SetSelectedIndex(i)
				break
			}
		}
		mw.SetTitle(title + " - " + img.Name)
	}
	mw.syncing = false
}

// syncDisplay makes the display toggles show img's flags.
func (mw *MainWindow) syncDisplay(img *fundus.Image) {
	mw.syncing = true
	defer func() { mw.syncing = false }()

	checks := []*widget.Check{mw.showBase, mw.showSegment, mw.showAnnot}
	if img == nil {
		for _, c := range checks {
			c.Disable()
		}
		return
	}
	d := img.Display()
	for i, on := range []bool{d.ShowBase, d.ShowSegment, d.ShowAnnotate} {
		checks[i].Enable()
		checks[i].SetChecked(on)
	}
}

func (mw *MainWindow) onDisplayToggle(key string, show bool, apply func(*fundus.Image, bool)) {
	if mw.syncing {
		return
	}
	if img := mw.viewer.Image(); img != nil {
		apply(img, show)
	}
	mw.prefs.SetBool(key, show)
}

func (mw *MainWindow) updateToolButtons(active viewer.Tool) {
	for tool, btn := range mw.toolButtons {
		if tool == active {
			btn.Importance = widget.HighImportance
		} else {
			btn.Importance = widget.MediumImportance
		}
		btn.Refresh()
	}
}

func (mw *MainWindow) updateImageSelect() {
	images := mw.session.Images()
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}

	mw.syncing = true
	mw.imageSelect.Options = names
	mw.imageSelect.ClearSelected()
	current := mw.viewer.Image()
	for i, img := range images {
		if img == current {
			mw.imageSelect.SetSelectedIndex(i)
		}
	}
	mw.imageSelect.Refresh()
	mw.syncing = false
}

func (mw *MainWindow) onSelectImage() {
	if mw.syncing {
		return
	}
	i := mw.imageSelect.SelectedIndex()
	images := mw.session.Images()
	if i < 0 || i >= len(images) || images[i] == mw.viewer.Image() {
		return
	}
	mw.viewer.SwapImage(images[i])
}

func (mw *MainWindow) updateHistoryItems() {
	mw.undoItem.Disabled = !mw.history.CanUndo()
	mw.redoItem.Disabled = !mw.history.CanRedo()
	mw.undoItem.Label = "Undo"
	if text := mw.history.UndoText(); text != "" {
		mw.undoItem.Label = text
	}
	mw.redoItem.Label = "Redo"
	if text := mw.history.RedoText(); text != "" {
		mw.redoItem.Label = text
	}
	if menu := mw.MainMenu(); menu != nil {
		menu.Refresh()
	}
}

func (mw *MainWindow) updateRecentMenu() {
	mw.recentMenu.Items = nil
	for _, path := range mw.prefs.Recent() {
		path := path
		mw.recentMenu.Items = append(mw.recentMenu.Items,
			fyne.NewMenuItem(filepath.Base(path), func() { mw.OpenImage(path) }))
	}
	if menu := mw.MainMenu(); menu != nil {
		menu.Refresh()
	}
}

// showContextMenu pops up the canvas context menu at pos in screen pixels.
func (mw *MainWindow) showContextMenu(pos geometry.Point2D) {
	scale := mw.Canvas().Scale()
	origin := fyne.CurrentApp().Driver().AbsolutePositionForObject(mw.canvas)
	at := origin.Add(fyne.NewPos(float32(pos.X)/scale, float32(pos.Y)/scale))

	menu := fyne.NewMenu("",
		fyne.NewMenuItem("Fit to Window", mw.viewer.FitToPage),
		fyne.NewMenuItem("Toggle Grayscale", mw.onToggleGrayscale),
		fyne.NewMenuItem("Auto Window/Level", mw.onAutoWindowLevel),
		fyne.NewMenuItem("Clear Annotations", mw.viewer.ClearAnnotations),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Image...", mw.onSave),
	)
	widget.ShowPopUpMenuAtPosition(menu, mw.Canvas(), at)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

// OpenImage starts loading path and makes it the active image.
func (mw *MainWindow) OpenImage(path string) *fundus.Image {
	return mw.OpenImageWithSegmentation(path, "")
}

// OpenImageWithSegmentation loads path and its segmentation layer and
// makes it the active image.
func (mw *MainWindow) OpenImageWithSegmentation(path, segPath string) *fundus.Image {
	mw.prefs.AddRecent(path)
	mw.updateRecentMenu()
	img := mw.session.Open(path, segPath)
	mw.viewer.SwapImage(img)
	if !mw.session.Has(img) {
		// Decoding failed before the swap; the close handler saw another
		// image active.
		mw.activateRemaining()
		return img
	}
	mw.updateStatus("Loading " + img.Name)
	return img
}

// Menu action handlers

func (mw *MainWindow) openDialog(onPath func(path string)) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		onPath(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(fundus.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpen() {
	mw.openDialog(func(path string) { mw.OpenImage(path) })
}

func (mw *MainWindow) onOpenSegmentation() {
	img := mw.viewer.Image()
	if img == nil {
		dialog.ShowError(viewer.ErrNoImage, mw.Window)
		return
	}
	mw.openDialog(func(path string) {
		seg, err := fundus.Decode(path)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		img.SetSegmentation(seg)
		mw.updateStatus("Segmentation loaded")
	})
}

func (mw *MainWindow) onCloseImage() {
	img := mw.viewer.Image()
	if img == nil {
		return
	}
	mw.session.Close(img)
}

// activateRemaining shows the most recently opened image after the active
// one was closed. History is dropped since it refers to the closed image.
func (mw *MainWindow) activateRemaining() {
	mw.history.Clear()

	var next *fundus.Image
	if images := mw.session.Images(); len(images) > 0 {
		next = images[len(images)-1]
	}
	mw.viewer.SetImage(next)
}

func (mw *MainWindow) onSave() {
	img := mw.viewer.Image()
	if img == nil {
		dialog.ShowError(viewer.ErrNoImage, mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		if err := mw.viewer.Download(writer); err != nil {
			mw.log.Error().Err(err).Msg("save failed")
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Saved " + writer.URI().Name())
	}, mw.Window)
	fd.SetFileName(strings.TrimSuffix(img.Name, filepath.Ext(img.Name)) + "-annotated.png")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onPrint() {
	if err := mw.viewer.Print(viewer.PrinterFunc(mw.printPNG)); err != nil {
		mw.log.Error().Err(err).Msg("print failed")
		dialog.ShowError(err, mw.Window)
	}
}

// printPNG hands the export to the system viewer, which owns printing.
func (mw *MainWindow) printPNG(png []byte) error {
	f, err := os.CreateTemp("", "fundus-print-*.png")
	if err != nil {
		return fmt.Errorf("create print file: %w", err)
	}
	if _, err := f.Write(png); err != nil {
		f.Close()
		return fmt.Errorf("write print file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write print file: %w", err)
	}
	return mw.app.OpenURL(&url.URL{Scheme: "file", Path: f.Name()})
}

func (mw *MainWindow) onZoomIn() {
	mw.viewer.ZoomSteps(mw.viewer.QuickZoom())
}

func (mw *MainWindow) onZoomOut() {
	mw.viewer.ZoomSteps(-mw.viewer.QuickZoom())
}

func (mw *MainWindow) onToggleGrayscale() {
	if img := mw.viewer.Image(); img != nil {
		img.SetGrayscale(!img.Grayscale())
	}
}

func (mw *MainWindow) onAutoWindowLevel() {
	img := mw.viewer.Image()
	if img == nil || !img.Loaded() {
		return
	}
	window, level, ok := processing.AutoWindowLevel(img.Base(), autoLow, autoHigh)
	if !ok {
		mw.updateStatus("Auto window/level: image has no contrast")
		return
	}
	img.SetWindowLevel(window, level)
	mw.updateStatus(fmt.Sprintf("Window %.2f, level %.2f", window, level))
}

func (mw *MainWindow) onResetWindowLevel() {
	if img := mw.viewer.Image(); img != nil {
		img.SetWindowLevel(fundus.DefaultWindow, fundus.DefaultLevel)
	}
}

func (mw *MainWindow) onSegment() {
	img := mw.viewer.Image()
	if img == nil {
		dialog.ShowError(viewer.ErrNoImage, mw.Window)
		return
	}
	mw.updateStatus("Segmenting " + img.Name)
	mw.segmentBtn.Disable()
	go func() {
		defer mw.segmentBtn.Enable()
		if err := mw.session.Segment(img); err != nil {
			mw.log.Error().Err(err).Msg("segmentation failed")
			mw.updateStatus("Segmentation failed")
			dialog.ShowError(err, mw.Window)
		}
	}()
}

// OfferRestart asks whether to restart into a newer build.
func (mw *MainWindow) OfferRestart(h *app.HotReloader) {
	dialog.ShowConfirm("New build available",
		"A newer build of the viewer was installed. Restart now?",
		func(restart bool) {
			if !restart {
				h.ResetBaseline()
				return
			}
			mw.savePrefs()
			if err := h.Restart(); err != nil {
				dialog.ShowError(err, mw.Window)
			}
		}, mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+title,
		fmt.Sprintf("%s %s\n\n"+
			"View, adjust and annotate retinal fundus photographs.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			title, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
