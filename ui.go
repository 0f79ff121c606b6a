package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/j-04/gocui-component"
	"github.com/jroimartin/gocui"

	"karaoke/capture"
	"karaoke/catalog"
	"karaoke/playback"
	"karaoke/session"
)

type App struct {
	Mic       *session.Mic
	Transport *playback.Transport
	Store     *catalog.Store
	Speaker   *speaker

	ctx   context.Context
	gui   *gocui.Gui
	vinfo *gocui.View
	vmain *gocui.View
	vcmd  *gocui.View

	mu      sync.Mutex
	songs   []catalog.Song
	current int
	status  string
	score   int
	message string
}

var highlight = color.New(color.FgGreen, color.Bold).SprintFunc()

func (app *App) Layout(g *gocui.Gui) (err error) {
	maxX, maxY := g.Size()

	app.vinfo, err = g.SetView("info", 0, 0, maxX-1, 3)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vinfo.Title = "Karaoke"
	}

	app.vmain, err = g.SetView("main", 0, 4, maxX-1, maxY-5)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vmain.Title = "Lyrics"
		app.vmain.Wrap = true
	}

	app.vcmd, err = g.SetView("cmdline", 0, maxY-4, maxX-1, maxY-1)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vcmd.Title = "Available commands"
		fmt.Fprintf(app.vcmd, "^C/^Q: quit  m: toggle microphone  space: play/pause  n: next song  p: previous song\n")
		fmt.Fprintf(app.vcmd, "r: reload songs  c: clear message")

		if app.Speaker != nil {
			fmt.Fprintf(app.vcmd, "  V: +volume  v: -volume  s: toggle sound/mute")
		}
	}

	app.drawInfo()
	app.drawLyrics(maxY - 10)
	return nil
}

func (app *App) drawInfo() {
	app.mu.Lock()
	status, score, message := app.status, app.score, app.message
	app.mu.Unlock()

	r := app.Mic.Reading()
	pos := time.Duration(app.Transport.CurrentTime() * float64(time.Second))

	title := "no song"
	if song, ok := app.Transport.Song(); ok {
		title = song.String()
	}

	state := "stopped"
	if app.Transport.Playing() {
		state = "playing"
	}

	app.vinfo.Clear()
	app.vinfo.SetOrigin(0, 0)

	fmt.Fprintf(app.vinfo,
		"[%v] Mic: %-10s Score: %5d  Pitch: %6.1fhz %-8s Target: %5.1fhz  Accuracy: %3.0f%%\n",
		string(r.Bars[:]),
		status,
		score,
		r.Pitch,
		r.Note,
		r.Expected,
		r.Accuracy,
	)

	fmt.Fprintf(app.vinfo, "%s  [%s %8v]", title, state, pos.Truncate(time.Second).String())

	if app.Speaker != nil {
		if app.Speaker.Muted() {
			fmt.Fprintf(app.vinfo, "  vol: muted")
		} else {
			fmt.Fprintf(app.vinfo, "  vol: %d", int(app.Speaker.Volume()*10+0.5))
		}
	}
	if message != "" {
		fmt.Fprintf(app.vinfo, "  %s", message)
	}
}

func (app *App) drawLyrics(height int) {
	lines := app.Transport.Lyrics()
	cur := catalog.CurrentLine(lines, app.Transport.CurrentTime())

	app.vmain.Clear()

	if len(lines) == 0 {
		fmt.Fprintln(app.vmain, "No lyrics available")
		return
	}

	// keep the current line on screen
	first := 0
	if height > 0 && cur >= height/2 {
		first = cur - height/2
	}

	for i := first; i < len(lines); i++ {
		if i == cur {
			fmt.Fprintln(app.vmain, highlight("> "+lines[i].Text))
		} else {
			fmt.Fprintln(app.vmain, "  "+lines[i].Text)
		}
	}
}

func (app *App) SetKeyBinding() error {

	//
	// quit application: CtrlC / CtrlQ
	//

	quit := func(g *gocui.Gui, v *gocui.View) error {
		return gocui.ErrQuit
	}

	if err := app.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := app.gui.SetKeybinding("", gocui.KeyCtrlQ, gocui.ModNone, quit); err != nil {
		return err
	}

	//
	// clear message: c
	//

	clearMessage := func(g *gocui.Gui, v *gocui.View) error {
		app.setMessage("")
		return nil
	}

	if err := app.gui.SetKeybinding("", 'c', gocui.ModNone, clearMessage); err != nil {
		return err
	}

	//
	// toggle microphone: m
	//

	toggleMic := func(g *gocui.Gui, v *gocui.View) error {
		app.toggleMic()
		return nil
	}

	if err := app.gui.SetKeybinding("", 'm', gocui.ModNone, toggleMic); err != nil {
		return err
	}

	//
	// play/pause: space
	//

	togglePlay := func(g *gocui.Gui, v *gocui.View) error {
		if _, ok := app.Transport.Song(); !ok {
			app.setMessage("Select a song")
			return nil
		}
		app.Transport.Toggle()
		return nil
	}

	if err := app.gui.SetKeybinding("", gocui.KeySpace, gocui.ModNone, togglePlay); err != nil {
		return err
	}

	//
	// next/previous song: n / p
	//

	nextSong := func(g *gocui.Gui, v *gocui.View) error {
		app.step(1)
		return nil
	}

	prevSong := func(g *gocui.Gui, v *gocui.View) error {
		app.step(-1)
		return nil
	}

	if err := app.gui.SetKeybinding("", 'n', gocui.ModNone, nextSong); err != nil {
		return err
	}

	if err := app.gui.SetKeybinding("", 'p', gocui.ModNone, prevSong); err != nil {
		return err
	}

	//
	// reload song list: r
	//

	reload := func(g *gocui.Gui, v *gocui.View) error {
		if err := app.reload(); err != nil {
			app.setMessage("Error: " + err.Error())
		}
		return nil
	}

	if err := app.gui.SetKeybinding("", 'r', gocui.ModNone, reload); err != nil {
		return err
	}

	if app.Speaker != nil {

		//
		// toggle sound/mute: s
		//

		toggleMute := func(g *gocui.Gui, v *gocui.View) error {
			app.Speaker.toggleMute()
			return nil
		}

		if err := app.gui.SetKeybinding("", 's', gocui.ModNone, toggleMute); err != nil {
			return err
		}

		//
		// volume up/down: V / v
		//

		volumeUp := func(g *gocui.Gui, v *gocui.View) error {
			app.Speaker.adjust(0.1)
			return nil
		}

		volumeDown := func(g *gocui.Gui, v *gocui.View) error {
			app.Speaker.adjust(-0.1)
			return nil
		}

		if err := app.gui.SetKeybinding("", 'V', gocui.ModNone, volumeUp); err != nil {
			return err
		}

		if err := app.gui.SetKeybinding("", 'v', gocui.ModNone, volumeDown); err != nil {
			return err
		}
	}

	return nil
}

// step loads the song d positions away from the current one, wrapping
// around the list.
func (app *App) step(d int) {
	app.mu.Lock()
	n := len(app.songs)
	if n == 0 {
		app.mu.Unlock()
		app.setMessage("No songs in the library")
		return
	}
	app.current = ((app.current+d)%n + n) % n
	song := app.songs[app.current]
	app.mu.Unlock()

	app.Transport.Load(song)
	app.setMessage("Loaded " + song.String())
}

func (app *App) toggleMic() {
	if err := app.Mic.Toggle(app.ctx); err != nil {
		app.setMessage("Microphone: " + err.Error())
	}
}

func (app *App) reload() error {
	songs, err := app.Store.Songs()
	if err != nil {
		return err
	}

	app.mu.Lock()
	app.songs = songs
	if app.current >= len(songs) {
		app.current = 0
	}
	app.mu.Unlock()

	app.setMessage(fmt.Sprintf("%d songs", len(songs)))
	return nil
}

func (app *App) setScore(score int) {
	app.mu.Lock()
	app.score = score
	app.mu.Unlock()
	app.refresh()
}

func (app *App) setStatus(status string) {
	app.mu.Lock()
	app.status = status
	app.mu.Unlock()
	app.refresh()
}

func (app *App) setMessage(s string) {
	app.mu.Lock()
	app.message = s
	app.mu.Unlock()
	app.refresh()
}

func (app *App) refresh() {
	if app.gui == nil {
		return
	}
	app.gui.Update(func(g *gocui.Gui) error { return nil })
}

// redraw keeps the clock and lyrics moving between score updates.
func (app *App) redraw(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.refresh()
		}
	}
}

var (
	FormSelect = fmt.Errorf("form-selected")
	FormCancel = fmt.Errorf("form-cancel")
)

// guiSelectAudio asks for the input device. It returns "" for the default
// device when the form is cancelled.
func guiSelectAudio() (device string, err error) {
	devices, err := capture.ListDevices(capture.In)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", capture.ErrDeviceUnavailable
	}

	list := make([]string, len(devices))
	for i, d := range devices {
		list[i] = d.Name
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return "", err
	}
	defer g.Close()

	form := component.NewForm(g, "Select input device", 8, len(list), 0, 0)
	sel := form.AddSelect("Device:", 8, 40).AddOptions(list...)

	form.AddButton("Select", func(g *gocui.Gui, v *gocui.View) error {
		device = sel.GetSelected()
		form.Close(g, v)
		return FormSelect
	})

	form.AddButton("Cancel", func(g *gocui.Gui, v *gocui.View) error {
		form.Close(g, v)
		return FormCancel
	})

	form.Draw()

	if err := g.MainLoop(); err != FormSelect && err != FormCancel {
		return "", err
	}

	return device, nil
}

// guiSelectSong asks for the song to start with. It returns -1 when the
// form is cancelled.
func guiSelectSong(songs []catalog.Song) (index int, err error) {
	index = -1

	labels := make([]string, len(songs))
	for i, s := range songs {
		labels[i] = fmt.Sprintf("%d. %s", s.ID, s)
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return -1, err
	}
	defer g.Close()

	form := component.NewForm(g, "Select a song", 8, len(labels), 0, 0)
	sel := form.AddSelect("Song:", 8, 50).AddOptions(labels...)

	form.AddButton("Select", func(g *gocui.Gui, v *gocui.View) error {
		picked := sel.GetSelected()
		for i, l := range labels {
			if l == picked {
				index = i
				break
			}
		}
		form.Close(g, v)
		return FormSelect
	})

	form.AddButton("Cancel", func(g *gocui.Gui, v *gocui.View) error {
		form.Close(g, v)
		return FormCancel
	})

	form.Draw()

	if err := g.MainLoop(); err != FormSelect && err != FormCancel {
		return -1, err
	}

	return index, nil
}

// printer writes session updates to stdout in -noui mode.
type printer struct {
	mu    sync.Mutex
	mic   *session.Mic
	last  int
	score *color.Color
	label *color.Color
	fail  *color.Color
}

func newPrinter(mic *session.Mic) *printer {
	return &printer{
		mic:   mic,
		last:  -1,
		score: color.New(color.FgGreen, color.Bold),
		label: color.New(color.FgCyan),
		fail:  color.New(color.FgRed),
	}
}

func (p *printer) setScore(score int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if score == p.last {
		return
	}
	p.last = score

	r := p.mic.Reading()
	p.label.Print("score ")
	p.score.Printf("%5d", score)
	fmt.Printf("  pitch %6.1fhz %-8s target %5.1fhz accuracy %3.0f%%\n", r.Pitch, r.Note, r.Expected, r.Accuracy)
}

func (p *printer) setStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.HasPrefix(status, "Error") {
		p.fail.Println("Microphone:", status)
		return
	}
	p.label.Print("Microphone: ")
	fmt.Println(status)
}
