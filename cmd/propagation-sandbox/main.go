package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/lixenwraith/soundprop/audio"
	"github.com/lixenwraith/soundprop/config"
	"github.com/lixenwraith/soundprop/object"
	"github.com/lixenwraith/soundprop/propagation"
	"github.com/lixenwraith/soundprop/raycast"
	"github.com/lixenwraith/soundprop/service"
	"github.com/lixenwraith/soundprop/status"
	"github.com/lixenwraith/soundprop/vmath"
)

var (
	configFlag = flag.String("config", "", "Config file (.toml, .yaml)")
	debugFlag  = flag.Bool("debug", false, "Write logs/sandbox.log")
	muteFlag   = flag.Bool("mute", false, "Start muted")
	syncFlag   = flag.Bool("sync", false, "Answer rays inline on the audio goroutine")
)

const frameInterval = 50 * time.Millisecond

type Sandbox struct {
	screen tcell.Screen
	log    *zap.Logger

	scene    *Scene
	mu       sync.Mutex // Guards cfg against the reload goroutine
	cfg      *config.Config
	calc     propagation.CalcType
	listener struct{ x, y int }

	hub    *service.Hub
	loop   *object.Loop
	output *audio.Output
	reg    *status.Registry
	msg    string
}

func main() {
	// Restore the terminal if anything below panics
	var screen tcell.Screen
	defer func() {
		if r := recover(); r != nil {
			if screen != nil {
				screen.Fini()
			}
			fmt.Fprintf(os.Stderr, "sandbox crashed: %v\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	flag.Parse()

	log, logFile := setupLogging(*debugFlag)
	if logFile != nil {
		defer logFile.Close()
	}
	defer log.Sync()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *syncFlag {
		cfg.Propagation.SyncRaycasts = true
	}

	scene, err := parseScene(defaultLayout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scene: %v\n", err)
		os.Exit(1)
	}

	sb, err := newSandbox(cfg, scene, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
		os.Exit(1)
	}

	if err := sb.hub.InitAll(cfg, *muteFlag); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	if err := sb.hub.StartAll(); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := sb.hub.StopAll(); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := sb.spawnEmitters(); err != nil {
		fmt.Fprintf(os.Stderr, "emitters: %v\n", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *configFlag != "" {
		go func() {
			if err := config.Watch(ctx, *configFlag, log, sb.applyConfig); err != nil {
				log.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	screen, err = tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		return
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		return
	}
	defer screen.Fini()
	sb.screen = screen

	sb.run()
}

func newSandbox(cfg *config.Config, scene *Scene, log *zap.Logger) (*Sandbox, error) {
	reg := status.NewRegistry()
	world := raycast.NewWorld(scene.Boxes...)
	backend := raycast.NewBackend(world, raycast.WithLogger(log), raycast.WithBackendConfig(cfg.Backend))
	output := audio.NewOutput(audio.NewPropagationTable(), log)

	calc, err := propagation.ParseCalcType(cfg.Propagation.DefaultCalcType)
	if err != nil {
		return nil, err
	}

	mgr, err := object.NewManager(backend, cfg.Propagation,
		object.WithLogger(log),
		object.WithRegistry(reg),
		object.WithSink(output.Table()),
		object.WithMaxObjects(len(scene.Emitters)),
	)
	if err != nil {
		return nil, err
	}
	loop := object.NewLoop(mgr, 0, log)

	hub := service.NewHub()
	for _, svc := range []service.Service{backend, output, loop} {
		if err := hub.Register(svc); err != nil {
			return nil, err
		}
	}

	sb := &Sandbox{
		log:    log,
		scene:  scene,
		cfg:    cfg,
		calc:   calc,
		hub:    hub,
		loop:   loop,
		output: output,
		reg:    reg,
	}
	sb.listener.x = int(scene.Listener.X)
	sb.listener.y = int(scene.Listener.Y)
	return sb, nil
}

// spawnEmitters reserves one object per emitter and starts its tone
func (sb *Sandbox) spawnEmitters() error {
	var err error
	doErr := sb.loop.Do(func(m *object.Manager) {
		for i := range sb.scene.Emitters {
			e := &sb.scene.Emitters[i]
			if e.ID, err = m.ReserveID(); err != nil {
				return
			}
			if err = m.SetPosition(e.ID, e.Pos); err != nil {
				return
			}
		}
	})
	if doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}

	for _, e := range sb.scene.Emitters {
		sb.output.Play(e.ID, e.Freq)
	}
	return sb.loop.SetListener(sb.scene.Listener)
}

// applyConfig is the hot reload callback
func (sb *Sandbox) applyConfig(cfg *config.Config) {
	p := cfg.Propagation
	if *syncFlag {
		p.SyncRaycasts = true
	}
	var err error
	if doErr := sb.loop.Do(func(m *object.Manager) { err = m.SetConfig(p) }); doErr != nil {
		return
	}
	if err != nil {
		sb.log.Warn("propagation config rejected", zap.Error(err))
		return
	}
	sb.output.SetConfig(cfg.Audio)

	sb.mu.Lock()
	sb.cfg.Propagation = p
	sb.cfg.Audio = cfg.Audio
	sb.mu.Unlock()
	sb.log.Info("config applied")
}

func (sb *Sandbox) run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := sb.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	sb.draw()
	for {
		select {
		case ev, ok := <-events:
			if !ok || !sb.handleInput(ev) {
				return
			}
		case <-ticker.C:
			sb.draw()
		}
	}
}

func (sb *Sandbox) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		sb.screen.Sync()

	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			sb.move(-1, 0)
		case tcell.KeyRight:
			sb.move(1, 0)
		case tcell.KeyUp:
			sb.move(0, -1)
		case tcell.KeyDown:
			sb.move(0, 1)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'h':
				sb.move(-1, 0)
			case 'l':
				sb.move(1, 0)
			case 'k':
				sb.move(0, -1)
			case 'j':
				sb.move(0, 1)
			case 'c':
				sb.cycleCalcType()
			case 'r':
				sb.toggleRaycasts()
			case 's':
				sb.toggleSync()
			case 'x':
				sb.resetEmitters()
			case 'm':
				if sb.output.ToggleMute() {
					sb.msg = "muted"
				} else {
					sb.msg = "unmuted"
				}
			}
		}
	}
	return true
}

func (sb *Sandbox) move(dx, dy int) {
	x, y := sb.listener.x+dx, sb.listener.y+dy
	if !sb.scene.Walkable(x, y) {
		return
	}
	sb.listener.x, sb.listener.y = x, y
	if err := sb.loop.SetListener(cellCenter(x, y)); err != nil {
		sb.msg = err.Error()
	}
}

func (sb *Sandbox) cycleCalcType() {
	sb.calc = sb.calc.Next()
	calc := sb.calc
	err := sb.eachEmitter(func(m *object.Manager, id uint64) error {
		return m.SetCalcType(id, calc)
	})
	sb.report("calc "+calc.String(), err)
}

// resetEmitters makes every emitter snap to its next result
func (sb *Sandbox) resetEmitters() {
	err := sb.eachEmitter(func(m *object.Manager, id uint64) error {
		return m.ResetObstructionOcclusion(id)
	})
	sb.report("reset", err)
}

// eachEmitter runs fn for every emitter on the audio goroutine
func (sb *Sandbox) eachEmitter(fn func(m *object.Manager, id uint64) error) error {
	var errs []error
	if err := sb.loop.Do(func(m *object.Manager) {
		for _, e := range sb.scene.Emitters {
			if err := fn(m, e.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (sb *Sandbox) toggleRaycasts() {
	p, err := sb.updatePropagation(func(p *config.Propagation) { p.RaycastsEnabled = !p.RaycastsEnabled })
	sb.report(fmt.Sprintf("raycasts %v", p.RaycastsEnabled), err)
}

func (sb *Sandbox) toggleSync() {
	p, err := sb.updatePropagation(func(p *config.Propagation) { p.SyncRaycasts = !p.SyncRaycasts })
	sb.report(fmt.Sprintf("sync %v", p.SyncRaycasts), err)
}

// updatePropagation edits the propagation section and pushes it to the manager
func (sb *Sandbox) updatePropagation(edit func(*config.Propagation)) (config.Propagation, error) {
	sb.mu.Lock()
	edit(&sb.cfg.Propagation)
	p := sb.cfg.Propagation
	sb.mu.Unlock()

	var err error
	if doErr := sb.loop.Do(func(m *object.Manager) { err = m.SetConfig(p) }); doErr != nil {
		return p, doErr
	}
	if err != nil {
		sb.log.Warn("propagation config rejected", zap.Error(err))
	}
	return p, err
}

// report shows ok on the help line, or err when set
func (sb *Sandbox) report(ok string, err error) {
	if err != nil {
		sb.msg = err.Error()
		return
	}
	sb.msg = ok
}

var (
	styleFloor    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWall     = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleCurtain  = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleListener = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleText     = tcell.StyleDefault
)

func (sb *Sandbox) draw() {
	sb.screen.Clear()

	for y, row := range sb.scene.Cells {
		for x, c := range row {
			style := styleFloor
			switch c {
			case cellWall:
				style = styleWall
			case cellCurtain:
				style = styleCurtain
			}
			sb.screen.SetContent(x, y, c, nil, style)
		}
	}

	table := sb.output.Table()
	for _, e := range sb.scene.Emitters {
		_, occ, _ := table.Lookup(e.ID)
		sb.screen.SetContent(int(e.Pos.X), int(e.Pos.Y), e.Label, nil, emitterStyle(occ))
	}
	sb.screen.SetContent(sb.listener.x, sb.listener.y, cellListener, nil, styleListener)

	line := sb.scene.Height + 1
	for _, e := range sb.scene.Emitters {
		obs, occ, _ := table.Lookup(e.ID)
		sb.print(0, line, fmt.Sprintf("%c  obs %s %.2f  occ %s %.2f", e.Label, bar(obs), obs, bar(occ), occ))
		line++
	}

	sb.mu.Lock()
	p := sb.cfg.Propagation
	sb.mu.Unlock()

	line++
	sb.print(0, line, fmt.Sprintf("calc %-6s raycasts %-5v sync %-5v muted %-5v audio %v",
		sb.calc, p.RaycastsEnabled, p.SyncRaycasts, sb.output.IsMuted(), !sb.output.IsDisabled()))
	line++
	sb.print(0, line, statsLine(sb.reg.Snapshot()))
	line++
	sb.print(0, line, "arrows/hjkl move  c calc  r raycasts  s sync  x reset  m mute  q quit  "+sb.msg)

	sb.screen.Show()
}

func (sb *Sandbox) print(x, y int, s string) {
	for i, r := range []rune(s) {
		sb.screen.SetContent(x+i, y, r, nil, styleText)
	}
}

// emitterStyle fades from green to red with occlusion
func emitterStyle(occ float64) tcell.Style {
	v := int32(vmath.Clamp(occ, 0, 1) * 255)
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(v, 255-v, 0)).Bold(true)
}

// bar renders v in [0,1] as a ten cell meter
func bar(v float64) string {
	n := int(vmath.Clamp(v, 0, 1)*10 + 0.5)
	return "[" + strings.Repeat("=", n) + strings.Repeat(" ", 10-n) + "]"
}

func statsLine(snap map[string]int64) string {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
	}
	return strings.Join(parts, " ")
}
