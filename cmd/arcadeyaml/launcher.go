package main

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/engine/render"
	"github.com/arcadeyaml/engine/internal/engine/session"
)

// launcher adapts a Session to ebiten's Game interface, translating mouse
// input into PlaneHitEvents (the "mouse" backend of §6.2/§6.5) and the
// session's draw list into ebiten draw calls (§4.J/§6.1). It is the only
// place in this repository that imports ebiten; the engine core never does.
type launcher struct {
	sess   *session.Session
	log    *zap.Logger
	flags  *cliFlags
	width  int
	height int

	simTime float64
}

func newLauncher(sess *session.Session, log *zap.Logger, flags *cliFlags) *launcher {
	w, h := parseResolution(flags.resolution)
	return &launcher{sess: sess, log: log, flags: flags, width: w, height: h}
}

func parseResolution(res string) (int, int) {
	parts := strings.SplitN(res, "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return w, h
}

// Run starts the ebiten window loop, blocking until the player closes it or
// the game reaches a terminal state.
func (l *launcher) Run() error {
	w, h := l.width, l.height
	if w == 0 || h == 0 {
		w, h = l.sess.ScreenWidth(), l.sess.ScreenHeight()
	}
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("arcadeyaml")
	ebiten.SetFullscreen(l.flags.fullscreen)
	return ebiten.RunGame(l)
}

func (l *launcher) Update() error {
	if l.flags.backend == "mouse" {
		l.pollMouse()
	}
	l.simTime += 1.0 / 60
	l.sess.Tick(1.0 / 60)
	events := l.sess.DrainTerminalEvents()
	for _, ev := range events {
		l.log.Info("game reached terminal state", zap.String("state", ev))
	}
	if len(events) > 0 {
		return ebiten.Termination
	}
	return nil
}

// pollMouse turns a left-click into a PlaneHitEvent normalized to [0,1], the
// mouse backend's adaptation of the "plane hit" input contract (§6.2).
func (l *launcher) pollMouse() {
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	x, y := ebiten.CursorPosition()
	sw, sh := l.sess.ScreenWidth(), l.sess.ScreenHeight()
	if sw == 0 || sh == 0 {
		return
	}
	l.sess.IngestHit(session.PlaneHitEvent{
		X: float64(x) / float64(sw), Y: float64(y) / float64(sh),
		Timestamp: l.simTime, Confidence: 1, Method: "mouse",
	})
}

func (l *launcher) Draw(screen *ebiten.Image) {
	bg := l.sess.BackgroundColor()
	screen.Fill(parseHexColor(bg))
	for _, cmd := range l.sess.Emit() {
		drawCommand(screen, cmd)
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("score %d  lives %d  %s", l.sess.GetScore(), l.sess.Lives(), l.sess.State()), 4, 4)
}

func (l *launcher) Layout(outsideWidth, outsideHeight int) (int, int) {
	return l.sess.ScreenWidth(), l.sess.ScreenHeight()
}

func drawCommand(screen *ebiten.Image, cmd render.Command) {
	c := parseHexColor(cmd.Color)
	x, y := float32(cmd.X), float32(cmd.Y)
	w, h := float32(cmd.Width), float32(cmd.Height)
	switch cmd.Kind {
	case "rectangle":
		vector.DrawFilledRect(screen, x, y, w, h, c, false)
	case "circle":
		vector.DrawFilledCircle(screen, x, y, w/2, c, false)
	case "line":
		lw := float32(cmd.LineWidth)
		if lw <= 0 {
			lw = 1
		}
		vector.StrokeLine(screen, x, y, x+w, y+h, lw, c, false)
	case "text":
		ebitenutil.DebugPrintAt(screen, cmd.Text, int(cmd.X), int(cmd.Y))
	default:
		// triangle, polygon, sprite: left to a richer renderer; the draw-list
		// contract itself does not require every kind to be rasterized here.
	}
}

func parseHexColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.RGBA{0, 0, 0, 255}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
