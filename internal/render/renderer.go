// Package render draws board snapshots as PNG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	imagedraw "image/draw"
	"image/png"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/checkmate-ai/internal/domain"
)

// Boarder expands a FEN into a piece grid, rank 8 first.
type Boarder interface {
	Grid(fen string) ([8][8]byte, error)
}

type Options struct {
	Theme domain.Theme
	// From and To of the last move, e.g. "e2", "e4"; empty for none.
	LastFrom string
	LastTo   string
	Header   string
	Turn     string
	// Material captured by each side, in pawns.
	MaterialWhite int
	MaterialBlack int
}

type Option func(*Renderer)

// WithPieceFS replaces the built-in piece shapes with SVG files named wK.svg, bN.svg, ...
func WithPieceFS(fsys fs.FS) Option {
	return func(r *Renderer) { r.pieces = fsys }
}

func WithSquareSize(px int) Option {
	return func(r *Renderer) {
		if px >= 16 {
			r.squareSize = px
		}
	}
}

type Renderer struct {
	boards     Boarder
	pieces     fs.FS
	squareSize int

	cacheMu sync.RWMutex
	cache   map[pieceCacheKey]image.Image
}

func New(boards Boarder, opts ...Option) *Renderer {
	r := &Renderer{
		boards:     boards,
		squareSize: 64,
		cache:      make(map[pieceCacheKey]image.Image),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	grid, err := r.boards.Grid(fen)
	if err != nil {
		return nil, err
	}

	const (
		sideMargin   = 32
		topMargin    = 84
		bottomMargin = 32
		panelHeight  = 30
		panelRadius  = 10
		gapToBoard   = 16
		panelPadX    = 16
	)
	squareSize := r.squareSize
	boardSize := squareSize * 8
	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardSize, origin.Y+boardSize)
	pal := paletteFor(opts.Theme)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(pal.background), image.Point{}, imagedraw.Src)

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawHUD(img, drawer, opts, pal, boardRect, panelHeight, panelRadius, gapToBoard, panelPadX)
	drawBoardShadow(img, boardRect, pal)
	drawSquares(img, squareSize, origin, pal)
	if err := r.drawPieces(img, grid, squareSize, origin, pal); err != nil {
		return nil, err
	}
	drawHighlight(img, grid, opts, squareSize, origin, pal)
	drawCoordinates(drawer, squareSize, origin, sideMargin, pal)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHUD(img *image.RGBA, drawer *font.Drawer, opts Options, pal palette, boardRect image.Rectangle, height, radius, gap, padX int) {
	title := strings.TrimSpace(opts.Header)
	if title == "" {
		title = "Checkmate"
	}
	turn := strings.TrimSpace(opts.Turn)
	score := formatMaterialDiff(opts.MaterialWhite - opts.MaterialBlack)

	bottom := boardRect.Min.Y - gap
	top := bottom - height

	turnWidth := drawer.MeasureString(turn).Round() + padX*2
	scoreWidth := drawer.MeasureString(score).Round() + padX*2
	titleMax := boardRect.Dx() - scoreWidth - padX
	if turn != "" {
		titleMax -= turnWidth + padX
	}
	title = truncateWithEllipsis(drawer.Face, title, titleMax-padX*2)
	titleWidth := drawer.MeasureString(title).Round() + padX*2

	titleRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+titleWidth, bottom)
	scoreRect := image.Rect(boardRect.Max.X-scoreWidth, top, boardRect.Max.X, bottom)

	for _, rect := range []image.Rectangle{titleRect, scoreRect} {
		drawRoundedPanel(img, rect.Add(image.Pt(0, 3)), radius, pal.panelShadow)
		drawRoundedPanel(img, rect, radius, pal.panel)
	}
	drawCenteredString(drawer, titleRect, title, pal.textPrimary)
	drawCenteredString(drawer, scoreRect, score, pal.textPrimary)

	if turn != "" {
		turnRect := image.Rect(scoreRect.Min.X-padX-turnWidth, top, scoreRect.Min.X-padX, bottom)
		drawRoundedPanel(img, turnRect.Add(image.Pt(0, 3)), radius, pal.panelShadow)
		drawRoundedPanel(img, turnRect, radius, pal.panel)
		drawCenteredString(drawer, turnRect, turn, pal.textMuted)
	}
}

func drawBoardShadow(img *image.RGBA, boardRect image.Rectangle, pal palette) {
	shadowRect := image.Rect(boardRect.Min.X+4, boardRect.Min.Y+8, boardRect.Max.X+8, boardRect.Max.Y+10)
	imagedraw.Draw(img, shadowRect, image.NewUniform(pal.boardShadow), image.Point{}, imagedraw.Over)
}

func drawSquares(dst imagedraw.Image, squareSize int, origin image.Point, pal palette) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			clr := pal.lightSquare
			// a1 (row 7, col 0) is dark
			if (row+col)%2 == 1 {
				clr = pal.darkSquare
			}
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawPieces(dst imagedraw.Image, grid [8][8]byte, squareSize int, origin image.Point, pal palette) error {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			letter := grid[row][col]
			if letter == 0 {
				continue
			}
			img, err := r.renderPieceImage(letter, squareSize, pal)
			if err != nil {
				return err
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// drawHighlight fills both squares after a white move and draws an arrow after a black one.
func drawHighlight(img *image.RGBA, grid [8][8]byte, opts Options, squareSize int, origin image.Point, pal palette) {
	from, okFrom := parseSquare(opts.LastFrom)
	to, okTo := parseSquare(opts.LastTo)
	if !okFrom || !okTo {
		return
	}
	mover := grid[to.row][to.col]
	if mover >= 'a' && mover <= 'z' {
		drawArrow(img, from, to, squareSize, origin, pal.moveArrow)
		return
	}
	drawSquareOverlay(img, from, squareSize, origin, pal.moveFill)
	drawSquareOverlay(img, to, squareSize, origin, pal.moveFill)
}

func drawCoordinates(drawer *font.Drawer, squareSize int, origin image.Point, margin int, pal palette) {
	drawer.Src = image.NewUniform(pal.coordinate)
	ascent := drawer.Face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + 8*squareSize
	for i := 0; i < 8; i++ {
		rankCenter := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('8'-i)), origin.X-margin/2, rankCenter+ascent/2)
		fileCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('a'+i)), fileCenter, boardEndY+ascent+4)
	}
}

func formatMaterialDiff(diff int) string {
	if diff == 0 {
		return "0"
	}
	return fmt.Sprintf("%+d", diff)
}

type cell struct {
	row int
	col int
}

func parseSquare(s string) (cell, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return cell{}, false
	}
	return cell{row: int('8' - s[1]), col: int(s[0] - 'a')}, true
}
