package render

import (
	"image/color"

	"github.com/park285/checkmate-ai/internal/domain"
)

type palette struct {
	background   color.Color
	lightSquare  color.Color
	darkSquare   color.Color
	moveFill     color.Color
	moveArrow    color.Color
	panel        color.Color
	panelShadow  color.Color
	textPrimary  color.Color
	textMuted    color.Color
	coordinate   color.Color
	boardShadow  color.Color
	pieceLight   string
	pieceDark    string
	pieceOutline string
}

var lightPalette = palette{
	background:   color.RGBA{246, 243, 236, 255},
	lightSquare:  color.RGBA{233, 207, 163, 255},
	darkSquare:   color.RGBA{187, 136, 96, 255},
	moveFill:     color.NRGBA{R: 255, G: 228, B: 120, A: 140},
	moveArrow:    color.NRGBA{R: 148, G: 207, B: 255, A: 170},
	panel:        color.NRGBA{R: 255, G: 255, B: 255, A: 245},
	panelShadow:  color.NRGBA{0, 0, 0, 40},
	textPrimary:  color.NRGBA{R: 34, G: 36, B: 48, A: 255},
	textMuted:    color.NRGBA{R: 96, G: 100, B: 118, A: 255},
	coordinate:   color.NRGBA{R: 110, G: 84, B: 60, A: 255},
	boardShadow:  color.NRGBA{0, 0, 0, 60},
	pieceLight:   "#ffffff",
	pieceDark:    "#222222",
	pieceOutline: "#000000",
}

var darkPalette = palette{
	background:   color.RGBA{22, 24, 34, 255},
	lightSquare:  color.RGBA{128, 138, 160, 255},
	darkSquare:   color.RGBA{70, 78, 100, 255},
	moveFill:     color.NRGBA{R: 255, G: 214, B: 90, A: 120},
	moveArrow:    color.NRGBA{R: 120, G: 190, B: 255, A: 170},
	panel:        color.NRGBA{R: 28, G: 31, B: 46, A: 250},
	panelShadow:  color.NRGBA{0, 0, 0, 90},
	textPrimary:  color.NRGBA{R: 236, G: 239, B: 255, A: 255},
	textMuted:    color.NRGBA{R: 204, G: 210, B: 236, A: 255},
	coordinate:   color.NRGBA{R: 8, G: 214, B: 120, A: 255},
	boardShadow:  color.NRGBA{0, 0, 0, 120},
	pieceLight:   "#f4f4f4",
	pieceDark:    "#1a1a1a",
	pieceOutline: "#000000",
}

func paletteFor(theme domain.Theme) palette {
	if theme.Dark() {
		return darkPalette
	}
	return lightPalette
}
