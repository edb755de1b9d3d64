package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type pointF struct {
	X float64
	Y float64
}

func squareRect(c cell, squareSize int, origin image.Point) image.Rectangle {
	x := origin.X + c.col*squareSize
	y := origin.Y + c.row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquareOverlay(img *image.RGBA, c cell, squareSize int, origin image.Point, clr color.Color) {
	rect := squareRect(c, squareSize, origin)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(img, x, y, clr)
		}
	}
}

func drawArrow(img *image.RGBA, from, to cell, squareSize int, origin image.Point, clr color.Color) {
	if from == to {
		return
	}
	startRect := squareRect(from, squareSize, origin)
	endRect := squareRect(to, squareSize, origin)
	sx := float64(startRect.Min.X + squareSize/2)
	sy := float64(startRect.Min.Y + squareSize/2)
	ex := float64(endRect.Min.X + squareSize/2)
	ey := float64(endRect.Min.Y + squareSize/2)

	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.12
	headWidth := float64(squareSize) * 0.40

	baseX := sx + dirX*baseLength
	baseY := sy + dirY*baseLength

	fillQuad(img,
		pointF{sx - perpX*halfWidth, sy - perpY*halfWidth},
		pointF{sx + perpX*halfWidth, sy + perpY*halfWidth},
		pointF{baseX + perpX*halfWidth, baseY + perpY*halfWidth},
		pointF{baseX - perpX*halfWidth, baseY - perpY*halfWidth},
		clr,
	)
	fillTriangleF(img,
		pointF{ex, ey},
		pointF{baseX - perpX*headWidth/2, baseY - perpY*headWidth/2},
		pointF{baseX + perpX*headWidth/2, baseY + perpY*headWidth/2},
		clr,
	)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 || face == nil {
		return trimmed
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	const ellipsis = "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	maxRadius := min(rect.Dx()/2, rect.Dy()/2)
	radius = max(0, min(radius, maxRadius))
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	core := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	imagedraw.Draw(img, core, fill, image.Point{}, imagedraw.Over)
	left := image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius)
	imagedraw.Draw(img, left, fill, image.Point{}, imagedraw.Over)
	right := image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius)
	imagedraw.Draw(img, right, fill, image.Point{}, imagedraw.Over)

	corners := []struct {
		center image.Point
		dx, dy int
	}{
		{image.Pt(rect.Min.X+radius, rect.Min.Y+radius), -1, -1},
		{image.Pt(rect.Max.X-radius-1, rect.Min.Y+radius), 1, -1},
		{image.Pt(rect.Min.X+radius, rect.Max.Y-radius-1), -1, 1},
		{image.Pt(rect.Max.X-radius-1, rect.Max.Y-radius-1), 1, 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c.center, radius, c.dx, c.dy, clr)
	}
}

// drawQuarterDisc fills the quadrant of a disc selected by the signs of dx and dy.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius, dx, dy int, clr color.Color) {
	rSquared := radius * radius
	for y := 0; y <= radius; y++ {
		for x := 0; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			if x == 0 || y == 0 {
				// shared with the rectangles already drawn
				continue
			}
			blendPixel(img, center.X+x*dx, center.Y+y*dy, clr)
		}
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := max(rect.Min.X, rect.Min.X+(rect.Dx()-width)/2)
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	// RGBA() is alpha-premultiplied; so is image.RGBA
	dst := img.RGBAAt(x, y)
	inv := 1 - srcA
	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8(float64(sr)/257.0 + float64(dst.R)*inv),
		G: floatToUint8(float64(sg)/257.0 + float64(dst.G)*inv),
		B: floatToUint8(float64(sb)/257.0 + float64(dst.B)*inv),
		A: floatToUint8(float64(sa)/257.0 + float64(dst.A)*inv),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func fillQuad(img *image.RGBA, p0, p1, p2, p3 pointF, clr color.Color) {
	fillTriangleF(img, p0, p1, p2, clr)
	fillTriangleF(img, p0, p2, p3, clr)
}

func fillTriangleF(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func pointInTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	gamma := 1 - alpha - beta
	return alpha >= 0 && beta >= 0 && gamma >= 0
}
