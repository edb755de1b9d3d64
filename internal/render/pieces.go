package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// piece shapes on a 45x45 canvas; %[1]s is the fill, %[2]s the outline
var pieceShapes = map[byte]string{
	'p': `<circle cx="22.5" cy="14" r="5.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M16,36 L29,36 L26.5,22 L18.5,22 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="12" y="35" width="21" height="4" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	'r': `<path d="M12,16 L12,9 L16,9 L16,12 L20.5,12 L20.5,9 L24.5,9 L24.5,12 L29,12 L29,9 L33,9 L33,16 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M15,35 L30,35 L29,16 L16,16 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="35" width="25" height="4" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	'n': `<path d="M14,38 L32,38 L30,22 C30,14 26,8 19,8 L17,12 L11,20 L13,23 L19,19 L16,28 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="19" cy="14" r="1.5" fill="%[2]s"/>`,
	'b': `<ellipse cx="22.5" cy="24" rx="7" ry="10" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="22.5" cy="10" r="3" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="12" y="35" width="21" height="4" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	'q': `<path d="M10,34 L12,16 L17,26 L22.5,12 L28,26 L33,16 L35,34 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="12" cy="14" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="22.5" cy="10" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="33" cy="14" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="34" width="25" height="5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	'k': `<rect x="21" y="5" width="3" height="12" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<rect x="17" y="8" width="11" height="3" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<path d="M12,35 L14,19 L31,19 L33,35 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="34" width="25" height="5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
}

type pieceCacheKey struct {
	letter byte
	size   int
	fills  string
}

// pieceSVG returns the SVG source for a FEN piece letter.
func (r *Renderer) pieceSVG(letter byte, pal palette) ([]byte, error) {
	if r.pieces != nil {
		data, err := fs.ReadFile(r.pieces, pieceAssetName(letter))
		if err != nil {
			return nil, fmt.Errorf("read piece asset %s: %w", pieceAssetName(letter), err)
		}
		return sanitizeSVG(data), nil
	}
	lower := letter | 0x20
	shape, ok := pieceShapes[lower]
	if !ok {
		return nil, fmt.Errorf("unknown piece %q", letter)
	}
	fill := pal.pieceDark
	if letter != lower {
		fill = pal.pieceLight
	}
	body := fmt.Sprintf(shape, fill, pal.pieceOutline)
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="45" height="45" viewBox="0 0 45 45">` + body + `</svg>`), nil
}

func (r *Renderer) renderPieceImage(letter byte, size int, pal palette) (image.Image, error) {
	key := pieceCacheKey{letter: letter, size: size, fills: pal.pieceLight + pal.pieceDark}

	r.cacheMu.RLock()
	if img, ok := r.cache[key]; ok {
		r.cacheMu.RUnlock()
		return img, nil
	}
	r.cacheMu.RUnlock()

	data, err := r.pieceSVG(letter, pal)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	r.cacheMu.Lock()
	r.cache[key] = img
	r.cacheMu.Unlock()
	return img, nil
}

// pieceAssetName maps 'K' to "wK.svg" and 'n' to "bN.svg".
func pieceAssetName(letter byte) string {
	prefix := "b"
	if letter >= 'A' && letter <= 'Z' {
		prefix = "w"
	}
	return prefix + strings.ToUpper(string(letter)) + ".svg"
}

// sanitizeSVG patches colour declarations oksvg rejects in some exported piece sets.
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill:000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: 000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: 000000"), []byte("stroke:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	return fixed
}
