// Package debugview writes the step-debugger side files for a compilation:
// the snapshot list, the per-line instruction map, and a PNG rendering of the
// snapshots for viewing without the debugger.
package debugview

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"x64cc/pkg/compiler"
)

// WriteSnapshots encodes snaps as a JSON array. A nil slice is written as [].
func WriteSnapshots(w io.Writer, snaps []compiler.Snapshot) error {
	if snaps == nil {
		snaps = []compiler.Snapshot{}
	}
	return json.NewEncoder(w).Encode(snaps)
}

// WriteLineMap encodes the line -> instructions map as a JSON object keyed by
// the decimal line number.
func WriteLineMap(w io.Writer, m map[int][]string) error {
	out := make(map[string][]string, len(m))
	for line, instrs := range m {
		out[strconv.Itoa(line)] = instrs
	}
	return json.NewEncoder(w).Encode(out)
}

// ReadSnapshots decodes what WriteSnapshots produced.
func ReadSnapshots(r io.Reader) ([]compiler.Snapshot, error) {
	var snaps []compiler.Snapshot
	if err := json.NewDecoder(r).Decode(&snaps); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	return snaps, nil
}

const (
	margin  = 8
	lineGap = 2
	indent  = 2 // characters
)

var (
	background = color.RGBA{0x1e, 0x1e, 0x24, 0xff}
	headerInk  = color.RGBA{0xf0, 0xc6, 0x74, 0xff}
	varInk     = color.RGBA{0xd8, 0xde, 0xe9, 0xff}
	unknownInk = color.RGBA{0x8a, 0x8f, 0x98, 0xff}
)

type row struct {
	text string
	ink  color.Color
}

func layout(snaps []compiler.Snapshot) []row {
	var rows []row
	for i, s := range snaps {
		if i > 0 {
			rows = append(rows, row{})
		}
		head := fmt.Sprintf("#%d %s (line %d)", s.Index, s.Label, s.Line)
		if s.Func != "" {
			head += " in " + s.Func
		}
		rows = append(rows, row{head, headerInk})
		for _, v := range s.Vars {
			ink := color.Color(varInk)
			if v.Value == "?" {
				ink = unknownInk
			}
			text := fmt.Sprintf("%*s%5d  %-6s %s = %s", indent, "", v.Offset, v.Type, v.Name, v.Value)
			rows = append(rows, row{text, ink})
		}
	}
	if len(rows) == 0 {
		rows = append(rows, row{"no snapshots", unknownInk})
	}
	return rows
}

// Render draws one text row per snapshot header and live variable.
func Render(snaps []compiler.Snapshot) *image.RGBA {
	face := basicfont.Face7x13
	rows := layout(snaps)

	width := 0
	for _, r := range rows {
		if n := font.MeasureString(face, r.text).Ceil(); n > width {
			width = n
		}
	}
	rowHeight := face.Height + lineGap
	img := image.NewRGBA(image.Rect(0, 0, width+2*margin, len(rows)*rowHeight+2*margin))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Face: face}
	for i, r := range rows {
		if r.text == "" {
			continue
		}
		d.Src = image.NewUniform(r.ink)
		d.Dot = fixed.P(margin, margin+i*rowHeight+face.Ascent)
		d.DrawString(r.text)
	}
	return img
}

// SavePNG renders snaps and writes the image to filename.
func SavePNG(filename string, snaps []compiler.Snapshot) error {
	return WriteFile(filename, func(w io.Writer) error {
		return png.Encode(w, Render(snaps))
	})
}

// WriteFile creates filename and fills it with write.
func WriteFile(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
