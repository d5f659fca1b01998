// Package summary renders the pending complaints table image sent to the
// department chat and served over HTTP.
package summary

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"hostelmon/internal/complaint"

	"github.com/fogleman/gg"
)

// Row holds the fields displayed in the summary table.
type Row struct {
	ShortID  string
	Facility string
	Room     string
	Category string
	Priority string
	Summary  string
	Reported string

	createdAt time.Time
}

// summaryChars caps the Summary cell before wrapping.
const summaryChars = 80

// Rows converts complaints into table rows, oldest first.
func Rows(cs []complaint.Complaint) []Row {
	rows := make([]Row, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, Row{
			ShortID:   c.ShortID(),
			Facility:  orDash(c.Facility),
			Room:      orDash(c.SubUnit),
			Category:  string(c.Category),
			Priority:  string(c.Priority),
			Summary:   truncate(c.Summary, summaryChars),
			Reported:  c.CreatedAt.Format("02 Jan 15:04"),
			createdAt: c.CreatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].createdAt.Before(rows[j].createdAt)
	})
	return rows
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// Table styling, rendered at 2x scale for chat clarity.
const (
	cellPadX     = 20
	cellPadY     = 16
	lineGap      = 4
	minRowHeight = 76
	headerHeight = 88
	fontSize     = 26
	titleFontSz  = 40
	footerFontSz = 24
	titlePadding = 110
	footerHeight = 80
	margin       = 40
	minColWidth  = 110
	summaryWidth = 520.0
	cornerRadius = 16
)

var (
	bgColor         = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	titleColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	headerBgColor   = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	headerTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowEvenColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowOddColor     = color.RGBA{R: 241, G: 245, B: 249, A: 255}
	urgentRowColor  = color.RGBA{R: 254, G: 226, B: 226, A: 255}
	textColor       = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	borderColor     = color.RGBA{R: 203, G: 213, B: 225, A: 255}
	footerColor     = color.RGBA{R: 100, G: 116, B: 139, A: 255}
)

// priorityColors tints the Priority cell; unlisted priorities use textColor.
var priorityColors = map[string]color.Color{
	"URGENT": color.RGBA{R: 185, G: 28, B: 28, A: 255},
	"HIGH":   color.RGBA{R: 180, G: 83, B: 9, A: 255},
}

type column struct {
	header string
	value  func(Row) string
	// wrap columns get a fixed width and break onto several lines; the
	// others are sized to their widest cell.
	wrap bool
}

var columns = []column{
	{header: "ID", value: func(r Row) string { return r.ShortID }},
	{header: "Hostel", value: func(r Row) string { return r.Facility }},
	{header: "Room", value: func(r Row) string { return r.Room }},
	{header: "Category", value: func(r Row) string { return r.Category }},
	{header: "Priority", value: func(r Row) string { return r.Priority }},
	{header: "Summary", value: func(r Row) string { return r.Summary }, wrap: true},
	{header: "Reported", value: func(r Row) string { return r.Reported }},
}

var fontDirs = map[string][]string{
	"linux":   {"/usr/share/fonts/truetype/dejavu", "/usr/share/fonts/TTF", "/usr/share/fonts/dejavu"},
	"darwin":  {"/Library/Fonts", "/System/Library/Fonts/Supplemental"},
	"windows": {`C:\Windows\Fonts`},
}

var fontFiles = map[bool][]string{
	false: {"DejaVuSans.ttf", "arial.ttf", "Arial.ttf"},
	true:  {"DejaVuSans-Bold.ttf", "arialbd.ttf", "Arial Bold.ttf"},
}

// findFont returns the first installed regular or bold font for this OS.
func findFont(bold bool) (string, bool) {
	dirs := fontDirs[runtime.GOOS]
	if runtime.GOOS == "windows" {
		if root := os.Getenv("WINDIR"); root != "" {
			dirs = append([]string{filepath.Join(root, "Fonts")}, dirs...)
		}
	}
	for _, dir := range dirs {
		for _, name := range fontFiles[bold] {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// wrapWords breaks text into lines no wider than width as reported by
// widthOf. A single word wider than width gets a line of its own.
func wrapWords(widthOf func(string) float64, text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if widthOf(line+" "+w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}

// layout is the measured geometry of a table.
type layout struct {
	widths  []float64
	cells   [][][]string // row, column, wrapped lines
	heights []float64
	lineH   float64
	tableW  float64
	tableH  float64
}

// measure sizes every column and row. headerFace and cellFace are loaded
// into dc in turn; dc is left with cellFace.
func measure(dc *gg.Context, rows []Row, headerFace, cellFace string) (layout, error) {
	l := layout{widths: make([]float64, len(columns))}

	if err := dc.LoadFontFace(headerFace, fontSize); err != nil {
		return l, fmt.Errorf("failed to load bold font: %w", err)
	}
	for i, col := range columns {
		w, _ := dc.MeasureString(col.header)
		l.widths[i] = max(w+2*cellPadX, minColWidth)
	}

	if err := dc.LoadFontFace(cellFace, fontSize); err != nil {
		return l, fmt.Errorf("failed to load regular font: %w", err)
	}
	_, h := dc.MeasureString("Ay")
	l.lineH = h
	width := func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}

	for i, col := range columns {
		if col.wrap {
			l.widths[i] = summaryWidth
			continue
		}
		for _, r := range rows {
			l.widths[i] = max(l.widths[i], width(col.value(r))+2*cellPadX)
		}
	}

	l.cells = make([][][]string, len(rows))
	l.heights = make([]float64, len(rows))
	for ri, r := range rows {
		l.cells[ri] = make([][]string, len(columns))
		lines := 1
		for i, col := range columns {
			text := col.value(r)
			if col.wrap {
				l.cells[ri][i] = wrapWords(width, text, l.widths[i]-2*cellPadX)
				lines = max(lines, len(l.cells[ri][i]))
			} else {
				l.cells[ri][i] = []string{text}
			}
		}
		l.heights[ri] = max(float64(lines)*(l.lineH+lineGap)+2*cellPadY, minRowHeight)
		l.tableH += l.heights[ri]
	}

	for _, w := range l.widths {
		l.tableW += w
	}
	l.tableH += headerHeight
	return l, nil
}

// ErrNoRows is returned when there is nothing to render.
var ErrNoRows = errors.New("no complaints to render")

// RenderTable renders rows as a table image and returns PNG bytes.
func RenderTable(rows []Row, now time.Time) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	bold, ok := findFont(true)
	if !ok {
		return nil, errors.New("no bold font installed")
	}
	regular, ok := findFont(false)
	if !ok {
		return nil, errors.New("no regular font installed")
	}

	l, err := measure(gg.NewContext(1, 1), rows, bold, regular)
	if err != nil {
		return nil, err
	}

	width := l.tableW + 2*margin
	height := titlePadding + l.tableH + footerHeight
	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(bgColor)
	dc.Clear()

	if err := dc.LoadFontFace(bold, titleFontSz); err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}
	dc.SetColor(titleColor)
	dc.DrawStringAnchored(
		fmt.Sprintf("Pending Hostel Complaints  |  %s", now.Format("02 Jan 2006, 03:04 PM")),
		width/2, titlePadding/2, 0.5, 0.5)

	top := float64(titlePadding)
	dc.LoadFontFace(bold, fontSize)
	drawHeader(dc, l, margin, top)

	dc.LoadFontFace(regular, fontSize)
	y := top + headerHeight
	urgent := 0
	for ri, r := range rows {
		if r.Priority == "URGENT" {
			urgent++
		}
		drawRow(dc, l, ri, r, margin, y)
		y += l.heights[ri]
	}
	drawGrid(dc, l, margin, top)

	dc.LoadFontFace(regular, footerFontSz)
	dc.SetColor(footerColor)
	dc.DrawStringAnchored(footerText(len(rows), urgent), width/2, height-footerHeight/2, 0.5, 0.5)

	return encodeImage(dc.Image())
}

func drawHeader(dc *gg.Context, l layout, x, y float64) {
	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(x, y, l.tableW, headerHeight, cornerRadius)
	dc.Fill()

	dc.SetColor(headerTextColor)
	for i, col := range columns {
		dc.DrawStringAnchored(col.header, x+l.widths[i]/2, y+headerHeight/2, 0.5, 0.5)
		x += l.widths[i]
	}
}

func drawRow(dc *gg.Context, l layout, ri int, r Row, x, y float64) {
	h := l.heights[ri]
	switch {
	case r.Priority == "URGENT":
		dc.SetColor(urgentRowColor)
	case ri%2 == 0:
		dc.SetColor(rowEvenColor)
	default:
		dc.SetColor(rowOddColor)
	}
	dc.DrawRectangle(x, y, l.tableW, h)
	dc.Fill()

	step := l.lineH + lineGap
	for i, col := range columns {
		dc.SetColor(textColor)
		if c, ok := priorityColors[r.Priority]; ok && col.header == "Priority" {
			dc.SetColor(c)
		}
		lines := l.cells[ri][i]
		baseline := y + (h-float64(len(lines))*step)/2 + l.lineH
		for n, line := range lines {
			dc.DrawString(line, x+cellPadX, baseline+float64(n)*step)
		}
		x += l.widths[i]
	}
}

// drawGrid strokes row separators, column separators and the outer border.
func drawGrid(dc *gg.Context, l layout, x, y float64) {
	dc.SetColor(borderColor)
	dc.SetLineWidth(0.5)

	rowY := y + headerHeight
	for _, h := range l.heights[:len(l.heights)-1] {
		rowY += h
		dc.DrawLine(x, rowY, x+l.tableW, rowY)
	}
	colX := x
	for _, w := range l.widths[:len(l.widths)-1] {
		colX += w
		dc.DrawLine(colX, y+headerHeight, colX, y+l.tableH)
	}
	dc.Stroke()

	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, l.tableW, l.tableH, cornerRadius)
	dc.Stroke()
}

func footerText(total, urgent int) string {
	if urgent == 0 {
		return fmt.Sprintf("Total: %d pending", total)
	}
	return fmt.Sprintf("Total: %d pending, %d urgent", total, urgent)
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) > maxLen {
		return string([]rune(s)[:maxLen]) + "…"
	}
	return s
}
