package unification

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// compose arranges frames (cameraID -> JPEG bytes) into a fixed-size grid
// mat, one cell per camera in sorted camera_id order so the layout is
// stable across calls. Missing or undecodable frames leave a black cell,
// matching spec.md §4.H's partial-group handling: a combined frame is
// still produced when the group is incomplete.
func compose(frames map[string][]byte, columns, cellWidth, cellHeight int) gocv.Mat {
	ids := make([]string, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := (len(ids) + columns - 1) / columns
	if rows == 0 {
		rows = 1
	}

	canvas := gocv.NewMatWithSize(rows*cellHeight, columns*cellWidth, gocv.MatTypeCV8UC3)

	for i, id := range ids {
		cell := decodeAndResize(frames[id], cellWidth, cellHeight)
		row := i / columns
		col := i % columns
		roi := canvas.Region(image.Rect(col*cellWidth, row*cellHeight, (col+1)*cellWidth, (row+1)*cellHeight))
		cell.CopyTo(&roi)
		roi.Close()
		cell.Close()
	}

	return canvas
}

func decodeAndResize(data []byte, width, height int) gocv.Mat {
	out := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	if len(data) == 0 {
		return out
	}
	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || decoded.Empty() {
		return out
	}
	defer decoded.Close()
	gocv.Resize(decoded, &out, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return out
}
