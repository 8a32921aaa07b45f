package scramble

import "image"

// TileRect returns tile t of a width x height image cut into a gridSize x gridSize
// grid, row-major. The last column and the last row absorb remainder pixels, so
// the tiles always partition the image.
func TileRect(t, gridSize, width, height int) image.Rectangle {
	col := t % gridSize
	row := t / gridSize
	tileW := width / gridSize
	tileH := height / gridSize

	x0 := col * tileW
	y0 := row * tileH
	x1 := x0 + tileW
	y1 := y0 + tileH
	if col == gridSize-1 {
		x1 = width
	}
	if row == gridSize-1 {
		y1 = height
	}
	return image.Rect(x0, y0, x1, y1)
}

func Tiles(gridSize, width, height int) []image.Rectangle {
	if gridSize <= 0 {
		return nil
	}
	rects := make([]image.Rectangle, gridSize*gridSize)
	for t := range rects {
		rects[t] = TileRect(t, gridSize, width, height)
	}
	return rects
}
