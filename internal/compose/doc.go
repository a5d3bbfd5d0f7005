// Package compose merges several images into a single raster.
//
// A merge has three stages:
//
//  1. Plan computes the geometry: canvas size and one Placement per image.
//  2. Render scales each image into its placement on a fresh RGBA canvas.
//  3. Encode serializes the canvas as PNG, JPEG or BMP.
//
// Compose runs all three. It keeps no state between calls, so concurrent
// merges never interfere with each other.
//
// # Layouts
//
// Horizontal scales every image to a common height, min(maxSize, tallest
// height), and lays them out left to right. Vertical is the mirror image:
// a common width of min(maxSize, widest width), stacked top to bottom. Both
// insert Gap pixels between neighbours.
//
// Grid uses ceil(sqrt(n)) columns and as many rows as needed. Every cell is a
// square of maxSize/cols pixels; each image is fitted inside its cell with its
// aspect ratio intact and centred. Because the cell edge depends only on the
// column count, grids with more rows than columns are taller than maxSize.
//
// # Coordinate System
//
// Placements use image.Rectangle with (0,0) at the top-left corner of the
// canvas; Min is inclusive and Max exclusive.
//
// # Live Preview
//
// Previewer debounces bursts of preview requests so that only the most recent
// one is rendered.
package compose
