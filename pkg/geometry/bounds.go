package geometry

// BoundingBox returns the union of all primitive bounds. An empty
// primitive list yields an empty rect (zero width and height).
func BoundingBox(prims []Primitive) Rect {
	b := EmptyRect()
	for _, p := range prims {
		b = b.Union(p.Bounds())
	}
	return b
}
