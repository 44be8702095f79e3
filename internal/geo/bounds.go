package geo

// Bounds is the minimal axis-aligned rectangle enclosing a point set.
type Bounds struct {
	SouthWest Location
	NorthEast Location
	count     int
}

// Extend grows the bounds to include p. Invalid points are ignored.
func (b *Bounds) Extend(p Location) {
	if !p.Valid() {
		return
	}
	if b.count == 0 {
		b.SouthWest = p
		b.NorthEast = p
		b.count = 1
		return
	}
	if p.Lat < b.SouthWest.Lat {
		b.SouthWest.Lat = p.Lat
	}
	if p.Lat > b.NorthEast.Lat {
		b.NorthEast.Lat = p.Lat
	}
	if p.Lng < b.SouthWest.Lng {
		b.SouthWest.Lng = p.Lng
	}
	if p.Lng > b.NorthEast.Lng {
		b.NorthEast.Lng = p.Lng
	}
	b.count++
}

// Degenerate reports whether the bounds cannot frame a viewport: no
// points, or every point collapsed onto a single coordinate.
func (b *Bounds) Degenerate() bool {
	if b.count == 0 {
		return true
	}
	return b.SouthWest == b.NorthEast
}

// Count returns how many valid points were folded into the bounds.
func (b *Bounds) Count() int {
	return b.count
}

// BoundsOf builds the enclosing rectangle of the given points.
func BoundsOf(points ...Location) Bounds {
	var b Bounds
	for _, p := range points {
		b.Extend(p)
	}
	return b
}
