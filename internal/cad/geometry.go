package cad

import "math"

// Vec3 is a point or vector in drawing units.
type Vec3 [3]float64

// ToVec3 builds a Vec3 from up to three coordinates; missing components are zero.
func ToVec3(coords ...float64) Vec3 {
	var v Vec3
	copy(v[:], coords)
	return v
}

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

// Distance is the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	dx, dy, dz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Angle2D returns the direction from a to b in degrees, measured in the XY plane.
func Angle2D(a, b Vec3) float64 {
	return math.Atan2(b[1]-a[1], b[0]-a[0]) * 180 / math.Pi
}

// PolylineLength sums consecutive vertex distances. The closing segment is
// added only for closed shapes with more than two vertices.
func PolylineLength(points []Vec3, closed bool) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	if closed && len(points) > 2 {
		total += Distance(points[len(points)-1], points[0])
	}
	return total
}

// PolygonArea is the shoelace area of the XY projection; fewer than three points yield 0.
func PolygonArea(points []Vec3) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := range n {
		j := (i + 1) % n
		sum += points[i][0]*points[j][1] - points[j][0]*points[i][1]
	}
	return math.Abs(sum) / 2
}

// SweptAngle returns end-start in degrees, normalized to be non-negative.
func SweptAngle(start, end float64) float64 {
	d := end - start
	if d < 0 {
		d += 360
	}
	return d
}

// ArcLength is radius times the swept angle in radians.
func ArcLength(radius, startDeg, endDeg float64) float64 {
	return radius * SweptAngle(startDeg, endDeg) * math.Pi / 180
}

func CircleCircumference(radius float64) float64 { return 2 * math.Pi * radius }

func CircleArea(radius float64) float64 { return math.Pi * radius * radius }
