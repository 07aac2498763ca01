package mesh

import "github.com/golang/geo/r3"

func vec(buf []float32, i int) r3.Vector {
	return r3.Vector{X: float64(buf[3*i]), Y: float64(buf[3*i+1]), Z: float64(buf[3*i+2])}
}
