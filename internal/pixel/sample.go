package pixel

// SamplePattern builds the gradient shown before any image is loaded:
// R = x%100+40, G = y%100+80, B = (x+y)%100+120, fully opaque.
func SamplePattern(width, height int) *Buffer {
	b := alloc(max(width, 0), max(height, 0))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			b.pix[y*b.width+x] = Opaque(
				uint8(x%100+40),
				uint8(y%100+80),
				uint8((x+y)%100+120),
			)
		}
	}
	return b
}
