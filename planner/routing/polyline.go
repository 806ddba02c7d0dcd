package routing

import "fmt"

// DecodePolyline decodes an encoded polyline (precision 5) into [lng, lat] pairs.
func DecodePolyline(encoded string) ([][2]float64, error) {
	coords := make([][2]float64, 0, len(encoded)/4)

	var lat, lng int
	index := 0

	next := func() (int, error) {
		result, shift := 0, 0
		for {
			if index >= len(encoded) {
				return 0, fmt.Errorf("truncated polyline at offset %d", index)
			}
			b := int(encoded[index]) - 63
			index++
			if b < 0 {
				return 0, fmt.Errorf("invalid polyline character at offset %d", index-1)
			}
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), nil
		}
		return result >> 1, nil
	}

	for index < len(encoded) {
		dlat, err := next()
		if err != nil {
			return nil, err
		}
		dlng, err := next()
		if err != nil {
			return nil, err
		}
		lat += dlat
		lng += dlng
		coords = append(coords, [2]float64{float64(lng) / 1e5, float64(lat) / 1e5})
	}

	return coords, nil
}
