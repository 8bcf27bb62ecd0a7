package middle

// RawNode represents an OSM node as stored in middle tables
// Coordinates are stored as scaled integers (lat/lon × 10^7) for compact storage
type RawNode struct {
	ID   int64
	Lat  int32 // scaled: lat * 10^7
	Lon  int32 // scaled: lon * 10^7
	Tags map[string]string
}

// RawWay represents an OSM way as stored in middle tables
type RawWay struct {
	ID    int64
	Nodes []int64 // ordered node ID array
	Tags  map[string]string
}

// ScaleCoord converts a float64 lat/lon to scaled integer (× 10^7)
func ScaleCoord(coord float64) int32 {
	return int32(coord * 1e7)
}

// UnscaleCoord converts a scaled integer back to float64
func UnscaleCoord(scaled int32) float64 {
	return float64(scaled) / 1e7
}
