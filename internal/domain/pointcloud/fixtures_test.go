package pointcloud

func p3(id, eventID string, x, y, z float64) PointInput {
	return PointInput{ID: id, EventID: eventID, Coordinates: Coordinates{Kind: Point3D, X: x, Y: y, Z: z}}
}

func p2(id, eventID string, x, y float64) PointInput {
	return PointInput{ID: id, EventID: eventID, Coordinates: Coordinates{Kind: Point2D, X: x, Y: y}}
}

func cluster(id string, eventIDs ...string) Cluster {
	return Cluster{ID: id, EventIDs: NewEventIDSet(eventIDs...)}
}

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }
