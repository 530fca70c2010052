package transform

import (
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid, km.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Geodetic is a WGS-84 geodetic position.
type Geodetic struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltKm  float64 `json:"alt_km"`
}

// ECEFToGeodetic converts ECEF km to geodetic coordinates with Bowring's
// iteration; five passes are plenty for orbital altitudes.
func ECEFToGeodetic(pos r3.Vec) Geodetic {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Hypot(pos.X, pos.Y)
	lat := math.Atan2(pos.Z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: unit.Angle(lat).Deg(),
		LonDeg: unit.Angle(lon).Deg(),
		AltKm:  alt,
	}
}

// Observer is a ground station with its ECEF position precomputed.
type Observer struct {
	Geodetic
	lat, lon float64
	ecef     r3.Vec
}

// NewObserver builds an observer from degrees and km above the ellipsoid.
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	lat := unit.AngleFromDeg(latDeg).Rad()
	lon := unit.AngleFromDeg(lonDeg).Rad()
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return Observer{
		Geodetic: Geodetic{LatDeg: latDeg, LonDeg: lonDeg, AltKm: altKm},
		lat:      lat,
		lon:      lon,
		ecef: r3.Vec{
			X: (n + altKm) * cosLat * cosLon,
			Y: (n + altKm) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// ECEF returns the observer position in km.
func (o Observer) ECEF() r3.Vec { return o.ecef }

// LookAngles is the topocentric direction to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg"` // from north, clockwise
	ElevationDeg float64 `json:"elevation_deg"`
	RangeKm      float64 `json:"range_km"`
}

// Look returns azimuth, elevation and range from o to a satellite at ECEF
// position sat (km), via the south-east-zenith frame.
func (o Observer) Look(sat r3.Vec) LookAngles {
	d := r3.Sub(sat, o.ecef)
	sinLat, cosLat := math.Sincos(o.lat)
	sinLon, cosLon := math.Sincos(o.lon)

	south := sinLat*cosLon*d.X + sinLat*sinLon*d.Y - cosLat*d.Z
	east := -sinLon*d.X + cosLon*d.Y
	zenith := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z
	rng := r3.Norm(d)

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   unit.Angle(az).Deg(),
		ElevationDeg: unit.Angle(math.Asin(zenith / rng)).Deg(),
		RangeKm:      rng,
	}
}
