package facerecognition

import (
	"math"

	log "github.com/sirupsen/logrus"
)

var logFields = log.Fields{
	"component": "normalizer",
}

// NormalizeConfidence bringt einen Wert der jeweiligen Quelle auf die Skala 0-100.
// Der lokale Dienst liefert 0-1, der Cloud-Dienst bereits 0-100.
func NormalizeConfidence(value float64, source ProviderType) float64 {
	if math.IsNaN(value) {
		return 0
	}
	if source == ProviderLocal {
		value *= 100
	}
	return clamp(value, 0, 100)
}

// ThresholdToLocalScale rechnet einen Cloud-Schwellenwert (0-100) in die lokale Skala (0-1) um
func ThresholdToLocalScale(cloudThreshold float64) float64 {
	return clamp(cloudThreshold/100, 0, 1)
}

// ThresholdToCloudScale rechnet einen lokalen Schwellenwert (0-1) in die Cloud-Skala (0-100) um
func ThresholdToCloudScale(localThreshold float64) float64 {
	return clamp(localThreshold*100, 0, 100)
}

// CanonicalBoundingBox begrenzt eine bereits kanonische Box auf das Bild.
// Für gültige Boxen ist die Funktion die Identität.
func CanonicalBoundingBox(b BoundingBox) BoundingBox {
	out := BoundingBox{
		Left:   clamp(b.Left, 0, 1),
		Top:    clamp(b.Top, 0, 1),
		Width:  clamp(b.Width, 0, 1),
		Height: clamp(b.Height, 0, 1),
	}
	// Kleine Rundungsfehler der Dienste werden toleriert, größere abgeschnitten
	if out.Left+out.Width > 1+BoxTolerance {
		out.Width = 1 - out.Left
	}
	if out.Top+out.Height > 1+BoxTolerance {
		out.Height = 1 - out.Top
	}
	return out
}

// ValidateResponseData prüft, ob die Ähnlichkeit im erwarteten Bereich der Quelle liegt.
// Werte außerhalb werden nur protokolliert, nicht korrigiert oder abgelehnt.
func ValidateResponseData(similarity *float64, source ProviderType) bool {
	if similarity == nil {
		return true
	}
	upper := 100.0
	if source == ProviderLocal {
		upper = 1.0
	}
	v := *similarity
	if math.IsNaN(v) || v < 0 || v > upper {
		log.WithFields(logFields).WithFields(log.Fields{
			"provider":   source,
			"similarity": v,
			"expected":   upper,
		}).Warn("Similarity outside of expected range")
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
