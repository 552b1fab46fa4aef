package facerecognition

import (
	"context"
)

// ProviderType definiert den Typ des Gesichtserkennungsdiensts
type ProviderType string

const (
	// ProviderCloud steht für den Cloud-Vision-Dienst (AWS Rekognition)
	ProviderCloud ProviderType = "cloud"

	// ProviderLocal steht für den lokalen InsightFace-Inferenzdienst
	ProviderLocal ProviderType = "local"
)

// Mode legt fest, wie der Router zwischen den Diensten wählt
type Mode string

const (
	ModeCloud  Mode = "cloud"
	ModeLocal  Mode = "local"
	ModeHybrid Mode = "hybrid"
)

// Valid prüft, ob der Provider-Typ bekannt ist
func (p ProviderType) Valid() bool {
	return p == ProviderCloud || p == ProviderLocal
}

// Valid prüft, ob der Modus bekannt ist
func (m Mode) Valid() bool {
	return m == ModeCloud || m == ModeLocal || m == ModeHybrid
}

// Operation benennt eine Router-Operation, z.B. für Logs und Fehler
type Operation string

const (
	OpCompareFaces       Operation = "compareFaces"
	OpDetectFaces        Operation = "detectFaces"
	OpFindSimilarFaces   Operation = "findSimilarFaces"
	OpCompareFamilyFaces Operation = "compareFamilyFaces"
	OpHealth             Operation = "isHealthy"
)

// Backend definiert die Schnittstelle, die beide Gesichtserkennungsdienste erfüllen.
// Alle Ergebnisse liegen bereits im kanonischen Format vor.
type Backend interface {
	// Name gibt den Namen des Providers zurück
	Name() ProviderType

	// IsHealthy prüft, ob der Dienst verfügbar ist
	IsHealthy(ctx context.Context) bool

	// CompareFaces vergleicht das größte Gesicht im Quellbild mit allen Gesichtern im Zielbild.
	// threshold liegt immer auf der kanonischen Skala 0-100.
	CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*FaceComparisonResult, error)

	// DetectFaces erkennt Gesichter samt Attributen
	DetectFaces(ctx context.Context, image []byte) ([]FaceDetails, error)
}

// FamilyComparer wird nur vom lokalen Dienst implementiert
type FamilyComparer interface {
	CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) (*FamilySimilarity, error)
}

// BatchComparer wird von Diensten implementiert, die mehrere Zielbilder in einem Aufruf vergleichen
type BatchComparer interface {
	FindSimilarFaces(ctx context.Context, source []byte, targets [][]byte) ([]SimilarFace, error)
}

// HealthChecker wird vom lokalen Dienst implementiert und liefert den Grund bei Nichtverfügbarkeit
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
