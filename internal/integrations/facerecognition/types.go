package facerecognition

import "sort"

// BoundingBox enthält die Position eines Gesichts als Anteil der Bildgröße (0-1)
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxTolerance ist die erlaubte Rundungsabweichung der Dienste
const BoxTolerance = 1e-3

// Valid prüft, ob die Box innerhalb des Bildes liegt (mit Toleranz eps)
func (b BoundingBox) Valid(eps float64) bool {
	if b.Left < -eps || b.Top < -eps || b.Width < 0 || b.Height < 0 {
		return false
	}
	return b.Left+b.Width <= 1+eps && b.Top+b.Height <= 1+eps
}

// FaceRef ist ein erkanntes Gesicht mit Konfidenz (0-100)
type FaceRef struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
	// FaceID ist optional und nur gesetzt, wenn der Dienst eine stabile ID liefert
	FaceID string `json:"faceId,omitempty"`
}

// FaceMatch ist ein Treffer im Zielbild
type FaceMatch struct {
	Similarity float64 `json:"similarity"`
	Face       FaceRef `json:"face"`
}

// FaceComparisonResult ist das kanonische Vergleichsergebnis, unabhängig vom Dienst.
// Similarity liegt immer auf der Skala 0-100.
type FaceComparisonResult struct {
	Similarity      float64      `json:"similarity"`
	FaceMatches     []FaceMatch  `json:"faceMatches"`
	SourceImageFace *FaceRef     `json:"sourceImageFace,omitempty"`
	UnmatchedFaces  []FaceRef    `json:"unmatchedFaces"`
	Provider        ProviderType `json:"provider"`
}

// AgeRange ist die geschätzte Altersspanne
type AgeRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Gender enthält das geschätzte Geschlecht
type Gender struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Landmark ist ein Gesichtspunkt (relativ zur Bildgröße)
type Landmark struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Pose enthält die Kopfhaltung in Grad
type Pose struct {
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Quality enthält Helligkeit und Schärfe (0-100)
type Quality struct {
	Brightness float64 `json:"brightness"`
	Sharpness  float64 `json:"sharpness"`
}

// Emotion ist eine erkannte Emotion
type Emotion struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Attribute ist ein boolesches Gesichtsmerkmal mit Konfidenz
type Attribute struct {
	Value      bool    `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FaceDetails enthält alle Attribute eines Gesichts. Felder, die ein Dienst nicht liefert,
// werden mit neutralen Standardwerten gefüllt und nie weggelassen.
type FaceDetails struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
	AgeRange    AgeRange    `json:"ageRange"`
	Gender      Gender      `json:"gender"`
	Landmarks   []Landmark  `json:"landmarks"`
	Pose        Pose        `json:"pose"`
	Quality     Quality     `json:"quality"`
	Emotions    []Emotion   `json:"emotions"`
	Smile       Attribute   `json:"smile"`
	Eyeglasses  Attribute   `json:"eyeglasses"`
	Sunglasses  Attribute   `json:"sunglasses"`
	Beard       Attribute   `json:"beard"`
	Mustache    Attribute   `json:"mustache"`
	EyesOpen    Attribute   `json:"eyesOpen"`
	MouthOpen   Attribute   `json:"mouthOpen"`
}

// FamilyFace ist ein Gesicht im Familienvergleich, Konfidenz auf der Skala 0-1
type FamilyFace struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
	Age         *float64    `json:"age,omitempty"`
}

// FamilySimilarity bleibt bewusst auf der nativen Skala 0-1 des lokalen Dienstes
type FamilySimilarity struct {
	Similarity float64    `json:"similarity"`
	Confidence float64    `json:"confidence"`
	ParentFace FamilyFace `json:"parentFace"`
	ChildFace  FamilyFace `json:"childFace"`
}

// SimilarFace ist ein Eintrag der Rangliste von FindSimilarFaces
type SimilarFace struct {
	ImageIndex  int         `json:"imageIndex"`
	Similarity  float64     `json:"similarity"`
	FaceMatches []FaceMatch `json:"faceDetails"`
}

// ProviderHealth ist der Zustand eines einzelnen Dienstes
type ProviderHealth struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// HealthStatus wird bei jeder Abfrage neu ermittelt
type HealthStatus struct {
	Cloud   ProviderHealth `json:"cloud"`
	Local   ProviderHealth `json:"local"`
	Current Mode           `json:"current"`
}

// RankSimilarFaces sortiert absteigend nach Ähnlichkeit. Gleichstände behalten die ursprüngliche Reihenfolge.
func RankSimilarFaces(faces []SimilarFace) {
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Similarity > faces[j].Similarity
	})
}
