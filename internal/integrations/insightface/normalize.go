package insightface

import (
	"math"
	"strings"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
)

// DefaultMatchEpsilon ist die Toleranz, mit der ein Zielgesicht einem Treffer zugeordnet wird
const DefaultMatchEpsilon = 0.01

// Reihenfolge der fünf InsightFace-Keypoints
var landmarkTypes = []string{"eyeLeft", "eyeRight", "nose", "mouthLeft", "mouthRight"}

// NormalizeBoundingBox wandelt {x,y,width,height} in {left,top,width,height} um
func NormalizeBoundingBox(b BoundingBox) fr.BoundingBox {
	return fr.CanonicalBoundingBox(fr.BoundingBox{
		Left:   b.X,
		Top:    b.Y,
		Width:  b.Width,
		Height: b.Height,
	})
}

// NormalizeFaceComparison wandelt eine /compare-faces-Antwort in das kanonische Ergebnis um.
// Zielgesichter ohne passenden Treffer landen in UnmatchedFaces. Liefern Treffer und Gesicht
// eine face_id, entscheidet diese; sonst wird über die Position (x,y) mit Toleranz eps zugeordnet.
// Die Positionszuordnung ist eine Näherung.
func NormalizeFaceComparison(data *CompareData, eps float64) *fr.FaceComparisonResult {
	if eps <= 0 {
		eps = DefaultMatchEpsilon
	}

	result := &fr.FaceComparisonResult{
		Similarity:     fr.NormalizeConfidence(data.Similarity, fr.ProviderLocal),
		FaceMatches:    make([]fr.FaceMatch, 0, len(data.FaceMatches)),
		UnmatchedFaces: []fr.FaceRef{},
		Provider:       fr.ProviderLocal,
	}

	for _, m := range data.FaceMatches {
		result.FaceMatches = append(result.FaceMatches, fr.FaceMatch{
			Similarity: fr.NormalizeConfidence(m.Similarity, fr.ProviderLocal),
			Face: fr.FaceRef{
				BoundingBox: NormalizeBoundingBox(m.BoundingBox),
				Confidence:  fr.NormalizeConfidence(m.Confidence, fr.ProviderLocal),
				FaceID:      m.FaceID,
			},
		})
	}

	if data.SourceFace != nil {
		ref := faceRef(*data.SourceFace)
		result.SourceImageFace = &ref
	}

	for _, face := range data.TargetFaces {
		if !isMatched(face, data.FaceMatches, eps) {
			result.UnmatchedFaces = append(result.UnmatchedFaces, faceRef(face))
		}
	}

	return result
}

func isMatched(face Face, matches []FaceMatch, eps float64) bool {
	for _, m := range matches {
		if face.FaceID != "" && m.FaceID != "" {
			if face.FaceID == m.FaceID {
				return true
			}
			continue
		}
		if math.Abs(m.BoundingBox.X-face.BoundingBox.X) < eps && math.Abs(m.BoundingBox.Y-face.BoundingBox.Y) < eps {
			return true
		}
	}
	return false
}

func faceRef(f Face) fr.FaceRef {
	return fr.FaceRef{
		BoundingBox: NormalizeBoundingBox(f.BoundingBox),
		Confidence:  fr.NormalizeConfidence(f.Confidence, fr.ProviderLocal),
		FaceID:      f.FaceID,
	}
}

// NormalizeFaceDetection wandelt erkannte Gesichter in FaceDetails um.
// Nicht gelieferte Attribute werden mit neutralen Werten gefüllt.
func NormalizeFaceDetection(faces []Face) []fr.FaceDetails {
	out := make([]fr.FaceDetails, 0, len(faces))
	for _, f := range faces {
		details := fr.FaceDetails{
			BoundingBox: NormalizeBoundingBox(f.BoundingBox),
			Confidence:  fr.NormalizeConfidence(f.Confidence, fr.ProviderLocal),
			AgeRange:    ageRange(f.Age),
			Gender:      gender(f.Gender, f.GenderConfidence),
			Landmarks:   landmarks(f.Landmarks),
			Emotions:    []fr.Emotion{},
			Smile:       fr.Attribute{Value: false, Confidence: 0},
			Eyeglasses:  fr.Attribute{Value: false, Confidence: 0},
			Sunglasses:  fr.Attribute{Value: false, Confidence: 0},
			Beard:       fr.Attribute{Value: false, Confidence: 0},
			Mustache:    fr.Attribute{Value: false, Confidence: 0},
			EyesOpen:    fr.Attribute{Value: true, Confidence: 90},
			MouthOpen:   fr.Attribute{Value: false, Confidence: 0},
		}
		if f.Pose != nil {
			details.Pose = fr.Pose{Roll: f.Pose.Roll, Yaw: f.Pose.Yaw, Pitch: f.Pose.Pitch}
		}
		if f.Quality != nil {
			// Der Dienst liefert nur einen Gesamtwert
			q := fr.NormalizeConfidence(*f.Quality, fr.ProviderLocal)
			details.Quality = fr.Quality{Brightness: q, Sharpness: q}
		}
		out = append(out, details)
	}
	return out
}

// NormalizeFamilySimilarity übernimmt das Ergebnis auf der nativen Skala 0-1
func NormalizeFamilySimilarity(data *FamilyData) *fr.FamilySimilarity {
	return &fr.FamilySimilarity{
		Similarity: unit(data.Similarity),
		Confidence: unit(data.Confidence),
		ParentFace: familyFace(data.ParentFace),
		ChildFace:  familyFace(data.ChildFace),
	}
}

func familyFace(f Face) fr.FamilyFace {
	return fr.FamilyFace{
		BoundingBox: NormalizeBoundingBox(f.BoundingBox),
		Confidence:  unit(f.Confidence),
		Age:         f.Age,
	}
}

func ageRange(age *float64) fr.AgeRange {
	if age == nil {
		return fr.AgeRange{Low: 0, High: 0}
	}
	a := int(math.Round(*age))
	return fr.AgeRange{Low: max(0, a-5), High: a + 5}
}

func gender(value string, confidence *float64) fr.Gender {
	g := fr.Gender{Value: "Unknown", Confidence: 0}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "m", "male", "1":
		g.Value = "Male"
	case "f", "female", "0":
		g.Value = "Female"
	default:
		return g
	}
	if confidence != nil {
		g.Confidence = fr.NormalizeConfidence(*confidence, fr.ProviderLocal)
	} else {
		g.Confidence = 50
	}
	return g
}

func landmarks(points [][]float64) []fr.Landmark {
	out := make([]fr.Landmark, 0, len(points))
	for i, p := range points {
		if len(p) < 2 {
			continue
		}
		name := "point"
		if len(points) == len(landmarkTypes) {
			name = landmarkTypes[i]
		}
		out = append(out, fr.Landmark{Type: name, X: p[0], Y: p[1]})
	}
	return out
}

func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
