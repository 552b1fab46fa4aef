package rekognition

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
)

// NormalizeBoundingBox übernimmt die Rekognition-Box, fehlende Werte werden 0
func NormalizeBoundingBox(b *types.BoundingBox) fr.BoundingBox {
	if b == nil {
		return fr.BoundingBox{}
	}
	return fr.CanonicalBoundingBox(fr.BoundingBox{
		Left:   f64(b.Left),
		Top:    f64(b.Top),
		Width:  f64(b.Width),
		Height: f64(b.Height),
	})
}

// NormalizeFaceComparison wandelt die CompareFaces-Antwort in das kanonische Ergebnis um.
// Die Gesamtähnlichkeit ist die höchste Ähnlichkeit aller Treffer, ohne Treffer 0.
func NormalizeFaceComparison(out *rekognition.CompareFacesOutput) *fr.FaceComparisonResult {
	result := &fr.FaceComparisonResult{
		FaceMatches:    []fr.FaceMatch{},
		UnmatchedFaces: []fr.FaceRef{},
		Provider:       fr.ProviderCloud,
	}
	if out == nil {
		return result
	}

	for _, m := range out.FaceMatches {
		similarity := fr.NormalizeConfidence(f64(m.Similarity), fr.ProviderCloud)
		if similarity > result.Similarity {
			result.Similarity = similarity
		}
		result.FaceMatches = append(result.FaceMatches, fr.FaceMatch{
			Similarity: similarity,
			Face:       comparedFace(m.Face),
		})
	}

	if out.SourceImageFace != nil {
		result.SourceImageFace = &fr.FaceRef{
			BoundingBox: NormalizeBoundingBox(out.SourceImageFace.BoundingBox),
			Confidence:  fr.NormalizeConfidence(f64(out.SourceImageFace.Confidence), fr.ProviderCloud),
		}
	}

	for i := range out.UnmatchedFaces {
		result.UnmatchedFaces = append(result.UnmatchedFaces, comparedFace(&out.UnmatchedFaces[i]))
	}
	return result
}

func comparedFace(face *types.ComparedFace) fr.FaceRef {
	if face == nil {
		return fr.FaceRef{}
	}
	return fr.FaceRef{
		BoundingBox: NormalizeBoundingBox(face.BoundingBox),
		Confidence:  fr.NormalizeConfidence(f64(face.Confidence), fr.ProviderCloud),
	}
}

// NormalizeFaceDetails wandelt Rekognition-FaceDetails um. Fehlende Attribute bekommen neutrale Werte.
func NormalizeFaceDetails(details []types.FaceDetail) []fr.FaceDetails {
	out := make([]fr.FaceDetails, 0, len(details))
	for _, d := range details {
		face := fr.FaceDetails{
			BoundingBox: NormalizeBoundingBox(d.BoundingBox),
			Confidence:  fr.NormalizeConfidence(f64(d.Confidence), fr.ProviderCloud),
			Gender:      fr.Gender{Value: "Unknown"},
			Landmarks:   make([]fr.Landmark, 0, len(d.Landmarks)),
			Emotions:    make([]fr.Emotion, 0, len(d.Emotions)),
		}

		if d.AgeRange != nil {
			face.AgeRange = fr.AgeRange{
				Low:  int(aws.ToInt32(d.AgeRange.Low)),
				High: int(aws.ToInt32(d.AgeRange.High)),
			}
		}
		if d.Gender != nil && d.Gender.Value != "" {
			face.Gender = fr.Gender{
				Value:      string(d.Gender.Value),
				Confidence: fr.NormalizeConfidence(f64(d.Gender.Confidence), fr.ProviderCloud),
			}
		}
		for _, l := range d.Landmarks {
			face.Landmarks = append(face.Landmarks, fr.Landmark{
				Type: string(l.Type),
				X:    f64(l.X),
				Y:    f64(l.Y),
			})
		}
		if d.Pose != nil {
			face.Pose = fr.Pose{Roll: f64(d.Pose.Roll), Yaw: f64(d.Pose.Yaw), Pitch: f64(d.Pose.Pitch)}
		}
		if d.Quality != nil {
			face.Quality = fr.Quality{Brightness: f64(d.Quality.Brightness), Sharpness: f64(d.Quality.Sharpness)}
		}
		for _, e := range d.Emotions {
			face.Emotions = append(face.Emotions, fr.Emotion{
				Type:       string(e.Type),
				Confidence: fr.NormalizeConfidence(f64(e.Confidence), fr.ProviderCloud),
			})
		}

		if d.Smile != nil {
			face.Smile = attribute(d.Smile.Value, d.Smile.Confidence)
		}
		if d.Eyeglasses != nil {
			face.Eyeglasses = attribute(d.Eyeglasses.Value, d.Eyeglasses.Confidence)
		}
		if d.Sunglasses != nil {
			face.Sunglasses = attribute(d.Sunglasses.Value, d.Sunglasses.Confidence)
		}
		if d.Beard != nil {
			face.Beard = attribute(d.Beard.Value, d.Beard.Confidence)
		}
		if d.Mustache != nil {
			face.Mustache = attribute(d.Mustache.Value, d.Mustache.Confidence)
		}
		if d.EyesOpen != nil {
			face.EyesOpen = attribute(d.EyesOpen.Value, d.EyesOpen.Confidence)
		}
		if d.MouthOpen != nil {
			face.MouthOpen = attribute(d.MouthOpen.Value, d.MouthOpen.Confidence)
		}

		out = append(out, face)
	}
	return out
}

// attribute akzeptiert bool und *bool, da das SDK beide Formen verwendet
func attribute(value any, confidence *float32) fr.Attribute {
	return fr.Attribute{
		Value:      boolValue(value),
		Confidence: fr.NormalizeConfidence(f64(confidence), fr.ProviderCloud),
	}
}

func boolValue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case *bool:
		return b != nil && *b
	}
	return false
}

func f64(v *float32) float64 {
	return float64(aws.ToFloat32(v))
}
