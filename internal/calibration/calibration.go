package calibration

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// MaxBoostedScore ist die Obergrenze jedes Scores nach dem Altersbonus
const MaxBoostedScore = 0.95

// Category ist eine der fünf Ähnlichkeitsstufen
type Category string

const (
	CategoryNearIdentical     Category = "near-identical"
	CategoryStrongResemblance Category = "strong-resemblance"
	CategoryClearFamily       Category = "clear-family"
	CategorySubtleResemblance Category = "subtle-resemblance"
	CategoryUniqueCharacter   Category = "unique-character"
)

// Message ist eine Textvariante einer Kategorie. Title und Message sind i18n-Schlüssel.
type Message struct {
	Category   Category `json:"category"`
	TitleKey   string   `json:"titleKey"`
	MessageKey string   `json:"messageKey"`
	Emoji      string   `json:"emoji"`
}

// Calibration ist das Gesamtergebnis von Calibrate
type Calibration struct {
	RawScore       float64 `json:"rawScore"`
	BoostedScore   float64 `json:"boostedScore"`
	DisplayPercent int     `json:"displayPercent"`
	Message
}

type ageRule struct {
	maxReferenceAge int // -1 = beliebig
	minAgeDiff      int
	factor          float64
}

// Spezifischste Regel zuerst
var ageRules = []ageRule{
	{maxReferenceAge: 3, minAgeDiff: 20, factor: 1.35},
	{maxReferenceAge: 6, minAgeDiff: 20, factor: 1.25},
	{maxReferenceAge: 12, minAgeDiff: 15, factor: 1.20},
	{maxReferenceAge: 17, minAgeDiff: 15, factor: 1.15},
	{maxReferenceAge: -1, minAgeDiff: 30, factor: 1.10},
}

// BoostFactor liefert den Multiplikator für die Altersdifferenz. referenceAge ist das jüngere Gesicht (Kind).
func BoostFactor(subjectAge, referenceAge *int) float64 {
	if subjectAge == nil || referenceAge == nil {
		return 1.0
	}
	diff := *subjectAge - *referenceAge
	if diff < 0 {
		diff = -diff
	}
	for _, r := range ageRules {
		if r.maxReferenceAge >= 0 && *referenceAge > r.maxReferenceAge {
			continue
		}
		if diff >= r.minAgeDiff {
			return r.factor
		}
	}
	return 1.0
}

// ApplyAgeBoost gleicht den Score für große Altersunterschiede an.
// Das Ergebnis liegt nie über MaxBoostedScore, auch ohne Bonus.
func ApplyAgeBoost(rawScore float64, subjectAge, referenceAge *int) float64 {
	if math.IsNaN(rawScore) {
		return 0
	}
	return math.Min(rawScore*BoostFactor(subjectAge, referenceAge), MaxBoostedScore)
}

// DisplayPercent bildet einen Score (0-1) stückweise linear auf eine Anzeige-Prozentzahl ab.
// Die Abbildung ist monoton nicht fallend und an den Stützstellen stetig.
func DisplayPercent(score float64) int {
	if math.IsNaN(score) {
		score = 0
	}

	var percent float64
	switch {
	case score >= 0.50:
		percent = 95 + (score-0.50)*8
	case score >= 0.35:
		percent = 85 + (score-0.35)*60
	case score >= 0.20:
		percent = 65 + (score-0.20)*126.7
	case score >= 0.10:
		percent = 40 + (score-0.10)*240
	default:
		percent = 10 + math.Max(0, score)*290
	}

	return int(math.Max(0, math.Min(99, math.Round(percent))))
}

// CategoryFor ordnet eine Prozentzahl ihrer Stufe zu
func CategoryFor(percent int) Category {
	switch {
	case percent >= 85:
		return CategoryNearIdentical
	case percent >= 60:
		return CategoryStrongResemblance
	case percent >= 30:
		return CategoryClearFamily
	case percent >= 10:
		return CategorySubtleResemblance
	default:
		return CategoryUniqueCharacter
	}
}

// Calibrator wählt zufällige Textvarianten. Die Zufallsquelle ist injizierbar.
type Calibrator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New erstellt einen Calibrator mit der angegebenen Quelle. Bei nil wird zeitbasiert geseedet.
func New(src rand.Source) *Calibrator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>32)
	}
	return &Calibrator{rnd: rand.New(src)}
}

// NewSeeded erstellt einen deterministischen Calibrator
func NewSeeded(seed uint64) *Calibrator {
	return New(rand.NewPCG(seed, seed))
}

// Categorize liefert eine zufällige Variante aus dem Pool der passenden Stufe
func (c *Calibrator) Categorize(percent int) Message {
	pool := messagePools[CategoryFor(percent)]

	c.mu.Lock()
	i := c.rnd.IntN(len(pool))
	c.mu.Unlock()

	return pool[i]
}

// Calibrate verkettet Altersbonus, Prozentabbildung und Kategorisierung
func (c *Calibrator) Calibrate(rawScore float64, subjectAge, referenceAge *int) Calibration {
	boosted := ApplyAgeBoost(rawScore, subjectAge, referenceAge)
	percent := DisplayPercent(boosted)
	return Calibration{
		RawScore:       rawScore,
		BoostedScore:   boosted,
		DisplayPercent: percent,
		Message:        c.Categorize(percent),
	}
}
