package flow

// Tier is the quality of the ending the player reached.
type Tier string

const (
	TrueEnding   Tier = "true"
	GoodEnding   Tier = "good"
	NormalEnding Tier = "normal"
	BadEnding    Tier = "bad"
)

type EndingThresholds struct {
	TrueClueRatio float64 `yaml:"true_clue_ratio"`
	TrueAffinity  float64 `yaml:"true_affinity"`
	GoodClueRatio float64 `yaml:"good_clue_ratio"`
	GoodAffinity  float64 `yaml:"good_affinity"`
}

func DefaultEndingThresholds() EndingThresholds {
	return EndingThresholds{
		TrueClueRatio: 0.9,
		TrueAffinity:  70,
		GoodClueRatio: 0.7,
		GoodAffinity:  30,
	}
}

type EndingInput struct {
	CorrectCulprit bool
	// ClueRatio is the share of clues discovered, between 0 and 1.
	ClueRatio float64
	// MeanAffinity is the average affinity of the case's characters, between 0 and 100.
	MeanAffinity float64
}

// DetermineEnding classifies the outcome of a case. Accusing the wrong person always ends badly.
func DetermineEnding(in EndingInput, th EndingThresholds) Tier {
	switch {
	case !in.CorrectCulprit:
		return BadEnding
	case in.ClueRatio >= th.TrueClueRatio && in.MeanAffinity >= th.TrueAffinity:
		return TrueEnding
	case in.ClueRatio >= th.GoodClueRatio && in.MeanAffinity >= th.GoodAffinity:
		return GoodEnding
	default:
		return NormalEnding
	}
}

type Ending struct {
	Tier Tier `json:"tier"`
	// Accused is empty when the case ran out before an accusation was made.
	Accused        string  `json:"accused,omitempty"`
	CorrectCulprit bool    `json:"correct_culprit"`
	ClueRatio      float64 `json:"clue_ratio"`
	MeanAffinity   float64 `json:"mean_affinity"`
}
