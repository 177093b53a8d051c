package model

// ImageCategory is the closed set of image classifications the analysis
// service may return.
type ImageCategory string

const (
	CategorySelfie     ImageCategory = "Selfie"
	CategoryDocument   ImageCategory = "Document"
	CategoryScreenshot ImageCategory = "Screenshot"
	CategoryPhoto      ImageCategory = "Photo"
	CategoryOther      ImageCategory = "Other"
)

// IsValid reports whether the category is part of the closed set.
func (c ImageCategory) IsValid() bool {
	switch c {
	case CategorySelfie, CategoryDocument, CategoryScreenshot, CategoryPhoto, CategoryOther:
		return true
	}
	return false
}

// FaceEmotion is the closed set of facial emotion labels. "None" covers
// images without a visible face.
type FaceEmotion string

const (
	EmotionHappy     FaceEmotion = "Happy"
	EmotionNeutral   FaceEmotion = "Neutral"
	EmotionSad       FaceEmotion = "Sad"
	EmotionAngry     FaceEmotion = "Angry"
	EmotionSurprised FaceEmotion = "Surprised"
	EmotionNone      FaceEmotion = "None"
)

// IsValid reports whether the emotion label is part of the closed set.
func (e FaceEmotion) IsValid() bool {
	switch e {
	case EmotionHappy, EmotionNeutral, EmotionSad, EmotionAngry, EmotionSurprised, EmotionNone:
		return true
	}
	return false
}

// MaxDominantColors caps how many dominant color tokens an analysis carries.
const MaxDominantColors = 5

// Authenticity is the edited-likelihood judgement attached to an analysis.
type Authenticity struct {
	IsLikelyEdited bool   `json:"isLikelyEdited"`
	Reason         string `json:"reason"`
	Score          int    `json:"score"` // confidence 0-100
}

// AnalysisRecord is the normalized output of the external inference step.
// It is either fully populated from a valid service response or replaced
// wholesale by FallbackAnalysis, never partially filled. Field tags follow
// the service wire schema.
type AnalysisRecord struct {
	Objects        []string      `json:"objects"`
	PeopleCount    int           `json:"peopleCount"`
	SceneType      string        `json:"sceneType"`
	ImageCategory  ImageCategory `json:"imageCategory"`
	DominantColors []string      `json:"dominantColors"`
	FaceEmotion    FaceEmotion   `json:"faceEmotion"`
	IsSafe         bool          `json:"isSafe"`
	Authenticity   Authenticity  `json:"authenticity"`
	OCRText        string        `json:"ocrText"`
}

// FallbackAnalysis returns the fixed placeholder record used whenever the
// inference service cannot produce a valid structured answer.
func FallbackAnalysis() AnalysisRecord {
	return AnalysisRecord{
		Objects:        []string{},
		PeopleCount:    0,
		SceneType:      "Unknown",
		ImageCategory:  CategoryOther,
		DominantColors: []string{},
		FaceEmotion:    EmotionNone,
		IsSafe:         true,
		Authenticity: Authenticity{
			IsLikelyEdited: false,
			Reason:         "Analysis failed",
			Score:          0,
		},
		OCRText: "",
	}
}
