package models

import "gorm.io/gorm"

// CreateDefaultSequences seeds the standard outreach cadence on first boot.
func CreateDefaultSequences(db *gorm.DB) error {
	defaultSequences := []Sequence{
		{
			Name:        "standard-outreach",
			Description: "Three touch introduction cadence",
			Version:     1,
			Status:      "active",
			Steps: []SequenceStep{
				{
					StepNumber:       1,
					WaitBusinessDays: 0,
					Category:         "initial",
					SubjectPrompt:    "Short introduction subject mentioning the contact's organization",
					BodyPrompt:       "Brief introduction asking for a quick call, referencing the contact's role",
					AllowFallback:    true,
				},
				{
					StepNumber:       2,
					WaitBusinessDays: 3,
					Category:         "follow_up",
					SubjectPrompt:    "Gentle follow-up subject on the earlier introduction",
					BodyPrompt:       "Short nudge referencing the first email, one concrete question",
				},
				{
					StepNumber:       3,
					WaitBusinessDays: 5,
					Category:         "final",
					SubjectPrompt:    "Closing-the-loop subject",
					BodyPrompt:       "Polite final note making clear no further emails will follow",
				},
			},
		},
	}
	for _, seq := range defaultSequences {
		if err := db.FirstOrCreate(&seq, "name = ?", seq.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
