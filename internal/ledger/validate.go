package ledger

import (
	"fmt"
	"unicode/utf8"

	"escrow/internal/domain"
)

func validateCampaignParams(p domain.CampaignParams) error {
	if p.FundingGoal == 0 || p.FundingGoal > domain.MaxAmount {
		return fmt.Errorf("%w: %d", domain.ErrInvalidGoal, p.FundingGoal)
	}
	if p.DurationDays < domain.MinCampaignDurationDays || p.DurationDays > domain.MaxCampaignDurationDays {
		return fmt.Errorf("%w: %d days, want %d..%d", domain.ErrInvalidDuration,
			p.DurationDays, domain.MinCampaignDurationDays, domain.MaxCampaignDurationDays)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCategory, p.Category)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if err := checkLength("title", p.Title, domain.MaxTitleLength); err != nil {
		return err
	}
	if err := checkLength("short_description", p.ShortDescription, domain.MaxDescriptionLength); err != nil {
		return err
	}
	if err := checkLength("cover_image_url", p.CoverImageURL, domain.MaxURLLength); err != nil {
		return err
	}
	return checkLength("story_url", p.StoryURL, domain.MaxURLLength)
}

func validateMilestone(title string, target uint64) error {
	if title == "" {
		return fmt.Errorf("%w: milestone title is required", domain.ErrInvalidInput)
	}
	if err := checkLength("milestone title", title, domain.MaxMilestoneTitleLength); err != nil {
		return err
	}
	if target == 0 || target > domain.MaxAmount {
		return fmt.Errorf("%w: target amount must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// checkLength counts characters, not bytes.
func checkLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%w: %s has %d characters, max %d", domain.ErrInvalidInput, field, n, max)
	}
	return nil
}
