package ranks

import (
	"strings"
	"time"

	"foodrankr-web/internal/backend"
	"foodrankr-web/pkg/validation"
)

// DefaultRating is preselected on a fresh form.
const DefaultRating = 3

// Messages shown after a submission.
const (
	MsgSaved = "Saved!"
	MsgError = "Error"
)

// Form holds the rank screen's fields.
type Form struct {
	Date     string
	Dish     string
	Rating   int
	Comment  string
	ImageURL string
}

// NewForm returns the defaults: today's UTC date and a middle rating.
func NewForm(now time.Time) Form {
	return Form{Date: now.UTC().Format(validation.DateLayout), Rating: DefaultRating}
}

// Reset clears the fields after a successful save. The date is kept so several
// dishes can be ranked for the same day.
func (f Form) Reset() Form {
	return Form{Date: f.Date, Rating: DefaultRating}
}

// Validate checks the form without calling the backend.
func (f Form) Validate() validation.Errors {
	errs := validation.Errors{}
	if !validation.ValidateRequired(f.Dish) {
		errs.Add("dish", "required")
	}
	if !validation.ValidateDate(f.Date) {
		errs.Add("date", "use YYYY-MM-DD")
	}
	if !validation.ValidateRating(f.Rating) {
		errs.Add("rating", "pick 1 to 5")
	}
	if !validation.ValidateImageURL(f.ImageURL) {
		errs.Add("image_url", "must be an http(s) URL")
	}
	return errs
}

func (f Form) input() backend.RatingInput {
	return backend.RatingInput{
		Date:     f.Date,
		Dish:     strings.TrimSpace(f.Dish),
		Rating:   f.Rating,
		Comment:  strings.TrimSpace(f.Comment),
		ImageURL: strings.TrimSpace(f.ImageURL),
	}
}

// View is what the rank screen renders.
type View struct {
	Form    Form
	Message string
	Errors  validation.Errors
}
