package opconfig

import "errors"

var (
	errMissingDefaultCredits    = errors.New(`opconfig: credit table missing required "default" entry`)
	errIncompleteDefaultCredits = errors.New(`opconfig: "default" credit entry must cover fast, standard, and expert`)
)
