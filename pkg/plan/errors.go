package plan

import "errors"

var (
	ErrUnknownTier              = errors.New("unknown plan tier")
	ErrDuplicateTier            = errors.New("duplicate plan tier")
	ErrMissingTier              = errors.New("plan catalog is missing a tier")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plan catalog")
)
