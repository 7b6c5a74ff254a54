// Package setup implements the onboarding wizard core: the step progression
// state machine, the detection matcher that maps remote search results onto
// the stock-analyses database, stock-history database and dashboard page
// roles, the identifier normalizer, and the confirmation gate that commits
// the final mapping.
//
// The package is transport-agnostic. Remote collaborators (workspace search,
// resource lookup) are consumed through the SearchProvider and
// ResourceValidator interfaces; durable state goes through ProgressStore.
// All failures are translated into the package's error taxonomy at these
// boundaries: ErrInvalidTransition, AlreadySetupError, ValidationErrors and
// the retryable RemoteError. A failed detection or confirmation attempt
// never mutates stored progress.
package setup
