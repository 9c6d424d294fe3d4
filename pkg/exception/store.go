package exception

import "errors"

var (
	ErrStoreNilInstance       = errors.New("store: nil instance")
	ErrStorePlanNotFound      = errors.New("store: plan order not found")
	ErrStoreCandidateNotFound = errors.New("store: candidate order not found")
)
