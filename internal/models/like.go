package models

import "time"

// Like is one direction of interest. A mutual match is two Like rows, A->B and B->A.
type Like struct {
	ID             string
	FromID         string
	ToID           string
	MutualMatch    bool
	ApprovedByWali *bool
	CreatedAt      time.Time
}

// AwaitingGuardian reports whether the like still needs a guardian decision.
func (l *Like) AwaitingGuardian() bool {
	return l.ApprovedByWali == nil && !l.MutualMatch
}
