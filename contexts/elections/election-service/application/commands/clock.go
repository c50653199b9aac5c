package commands

import (
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}

func requireMutator(actor entities.AdminPrincipal) error {
	if actor.AdminID == "" {
		return domainerrors.ErrUnauthorized
	}
	if !actor.CanMutate() {
		return domainerrors.ErrForbidden
	}
	return nil
}
