package commands

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const (
	maxSlugLength        = 64
	maxNameLength        = 200
	maxDescriptionLength = 5000
)

type CreateElectionCommand struct {
	Actor       entities.AdminPrincipal
	Slug        string
	Name        string
	Description string
	StartAt     time.Time
	EndAt       time.Time
}

// UpdateElectionCommand carries optional fields; nil means unchanged.
type UpdateElectionCommand struct {
	Actor       entities.AdminPrincipal
	ElectionID  string
	Slug        *string
	Name        *string
	Description *string
	StartAt     *time.Time
	EndAt       *time.Time
}

type TransitionCommand struct {
	Actor      entities.AdminPrincipal
	ElectionID string
}

// ElectionUseCase owns the DRAFT -> ACTIVE -> CLOSED -> ARCHIVED state machine
// and the result visibility toggle.
type ElectionUseCase struct {
	Elections ports.ElectionRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc ElectionUseCase) CreateElection(ctx context.Context, cmd CreateElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Election{}, err
	}
	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	name := strings.TrimSpace(cmd.Name)
	description := strings.TrimSpace(cmd.Description)
	if err := validateSlug(slug); err != nil {
		return entities.Election{}, err
	}
	if err := validateName(name); err != nil {
		return entities.Election{}, err
	}
	if len(description) > maxDescriptionLength {
		return entities.Election{}, domainerrors.Invalid("description", "description is too long")
	}
	if err := validateSchedule(cmd.StartAt, cmd.EndAt); err != nil {
		return entities.Election{}, err
	}

	electionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	now := resolveNow(uc.Clock)
	election := entities.Election{
		ElectionID:  electionID,
		Slug:        slug,
		Name:        name,
		Description: description,
		Status:      entities.ElectionStatusDraft,
		StartAt:     cmd.StartAt.UTC(),
		EndAt:       cmd.EndAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Elections.CreateElection(ctx, election); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateSlug) {
			logger.Warn("election create rejected: duplicate slug",
				"event", "election_create_duplicate_slug",
				"module", application.ModuleName,
				"layer", "application",
				"slug", slug,
			)
		}
		return entities.Election{}, err
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, EventElectionCreated, election.ElectionID, now,
		electionEventData(election, cmd.Actor.AdminID, "", now)); err != nil {
		return entities.Election{}, err
	}
	logger.Info("election created",
		"event", "election_created",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"slug", election.Slug,
		"actor_id", cmd.Actor.AdminID,
	)
	return election, nil
}

// UpdateElection edits metadata in any status; slug and schedule are frozen
// once the election leaves DRAFT.
func (uc ElectionUseCase) UpdateElection(ctx context.Context, cmd UpdateElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Election{}, err
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}

	scheduleChanged := (cmd.StartAt != nil && !cmd.StartAt.UTC().Equal(election.StartAt.UTC())) ||
		(cmd.EndAt != nil && !cmd.EndAt.UTC().Equal(election.EndAt.UTC()))
	slugChanged := cmd.Slug != nil && strings.ToLower(strings.TrimSpace(*cmd.Slug)) != election.Slug
	if (scheduleChanged || slugChanged) && election.Status != entities.ElectionStatusDraft {
		logger.Warn("election update rejected: schedule frozen",
			"event", "election_update_schedule_frozen",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"status", string(election.Status),
		)
		return entities.Election{}, domainerrors.ErrScheduleFrozen
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if err := validateName(name); err != nil {
			return entities.Election{}, err
		}
		election.Name = name
	}
	if cmd.Description != nil {
		description := strings.TrimSpace(*cmd.Description)
		if len(description) > maxDescriptionLength {
			return entities.Election{}, domainerrors.Invalid("description", "description is too long")
		}
		election.Description = description
	}
	if slugChanged {
		slug := strings.ToLower(strings.TrimSpace(*cmd.Slug))
		if err := validateSlug(slug); err != nil {
			return entities.Election{}, err
		}
		election.Slug = slug
	}
	if cmd.StartAt != nil {
		election.StartAt = cmd.StartAt.UTC()
	}
	if cmd.EndAt != nil {
		election.EndAt = cmd.EndAt.UTC()
	}
	if err := validateSchedule(election.StartAt, election.EndAt); err != nil {
		return entities.Election{}, err
	}
	election.UpdatedAt = resolveNow(uc.Clock)
	if err := uc.Elections.UpdateElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	logger.Info("election updated",
		"event", "election_updated",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", election.ElectionID,
		"schedule_changed", scheduleChanged,
		"actor_id", cmd.Actor.AdminID,
	)
	return election, nil
}

// Activate requires DRAFT and now within the schedule. Any other ACTIVE
// election is closed in the same store transaction.
func (uc ElectionUseCase) Activate(ctx context.Context, cmd TransitionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Election{}, err
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}
	if !election.CanTransitionTo(entities.ElectionStatusActive) {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}
	now := resolveNow(uc.Clock)
	if !election.WithinWindow(now) {
		logger.Warn("election activation outside schedule",
			"event", "election_activate_outside_schedule",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"start_at", election.StartAt.Format(time.RFC3339),
			"end_at", election.EndAt.Format(time.RFC3339),
		)
		return entities.Election{}, domainerrors.ErrOutsideSchedule
	}

	result, err := uc.Elections.ActivateElection(ctx, election.ElectionID, now)
	if err != nil {
		if domainerrors.Retryable(err) {
			logger.Warn("election activation lost a race",
				"event", "election_activate_conflict",
				"module", application.ModuleName,
				"layer", "application",
				"election_id", election.ElectionID,
				"error", err.Error(),
			)
		}
		return entities.Election{}, err
	}
	for _, closed := range result.ClosedElections {
		if err := appendEvent(ctx, uc.Outbox, uc.IDGen, EventElectionClosed, closed.ElectionID, now,
			electionEventData(closed, cmd.Actor.AdminID, "superseded_by_activation", now)); err != nil {
			return entities.Election{}, err
		}
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, EventElectionActivated, result.Election.ElectionID, now,
		electionEventData(result.Election, cmd.Actor.AdminID, "", now)); err != nil {
		return entities.Election{}, err
	}
	logger.Info("election activated",
		"event", "election_activated",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", result.Election.ElectionID,
		"closed_count", len(result.ClosedElections),
		"actor_id", cmd.Actor.AdminID,
	)
	return result.Election, nil
}

func (uc ElectionUseCase) Close(ctx context.Context, cmd TransitionCommand) (entities.Election, error) {
	return uc.transition(ctx, cmd, entities.ElectionStatusActive, entities.ElectionStatusClosed, EventElectionClosed)
}

func (uc ElectionUseCase) Archive(ctx context.Context, cmd TransitionCommand) (entities.Election, error) {
	return uc.transition(ctx, cmd, entities.ElectionStatusClosed, entities.ElectionStatusArchived, EventElectionArchived)
}

func (uc ElectionUseCase) PublishResults(ctx context.Context, cmd TransitionCommand) (entities.Election, error) {
	return uc.setResultVisibility(ctx, cmd, true)
}

func (uc ElectionUseCase) HideResults(ctx context.Context, cmd TransitionCommand) (entities.Election, error) {
	return uc.setResultVisibility(ctx, cmd, false)
}

func (uc ElectionUseCase) transition(
	ctx context.Context,
	cmd TransitionCommand,
	from entities.ElectionStatus,
	to entities.ElectionStatus,
	eventType string,
) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Election{}, err
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != from {
		logger.Warn("election transition rejected",
			"event", "election_transition_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"election_id", election.ElectionID,
			"status", string(election.Status),
			"target_status", string(to),
		)
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	now := resolveNow(uc.Clock)
	updated, err := uc.Elections.TransitionElection(ctx, election.ElectionID, from, to, now)
	if err != nil {
		return entities.Election{}, err
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, eventType, updated.ElectionID, now,
		electionEventData(updated, cmd.Actor.AdminID, "", now)); err != nil {
		return entities.Election{}, err
	}
	logger.Info("election transitioned",
		"event", "election_transitioned",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", updated.ElectionID,
		"from_status", string(from),
		"to_status", string(to),
		"actor_id", cmd.Actor.AdminID,
	)
	return updated, nil
}

func (uc ElectionUseCase) setResultVisibility(ctx context.Context, cmd TransitionCommand, public bool) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireMutator(cmd.Actor); err != nil {
		return entities.Election{}, err
	}
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != entities.ElectionStatusClosed {
		return entities.Election{}, domainerrors.ErrElectionNotClosed
	}
	now := resolveNow(uc.Clock)
	updated, err := uc.Elections.SetResultVisibility(ctx, election.ElectionID, public, now)
	if err != nil {
		return entities.Election{}, err
	}
	eventType := EventElectionResultsHidden
	if public {
		eventType = EventElectionResultsPublished
	}
	if err := appendEvent(ctx, uc.Outbox, uc.IDGen, eventType, updated.ElectionID, now,
		electionEventData(updated, cmd.Actor.AdminID, "", now)); err != nil {
		return entities.Election{}, err
	}
	logger.Info("election result visibility changed",
		"event", "election_result_visibility_changed",
		"module", application.ModuleName,
		"layer", "application",
		"election_id", updated.ElectionID,
		"is_result_public", updated.IsResultPublic,
		"actor_id", cmd.Actor.AdminID,
	)
	return updated, nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return domainerrors.Invalid("slug", "slug is required")
	}
	if len(slug) > maxSlugLength || !slugPattern.MatchString(slug) {
		return domainerrors.Invalid("slug", "slug must be lowercase letters, digits and single dashes")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return domainerrors.Invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return domainerrors.Invalid("name", "name is too long")
	}
	return nil
}

func validateSchedule(startAt time.Time, endAt time.Time) error {
	if startAt.IsZero() {
		return domainerrors.Invalid("start_at", "start_at is required")
	}
	if endAt.IsZero() {
		return domainerrors.Invalid("end_at", "end_at is required")
	}
	if !startAt.Before(endAt) {
		return domainerrors.Invalid("end_at", "end_at must be after start_at")
	}
	return nil
}
