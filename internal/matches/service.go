package matches

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/humanpalette/palette-backend/internal/notifications"
	"github.com/humanpalette/palette-backend/pkg/db"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/outbox"
)

// Service owns the match state machine. All user-driven transitions live
// here; the ghost transition belongs to the sweep job.
type Service interface {
	Accept(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error)
	Decline(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error)
	GetForParticipant(ctx context.Context, matchID, profileID uuid.UUID) (*models.Match, error)
}

// FeeResolver is the slice of the commitment fee manager the state machine
// calls when a decline releases the collector's hold.
type FeeResolver interface {
	Resolve(ctx context.Context, matchID uuid.UUID, outcome enums.FeeResolution) error
}

// ServiceParams configures the match service.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       *db.Client
	Matches  Repository
	Fees     FeeResolver
	Outbox   *outbox.Service
	Notifier notifications.Dispatcher
}

type service struct {
	logg     *logger.Logger
	db       *db.Client
	matches  Repository
	fees     FeeResolver
	outbox   *outbox.Service
	notifier notifications.Dispatcher
}

// NewService builds a match service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Matches == nil {
		return nil, fmt.Errorf("match repository required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee resolver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		logg:     params.Logger,
		db:       params.DB,
		matches:  params.Matches,
		fees:     params.Fees,
		outbox:   params.Outbox,
		notifier: params.Notifier,
	}, nil
}

// Accept moves a pending match to active. Only the matched artist may accept,
// and only while the match is still pending.
func (s *service) Accept(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error) {
	match, err := s.loadForArtist(ctx, matchID, artistID)
	if err != nil {
		return nil, err
	}

	if match.Status != enums.MatchStatusPending {
		return nil, errors.New(errors.CodeStateConflict, "match is no longer pending")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.matches.WithTx(tx).UpdateStatusIf(ctx, matchID, enums.MatchStatusPending, enums.MatchStatusActive)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "accepting match")
		}
		if !ok {
			return errors.New(errors.CodeStateConflict, "match is no longer pending")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   matchID,
			Actor:         &outbox.ActorRef{ProfileID: artistID, Role: enums.ProfileRoleArtist.String()},
			Data: map[string]any{
				"match_id":     matchID.String(),
				"artist_id":    artistID.String(),
				"collector_id": match.CollectorID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, match, enums.MatchStatusActive)

	logCtx := s.logg.WithMatchID(ctx, matchID.String())
	s.logg.Info(logCtx, "match accepted")

	return s.matches.FindByID(ctx, matchID)
}

// Decline moves a pending match to declined and refunds the commitment fee.
// Declining an already-declined match re-runs the resolver, which treats the
// terminal fee as a no-op, so retries are safe.
func (s *service) Decline(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error) {
	match, err := s.loadForArtist(ctx, matchID, artistID)
	if err != nil {
		return nil, err
	}

	switch match.Status {
	case enums.MatchStatusDeclined:
		// Already declined: fall through to the resolver so a refund that
		// failed on the first attempt still converges.
	case enums.MatchStatusPending:
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.matches.WithTx(tx).UpdateStatusIf(ctx, matchID, enums.MatchStatusPending, enums.MatchStatusDeclined)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "declining match")
			}
			if !ok {
				return errors.New(errors.CodeStateConflict, "match is no longer pending")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMatchDeclined,
				AggregateType: enums.AggregateMatch,
				AggregateID:   matchID,
				Actor:         &outbox.ActorRef{ProfileID: artistID, Role: enums.ProfileRoleArtist.String()},
				Data: map[string]any{
					"match_id":     matchID.String(),
					"artist_id":    artistID.String(),
					"collector_id": match.CollectorID.String(),
				},
			})
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.CodeStateConflict, "match is no longer pending")
	}

	if err := s.fees.Resolve(ctx, matchID, enums.FeeResolutionRefund); err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, match, enums.MatchStatusDeclined)

	logCtx := s.logg.WithMatchID(ctx, matchID.String())
	s.logg.Info(logCtx, "match declined")

	return s.matches.FindByID(ctx, matchID)
}

// GetForParticipant fetches a match visible to either side of it.
func (s *service) GetForParticipant(ctx context.Context, matchID, profileID uuid.UUID) (*models.Match, error) {
	match, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.ArtistID != profileID && match.CollectorID != profileID {
		return nil, errors.New(errors.CodeForbidden, "match belongs to other profiles")
	}
	return match, nil
}

func (s *service) load(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	if matchID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "match id is required")
	}
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "match not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading match")
	}
	return match, nil
}

func (s *service) loadForArtist(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error) {
	if artistID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "artist id is required")
	}
	match, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.ArtistID != artistID {
		return nil, errors.New(errors.CodeForbidden, "match belongs to another artist")
	}
	return match, nil
}

func (s *service) notifyDecision(ctx context.Context, match *models.Match, decision enums.MatchStatus) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, notifications.Notification{
		RecipientID: match.CollectorID,
		Type:        enums.NotificationTypeMatchDecision,
		Data: map[string]any{
			"match_id": match.ID.String(),
			"decision": decision.String(),
		},
	})
}
