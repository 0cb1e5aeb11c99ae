package service

import (
	"context"
	"errors"
	"fmt"

	"bitwise74/drop-api/internal/access"
	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// authorize looks the drop up and runs the access decision for requesterID
func (s *DropService) authorize(ctx context.Context, code, requesterID string, passcode *string) (*model.Drop, access.Decision, error) {
	drop, err := s.drops.FindByCode(ctx, NormalizeCode(code))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, access.Decision{}, apperr.Internal(fmt.Errorf("failed to fetch drop, %w", err))
	}

	decision, err := s.engine.Decide(drop, requesterID, passcode, s.now())
	if err != nil {
		return nil, access.Decision{}, apperr.Internal(err)
	}

	if !decision.Allow {
		return nil, decision, denial(decision.Reason)
	}

	return drop, decision, nil
}

// Unlock returns signed URLs for every media item in the drop if the
// requester is allowed to see them. Each successful call counts once.
func (s *DropService) Unlock(ctx context.Context, code, requesterID string, passcode *string) (*UnlockResult, error) {
	drop, decision, err := s.authorize(ctx, code, requesterID, passcode)
	if err != nil {
		return nil, err
	}

	rows, err := s.media.ListByDrop(ctx, drop.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list media, %w", err))
	}

	// MapErr preserves input order, so the result stays sorted by position
	media, err := iter.MapErr(rows, func(m *model.Media) (MediaView, error) {
		url, err := s.store.SignedURL(ctx, m.StorageKey, s.cfg.SignedURLTTL)
		if err != nil {
			return MediaView{}, fmt.Errorf("failed to sign %s, %w", m.StorageKey, err)
		}

		return MediaView{
			ID:       m.ID,
			Type:     m.Type,
			Position: m.Position,
			Caption:  m.Caption,
			URL:      url,
		}, nil
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	count, err := s.drops.IncrementUnlockCount(ctx, drop.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to count unlock, %w", err))
	}

	res := &UnlockResult{
		DropCode: drop.Code,
		Title:    drop.Title,
		Tier:     decision.Tier,
		Count:    len(media),
		Media:    media,
	}

	if decision.IsOwner() {
		res.UnlockCount = &count
		res.Passcode = drop.PasscodePlain
	}

	zap.L().Debug("Drop unlocked",
		zap.String("code", drop.Code),
		zap.String("tier", string(decision.Tier)),
		zap.Int("media", len(media)),
	)

	return res, nil
}
