package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SweepOrphans deletes stored objects under drops/ whose drop no longer
// exists. Those are left behind when a delete fails halfway or a media
// transaction rolls back after its object was written.
func (s *DropService) SweepOrphans(ctx context.Context) (int, error) {
	keys, err := s.store.List(ctx, "drops/")
	if err != nil {
		return 0, err
	}

	byCode := map[string][]string{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, "drops/")
		code, _, ok := strings.Cut(rest, "/")
		if !ok || code == "" {
			continue
		}
		byCode[code] = append(byCode[code], k)
	}

	if len(byCode) == 0 {
		return 0, nil
	}

	codes := make([]string, 0, len(byCode))
	for c := range byCode {
		codes = append(codes, c)
	}

	existing, err := s.drops.ExistingCodes(ctx, codes)
	if err != nil {
		return 0, err
	}

	var orphans []string
	for code, ks := range byCode {
		if !existing[code] {
			orphans = append(orphans, ks...)
		}
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	if err := s.store.Delete(ctx, orphans...); err != nil {
		return 0, err
	}

	return len(orphans), nil
}

// OrphanSweep runs SweepOrphans every t until ctx is cancelled. A
// non-positive t disables the sweep.
func (s *DropService) OrphanSweep(ctx context.Context, t time.Duration) {
	if t <= 0 {
		zap.L().Warn("Orphan sweep disabled", zap.Duration("interval", t))
		return
	}

	ticker := time.NewTicker(t)
	defer ticker.Stop()

	zap.L().Debug("Orphan sweep attached", zap.Duration("tick_every", t))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOrphans(ctx)
			if err != nil {
				zap.L().Error("Failed to sweep orphaned objects", zap.Error(err))
				continue
			}

			zap.L().Debug("Orphan sweep finished", zap.Int("deleted", n))
		}
	}
}
