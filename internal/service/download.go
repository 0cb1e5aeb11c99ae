package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/pkg/apperr"
)

// Download proxies a single media object so clients never see where it is
// stored. The caller must close the returned body.
func (s *DropService) Download(ctx context.Context, code, mediaID, requesterID string, passcode *string) (*Download, error) {
	d, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	m, err := s.media.FindInDrop(ctx, d.ID, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(CodeMediaNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to fetch media, %w", err))
	}

	decision, err := s.engine.Decide(d, requesterID, passcode, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if !decision.Allow {
		return nil, denial(decision.Reason)
	}

	url, err := s.store.SignedURL(ctx, m.StorageKey, s.cfg.SignedURLTTL)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to sign %s, %w", m.StorageKey, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to build upstream request, %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, CodeUpstreamFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, apperr.Wrap(apperr.KindUpstream, CodeUpstreamFetchFailed,
			fmt.Errorf("upstream responded with %s", resp.Status))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      path.Base(m.StorageKey),
	}, nil
}
