package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func mediaTypeOf(contentType string) model.MediaType {
	if strings.HasPrefix(contentType, "video/") {
		return model.MediaTypeVideo
	}
	return model.MediaTypePhoto
}

// mediaKey builds drops/<CODE>/<kind>s/<position><ext>
func mediaKey(code string, t model.MediaType, position int, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("drops/%s/%ss/%d%s", code, t, position, ext)
}

// UploadMedia appends a file to the drop. Only the owner may upload. The
// object is stored before the row commits, a failed put leaves no row.
func (s *DropService) UploadMedia(ctx context.Context, code, requesterID string, up MediaUpload) (*UploadedMedia, error) {
	if up.Body == nil {
		return nil, apperr.Validation(CodeNoFileUploaded)
	}

	d, err := s.findOwned(ctx, code, requesterID)
	if err != nil {
		return nil, err
	}

	kind := mediaTypeOf(up.ContentType)

	m, err := s.media.Append(ctx, d.ID,
		func(position int) *model.Media {
			return &model.Media{
				ID:          uuid.NewString(),
				StorageKey:  mediaKey(d.Code, kind, position, up.Extension),
				Type:        kind,
				ContentType: up.ContentType,
				Size:        up.Size,
				Caption:     up.Caption,
			}
		},
		func(m *model.Media) error {
			_, err := s.store.Put(ctx, m.StorageKey, up.Body, up.Size, up.ContentType)
			return err
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound(CodeDropNotFound)
		case errors.Is(err, repository.ErrPositionContention):
			return nil, apperr.Wrap(apperr.KindConflict, CodePositionContention, err)
		default:
			return nil, apperr.Internal(fmt.Errorf("failed to store media, %w", err))
		}
	}

	zap.L().Debug("Media uploaded",
		zap.String("code", d.Code),
		zap.String("key", m.StorageKey),
		zap.Int64("size", m.Size),
	)

	return &UploadedMedia{
		ID:         m.ID,
		StorageKey: m.StorageKey,
		Type:       m.Type,
		Position:   m.Position,
		Caption:    m.Caption,
	}, nil
}
