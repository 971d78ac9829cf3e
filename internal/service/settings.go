package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
	"tokokasir/backend/internal/xid"
)

const (
	maxBusinessNameLen    = 120
	maxBusinessAddressLen = 300
	maxBusinessPhoneLen   = 32
)

// GetSettings returns an empty profile until the actor saves one.
func (s *Service) GetSettings(ctx context.Context) (domain.BusinessSettings, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	settings, err := s.repo.GetSettings(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.BusinessSettings{OwnerID: actor.UserID}, nil
	}
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.BusinessSettings, error) {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return domain.BusinessSettings{}, err
	}

	updated := current
	updated.BusinessName = strings.TrimSpace(req.BusinessName)
	updated.BusinessAddress = strings.TrimSpace(req.BusinessAddress)
	updated.BusinessPhone = strings.TrimSpace(req.BusinessPhone)
	if len(updated.BusinessName) > maxBusinessNameLen ||
		len(updated.BusinessAddress) > maxBusinessAddressLen ||
		len(updated.BusinessPhone) > maxBusinessPhoneLen {
		return domain.BusinessSettings{}, fmt.Errorf("%w: business profile field too long", store.ErrInvalidInput)
	}
	if req.QRImageID != nil {
		qr := strings.TrimSpace(*req.QRImageID)
		if qr != "" && !ownsImage(current.OwnerID, qr) {
			return domain.BusinessSettings{}, fmt.Errorf("%w: image %s belongs to another account", ErrForbidden, qr)
		}
		updated.QRImageID = qr
	}

	saved, err := s.repo.UpsertSettings(ctx, updated)
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	return *saved, nil
}

// GenerateQRUploadURL reserves an object key under the actor's prefix and
// returns a presigned PUT for it. The key is saved later via UpdateSettings.
func (s *Service) GenerateQRUploadURL(ctx context.Context) (domain.UploadURLResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.UploadURLResponse{}, err
	}
	key := imagePrefix(actor.UserID) + xid.New("qr") + ".png"
	uploadURL, expiresAt, err := s.images.PresignUpload(ctx, key)
	if err != nil {
		return domain.UploadURLResponse{}, err
	}
	return domain.UploadURLResponse{
		UploadURL: uploadURL,
		StorageID: key,
		ExpiresAt: expiresAt.UnixMilli(),
	}, nil
}

func (s *Service) QRImageURL(ctx context.Context, storageID string) (string, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return "", err
	}
	storageID = strings.TrimSpace(storageID)
	if storageID == "" {
		return "", fmt.Errorf("%w: storage_id required", store.ErrInvalidInput)
	}
	if !ownsImage(actor.UserID, storageID) {
		return "", fmt.Errorf("%w: image %s belongs to another account", ErrForbidden, storageID)
	}
	return s.images.PresignView(ctx, storageID)
}

func imagePrefix(actorID string) string {
	return "qr/" + actorID + "/"
}

func ownsImage(actorID string, key string) bool {
	return strings.HasPrefix(key, imagePrefix(actorID)) && !strings.Contains(key, "..")
}
