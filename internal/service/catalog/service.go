package catalog

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"rentcore/internal/config"
	"rentcore/internal/domain"
	"rentcore/internal/logging"
	"rentcore/internal/repository"
)

// ObjectStorage is the part of *minio.Client used for equipment images.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type Service interface {
	FindActiveResources(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error)
	FindResourceByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	FindFacilityByName(ctx context.Context, name string) (*domain.Resource, error)
	Resolve(ctx context.Context, ids []uuid.UUID, kind domain.ResourceKind) ([]domain.Resource, error)
	List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error)
	CreateEquipment(ctx context.Context, input domain.CreateEquipmentInput) (*domain.Resource, error)
	CreateFacility(ctx context.Context, input domain.CreateFacilityInput) (*domain.Resource, error)
	SetActive(ctx context.Context, id uuid.UUID, kind domain.ResourceKind, active bool) (*domain.Resource, error)
	SetEquipmentStatus(ctx context.Context, id uuid.UUID, status domain.EquipmentStatus) (*domain.Resource, error)
	UploadImage(ctx context.Context, id uuid.UUID, fileName string, size int64, contentType string, reader io.Reader) (*domain.Resource, error)
	BookedWindows(ctx context.Context, id uuid.UUID) ([]domain.BookedWindow, error)
}

type service struct {
	store   repository.Store
	objects ObjectStorage
	cfg     *config.Config
}

func NewService(store repository.Store, objects ObjectStorage, cfg *config.Config) Service {
	return &service{
		store:   store,
		objects: objects,
		cfg:     cfg,
	}
}

func (s *service) FindActiveResources(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	return s.List(ctx, domain.ResourceFilter{Kind: &kind, ActiveOnly: true})
}

func (s *service) FindResourceByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	resource, err := s.store.Resources().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, domain.ErrResourceNotFound
	}
	return resource, nil
}

func (s *service) FindFacilityByName(ctx context.Context, name string) (*domain.Resource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.NewValidationError("facility_name", "is required")
	}
	facility, err := s.store.Resources().GetFacilityByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if facility == nil {
		return nil, domain.ErrResourceNotFound
	}
	return facility, nil
}

// Resolve returns the resources for ids, deduplicated and in request order.
// An id with no resource behind it is ErrResourceNotFound; an inactive
// resource or one of another kind is a validation failure.
func (s *service) Resolve(ctx context.Context, ids []uuid.UUID, kind domain.ResourceKind) ([]domain.Resource, error) {
	return ResolveWith(ctx, s.store.Resources(), ids, kind)
}

// ResolveWith is Resolve against an explicit repository, so that it can run
// inside a transaction.
func ResolveWith(ctx context.Context, repo repository.ResourceRepository, ids []uuid.UUID, kind domain.ResourceKind) ([]domain.Resource, error) {
	ids = domain.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, domain.NewValidationError("resource_ids", "at least one resource is required")
	}

	found, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve resources: %w", err)
	}

	byID := make(map[uuid.UUID]domain.Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	out := make([]domain.Resource, 0, len(ids))
	var missing, bad []string
	for _, id := range ids {
		r, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id.String())
		case !r.IsActive || r.Kind != kind:
			bad = append(bad, id.String())
		default:
			out = append(out, r)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrResourceNotFound, strings.Join(missing, ", "))
	}
	if len(bad) > 0 {
		return nil, domain.NewValidationError("resource_ids",
			fmt.Sprintf("inactive or not %s: %s", strings.ToLower(string(kind)), strings.Join(bad, ", ")))
	}
	return out, nil
}

func (s *service) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	resources, err := s.store.Resources().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	return resources, nil
}

func (s *service) CreateEquipment(ctx context.Context, input domain.CreateEquipmentInput) (*domain.Resource, error) {
	status := domain.EquipmentAvailable
	resource := &domain.Resource{
		ID:         uuid.New(),
		Kind:       domain.KindEquipment,
		CatalogKey: strings.TrimSpace(input.CatalogKey),
		Name:       strings.TrimSpace(input.Name),
		Category:   strings.TrimSpace(input.Category),
		Status:     &status,
		IsActive:   true,
		ImageURL:   input.ImageURL,
	}
	if err := s.create(ctx, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *service) CreateFacility(ctx context.Context, input domain.CreateFacilityInput) (*domain.Resource, error) {
	resource := &domain.Resource{
		ID:         uuid.New(),
		Kind:       domain.KindFacility,
		CatalogKey: strings.TrimSpace(input.CatalogKey),
		Name:       strings.TrimSpace(input.Name),
		Category:   strings.TrimSpace(input.Category),
		IsActive:   true,
	}
	if err := s.create(ctx, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *service) create(ctx context.Context, resource *domain.Resource) error {
	existing, err := s.store.Resources().GetByCatalogKey(ctx, resource.CatalogKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.NewValidationError("catalog_key", "already registered")
	}
	if err := s.store.Resources().Create(ctx, resource); err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.NewValidationError("catalog_key", "already registered")
		}
		return err
	}
	return nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, kind domain.ResourceKind, active bool) (*domain.Resource, error) {
	resource, err := s.FindResourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if resource.Kind != kind {
		return nil, domain.ErrResourceNotFound
	}

	ok, err := s.store.Resources().SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrResourceNotFound
	}

	resource.IsActive = active
	return resource, nil
}

func (s *service) SetEquipmentStatus(ctx context.Context, id uuid.UUID, status domain.EquipmentStatus) (*domain.Resource, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "must be one of AVAILABLE, RENTED, BROKEN")
	}

	ok, err := s.store.Resources().SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return s.FindResourceByID(ctx, id)
}

func (s *service) UploadImage(ctx context.Context, id uuid.UUID, fileName string, size int64, contentType string, reader io.Reader) (*domain.Resource, error) {
	resource, err := s.FindResourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resource.IsEquipment() {
		return nil, domain.ErrResourceNotFound
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, domain.NewValidationError("image", "must be an image")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	objectName := fmt.Sprintf("equipment/%s/%s%s", resource.ID, uuid.NewString(), strings.ToLower(path.Ext(fileName)))
	_, err = s.objects.PutObject(ctx, s.cfg.MinIOBucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to MinIO: %w", err)
	}

	url := s.cfg.PublicObjectURL(objectName)
	if err := s.store.Resources().SetImageURL(ctx, resource.ID, url); err != nil {
		if rmErr := s.objects.RemoveObject(ctx, s.cfg.MinIOBucket, objectName, minio.RemoveObjectOptions{}); rmErr != nil {
			logging.FromContext(ctx).Warn("failed to remove orphaned image", "object", objectName, "error", rmErr)
		}
		return nil, err
	}

	resource.ImageURL = &url
	return resource, nil
}

// BookedWindows lists the windows that currently block new bookings on an
// equipment unit.
func (s *service) BookedWindows(ctx context.Context, id uuid.UUID) ([]domain.BookedWindow, error) {
	if _, err := s.FindResourceByID(ctx, id); err != nil {
		return nil, err
	}
	windows, err := s.store.Reservations().BookedWindows(ctx, id, domain.BookingBlockingStatuses)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []domain.BookedWindow{}
	}
	return windows, nil
}
