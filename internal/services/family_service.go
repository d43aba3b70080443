package services

import (
	"context"
	"fmt"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/repos"
	"sierraspos/internal/validate"
)

type FamilyNotifier interface {
	Welcome(ctx context.Context, f domain.Family, createdBy string)
}

// FamilyService is the registry of customer accounts.
type FamilyService struct {
	Families *repos.FamilyRepo
	Notify   FamilyNotifier
}

func NewFamilyService(fams *repos.FamilyRepo, n FamilyNotifier) *FamilyService {
	return &FamilyService{Families: fams, Notify: n}
}

func (s *FamilyService) List(ctx context.Context) ([]domain.Family, error) {
	return s.Families.List(ctx)
}

func (s *FamilyService) Get(ctx context.Context, id int64) (domain.Family, error) {
	return s.Families.Get(ctx, id)
}

func cleanFamily(f domain.Family) (domain.Family, error) {
	var ok bool
	if f.Name, ok = validate.Name(f.Name); !ok {
		return f, fmt.Errorf("family name: %w", domain.ErrInvalidInput)
	}
	if f.Email, ok = validate.Email(f.Email); !ok {
		return f, fmt.Errorf("family email: %w", domain.ErrInvalidInput)
	}
	if f.Phone, ok = validate.Phone(f.Phone); !ok {
		return f, fmt.Errorf("family phone: %w", domain.ErrInvalidInput)
	}
	return f, nil
}

// Create registers a family with a zero balance and greets it by mail.
func (s *FamilyService) Create(ctx context.Context, f domain.Family, caller domain.Caller) (domain.Family, error) {
	f, err := cleanFamily(f)
	if err != nil {
		return f, err
	}
	id, err := s.Families.Create(ctx, f)
	if err != nil {
		return f, err
	}
	created, err := s.Families.Get(ctx, id)
	if err != nil {
		return f, err
	}
	applog.Audit(nil, "family.create", map[string]any{"family_id": id, "by": caller.Name})
	if s.Notify != nil && created.Email != "" {
		by := caller.Name
		if by == "" {
			by = "Staff"
		}
		s.Notify.Welcome(ctx, created, by)
	}
	return created, nil
}

// Update changes contact data. The balance is not editable here.
func (s *FamilyService) Update(ctx context.Context, f domain.Family) (domain.Family, error) {
	f, err := cleanFamily(f)
	if err != nil {
		return f, err
	}
	if err := s.Families.Update(ctx, f); err != nil {
		return f, err
	}
	return s.Families.Get(ctx, f.ID)
}

func (s *FamilyService) Delete(ctx context.Context, id int64, caller domain.Caller) error {
	if err := s.Families.Delete(ctx, id); err != nil {
		return err
	}
	applog.Audit(nil, "family.delete", map[string]any{"family_id": id, "by": caller.Name})
	return nil
}
