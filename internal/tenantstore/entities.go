package tenantstore

import "github.com/smallbiznis/gapline/internal/tenantstore/domain"

func (s *Store) Accounts() Collection[domain.Account, *domain.Account] {
	return collection[domain.Account](s)
}

func (s *Store) AccountMetrics() Collection[domain.AccountMetric, *domain.AccountMetric] {
	return collection[domain.AccountMetric](s)
}

func (s *Store) Products() Collection[domain.Product, *domain.Product] {
	return collection[domain.Product](s)
}

func (s *Store) Orders() Collection[domain.Order, *domain.Order] {
	return collection[domain.Order](s)
}

func (s *Store) Tasks() Collection[domain.Task, *domain.Task] {
	return collection[domain.Task](s)
}

func (s *Store) Playbooks() Collection[domain.Playbook, *domain.Playbook] {
	return collection[domain.Playbook](s)
}

func (s *Store) SegmentProfiles() Collection[domain.SegmentProfile, *domain.SegmentProfile] {
	return collection[domain.SegmentProfile](s)
}

func (s *Store) ProgramAccounts() Collection[domain.ProgramAccount, *domain.ProgramAccount] {
	return collection[domain.ProgramAccount](s)
}

func (s *Store) Settings() Collection[domain.Setting, *domain.Setting] {
	return collection[domain.Setting](s)
}

func (s *Store) ScoringWeights() Collection[domain.ScoringWeights, *domain.ScoringWeights] {
	return collection[domain.ScoringWeights](s)
}

func (s *Store) TerritoryManagers() Collection[domain.TerritoryManager, *domain.TerritoryManager] {
	return collection[domain.TerritoryManager](s)
}

func (s *Store) CustomCategories() Collection[domain.CustomCategory, *domain.CustomCategory] {
	return collection[domain.CustomCategory](s)
}

func (s *Store) RevShareTiers() Collection[domain.RevShareTier, *domain.RevShareTier] {
	return collection[domain.RevShareTier](s)
}

func (s *Store) DataUploads() Collection[domain.DataUpload, *domain.DataUpload] {
	return collection[domain.DataUpload](s)
}

func (s *Store) Users() Collection[domain.TenantUser, *domain.TenantUser] {
	return collection[domain.TenantUser](s)
}
