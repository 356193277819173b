package service

import (
	"context"
	"sync"
	"time"

	"github.com/avighnad/HamaraPrayas/pkg/errors"
)

const (
	auditBatchSize    = 200
	auditWorkers      = 4
	maxReportedDrifts = 20
)

// AuditService re-checks the ledger invariant: for every user, the sum of
// committed transaction amounts must equal the profile credit total. It
// only reports; repairs are a manual operation.
type AuditService struct {
	profileRepo ProfileStore
	ledgerRepo  LedgerStore
}

func NewAuditService(profileRepo ProfileStore, ledgerRepo LedgerStore) *AuditService {
	return &AuditService{
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
	}
}

type LedgerDrift struct {
	UserID         string `json:"userId"`
	ProfileCredits int64  `json:"profileCredits"`
	LedgerTotal    int64  `json:"ledgerTotal"`
}

type AuditReport struct {
	CheckedProfiles int           `json:"checkedProfiles"`
	DriftCount      int           `json:"driftCount"`
	Drifts          []LedgerDrift `json:"drifts"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      time.Time     `json:"finishedAt"`
}

// VerifyLedgers walks every profile and compares its credit total with its
// ledger sum. Sums run on a small worker pool; the report caps the drift
// detail list but counts every drifted profile.
func (s *AuditService) VerifyLedgers(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{
		StartedAt: time.Now(),
		Drifts:    make([]LedgerDrift, 0),
	}

	type profileCheck struct {
		userID       string
		totalCredits int64
	}

	checks := make(chan profileCheck, auditWorkers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var sumErr error

	for i := 0; i < auditWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for check := range checks {
				total, err := s.ledgerRepo.SumByUser(ctx, check.userID)

				mu.Lock()
				if err != nil {
					if sumErr == nil {
						sumErr = err
					}
					mu.Unlock()
					continue
				}
				report.CheckedProfiles++
				if total != check.totalCredits {
					report.DriftCount++
					if len(report.Drifts) < maxReportedDrifts {
						report.Drifts = append(report.Drifts, LedgerDrift{
							UserID:         check.userID,
							ProfileCredits: check.totalCredits,
							LedgerTotal:    total,
						})
					}
				}
				mu.Unlock()
			}
		}()
	}

	var listErr error
	for offset := 0; ; offset += auditBatchSize {
		batch, err := s.profileRepo.ListPaginated(ctx, offset, auditBatchSize)
		if err != nil {
			listErr = err
			break
		}
		for _, p := range batch {
			checks <- profileCheck{userID: p.UserID, totalCredits: p.TotalCredits}
		}
		if len(batch) < auditBatchSize {
			break
		}
	}
	close(checks)
	wg.Wait()

	if listErr != nil {
		return nil, errors.New(errors.ErrAudit, "failed to list profiles", listErr)
	}
	if sumErr != nil {
		return nil, errors.New(errors.ErrAudit, "failed to sum ledgers", sumErr)
	}

	report.FinishedAt = time.Now()
	return report, nil
}
