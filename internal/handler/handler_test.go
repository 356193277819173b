package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/config"
	"github.com/avighnad/HamaraPrayas/internal/handler"
	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/scheduler"
	"github.com/avighnad/HamaraPrayas/internal/service"
	"github.com/avighnad/HamaraPrayas/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// memDB backs the store fakes for API tests. It only models what the
// endpoints exercise; transactional edge cases live in the service tests.
type memDB struct {
	mu        sync.Mutex
	profiles  map[string]models.DonorProfile
	txns      []models.CreditTransaction
	donations []models.DonationRecord
	badges    []models.BadgeAward
	snapshots map[string]models.LeaderboardSnapshot

	nextProfileID uint64
	nextBadgeID   uint64
}

func leaderboardLess(a, b models.DonorProfile) bool {
	if a.TotalCredits != b.TotalCredits {
		return a.TotalCredits > b.TotalCredits
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.UserID < b.UserID
}

type profileStore struct{ db *memDB }

func (s *profileStore) GetByUserID(ctx context.Context, userID string) (*models.DonorProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p, ok := s.db.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *profileStore) GetOrCreate(ctx context.Context, userID string) (*models.DonorProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p, ok := s.db.profiles[userID]; ok {
		return &p, nil
	}
	s.db.nextProfileID++
	p := models.DonorProfile{
		ID:            s.db.nextProfileID,
		UserID:        userID,
		SchemaVersion: models.CurrentSchemaVersion,
		CreatedAt:     time.Now(),
	}
	s.db.profiles[userID] = p
	return &p, nil
}

func (s *profileStore) ApplyEvent(ctx context.Context, profile *models.DonorProfile, txn *models.CreditTransaction, donation *models.DonationRecord, badges []models.BadgeAward) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if profile.ID == 0 {
		s.db.nextProfileID++
		profile.ID = s.db.nextProfileID
		profile.CreatedAt = time.Now()
	}
	s.db.profiles[profile.UserID] = *profile
	if txn != nil {
		txn.CreatedAt = time.Now()
		s.db.txns = append(s.db.txns, *txn)
	}
	if donation != nil {
		s.db.donations = append(s.db.donations, *donation)
	}
	for _, b := range badges {
		s.db.nextBadgeID++
		b.ID = s.db.nextBadgeID
		s.db.badges = append(s.db.badges, b)
	}
	return nil
}

func (s *profileStore) ListByCredits(ctx context.Context, offset, limit int) ([]models.DonorProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	all := make([]models.DonorProfile, 0, len(s.db.profiles))
	for _, p := range s.db.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return leaderboardLess(all[i], all[j]) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *profileStore) ListPaginated(ctx context.Context, offset, limit int) ([]models.DonorProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	all := make([]models.DonorProfile, 0, len(s.db.profiles))
	for _, p := range s.db.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *profileStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.profiles)), nil
}

func (s *profileStore) CountAhead(ctx context.Context, totalCredits int64, createdAt time.Time, userID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ref := models.DonorProfile{TotalCredits: totalCredits, CreatedAt: createdAt, UserID: userID}
	var ahead int64
	for _, p := range s.db.profiles {
		if leaderboardLess(p, ref) {
			ahead++
		}
	}
	return ahead, nil
}

func (s *profileStore) SumCredits(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var sum int64
	for _, p := range s.db.profiles {
		sum += p.TotalCredits
	}
	return sum, nil
}

type ledgerStore struct{ db *memDB }

func (s *ledgerStore) ExistsByEventKey(ctx context.Context, eventKey string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, txn := range s.db.txns {
		if txn.EventKey == eventKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *ledgerStore) GetByUser(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.CreditTransaction, 0)
	for i := len(s.db.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if s.db.txns[i].UserID == userID {
			out = append(out, s.db.txns[i])
		}
	}
	return out, nil
}

func (s *ledgerStore) SumByUser(ctx context.Context, userID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var sum int64
	for _, txn := range s.db.txns {
		if txn.UserID == userID {
			sum += txn.Amount
		}
	}
	return sum, nil
}

func (s *ledgerStore) CountAll(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.txns)), nil
}

func (s *ledgerStore) GetDailyCredits(ctx context.Context, days int) (map[string]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	daily := make(map[string]int64)
	for _, txn := range s.db.txns {
		daily[txn.CreatedAt.Format("2006-01-02")] += txn.Amount
	}
	return daily, nil
}

type donationStore struct{ db *memDB }

func (s *donationStore) GetByUser(ctx context.Context, userID string, limit int) ([]models.DonationRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.DonationRecord, 0)
	for i := len(s.db.donations) - 1; i >= 0 && len(out) < limit; i-- {
		if s.db.donations[i].UserID == userID {
			out = append(out, s.db.donations[i])
		}
	}
	return out, nil
}

func (s *donationStore) CountAll(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.donations)), nil
}

type badgeStore struct{ db *memDB }

func (s *badgeStore) GetByUser(ctx context.Context, userID string) ([]models.BadgeAward, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.BadgeAward, 0)
	for _, b := range s.db.badges {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *badgeStore) CountAll(ctx context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.badges)), nil
}

type snapshotStore struct{ db *memDB }

func (s *snapshotStore) Upsert(ctx context.Context, snap *models.LeaderboardSnapshot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.snapshots[snap.UserID+"|"+snap.SnapshotDate] = *snap
	return nil
}

func (s *snapshotStore) LastComputedAt(ctx context.Context) (*time.Time, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var last *time.Time
	for _, snap := range s.db.snapshots {
		if last == nil || snap.ComputedAt.After(*last) {
			at := snap.ComputedAt
			last = &at
		}
	}
	return last, nil
}

type testEnv struct {
	db     *memDB
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := &memDB{
		profiles:  make(map[string]models.DonorProfile),
		snapshots: make(map[string]models.LeaderboardSnapshot),
	}
	profiles := &profileStore{db: db}
	ledger := &ledgerStore{db: db}
	donations := &donationStore{db: db}
	badges := &badgeStore{db: db}
	snapshots := &snapshotStore{db: db}

	rewardsSvc := service.NewRewardsService(profiles, ledger, badges)
	profileSvc := service.NewProfileService(profiles, ledger, donations, badges)
	leaderboardSvc := service.NewLeaderboardService(profiles, snapshots, 100)
	auditSvc := service.NewAuditService(profiles, ledger)

	// Not started; the jobs endpoints trigger runs synchronously.
	jobs := scheduler.NewJobScheduler(leaderboardSvc, auditSvc,
		config.LeaderboardConfig{SnapshotSize: 100, DefaultPageSize: 20},
		config.JobsConfig{})

	router := handler.NewRouter(
		handler.NewProfileHandler(profileSvc),
		handler.NewRewardsHandler(rewardsSvc),
		handler.NewLeaderboardHandler(leaderboardSvc, 20),
		handler.NewStatsHandler(profiles, ledger, donations, badges, snapshots),
		handler.NewJobsHandler(jobs),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{db: db, server: srv}
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding GET %s response: %v", path, err)
	}
	return resp.StatusCode, body
}

func (e *testEnv) post(t *testing.T, path string, payload map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding POST %s response: %v", path, err)
	}
	return resp.StatusCode, body
}

func donationPayload(userID, eventKey string) map[string]interface{} {
	return map[string]interface{}{
		"userId":       userID,
		"bloodType":    "A+",
		"location":     "Mumbai",
		"facilityName": "City Hospital",
		"eventKey":     eventKey,
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/health")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestRecordDonationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}

	if body["creditsAwarded"] != float64(150) {
		t.Errorf("expected 150 credits awarded, got %v", body["creditsAwarded"])
	}
	if body["totalCredits"] != float64(150) {
		t.Errorf("expected 150 total credits, got %v", body["totalCredits"])
	}
	if body["priorityTier"] != "Standard" {
		t.Errorf("expected Standard tier, got %v", body["priorityTier"])
	}
	if body["livesSaved"] != float64(3) {
		t.Errorf("expected 3 lives saved, got %v", body["livesSaved"])
	}
	newBadges, ok := body["newBadges"].([]interface{})
	if !ok || len(newBadges) == 0 {
		t.Fatalf("expected new badges, got %v", body["newBadges"])
	}
	if newBadges[0] != "first-donation" {
		t.Errorf("expected first-donation badge, got %v", newBadges[0])
	}
}

func TestRecordDonationUnknownBloodType(t *testing.T) {
	env := newTestEnv(t)

	payload := donationPayload("donor-1", "evt-1")
	payload["bloodType"] = "Z+"
	status, body := env.post(t, "/api/donations", payload)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %v", status, body)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("expected an error message")
	}
}

func TestRecordDonationDuplicateEventKey(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	if status != http.StatusCreated {
		t.Fatalf("first submit: expected 201, got %d", status)
	}
	status, body := env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	if status != http.StatusConflict {
		t.Fatalf("resubmit: expected 409, got %d: %v", status, body)
	}
}

func TestRecordHelpResponseEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/api/help-responses", map[string]interface{}{
		"userId":        "helper-1",
		"helpRequestId": "req-42",
		"eventKey":      "evt-1",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["creditsAwarded"] != float64(10) {
		t.Errorf("expected 10 credits awarded, got %v", body["creditsAwarded"])
	}
}

func TestRecordReferralEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/api/referrals", map[string]interface{}{
		"userId":       "donor-1",
		"referredName": "Priya",
		"eventKey":     "evt-1",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["creditsAwarded"] != float64(30) {
		t.Errorf("expected 30 credits awarded, got %v", body["creditsAwarded"])
	}

	status, body = env.post(t, "/api/referrals", map[string]interface{}{
		"userId":   "donor-1",
		"eventKey": "evt-2",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("missing referredName: expected 400, got %d: %v", status, body)
	}
}

func TestGetProfileLazyCreate(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/profile/fresh-user")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["userId"] != "fresh-user" {
		t.Errorf("expected fresh-user, got %v", body["userId"])
	}
	if body["totalCredits"] != float64(0) {
		t.Errorf("expected 0 credits, got %v", body["totalCredits"])
	}
	if body["priorityTier"] != "Standard" {
		t.Errorf("expected Standard tier, got %v", body["priorityTier"])
	}
	badges, ok := body["badges"].([]interface{})
	if !ok || len(badges) != 0 {
		t.Errorf("expected empty badges array, got %v", body["badges"])
	}
	if body["eligibleAt"] != nil {
		t.Errorf("expected null eligibleAt, got %v", body["eligibleAt"])
	}
}

func TestGetProfileAfterDonation(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))

	status, body := env.get(t, "/api/profile/donor-1")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["lifetimeDonations"] != float64(1) {
		t.Errorf("expected 1 donation, got %v", body["lifetimeDonations"])
	}
	if body["currentStreak"] != float64(1) {
		t.Errorf("expected streak 1, got %v", body["currentStreak"])
	}
	if body["eligibleAt"] == nil {
		t.Error("expected eligibleAt to be set after a donation")
	}
}

func TestGetTransactionsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	env.post(t, "/api/help-responses", map[string]interface{}{
		"userId": "donor-1", "eventKey": "evt-2",
	})

	status, body := env.get(t, "/api/profile/donor-1/transactions?limit=1")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	items, ok := body["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", body["items"])
	}
	first := items[0].(map[string]interface{})
	if first["category"] != "help_response" {
		t.Errorf("expected newest entry first, got %v", first["category"])
	}
	if body["limit"] != float64(1) {
		t.Errorf("expected limit 1, got %v", body["limit"])
	}
}

func TestGetDonationsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	env.post(t, "/api/help-responses", map[string]interface{}{
		"userId": "donor-1", "eventKey": "evt-2",
	})

	status, body := env.get(t, "/api/profile/donor-1/donations")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	items, ok := body["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected only the donation record, got %v", body["items"])
	}
	record := items[0].(map[string]interface{})
	if record["bloodType"] != "A+" {
		t.Errorf("expected A+, got %v", record["bloodType"])
	}
	if record["creditsAwarded"] != float64(150) {
		t.Errorf("expected 150 credits on record, got %v", record["creditsAwarded"])
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	env.post(t, "/api/donations", donationPayload("donor-2", "evt-2"))
	env.post(t, "/api/help-responses", map[string]interface{}{
		"userId": "donor-1", "eventKey": "evt-3",
	})

	status, body := env.get(t, "/api/leaderboard")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["total"] != float64(2) {
		t.Errorf("expected 2 donors, got %v", body["total"])
	}
	entries, ok := body["entries"].([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", body["entries"])
	}
	first := entries[0].(map[string]interface{})
	if first["userId"] != "donor-1" || first["rank"] != float64(1) {
		t.Errorf("expected donor-1 at rank 1, got %v", first)
	}
	if first["totalCredits"] != float64(160) {
		t.Errorf("expected 160 credits, got %v", first["totalCredits"])
	}
}

func TestUserRankEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))

	status, body := env.get(t, "/api/leaderboard/donor-1")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["rank"] != float64(1) || body["totalUsers"] != float64(1) {
		t.Errorf("unexpected rank body: %v", body)
	}

	status, _ = env.get(t, "/api/leaderboard/nobody")
	if status != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	env.post(t, "/api/referrals", map[string]interface{}{
		"userId": "donor-1", "referredName": "Priya", "eventKey": "evt-2",
	})

	status, body := env.get(t, "/api/stats")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["totalUsers"] != float64(1) {
		t.Errorf("expected 1 user, got %v", body["totalUsers"])
	}
	if body["totalCredits"] != float64(180) {
		t.Errorf("expected 180 credits, got %v", body["totalCredits"])
	}
	if body["totalDonations"] != float64(1) {
		t.Errorf("expected 1 donation, got %v", body["totalDonations"])
	}
	if body["totalTransactions"] != float64(2) {
		t.Errorf("expected 2 transactions, got %v", body["totalTransactions"])
	}
	if body["lastSnapshotAt"] != nil {
		t.Errorf("expected null lastSnapshotAt before any snapshot, got %v", body["lastSnapshotAt"])
	}
}

func TestDailyCreditsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))

	status, body := env.get(t, "/api/stats/daily?days=3")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	labels, ok := body["labels"].([]interface{})
	if !ok || len(labels) != 3 {
		t.Fatalf("expected 3 labels, got %v", body["labels"])
	}
	values, ok := body["values"].([]interface{})
	if !ok || len(values) != 3 {
		t.Fatalf("expected 3 values, got %v", body["values"])
	}
	if values[2] != float64(150) {
		t.Errorf("expected today's bucket to hold 150, got %v", values[2])
	}
}

func TestRunLeaderboardSnapshotEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))
	env.post(t, "/api/donations", donationPayload("donor-2", "evt-2"))

	status, body := env.post(t, "/api/jobs/leaderboard/run", map[string]interface{}{})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["rowsWritten"] != float64(2) {
		t.Errorf("expected 2 rows written, got %v", body["rowsWritten"])
	}

	env.db.mu.Lock()
	stored := len(env.db.snapshots)
	env.db.mu.Unlock()
	if stored != 2 {
		t.Errorf("expected 2 snapshot rows, got %d", stored)
	}
}

func TestRunLedgerAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/api/donations", donationPayload("donor-1", "evt-1"))

	status, body := env.post(t, "/api/jobs/audit/run", map[string]interface{}{})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["checkedProfiles"] != float64(1) {
		t.Errorf("expected 1 checked profile, got %v", body["checkedProfiles"])
	}
	if body["driftCount"] != float64(0) {
		t.Errorf("expected no drift, got %v", body["driftCount"])
	}
}
