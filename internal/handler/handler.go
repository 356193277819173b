package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/rewards"
	"github.com/avighnad/HamaraPrayas/internal/scheduler"
	"github.com/avighnad/HamaraPrayas/internal/service"
	"github.com/avighnad/HamaraPrayas/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps service error codes onto HTTP statuses. Unknown
// codes stay 500 so storage failures never masquerade as client mistakes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidEvent:
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.ErrDuplicateEvent:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type RewardsHandler struct {
	rewardsSvc *service.RewardsService
}

func NewRewardsHandler(rewardsSvc *service.RewardsService) *RewardsHandler {
	return &RewardsHandler{rewardsSvc: rewardsSvc}
}

func (h *RewardsHandler) RecordDonation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID            string `json:"userId"`
		BloodType         string `json:"bloodType"`
		Location          string `json:"location"`
		FacilityName      string `json:"facilityName"`
		UnitsDonated      int    `json:"unitsDonated"`
		WasUrgentResponse bool   `json:"wasUrgentResponse"`
		HelpRequestID     string `json:"helpRequestId"`
		EventKey          string `json:"eventKey"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UnitsDonated == 0 {
		req.UnitsDonated = 1
	}

	event := rewards.DonationEvent{
		BloodType:         models.BloodType(req.BloodType),
		Location:          req.Location,
		FacilityName:      req.FacilityName,
		UnitsDonated:      req.UnitsDonated,
		WasUrgentResponse: req.WasUrgentResponse,
		HelpRequestID:     req.HelpRequestID,
	}

	ctx := r.Context()
	result, err := h.rewardsSvc.RecordDonation(ctx, req.UserID, event, orGeneratedKey(req.EventKey))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rewardResponse(result))
}

func (h *RewardsHandler) RecordHelpResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"userId"`
		HelpRequestID string `json:"helpRequestId"`
		EventKey      string `json:"eventKey"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event := rewards.HelpResponseEvent{HelpRequestID: req.HelpRequestID}

	ctx := r.Context()
	result, err := h.rewardsSvc.RecordHelpResponse(ctx, req.UserID, event, orGeneratedKey(req.EventKey))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rewardResponse(result))
}

func (h *RewardsHandler) RecordReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"userId"`
		ReferredName string `json:"referredName"`
		EventKey     string `json:"eventKey"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event := rewards.ReferralEvent{ReferredName: req.ReferredName}

	ctx := r.Context()
	result, err := h.rewardsSvc.RecordReferral(ctx, req.UserID, event, orGeneratedKey(req.EventKey))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rewardResponse(result))
}

// orGeneratedKey keeps retries idempotent when the client supplies a key and
// falls back to a fresh one when it does not.
func orGeneratedKey(eventKey string) string {
	if eventKey == "" {
		return uuid.NewString()
	}
	return eventKey
}

func rewardResponse(result *service.RewardResult) map[string]interface{} {
	newBadges := result.NewBadges
	if newBadges == nil {
		newBadges = []string{}
	}
	return map[string]interface{}{
		"userId":            result.Profile.UserID,
		"creditsAwarded":    result.CreditsAwarded,
		"description":       result.Description,
		"totalCredits":      result.Profile.TotalCredits,
		"priorityTier":      string(result.Tier),
		"lifetimeDonations": result.Profile.LifetimeDonations,
		"livesSaved":        result.Profile.LivesSaved(),
		"currentStreak":     result.Profile.CurrentStreak,
		"newBadges":         newBadges,
	}
}

type ProfileHandler struct {
	profileSvc *service.ProfileService
}

func NewProfileHandler(profileSvc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	ctx := r.Context()
	view, err := h.profileSvc.GetProfile(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *ProfileHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ctx := r.Context()
	txns, err := h.profileSvc.Transactions(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(txns))
	for _, txn := range txns {
		items = append(items, map[string]interface{}{
			"id":          txn.ID,
			"category":    string(txn.Category),
			"amount":      txn.Amount,
			"description": txn.Description,
			"breakdown":   txn.Breakdown,
			"eventKey":    txn.EventKey,
			"donationId":  txn.DonationID,
			"createdAt":   txn.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"limit": limit,
	})
}

func (h *ProfileHandler) GetDonations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ctx := r.Context()
	donations, err := h.profileSvc.Donations(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(donations))
	for _, d := range donations {
		items = append(items, map[string]interface{}{
			"id":                d.ID,
			"bloodType":         string(d.BloodType),
			"location":          d.Location,
			"facilityName":      d.FacilityName,
			"unitsDonated":      d.UnitsDonated,
			"wasUrgentResponse": d.WasUrgentResponse,
			"helpRequestId":     d.HelpRequestID,
			"creditsAwarded":    d.CreditsAwarded,
			"verified":          d.Verified,
			"donatedAt":         d.DonatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"limit": limit,
	})
}

type LeaderboardHandler struct {
	leaderboardSvc  *service.LeaderboardService
	defaultPageSize int
}

func NewLeaderboardHandler(leaderboardSvc *service.LeaderboardService, defaultPageSize int) *LeaderboardHandler {
	if defaultPageSize < 1 {
		defaultPageSize = 20
	}
	return &LeaderboardHandler{leaderboardSvc: leaderboardSvc, defaultPageSize: defaultPageSize}
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = h.defaultPageSize
	}

	ctx := r.Context()
	board, err := h.leaderboardSvc.Top(ctx, page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	ctx := r.Context()
	rank, err := h.leaderboardSvc.UserRank(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rank == nil {
		writeError(w, http.StatusNotFound, "user has no ledger activity")
		return
	}

	writeJSON(w, http.StatusOK, rank)
}

// Counter interfaces keep the stats endpoint decoupled from concrete
// repositories so tests can feed it fakes.
type profileCounter interface {
	Count(ctx context.Context) (int64, error)
	SumCredits(ctx context.Context) (int64, error)
}

type ledgerCounter interface {
	CountAll(ctx context.Context) (int64, error)
	GetDailyCredits(ctx context.Context, days int) (map[string]int64, error)
}

type donationCounter interface {
	CountAll(ctx context.Context) (int64, error)
}

type badgeCounter interface {
	CountAll(ctx context.Context) (int64, error)
}

type snapshotReader interface {
	LastComputedAt(ctx context.Context) (*time.Time, error)
}

type StatsHandler struct {
	profileRepo  profileCounter
	ledgerRepo   ledgerCounter
	donationRepo donationCounter
	badgeRepo    badgeCounter
	snapshotRepo snapshotReader
}

func NewStatsHandler(
	profileRepo profileCounter,
	ledgerRepo ledgerCounter,
	donationRepo donationCounter,
	badgeRepo badgeCounter,
	snapshotRepo snapshotReader,
) *StatsHandler {
	return &StatsHandler{
		profileRepo:  profileRepo,
		ledgerRepo:   ledgerRepo,
		donationRepo: donationRepo,
		badgeRepo:    badgeRepo,
		snapshotRepo: snapshotRepo,
	}
}

// GetStats reads whatever counters it can; a failed counter shows as zero
// rather than failing the whole dashboard.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, _ := h.profileRepo.Count(ctx)
	totalCredits, _ := h.profileRepo.SumCredits(ctx)
	totalTransactions, _ := h.ledgerRepo.CountAll(ctx)
	totalDonations, _ := h.donationRepo.CountAll(ctx)
	totalBadges, _ := h.badgeRepo.CountAll(ctx)

	var lastSnapshotAt interface{}
	if at, err := h.snapshotRepo.LastComputedAt(ctx); err == nil && at != nil {
		lastSnapshotAt = at.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalUsers":        totalUsers,
		"totalCredits":      totalCredits,
		"totalDonations":    totalDonations,
		"totalBadges":       totalBadges,
		"totalTransactions": totalTransactions,
		"lastSnapshotAt":    lastSnapshotAt,
	})
}

func (h *StatsHandler) GetDailyCredits(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days < 1 || days > 30 {
		days = 7
	}

	ctx := r.Context()
	dailyCredits, err := h.ledgerRepo.GetDailyCredits(ctx, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get daily credits: "+err.Error())
		return
	}

	labels := make([]string, 0)
	values := make([]int64, 0)

	now := time.Now()
	for i := days - 1; i >= 0; i-- {
		t := now.AddDate(0, 0, -i)
		dateStr := t.Format("2006-01-02")
		labels = append(labels, t.Format("Jan 02"))
		if credits, ok := dailyCredits[dateStr]; ok {
			values = append(values, credits)
		} else {
			values = append(values, 0)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"labels": labels,
		"values": values,
	})
}

type JobsHandler struct {
	jobs *scheduler.JobScheduler
}

func NewJobsHandler(jobs *scheduler.JobScheduler) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

func (h *JobsHandler) RunLeaderboardSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	written, err := h.jobs.RunLeaderboardSnapshot(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "leaderboard snapshot computed",
		"rowsWritten": written,
	})
}

func (h *JobsHandler) RunLedgerAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.jobs.RunLedgerAudit(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
