package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every HTTP endpoint on a chi router.
func NewRouter(
	profileHandler *ProfileHandler,
	rewardsHandler *RewardsHandler,
	leaderboardHandler *LeaderboardHandler,
	statsHandler *StatsHandler,
	jobsHandler *JobsHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)

	r.Get("/health", HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/profile/{userID}", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Get("/transactions", profileHandler.GetTransactions)
			r.Get("/donations", profileHandler.GetDonations)
		})

		r.Post("/donations", rewardsHandler.RecordDonation)
		r.Post("/help-responses", rewardsHandler.RecordHelpResponse)
		r.Post("/referrals", rewardsHandler.RecordReferral)

		r.Get("/leaderboard", leaderboardHandler.GetLeaderboard)
		r.Get("/leaderboard/{userID}", leaderboardHandler.GetUserRank)

		r.Get("/stats", statsHandler.GetStats)
		r.Get("/stats/daily", statsHandler.GetDailyCredits)

		r.Post("/jobs/leaderboard/run", jobsHandler.RunLeaderboardSnapshot)
		r.Post("/jobs/audit/run", jobsHandler.RunLedgerAudit)
	})

	return r
}
