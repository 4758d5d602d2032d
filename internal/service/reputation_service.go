package service

import (
	"context"
	"log"
	"math"
	"time"

	"ridebid/internal/cache"
	apperrors "ridebid/internal/errors"
	"ridebid/internal/models"
	"ridebid/internal/notifier"
	"ridebid/internal/repository"
)

const (
	pointsPerCompletion  = 10
	pointsPerBadge       = 50
	cancellationPenalty  = 5
	levelCostMultiplier  = 100
	maxReputationRetries = 5
)

// badgeRule is one entry of the badge catalog. Rules are checked in
// order after every completion; each badge is awarded at most once.
type badgeRule struct {
	name        string
	description string
	rarity      string
	earned      func(p *models.DriverProfile) bool
}

var badgeCatalog = []badgeRule{
	{"First Trip", "Completed your first trip", models.RarityCommon,
		func(p *models.DriverProfile) bool { return p.CompletedTrips >= 1 }},
	{"Road Regular", "Completed 10 trips", models.RarityCommon,
		func(p *models.DriverProfile) bool { return p.CompletedTrips >= 10 }},
	{"Trusted Driver", "Completed 50 trips", models.RarityRare,
		func(p *models.DriverProfile) bool { return p.CompletedTrips >= 50 }},
	{"Veteran", "Completed 100 trips", models.RarityEpic,
		func(p *models.DriverProfile) bool { return p.CompletedTrips >= 100 }},
	{"Gold Star", "Held a 4.8+ rating over 20 trips", models.RarityEpic,
		func(p *models.DriverProfile) bool { return p.Rating >= 4.8 && p.CompletedTrips >= 20 }},
	{"Legend", "Completed 200 trips", models.RarityLegendary,
		func(p *models.DriverProfile) bool { return p.CompletedTrips >= 200 }},
}

// ProgressionDelta describes what a single reputation update unlocked,
// so callers can notify the driver about it.
type ProgressionDelta struct {
	LevelsGained int
	NewBadges    []models.Badge
}

// ApplyCompletion folds one completed trip into a profile: rating mean,
// trip counters, points, level, badges, streak and trust score. It only
// mutates the in-memory profile; persisting it is the caller's job.
func ApplyCompletion(p *models.DriverProfile, finalRating float64, completedAt time.Time) ProgressionDelta {
	weight := p.CompletedTrips
	if weight < 1 {
		weight = 1
	}
	p.Rating = roundToTenth((p.Rating*float64(weight) + finalRating) / float64(weight+1))

	p.TotalTrips++
	p.CompletedTrips++
	p.Points += pointsPerCompletion

	var delta ProgressionDelta
	for _, rule := range badgeCatalog {
		if p.Badges.Has(rule.name) || !rule.earned(p) {
			continue
		}
		badge := models.Badge{
			Name:        rule.name,
			Description: rule.description,
			Rarity:      rule.rarity,
			EarnedAt:    completedAt,
		}
		p.Badges = append(p.Badges, badge)
		p.Points += pointsPerBadge
		delta.NewBadges = append(delta.NewBadges, badge)
	}

	delta.LevelsGained = levelUp(p)
	updateStreak(p, completedAt)
	p.TrustScore = trustScore(p)
	return delta
}

// ApplyCancellation folds one cancelled trip into a profile. The rating
// is left alone; cancellations cost points and trust, not stars.
func ApplyCancellation(p *models.DriverProfile) {
	p.TotalTrips++
	p.CancelledTrips++
	p.Points -= cancellationPenalty
	if p.Points < 0 {
		p.Points = 0
	}
	p.TrustScore = trustScore(p)
}

// levelUp consumes points into levels. Level N costs N*100 points, so
// badge windfalls can carry a driver over several thresholds at once.
func levelUp(p *models.DriverProfile) int {
	gained := 0
	for p.Points >= p.Level*levelCostMultiplier {
		p.Points -= p.Level * levelCostMultiplier
		p.Level++
		gained++
	}
	return gained
}

func updateStreak(p *models.DriverProfile, at time.Time) {
	if p.LastActiveAt == nil {
		p.CurrentStreak = 1
	} else {
		last := p.LastActiveAt.Truncate(24 * time.Hour)
		today := at.Truncate(24 * time.Hour)
		switch days := int(today.Sub(last).Hours() / 24); {
		case days == 0:
			// same day, streak unchanged
		case days == 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
		}
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	t := at
	p.LastActiveAt = &t
}

// trustScore blends rating quality, credential verification and the
// completion/cancellation record into a 0..100 score.
func trustScore(p *models.DriverProfile) float64 {
	score := 50.0
	score += 30.0 * p.Rating / 5.0
	score += 4.0 * float64(p.Verifications.Count())
	if p.TotalTrips > 0 {
		score += 20.0 * float64(p.CompletedTrips) / float64(p.TotalTrips)
		score -= 30.0 * float64(p.CancelledTrips) / float64(p.TotalTrips)
	}
	return math.Round(clamp(score, 0, 100)*10) / 10
}

type ReputationService interface {
	RecordCompletion(ctx context.Context, driverID string, finalRating float64) (*models.DriverProfile, error)
	RecordCancellation(ctx context.Context, driverID string) (*models.DriverProfile, error)
	GetRewards(ctx context.Context, driverID string) (*models.RewardsResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

type reputationService struct {
	driverRepo  repository.DriverRepository
	leaderboard cache.LeaderboardCache
	notifier    notifier.Notifier
}

func NewReputationService(
	driverRepo repository.DriverRepository,
	leaderboard cache.LeaderboardCache,
	eventNotifier notifier.Notifier,
) ReputationService {
	return &reputationService{
		driverRepo:  driverRepo,
		leaderboard: leaderboard,
		notifier:    eventNotifier,
	}
}

func (s *reputationService) RecordCompletion(ctx context.Context, driverID string, finalRating float64) (*models.DriverProfile, error) {
	var delta ProgressionDelta
	profile, err := s.updateWithRetry(ctx, driverID, func(p *models.DriverProfile) {
		delta = ApplyCompletion(p, finalRating, time.Now())
	})
	if err != nil {
		return nil, err
	}

	s.refreshLeaderboard(ctx, profile)

	if s.notifier != nil {
		if delta.LevelsGained > 0 {
			s.notifier.Notify(ctx, driverID, "level_up", map[string]interface{}{
				"driver_id": driverID,
				"level":     profile.Level,
			})
		}
		for _, badge := range delta.NewBadges {
			s.notifier.Notify(ctx, driverID, "badge_earned", map[string]interface{}{
				"driver_id": driverID,
				"badge":     badge,
			})
		}
	}

	return profile, nil
}

func (s *reputationService) RecordCancellation(ctx context.Context, driverID string) (*models.DriverProfile, error) {
	profile, err := s.updateWithRetry(ctx, driverID, func(p *models.DriverProfile) {
		ApplyCancellation(p)
	})
	if err != nil {
		return nil, err
	}

	s.refreshLeaderboard(ctx, profile)
	return profile, nil
}

// updateWithRetry reads, mutates and conditionally writes a profile.
// Reputation updates commute, so retrying on a version conflict is
// always safe here.
func (s *reputationService) updateWithRetry(ctx context.Context, driverID string, apply func(*models.DriverProfile)) (*models.DriverProfile, error) {
	for attempt := 0; attempt < maxReputationRetries; attempt++ {
		profile, err := s.driverRepo.GetByID(ctx, driverID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, apperrors.NotFound("driver")
		}

		apply(profile)

		err = s.driverRepo.UpdateVersioned(ctx, profile, profile.Version)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}
		return profile, nil
	}
	return nil, apperrors.Unavailable()
}

func (s *reputationService) refreshLeaderboard(ctx context.Context, profile *models.DriverProfile) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.UpdateScore(ctx, profile.ID, profile.ProgressionScore()); err != nil {
		log.Printf("failed to update leaderboard for driver %s: %v", profile.ID, err)
	}
}

func (s *reputationService) GetRewards(ctx context.Context, driverID string) (*models.RewardsResponse, error) {
	profile, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.NotFound("driver")
	}
	return profile.ToRewardsResponse(), nil
}

func (s *reputationService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.leaderboard != nil {
		ranked, err := s.leaderboard.Top(ctx, limit)
		if err == nil && len(ranked) > 0 {
			return s.entriesFromRanking(ctx, ranked)
		}
		if err != nil {
			log.Printf("leaderboard cache read failed, falling back to db: %v", err)
		}
	}

	// Cache empty or unavailable, rank from the database and backfill.
	profiles, err := s.driverRepo.ListTopByProgression(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.LeaderboardEntry, 0, len(profiles))
	ranked := make([]cache.RankedDriver, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, entryFromProfile(i+1, p))
		ranked = append(ranked, cache.RankedDriver{DriverID: p.ID, Score: p.ProgressionScore()})
	}

	if s.leaderboard != nil && len(ranked) > 0 {
		if err := s.leaderboard.Rebuild(ctx, ranked); err != nil {
			log.Printf("leaderboard cache rebuild failed: %v", err)
		}
	}

	return entries, nil
}

func (s *reputationService) entriesFromRanking(ctx context.Context, ranked []cache.RankedDriver) ([]*models.LeaderboardEntry, error) {
	entries := make([]*models.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		profile, err := s.driverRepo.GetByID(ctx, r.DriverID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			// Driver deleted since the set was built, skip the slot.
			continue
		}
		// Ranks stay contiguous across skipped slots.
		entries = append(entries, entryFromProfile(len(entries)+1, profile))
	}
	return entries, nil
}

func entryFromProfile(rank int, p *models.DriverProfile) *models.LeaderboardEntry {
	return &models.LeaderboardEntry{
		Rank:       rank,
		DriverID:   p.ID,
		Name:       p.Name,
		Rating:     p.Rating,
		TrustScore: p.TrustScore,
		Points:     p.Points,
		Level:      p.Level,
		Score:      p.ProgressionScore(),
	}
}
