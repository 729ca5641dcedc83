package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/domain/ports/repository"
)

const (
	DefaultLookbackDays   = 365
	DefaultMinOccurrences = 3

	// Confidence decays by one step per missed cadence period past twice the
	// period; three periods without a charge flips the subscription inactive.
	decayMultiplier    = 2
	inactiveMultiplier = 3
	decayStepPenalty   = 0.1

	detectionLockTTL = 2 * time.Minute
)

// Locker serializes detection runs per user so a webhook-triggered sync and a
// periodic recompute cannot interleave their read-modify-write sequences.
// A nil Locker disables locking (unit tests, single-runner deployments).
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// DetectionOptions tune a single detection run. Zero values fall back to the
// package defaults.
type DetectionOptions struct {
	LookbackDays   int
	MinOccurrences int
}

type RejectReason string

const (
	RejectTooFewOccurrences RejectReason = "too_few_occurrences"
	RejectNoPositiveGaps    RejectReason = "no_positive_gaps"
	RejectNoCadenceMatch    RejectReason = "no_cadence_match"
)

// RejectedCluster records a cluster that was considered and dropped, so the
// engine's decisions stay observable instead of vanishing silently.
type RejectedCluster struct {
	Merchant    string
	Amount      float64
	Occurrences int
	Reason      RejectReason
}

type DetectionResult struct {
	Detected    int
	Upserted    int
	Candidates  []*model.Subscription
	Rejected    []RejectedCluster
	Decayed     int
	Inactivated int
}

// DetectionUseCase infers recurring payments from a user's transaction history
// and reconciles them against the subscription store.
type DetectionUseCase struct {
	txnRepo repository.TransactionRepository
	subRepo repository.SubscriptionRepository
	txm     repository.TransactionManager
	locker  Locker
	log     *zerolog.Logger
	now     func() time.Time
}

// NewDetectionUseCase wires the engine. txm and locker may be nil; a nil txm
// runs the decay sweep outside a transaction.
func NewDetectionUseCase(txnRepo repository.TransactionRepository, subRepo repository.SubscriptionRepository, txm repository.TransactionManager, locker Locker, logger *zerolog.Logger) *DetectionUseCase {
	l := logger.With().Str("component", "DetectionUseCase").Logger()
	return &DetectionUseCase{
		txnRepo: txnRepo,
		subRepo: subRepo,
		txm:     txm,
		locker:  locker,
		log:     &l,
		now:     time.Now,
	}
}

func detectionLockKey(userID string) string {
	return "detect:" + userID
}

// Detect runs one full detection pass for the user: group, cluster, estimate
// cadence, score, upsert, then sweep the user's stored subscriptions for decay.
// Any store failure aborts the call; all writes are idempotent upserts or
// field updates, so callers can simply retry.
func (uc *DetectionUseCase) Detect(ctx context.Context, userID string, opts DetectionOptions) (*DetectionResult, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.MinOccurrences <= 0 {
		opts.MinOccurrences = DefaultMinOccurrences
	}

	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, detectionLockKey(userID), detectionLockTTL)
		if err != nil {
			return nil, domain.ErrDetectionInProgress
		}
		defer func() {
			_ = uc.locker.Unlock(ctx, detectionLockKey(userID), token)
		}()
	}

	now := uc.now()
	since := model.DateOnly(now).AddDate(0, 0, -opts.LookbackDays)
	window, err := uc.txnRepo.ListForDetection(ctx, repository.NoTX, userID, since)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	// Canonical ordering: clustering is first-match greedy and therefore
	// order-sensitive, so the engine pins the order instead of trusting
	// whatever the source returned.
	sort.SliceStable(window, func(i, j int) bool {
		if window[i].Date.Equal(window[j].Date) {
			return window[i].ID < window[j].ID
		}
		return window[i].Date.Before(window[j].Date)
	})

	res := &DetectionResult{}
	for _, group := range groupTransactions(window) {
		for _, cluster := range clusterByAmount(group.txns) {
			if len(cluster.members) < opts.MinOccurrences {
				res.Rejected = append(res.Rejected, RejectedCluster{
					Merchant:    group.merchant,
					Amount:      cluster.amount,
					Occurrences: len(cluster.members),
					Reason:      RejectTooFewOccurrences,
				})
				continue
			}

			cand, reason := scoreCluster(group, cluster)
			if reason != "" {
				res.Rejected = append(res.Rejected, RejectedCluster{
					Merchant:    group.merchant,
					Amount:      cluster.amount,
					Occurrences: len(cluster.members),
					Reason:      reason,
				})
				continue
			}

			existing, err := uc.subRepo.FindByNaturalKey(ctx, repository.NoTX, userID, cand.Merchant, cand.Amount, cand.Cadence)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("find subscription: %w", err)
			}

			cand.ID = uuid.NewString()
			cand.UserID = userID
			cand.Status = model.SubscriptionStatusActive
			cand.FirstDetectedAt = now
			if existing != nil {
				cand.ID = existing.ID
				cand.FirstDetectedAt = existing.FirstDetectedAt
			}

			res.Candidates = append(res.Candidates, cand)
			res.Detected++

			if _, err := uc.subRepo.Upsert(ctx, repository.NoTX, cand); err != nil {
				return nil, fmt.Errorf("upsert subscription: %w", err)
			}
			res.Upserted++
		}
	}

	if err := uc.decaySweep(ctx, userID, now, res); err != nil {
		return nil, err
	}

	uc.log.Debug().
		Str("user_id", userID).
		Int("detected", res.Detected).
		Int("rejected", len(res.Rejected)).
		Int("decayed", res.Decayed).
		Int("inactivated", res.Inactivated).
		Msg("detection run finished")
	return res, nil
}

// merchantGroup holds all transactions sharing one normalized
// merchant + currency grouping key, in window order.
type merchantGroup struct {
	merchant string // normalized
	currency string
	txns     []model.Transaction
}

func groupTransactions(window []model.Transaction) []*merchantGroup {
	index := make(map[string]*merchantGroup)
	var groups []*merchantGroup // first-seen order; map iteration would not be stable
	for _, t := range window {
		merchant := ""
		if t.Merchant != nil {
			merchant = normalizeMerchant(*t.Merchant)
		}
		if merchant == "" {
			continue
		}
		currency := "unknown"
		if t.Currency != nil && *t.Currency != "" {
			currency = *t.Currency
		}
		key := merchant + "::" + currency
		g, ok := index[key]
		if !ok {
			g = &merchantGroup{merchant: merchant, currency: currency}
			index[key] = g
			groups = append(groups, g)
		}
		g.txns = append(g.txns, t)
	}
	return groups
}

// amountCluster is an ephemeral grouping of same-merchant transactions whose
// amounts sit within tolerance of the representative. The representative is
// frozen at the first member's rounded amount.
type amountCluster struct {
	amount  float64
	members []model.Transaction
}

// clusterByAmount partitions one merchant group into amount-tolerant clusters.
// Greedy first-match: each transaction joins the earliest-created cluster
// within max($1, 2%) of the representative, or opens a new one.
func clusterByAmount(txns []model.Transaction) []*amountCluster {
	var clusters []*amountCluster
	for _, t := range txns {
		amt := round2(math.Abs(t.Amount))
		var target *amountCluster
		for _, c := range clusters {
			tolerance := math.Max(1, c.amount*0.02)
			if math.Abs(c.amount-amt) <= tolerance {
				target = c
				break
			}
		}
		if target == nil {
			target = &amountCluster{amount: amt}
			clusters = append(clusters, target)
		}
		target.members = append(target.members, t)
	}
	return clusters
}

// scoreCluster turns a qualifying cluster into a subscription payload, or
// returns the reason it was rejected.
func scoreCluster(group *merchantGroup, cluster *amountCluster) (*model.Subscription, RejectReason) {
	ordered := make([]model.Transaction, len(cluster.members))
	copy(ordered, cluster.members)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var gaps []float64
	for i := 1; i < len(ordered); i++ {
		d := daysBetween(model.DateOnly(ordered[i-1].Date), model.DateOnly(ordered[i].Date))
		if d > 0 {
			gaps = append(gaps, float64(d))
		}
	}
	med, ok := median(gaps)
	if !ok {
		return nil, RejectNoPositiveGaps
	}
	win, ok := matchCadence(med)
	if !ok {
		return nil, RejectNoCadenceMatch
	}

	var sum float64
	for _, m := range ordered {
		sum += math.Abs(m.Amount)
	}
	amount := round2(sum / float64(len(ordered)))

	sigma := stddev(gaps)
	cadenceScore := math.Max(0, 1-sigma/float64(win.days))
	occurrenceScore := math.Min(1, float64(len(ordered))/8)
	confidence := math.Min(1, 0.4+0.4*cadenceScore+0.2*occurrenceScore)

	last := ordered[len(ordered)-1]
	lastDate := model.DateOnly(last.Date)
	next := lastDate.AddDate(0, 0, win.days)

	// Display label comes from the most recent raw merchant text; the
	// normalized key is only the fallback.
	merchant := group.merchant
	if last.Merchant != nil && *last.Merchant != "" {
		merchant = *last.Merchant
	}

	return &model.Subscription{
		Merchant:            merchant,
		Amount:              amount,
		Currency:            last.Currency,
		Cadence:             win.cadence,
		CadenceDays:         win.days,
		LastTransactionDate: &lastDate,
		NextPaymentDate:     &next,
		Confidence:          confidence,
		LastSeenAt:          &lastDate,
	}, ""
}

// decaySweep walks all of the user's stored subscriptions, not just the ones
// touched this run, eroding confidence for any that stopped recurring and
// flipping long-silent ones inactive. Only changed records are written. The
// read-then-write runs inside one transaction when a manager is available.
func (uc *DetectionUseCase) decaySweep(ctx context.Context, userID string, now time.Time, res *DetectionResult) error {
	if uc.txm != nil {
		return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return uc.sweepWithin(ctx, tx, userID, now, res)
		})
	}
	return uc.sweepWithin(ctx, repository.NoTX, userID, now, res)
}

func (uc *DetectionUseCase) sweepWithin(ctx context.Context, tx repository.Tx, userID string, now time.Time, res *DetectionResult) error {
	subs, err := uc.subRepo.ListByUser(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	today := model.DateOnly(now)
	for _, sub := range subs {
		if sub.LastSeenAt == nil {
			continue
		}
		daysSince := daysBetween(model.DateOnly(*sub.LastSeenAt), today)

		cadenceDays := sub.CadenceDays
		if cadenceDays <= 0 {
			cadenceDays = model.CadenceDays[model.CadenceMonthly]
		}
		decayThreshold := cadenceDays * decayMultiplier
		inactiveThreshold := cadenceDays * inactiveMultiplier

		nextConfidence := sub.Confidence
		nextStatus := sub.Status
		if daysSince > decayThreshold {
			steps := (daysSince-decayThreshold)/cadenceDays + 1
			nextConfidence = math.Max(0, sub.Confidence-float64(steps)*decayStepPenalty)
		}
		if daysSince > inactiveThreshold {
			nextStatus = model.SubscriptionStatusInactive
		}

		if nextConfidence == sub.Confidence && nextStatus == sub.Status {
			continue
		}

		upd := repository.SubscriptionDetectionUpdate{}
		if nextConfidence != sub.Confidence {
			upd.Confidence = &nextConfidence
			res.Decayed++
		}
		if nextStatus != sub.Status {
			upd.Status = &nextStatus
			res.Inactivated++
		}
		if err := uc.subRepo.UpdateDetectionFields(ctx, tx, sub.UserID, sub.ID, upd); err != nil {
			return fmt.Errorf("apply decay: %w", err)
		}
	}
	return nil
}
