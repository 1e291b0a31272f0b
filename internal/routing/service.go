package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pantryloop/pantryloop-backend/internal/providers"
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/metrics"
	"github.com/pantryloop/pantryloop-backend/pkg/reliability"
	"github.com/pantryloop/pantryloop-backend/pkg/telemetry"
	"github.com/pantryloop/pantryloop-backend/pkg/token"
	"github.com/pantryloop/pantryloop-backend/pkg/types"
)

// ServiceParams groups the routing service dependencies. Weights and Metrics
// are optional; without them decisions use the default vector and neutral
// reliability.
type ServiceParams struct {
	Adapters      AdapterSource
	Decisions     Repository
	Weights       WeightsSource
	Metrics       MetricsSource
	Token         config.TokenConfig
	Router        config.RouterConfig
	Logger        *logger.Logger
	Emitter       *telemetry.Emitter
	RouterMetrics *metrics.RouterMetrics
	ProviderCalls *metrics.ProviderCallMetrics
}

type service struct {
	adapters      AdapterSource
	decisions     Repository
	weights       *snapshot[types.Weights]
	reliability   *snapshot[map[enums.ProviderID]ReliabilityStat]
	tokenCfg      config.TokenConfig
	bufferMs      int
	logg          *logger.Logger
	emitter       *telemetry.Emitter
	routerMetrics *metrics.RouterMetrics
	providerCalls *metrics.ProviderCallMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Adapters == nil {
		return nil, fmt.Errorf("adapter source required")
	}
	if params.Decisions == nil {
		return nil, fmt.Errorf("decision store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	weightsTTL := params.Router.WeightsRefreshInterval
	if weightsTTL <= 0 {
		weightsTTL = time.Minute
	}
	metricsTTL := params.Router.MetricsRefreshInterval
	if metricsTTL <= 0 {
		metricsTTL = 2 * time.Minute
	}
	bufferMs := params.Router.DecisionBufferMs
	if bufferMs <= 0 {
		bufferMs = 500
	}

	logg := params.Logger
	weightsSource := params.Weights
	weightsSnap := newSnapshot(weightsTTL, DefaultWeights(), func(ctx context.Context) (types.Weights, error) {
		if weightsSource == nil {
			return DefaultWeights(), nil
		}
		weights, ok, err := weightsSource.ActiveWeights(ctx)
		if err != nil {
			logg.Error(ctx, "refresh active weights", err)
			return types.Weights{}, err
		}
		if !ok {
			return DefaultWeights(), nil
		}
		return weights, nil
	})

	metricsSource := params.Metrics
	reliabilitySnap := newSnapshot(metricsTTL, map[enums.ProviderID]ReliabilityStat{}, func(ctx context.Context) (map[enums.ProviderID]ReliabilityStat, error) {
		if metricsSource == nil {
			return map[enums.ProviderID]ReliabilityStat{}, nil
		}
		stats, err := metricsSource.ReliabilityStats(ctx)
		if err != nil {
			logg.Error(ctx, "refresh reliability stats", err)
			return nil, err
		}
		return stats, nil
	})

	return &service{
		adapters:      params.Adapters,
		decisions:     params.Decisions,
		weights:       weightsSnap,
		reliability:   reliabilitySnap,
		tokenCfg:      params.Token,
		bufferMs:      bufferMs,
		logg:          logg,
		emitter:       params.Emitter,
		routerMetrics: params.RouterMetrics,
		providerCalls: params.ProviderCalls,
	}, nil
}

// providerOutcome is one settled fan-out slot: a quote or a typed failure,
// never both.
type providerOutcome struct {
	cfg       providers.ProviderConfig
	quote     *providers.ProviderQuote
	errInfo   *reliability.ErrorInfo
	elapsedMs int64
}

func (s *service) RouteOrder(ctx context.Context, req RouteOrderRequest) (*RouteOrderResponse, error) {
	start := time.Now()
	decisionID := uuid.New()
	ctx = s.logg.WithDecisionID(ctx, decisionID.String())

	if err := validateRouteRequest(req); err != nil {
		return nil, err
	}

	prefs := req.Preferences
	optimizeFor := enums.OptimizeForBalanced
	if prefs != nil && prefs.OptimizeFor != "" {
		if !prefs.OptimizeFor.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unknown optimize-for preset %q", prefs.OptimizeFor))
		}
		optimizeFor = prefs.OptimizeFor
	}

	// The weight vector and reliability stats are snapshotted here and used
	// unchanged for the whole decision, even if the tuning loop commits an
	// adjustment mid-flight.
	weights, err := resolveWeights(prefs, s.weights.Current(ctx))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scoring weights")
	}
	relStats := s.reliability.Current(ctx)

	fleet, err := s.eligibleProviders(prefs)
	if err != nil {
		return nil, err
	}

	outcomes := s.fanOut(ctx, decisionID, fleet, buildQuoteRequest(req))

	var quotes []*providers.ProviderQuote
	failures := make(types.ProviderFailures, 0, len(outcomes))
	var causes []error
	attempted := make([]enums.ProviderID, 0, len(outcomes))
	perProvider := make([]map[string]any, 0, len(outcomes))

	for _, outcome := range outcomes {
		attempted = append(attempted, outcome.cfg.ID)
		perProvider = append(perProvider, map[string]any{
			"provider_id": outcome.cfg.ID.String(),
			"elapsed_ms":  outcome.elapsedMs,
			"ok":          outcome.quote != nil,
		})
		if outcome.quote != nil {
			quotes = append(quotes, outcome.quote)
			continue
		}
		failures = append(failures, types.ProviderFailure{
			ProviderID: outcome.cfg.ID,
			Code:       outcome.errInfo.Code,
			Message:    outcome.errInfo.Message,
			Retryable:  outcome.errInfo.Retryable,
		})
		causes = append(causes, providers.NewError(
			outcome.cfg.ID, outcome.errInfo.Code, outcome.errInfo.Message, outcome.errInfo.Retryable))
	}

	elapsed := time.Since(start)
	s.emitter.Emit(ctx, telemetry.EventRouterLatency, map[string]any{
		"decision_id": decisionID.String(),
		"total_ms":    elapsed.Milliseconds(),
		"providers":   perProvider,
	})

	if len(quotes) == 0 {
		failure := newRouterFailure(decisionID, attempted, failures, causes)
		s.emitter.Emit(ctx, telemetry.EventRouterFailure, map[string]any{
			"decision_id": decisionID.String(),
			"attempted":   providerIDStrings(attempted),
			"errors":      failures,
		})
		s.routerMetrics.IncDecision("failed", "none")
		s.routerMetrics.ObserveDecisionLatency(elapsed)
		s.logg.Warn(ctx, fmt.Sprintf("routing failed: %s", failure.Error()))

		s.persistBestEffort(ctx, &models.RoutingDecision{
			ID:                 decisionID,
			RequestID:          req.RequestID,
			UserID:             req.UserID,
			State:              enums.DecisionFailed,
			OptimizeFor:        optimizeFor,
			Weights:            weights,
			DeliveryAddress:    &req.Location,
			ItemsRequested:     len(req.Items),
			AttemptedProviders: toStringArray(attempted),
			Errors:             failures,
			LatencyMs:          int(elapsed.Milliseconds()),
		})
		return nil, failure
	}

	scored := scoreQuotes(quotes, weights, relStats)

	winnerIdx, satisfied := firstWithinConstraints(scored, prefs)
	message := ""
	if !satisfied {
		message = "no provider met the requested constraints; returning the best available quote"
	}
	winner := scored[winnerIdx]
	winnerID := winner.Quote.Provider.ID

	confirmation, err := token.MintConfirmation(s.tokenCfg, time.Now(), token.ConfirmationPayload{
		DecisionID: decisionID,
		ProviderID: winnerID,
		TotalCents: winner.Quote.Quote.TotalCents,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint confirmation token")
	}

	totalCents := winner.Quote.Quote.TotalCents
	decision := &models.RoutingDecision{
		ID:                 decisionID,
		RequestID:          req.RequestID,
		UserID:             req.UserID,
		State:              enums.DecisionSelected,
		OptimizeFor:        optimizeFor,
		Weights:            weights,
		DeliveryAddress:    &req.Location,
		ItemsRequested:     len(req.Items),
		AttemptedProviders: toStringArray(attempted),
		Scores:             scoresByProvider(scored),
		Quotes:             quoteSummaries(scored),
		Errors:             failures,
		SelectedProvider:   &winnerID,
		SelectedTotalCents: &totalCents,
		LatencyMs:          int(elapsed.Milliseconds()),
	}
	if err := s.decisions.CreateDecision(ctx, decision); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist routing decision")
	}

	s.emitter.Emit(ctx, telemetry.EventRouterDecision, map[string]any{
		"decision_id": decisionID.String(),
		"selected":    winnerID.String(),
		"total_cents": totalCents,
		"score":       winner.Score,
		"breakdown":   winner.Breakdown,
		"weights":     weights,
		"quotes":      len(quotes),
		"failures":    len(failures),
	})
	s.routerMetrics.IncDecision("selected", winnerID.String())
	s.routerMetrics.ObserveDecisionLatency(elapsed)
	s.logg.Info(ctx, fmt.Sprintf("selected %s at %d cents (%d quotes, %d failures)",
		winnerID, totalCents, len(quotes), len(failures)))

	return &RouteOrderResponse{
		Success:           true,
		DecisionID:        decisionID,
		Provider:          &winner.Quote.Provider,
		ProviderID:        winnerID,
		Store:             winner.Quote.Store,
		Cart:              winner.Quote.Cart,
		Quote:             winner.Quote.Quote,
		ItemAvailability:  winner.Quote.ItemAvailability,
		ScoreBreakdown:    winner.Breakdown,
		Alternatives:      alternativesFrom(scored, winnerIdx),
		ConfirmationToken: confirmation,
		AffiliateURL:      winner.Quote.AffiliateURL,
		Message:           message,
	}, nil
}

// fanOut calls every eligible provider concurrently and settles all of them:
// each slot resolves to a quote or a failure, and the caller sees the full
// set. The outer budget caps the slowest provider plus a small buffer so one
// stall cannot hold the decision.
func (s *service) fanOut(ctx context.Context, decisionID uuid.UUID, fleet []providers.ProviderConfig, quoteReq providers.QuoteRequest) []providerOutcome {
	budget := s.bufferMs
	for _, cfg := range fleet {
		if cfg.TimeoutMs > budget-s.bufferMs {
			budget = cfg.TimeoutMs + s.bufferMs
		}
	}
	fanCtx, cancel := context.WithTimeout(ctx, time.Duration(budget)*time.Millisecond)
	defer cancel()

	results := make(chan providerOutcome, len(fleet))
	var wg sync.WaitGroup
	for _, cfg := range fleet {
		wg.Add(1)
		go func(cfg providers.ProviderConfig) {
			defer wg.Done()
			results <- s.callProvider(fanCtx, decisionID, cfg, quoteReq)
		}(cfg)
	}
	wg.Wait()
	close(results)

	byID := make(map[enums.ProviderID]providerOutcome, len(fleet))
	for outcome := range results {
		byID[outcome.cfg.ID] = outcome
	}
	// Reassemble in fleet order so diagnostics and audit rows are stable.
	ordered := make([]providerOutcome, 0, len(fleet))
	for _, cfg := range fleet {
		ordered = append(ordered, byID[cfg.ID])
	}
	return ordered
}

func (s *service) callProvider(ctx context.Context, decisionID uuid.UUID, cfg providers.ProviderConfig, quoteReq providers.QuoteRequest) providerOutcome {
	ctx = s.logg.WithProviderID(ctx, cfg.ID.String())

	adapter, ok := s.adapters.Adapter(cfg.ID)
	if !ok {
		err := providers.NewError(cfg.ID, providers.CodeUnavailable, "no adapter registered", false)
		return providerOutcome{cfg: cfg, errInfo: &reliability.ErrorInfo{
			Message: err.Error(), Code: err.ErrorCode(), Retryable: false,
		}}
	}

	s.emitter.Emit(ctx, telemetry.EventProviderQuoteStart, map[string]any{
		"decision_id": decisionID.String(),
		"provider_id": cfg.ID.String(),
		"timeout_ms":  cfg.TimeoutMs,
	})

	callStart := time.Now()
	res := reliability.Call(ctx, func(ctx context.Context) (*providers.ProviderQuote, error) {
		return adapter.GetQuote(ctx, quoteReq, cfg)
	}, reliability.Options{
		TimeoutMs:    cfg.TimeoutMs,
		MaxRetries:   cfg.MaxRetries,
		RetryOnCodes: providers.DefaultRetryCodes(),
		TimeoutErr: func(timeoutMs int) error {
			return providers.NewTimeoutError(cfg.ID, timeoutMs)
		},
	})
	elapsed := time.Since(callStart)
	s.providerCalls.ObserveCall(cfg.ID.String(), elapsed)

	if res.OK {
		s.providerCalls.IncCall(cfg.ID.String(), "success")
		s.emitter.Emit(ctx, telemetry.EventProviderQuoteSuccess, map[string]any{
			"decision_id": decisionID.String(),
			"provider_id": cfg.ID.String(),
			"total_cents": res.Data.Quote.TotalCents,
			"elapsed_ms":  elapsed.Milliseconds(),
		})
		return providerOutcome{cfg: cfg, quote: res.Data, elapsedMs: elapsed.Milliseconds()}
	}

	s.providerCalls.IncCall(cfg.ID.String(), "error")
	s.emitter.Emit(ctx, telemetry.EventProviderQuoteError, map[string]any{
		"decision_id": decisionID.String(),
		"provider_id": cfg.ID.String(),
		"code":        res.Error.Code,
		"message":     res.Error.Message,
		"retryable":   res.Error.Retryable,
		"elapsed_ms":  elapsed.Milliseconds(),
	})
	s.logg.Warn(ctx, fmt.Sprintf("provider quote failed: %s", res.Error.Message))
	return providerOutcome{cfg: cfg, errInfo: res.Error, elapsedMs: elapsed.Milliseconds()}
}

// eligibleProviders narrows the enabled fleet by the caller's preferred set.
func (s *service) eligibleProviders(prefs *OrderPreferences) ([]providers.ProviderConfig, error) {
	fleet := s.adapters.EnabledSorted()
	if len(fleet) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no providers are enabled")
	}
	if prefs == nil || len(prefs.PreferredProviders) == 0 {
		return fleet, nil
	}

	preferred := make(map[enums.ProviderID]struct{}, len(prefs.PreferredProviders))
	for _, id := range prefs.PreferredProviders {
		if !id.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unknown preferred provider %q", id))
		}
		preferred[id] = struct{}{}
	}

	narrowed := make([]providers.ProviderConfig, 0, len(preferred))
	for _, cfg := range fleet {
		if _, ok := preferred[cfg.ID]; ok {
			narrowed = append(narrowed, cfg)
		}
	}
	if len(narrowed) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no preferred provider is enabled")
	}
	return narrowed, nil
}

func validateRouteRequest(req RouteOrderRequest) error {
	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate item id %q", id))
		}
		seen[id] = struct{}{}
	}
	if strings.TrimSpace(req.Location.City) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery city is required")
	}
	if strings.TrimSpace(req.Location.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery postal code is required")
	}
	if prefs := req.Preferences; prefs != nil {
		if prefs.MaxDeliveryMinutes != nil && *prefs.MaxDeliveryMinutes <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "max delivery minutes must be positive")
		}
		if prefs.MaxFeesCents != nil && *prefs.MaxFeesCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "max fees cents must not be negative")
		}
	}
	return nil
}

func buildQuoteRequest(req RouteOrderRequest) providers.QuoteRequest {
	quoteReq := providers.QuoteRequest{
		Items:           req.Items,
		ShippingAddress: req.Location,
	}
	if req.UserID != nil {
		quoteReq.UserContext = &providers.UserContext{UserID: *req.UserID}
	}
	if prefs := req.Preferences; prefs != nil {
		quoteReq.DeliveryWindow = prefs.DeliveryWindow
		quoteReq.SpecialInstructions = prefs.SpecialInstructions
	}
	return quoteReq
}

// firstWithinConstraints picks the highest-scored quote satisfying the
// caller's delivery/fee ceilings. When none does, the overall best quote is
// returned with satisfied=false so the caller can flag the compromise.
func firstWithinConstraints(scored []ScoredQuote, prefs *OrderPreferences) (int, bool) {
	if prefs == nil || (prefs.MaxDeliveryMinutes == nil && prefs.MaxFeesCents == nil) {
		return 0, true
	}
	for i, sq := range scored {
		if prefs.MaxDeliveryMinutes != nil && sq.Quote.Quote.EstimatedDeliveryMinutes > *prefs.MaxDeliveryMinutes {
			continue
		}
		if prefs.MaxFeesCents != nil && sq.Quote.Quote.FeesCents > *prefs.MaxFeesCents {
			continue
		}
		return i, true
	}
	return 0, false
}

func alternativesFrom(scored []ScoredQuote, winnerIdx int) []AlternativeProvider {
	alternatives := make([]AlternativeProvider, 0, len(scored)-1)
	for i, sq := range scored {
		if i == winnerIdx {
			continue
		}
		alternatives = append(alternatives, AlternativeProvider{
			ProviderID:               sq.Quote.Provider.ID,
			ProviderName:             sq.Quote.Provider.Name,
			TotalCents:               sq.Quote.Quote.TotalCents,
			EstimatedDeliveryMinutes: sq.Quote.Quote.EstimatedDeliveryMinutes,
			Score:                    sq.Score,
		})
	}
	return alternatives
}

func (s *service) persistBestEffort(ctx context.Context, decision *models.RoutingDecision) {
	if err := s.decisions.CreateDecision(ctx, decision); err != nil {
		s.logg.Error(ctx, "persist routing decision", err)
	}
}

func scoresByProvider(scored []ScoredQuote) types.ProviderScores {
	out := make(types.ProviderScores, len(scored))
	for _, sq := range scored {
		out[sq.Quote.Provider.ID] = sq.Breakdown
	}
	return out
}

func quoteSummaries(scored []ScoredQuote) types.QuoteSummaries {
	out := make(types.QuoteSummaries, 0, len(scored))
	for _, sq := range scored {
		q := sq.Quote
		summary := types.QuoteSummary{
			ProviderID:               q.Provider.ID,
			SubtotalCents:            q.Quote.SubtotalCents,
			FeesCents:                q.Quote.FeesCents,
			TaxCents:                 q.Quote.TaxCents,
			TotalCents:               q.Quote.TotalCents,
			Currency:                 q.Quote.Currency,
			EstimatedDeliveryMinutes: q.Quote.EstimatedDeliveryMinutes,
		}
		if q.Store != nil {
			storeID := q.Store.ID
			storeName := q.Store.Name
			summary.StoreID = &storeID
			summary.StoreName = &storeName
		}
		for _, entry := range q.ItemAvailability {
			switch entry.Status {
			case enums.AvailabilityFound:
				summary.ItemsFound++
			case enums.AvailabilitySubstituted:
				summary.ItemsSubstituted++
			default:
				summary.ItemsUnavailable++
			}
		}
		out = append(out, summary)
	}
	return out
}

func toStringArray(ids []enums.ProviderID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func providerIDStrings(ids []enums.ProviderID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
