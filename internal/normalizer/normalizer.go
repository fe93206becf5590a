/*

This file contains the parameter normalizer, which validates raw per-pool
payloads and produces the uniform PoolSnapshot set the decision engine
consumes. Raw payloads arrive as loosely typed JSON objects: numeric fields
may be floats, ints, json.Numbers or strings, rates may be expressed as
percentages or fractions, and protocol names come in several aliases.

*/

package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/types"
)

var (
	ErrInvalidPayload         = errors.New("invalid pool payload")
	ErrMissingCanonicalPool   = errors.New("pool set missing a required canonical protocol")
	ErrInvalidModelParameters = errors.New("rate model parameters out of range")
	ErrDuplicateProtocolEntry = errors.New("duplicate pool entry for protocol")
	ErrUnparsableNumericField = errors.New("numeric field could not be parsed")
)

var normLogger = logger.GetForComponent("normalizer")

// Normalize validates and normalizes a raw pool-address -> payload mapping
// into a PoolSet. It fails fast with an error naming the offending pool
// address and field; nothing is silently coerced beyond the documented
// percent-vs-fraction rule (values > 1 are treated as percentages).
func Normalize(raw map[string]map[string]any) (types.PoolSet, error) {
	if len(raw) == 0 {
		return types.PoolSet{}, errors.Join(ErrInvalidPayload, errors.New("pool payload map is empty"))
	}

	set := types.PoolSet{
		Pools:             make(map[string]types.PoolSnapshot, len(raw)),
		ProtocolToAddress: make(map[types.Protocol]string),
		AddressToProtocol: make(map[string]types.Protocol),
	}

	for addr, payload := range raw {
		if payload == nil {
			return types.PoolSet{}, errors.Join(ErrInvalidPayload,
				fmt.Errorf("pool '%s' payload must be an object with required fields", addr))
		}

		snapshot, err := normalizePool(addr, payload)
		if err != nil {
			return types.PoolSet{}, err
		}

		if existing, dup := set.ProtocolToAddress[snapshot.Protocol]; dup {
			return types.PoolSet{}, errors.Join(ErrDuplicateProtocolEntry,
				fmt.Errorf("protocol %s appears at both %s and %s", snapshot.Protocol, existing, addr))
		}

		set.Pools[addr] = snapshot
		set.ProtocolToAddress[snapshot.Protocol] = addr
		set.AddressToProtocol[addr] = snapshot.Protocol
	}

	if _, ok := set.ProtocolToAddress[types.ProtocolHyperLend]; !ok {
		return types.PoolSet{}, errors.Join(ErrMissingCanonicalPool,
			fmt.Errorf("pool set must include protocol '%s'", types.ProtocolHyperLend))
	}
	if _, ok := set.ProtocolToAddress[types.ProtocolHypurrFi]; !ok {
		return types.PoolSet{}, errors.Join(ErrMissingCanonicalPool,
			fmt.Errorf("pool set must include protocol '%s'", types.ProtocolHypurrFi))
	}

	normLogger.Debug().
		Int("pools", len(set.Pools)).
		Msg("Pool payloads normalized")

	return set, nil
}

// normalizePool converts one raw payload into a validated PoolSnapshot.
func normalizePool(addr string, payload map[string]any) (types.PoolSnapshot, error) {
	rawProtocol, ok := payload["protocol"].(string)
	if !ok || strings.TrimSpace(rawProtocol) == "" {
		return types.PoolSnapshot{}, errors.Join(ErrInvalidPayload,
			fmt.Errorf("%s: missing required 'protocol' field", addr))
	}
	protocol := canonicalProtocol(rawProtocol)

	tvl, err := requireNumber(addr, payload, "tvl")
	if err != nil {
		return types.PoolSnapshot{}, err
	}
	if tvl < 0 {
		return types.PoolSnapshot{}, errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s: tvl must be >= 0, got %f", addr, tvl))
	}

	util, err := requireFraction(addr, payload, "utilization", "util", "utilisation")
	if err != nil {
		return types.PoolSnapshot{}, err
	}

	apy, err := requireFraction(addr, payload, "current_apy", "supply_apy", "current_apr")
	if err != nil {
		return types.PoolSnapshot{}, err
	}
	if apy < 0 {
		return types.PoolSnapshot{}, errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s: current_apy must be >= 0, got %f", addr, apy))
	}

	snapshot := types.PoolSnapshot{
		Protocol:    protocol,
		PoolAddress: addr,
		CurrentAPY:  apy,
		TvlUSD:      tvl,
		Utilization: util,
	}

	if price, ok := optionalNumber(payload, "token_price_usd"); ok && price > 0 {
		snapshot.TokenPriceUSD = price
	}
	if decimals, ok := optionalNumber(payload, "token_decimals"); ok && decimals > 0 {
		snapshot.TokenDecimals = int(decimals)
	}

	if protocol == types.ProtocolFelix {
		if err := normalizeSubmarketFamily(addr, payload, &snapshot); err != nil {
			return types.PoolSnapshot{}, err
		}
	} else {
		if err := normalizeKinkedFamily(addr, payload, &snapshot); err != nil {
			return types.PoolSnapshot{}, err
		}
	}

	if err := validateModelRanges(addr, snapshot); err != nil {
		return types.PoolSnapshot{}, err
	}

	return snapshot, nil
}

// normalizeKinkedFamily parses the standard kinked-model parameters.
// All four fields are required; missing ones are reported together.
func normalizeKinkedFamily(addr string, payload map[string]any, snapshot *types.PoolSnapshot) error {
	var missing []string
	params := types.KinkedParams{}

	read := func(field string, dst *float64) {
		v, err := requireNumber(addr, payload, field)
		if err != nil {
			missing = append(missing, field)
			return
		}
		*dst = v
	}

	read("kink", &params.Kink)
	read("slope1", &params.Slope1)
	read("slope2", &params.Slope2)
	read("reserve_factor", &params.ReserveFactor)

	if len(missing) > 0 {
		return errors.Join(ErrInvalidPayload,
			fmt.Errorf("%s: missing required model params: %v", addr, missing))
	}

	snapshot.ModelKind = types.RateModelKinked
	snapshot.Kinked = &params
	return nil
}

// normalizeSubmarketFamily derives equivalent kink/slope placeholders from
// the pool's target-utilization curve fields and retains the raw submarket
// list untouched for the weighted model.
func normalizeSubmarketFamily(addr string, payload map[string]any, snapshot *types.PoolSnapshot) error {
	params, ok := payload["params"].(map[string]any)
	if !ok {
		return errors.Join(ErrInvalidPayload,
			fmt.Errorf("%s: missing required 'params' object for submarket-family pool", addr))
	}

	// Placeholder curve: target utilization acts as the kink, the rate
	// band at target acts as the slopes. Only used when the submarket
	// aggregation cannot produce a usable APY.
	kink := numberOrDefault(params, "target_utilization", 0.9)
	slope1 := numberOrDefault(params, "initial_rate_at_target", 0.04)
	slope2 := numberOrDefault(params, "max_rate_at_target", 2.0)
	reserve := numberOrDefault(params, "reserve_factor", 0.1)

	rawMarkets, ok := params["underlying_markets"].([]any)
	if !ok || len(rawMarkets) == 0 {
		return errors.Join(ErrInvalidPayload,
			fmt.Errorf("%s: params.underlying_markets must be a non-empty list", addr))
	}

	submarkets := make([]types.Submarket, 0, len(rawMarkets))
	for i, rawMarket := range rawMarkets {
		market, ok := rawMarket.(map[string]any)
		if !ok {
			return errors.Join(ErrInvalidPayload,
				fmt.Errorf("%s: underlying_markets[%d] must be an object", addr, i))
		}

		sub := types.Submarket{
			LoanToken:       stringOrEmpty(market, "loan_token"),
			CollateralToken: stringOrEmpty(market, "collateral_token"),
			Oracle:          stringOrEmpty(market, "oracle"),
		}

		var err error
		if sub.TotalSupplyAssets, err = requireNumber(addr, market, "total_supply_assets"); err != nil {
			return fmt.Errorf("underlying_markets[%d]: %w", i, err)
		}
		if sub.TotalBorrowAssets, err = requireNumber(addr, market, "total_borrow_assets"); err != nil {
			return fmt.Errorf("underlying_markets[%d]: %w", i, err)
		}

		sub.LLTV = numberOrDefault(market, "lltv", 0)
		sub.TotalSupplyShares = numberOrDefault(market, "total_supply_shares", 0)
		sub.TotalBorrowShares = numberOrDefault(market, "total_borrow_shares", 0)
		sub.Fee = numberOrDefault(market, "fee", 0)
		sub.BorrowRate = numberOrDefault(market, "borrow_rate", 0)

		submarkets = append(submarkets, sub)
	}

	snapshot.ModelKind = types.RateModelSubmarket
	snapshot.Kinked = &types.KinkedParams{
		Kink:          kink,
		Slope1:        slope1,
		Slope2:        slope2,
		ReserveFactor: reserve,
	}
	snapshot.Submarket = &types.SubmarketParams{
		ReserveFactor: reserve,
		Submarkets:    submarkets,
	}
	return nil
}

// validateModelRanges enforces the snapshot invariants after parsing.
func validateModelRanges(addr string, snapshot types.PoolSnapshot) error {
	if snapshot.Utilization < 0 || snapshot.Utilization >= 1 {
		return errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s (%s): utilization must be in [0, 1), got %f",
				addr, snapshot.Protocol, snapshot.Utilization))
	}

	k := snapshot.Kinked
	if k == nil {
		return errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s (%s): snapshot has no rate model parameters", addr, snapshot.Protocol))
	}

	if k.Kink <= 0 || k.Kink >= 1 {
		return errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s (%s): kink must be in (0,1), got %f", addr, snapshot.Protocol, k.Kink))
	}
	if k.Slope1 < 0 || k.Slope2 < 0 {
		return errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s (%s): slope1 and slope2 must be >= 0 (got %f, %f)",
				addr, snapshot.Protocol, k.Slope1, k.Slope2))
	}
	if k.ReserveFactor < 0 || k.ReserveFactor >= 1 {
		return errors.Join(ErrInvalidModelParameters,
			fmt.Errorf("%s (%s): reserve_factor must be in [0,1), got %f",
				addr, snapshot.Protocol, k.ReserveFactor))
	}

	return nil
}

// canonicalProtocol maps protocol-name aliases, case-insensitively, onto
// canonical identities. Unknown names pass through trimmed.
func canonicalProtocol(name string) types.Protocol {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(lower, "hyperlend") || strings.HasPrefix(lower, "hypl"):
		return types.ProtocolHyperLend
	case strings.Contains(lower, "hyperfi") || strings.Contains(lower, "hypurfi") || strings.Contains(lower, "hypurrfi"):
		return types.ProtocolHypurrFi
	case strings.Contains(lower, "felix"):
		return types.ProtocolFelix
	default:
		return types.Protocol(strings.TrimSpace(name))
	}
}

// toNumber converts raw JSON scalar representations into a float64.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableNumericField, n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrUnparsableNumericField, v)
	}
}

// toFraction converts a percent-or-fraction-ambiguous value to a fraction.
// Values greater than 1 are treated as percentages and divided by 100.
func toFraction(v any) (float64, error) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: value is not finite", ErrUnparsableNumericField)
	}
	if n > 1 {
		return n / 100.0, nil
	}
	return n, nil
}

// requireNumber fetches a required numeric field, trying each alias in order.
func requireNumber(addr string, payload map[string]any, fields ...string) (float64, error) {
	for _, field := range fields {
		if v, present := payload[field]; present && v != nil {
			n, err := toNumber(v)
			if err != nil {
				return 0, errors.Join(ErrInvalidPayload,
					fmt.Errorf("%s: invalid '%s': %w", addr, field, err))
			}
			return n, nil
		}
	}
	return 0, errors.Join(ErrInvalidPayload,
		fmt.Errorf("%s: missing or invalid '%s'", addr, fields[0]))
}

// requireFraction is requireNumber plus the percent-vs-fraction rule.
func requireFraction(addr string, payload map[string]any, fields ...string) (float64, error) {
	for _, field := range fields {
		if v, present := payload[field]; present && v != nil {
			f, err := toFraction(v)
			if err != nil {
				return 0, errors.Join(ErrInvalidPayload,
					fmt.Errorf("%s: invalid '%s': %w", addr, field, err))
			}
			return f, nil
		}
	}
	return 0, errors.Join(ErrInvalidPayload,
		fmt.Errorf("%s: missing or invalid '%s'", addr, fields[0]))
}

func optionalNumber(payload map[string]any, field string) (float64, bool) {
	v, present := payload[field]
	if !present || v == nil {
		return 0, false
	}
	n, err := toNumber(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func numberOrDefault(payload map[string]any, field string, fallback float64) float64 {
	if n, ok := optionalNumber(payload, field); ok {
		return n
	}
	return fallback
}

func stringOrEmpty(payload map[string]any, field string) string {
	if s, ok := payload[field].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
