package protect

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mantis-trade/mantis/service/config"
)

// knownDEXPrograms are program IDs whose instructions attract sandwich
// bots: swaps through these are the primary MEV target on Solana.
var knownDEXPrograms = map[solana.PublicKey]string{
	solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"):  "jupiter-v6",
	solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"): "raydium-amm",
	solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"):  "orca-whirlpool",
	solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"):  "pump-amm",
}

// RiskFactors are the observable inputs to the MEV risk score.
type RiskFactors struct {
	// DEXProgramMatches counts instructions that invoke a known DEX program.
	DEXProgramMatches int
	// SizeBytes is the serialized transaction size.
	SizeBytes int
	// EstimatedValueUSD is the approximate USD value moved by the transaction.
	EstimatedValueUSD float64
	// Congestion is recent network load as a fraction of the reference
	// sampling period, in [0,1].
	Congestion float64
}

// AssessTransaction derives risk factors from a transaction plus the
// caller-known value and congestion estimates.
func AssessTransaction(tx *solana.Transaction, valueUSD, congestion float64) RiskFactors {
	factors := RiskFactors{
		EstimatedValueUSD: valueUSD,
		Congestion:        congestion,
	}
	if tx == nil {
		return factors
	}

	for _, ix := range tx.Message.Instructions {
		program, err := tx.Message.Program(ix.ProgramIDIndex)
		if err != nil {
			continue
		}
		if _, ok := knownDEXPrograms[program]; ok {
			factors.DEXProgramMatches++
		}
	}

	if raw, err := tx.MarshalBinary(); err == nil {
		factors.SizeBytes = len(raw)
	}

	return factors
}

// ScoreRisk computes the MEV risk score in [0,1] from weighted factors.
// Each matched factor adds its configured weight; the DEX weight is added
// once per matched instruction. The sum is clamped to 1.0, so adding
// factors never decreases the score.
func ScoreRisk(cfg config.ProtectionConfig, f RiskFactors) float64 {
	score := 0.0

	score += float64(f.DEXProgramMatches) * cfg.WeightDEXProgram
	if f.SizeBytes > cfg.SizeThresholdBytes {
		score += cfg.WeightLargeTx
	}
	if f.EstimatedValueUSD > cfg.ValueThresholdUSD {
		score += cfg.WeightHighValue
	}
	if f.Congestion > cfg.CongestionThreshold {
		score += cfg.WeightCongestion
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// classifyComplexity buckets a transaction by instruction count for the
// usage log.
func classifyComplexity(tx *solana.Transaction) string {
	if tx == nil {
		return "simple"
	}
	n := len(tx.Message.Instructions)
	switch {
	case n <= 2:
		return "simple"
	case n <= 6:
		return "standard"
	default:
		return "complex"
	}
}
