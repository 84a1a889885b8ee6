package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/testando12/daytrade-bot/internal/model"
)

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// FormatCycleReport formats one completed cycle into a Telegram message.
func FormatCycleReport(rec model.CycleRecord, risk model.RiskAssessment, prot model.Protection, alloc model.HorizonAllocation, plan model.AllocationPlan, metrics model.PortfolioMetrics) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🤖 <b>Ciclo de Trading</b> | %s\n\n", rec.Timestamp.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Capital: $%s\n", money(rec.Capital)))
	b.WriteString(fmt.Sprintf("PnL do ciclo: %+.2f (5m %+.2f | 1h %+.2f | 1d %+.2f)\n\n",
		rec.PnL, rec.PnLFast, rec.PnLMedium, rec.PnLSlow))

	b.WriteString(fmt.Sprintf("⚠️ IRQ: %.3f → <b>%s</b>\n", rec.IRQ, prot.Level))
	if prot.ReductionPct > 0 {
		b.WriteString(fmt.Sprintf("   Redução de posições: %.0f%%\n", prot.ReductionPct*100))
	}
	if !prot.AllowNewPositions {
		b.WriteString("   Novas posições bloqueadas\n")
	}
	b.WriteString(fmt.Sprintf("\n⏱ Horizontes: 5m %.0f%% | 1h %.0f%% | 1d %.0f%%\n\n",
		alloc.Fast*100, alloc.Medium*100, alloc.Slow*100))

	if len(plan) > 0 {
		b.WriteString("📈 <b>Posições:</b>\n")
		assets := make([]string, 0, len(plan))
		for a := range plan {
			assets = append(assets, a)
		}
		sort.Strings(assets)
		for _, asset := range assets {
			pos := plan[asset]
			if pos.Action == model.ActionHold && pos.RecommendedAmount == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %s %s: $%s → $%s (%+.1f%%) [%s]\n",
				actionEmoji(pos.Action), asset,
				money(pos.CurrentAmount), money(pos.RecommendedAmount),
				pos.ChangePct, pos.Classification))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("💵 Caixa: %.1f%% | Posições ativas: %d | Diversificação: %.2f\n",
		metrics.CashPct, metrics.ActivePositions, metrics.DiversificationRatio))

	return b.String()
}

// FormatStatus formats the account status for the /status command.
func FormatStatus(state *model.TradeState, perf *model.PerformanceState) string {
	var b strings.Builder
	b.WriteString("📦 <b>Status da Conta</b>\n\n")
	b.WriteString(fmt.Sprintf("Capital: $%s\n", money(state.Capital)))
	b.WriteString(fmt.Sprintf("PnL total: %+.2f\n", state.TotalPnL))
	b.WriteString(fmt.Sprintf("Auto-trading: %v\n", state.AutoTrading))
	b.WriteString(fmt.Sprintf("Posições abertas: %d\n", len(state.Positions)))

	if p := state.Protection; p != nil {
		b.WriteString(fmt.Sprintf("\nPerdas consecutivas: %d\n", p.ConsecutiveLosses))
		b.WriteString(fmt.Sprintf("Multiplicador de tamanho: %.2f\n", p.SizeMultiplier))
		b.WriteString(fmt.Sprintf("Pico de capital: $%s\n", money(p.PeakCapital)))
		if p.HardStopped {
			b.WriteString(fmt.Sprintf("🛑 <b>HARD STOP ativo</b>: %s\n", p.PauseReason))
		} else if p.Paused {
			b.WriteString(fmt.Sprintf("⏸ Pausado: %s\n", p.PauseReason))
		}
	}

	total := perf.WinCount + perf.LossCount
	if total > 0 {
		b.WriteString(fmt.Sprintf("\nCiclos: %d | Vitórias: %d (%.0f%%)\n",
			total, perf.WinCount, float64(perf.WinCount)/float64(total)*100))
		b.WriteString(fmt.Sprintf("Melhor ciclo: %+.2f | Pior: %+.2f\n", perf.BestCyclePnL, perf.WorstCycle))
	}

	if !state.LastCycle.IsZero() {
		b.WriteString(fmt.Sprintf("\nÚltimo ciclo: %s\n", state.LastCycle.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatRanking formats the momentum ranking for the cycle report footer.
func FormatRanking(results map[string]model.MomentumResult) string {
	ranked := make([]model.MomentumResult, 0, len(results))
	for _, r := range results {
		if r.Valid {
			ranked = append(ranked, r)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏆 <b>Ranking de Momentum</b> | %s\n\n", time.Now().Format("2006-01-02")))
	for _, r := range ranked {
		marker := "  "
		if r.IsTop3 {
			marker = "⭐"
		}
		b.WriteString(fmt.Sprintf("%s %d. %s: %+.3f [%s] q=%.2f\n",
			marker, r.Rank, r.Asset, r.Score, r.Classification, r.SignalQuality))
	}
	return b.String()
}

func actionEmoji(a model.Action) string {
	switch a {
	case model.ActionBuy:
		return "🟢"
	case model.ActionSell:
		return "🔴"
	default:
		return "⚪"
	}
}
