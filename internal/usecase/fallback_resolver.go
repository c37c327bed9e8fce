package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

var (
	symbolToken  = regexp.MustCompile(`\b[A-Za-z]{1,5}\b`)
	amountToken  = regexp.MustCompile(`\$([0-9][0-9,]*)`)
	amountFormat = regexp.MustCompile(`^(\d+|\d{1,3}(,\d{3})+)$`)
)

var symbolStopWords = map[string]struct{}{
	"buy": {}, "sell": {}, "of": {}, "the": {}, "and": {},
	"or": {}, "at": {}, "for": {}, "in": {}, "on": {},
}

// Fallback confidences sit below what a successful semantic parse reports.
const (
	fallbackBuyConfidence    = 0.7
	fallbackSellConfidence   = 0.6
	fallbackStatusConfidence = 0.7
	fallbackQueryConfidence  = 0.3
)

// FallbackResolver extracts a command with keyword rules only. It never fails.
type FallbackResolver struct{}

func NewFallbackResolver() *FallbackResolver { return &FallbackResolver{} }

func (FallbackResolver) Resolve(text string) models.ParsedCommand {
	lower := strings.ToLower(text)

	cmd := models.ParsedCommand{OriginalText: text}
	switch {
	case strings.Contains(lower, "buy") || strings.Contains(lower, "purchase"):
		cmd.Intent, cmd.Confidence = models.IntentBuy, fallbackBuyConfidence
	case strings.Contains(lower, "sell"):
		cmd.Intent, cmd.Confidence = models.IntentSell, fallbackSellConfidence
	case strings.Contains(lower, "status") || strings.Contains(lower, "portfolio"):
		cmd.Intent, cmd.Confidence = models.IntentStatus, fallbackStatusConfidence
	default:
		cmd.Intent, cmd.Confidence = models.IntentQuery, fallbackQueryConfidence
	}
	cmd.NeedsConfirmation = cmd.Intent.IsTrade()
	cmd.Entities.Symbol = extractSymbol(text)
	cmd.Entities.Amount = extractAmount(text)
	return cmd
}

func extractSymbol(text string) string {
	for _, tok := range symbolToken.FindAllString(text, -1) {
		if _, stop := symbolStopWords[strings.ToLower(tok)]; stop {
			continue
		}
		return strings.ToUpper(tok)
	}
	return ""
}

func extractAmount(text string) *float64 {
	m := amountToken.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	digits := strings.TrimRight(m[1], ",")
	if !amountFormat.MatchString(digits) {
		return nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(digits, ",", ""), 10, 64)
	if err != nil {
		return nil
	}
	v := float64(n)
	return &v
}
