package symbols

// Universe represents a predefined symbol universe
type Universe string

const (
	UniverseDefault  Universe = "default"
	UniverseExtended Universe = "extended"
	UniverseTest     Universe = "test" // Small set for testing
)

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch u {
	case UniverseDefault:
		return DefaultSymbols
	case UniverseExtended:
		return ExtendedSymbols
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{
	"SPY", "QQQ", "AAPL", "MSFT", "NVDA",
}

// DefaultSymbols is the liquid core: index ETFs, mega caps, and the
// sector ETFs that anchor full-timeframe-continuity reads
var DefaultSymbols = []string{
	"SPY", "QQQ", "IWM", "DIA", // Indices
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA", // Mega caps
	"AMD", "AVGO", "QCOM", "MU", // Semiconductors
	"JPM", "BAC", "GS", "MS", // Financials
	"XLE", "XLF", "XLK", "XLV", // Sector ETFs
}

// ExtendedSymbols is the wider scan universe
var ExtendedSymbols = append(append([]string{}, DefaultSymbols...),
	"ABBV", "ADBE", "AGG", "ARKK", "BA", "C", "CAT", "COIN", "COST", "CRM",
	"CSCO", "CVX", "DIS", "DOW", "EEM", "EFA", "F", "FXI", "GLD", "GME",
	"HD", "HON", "IBM", "INTC", "JNJ", "KO", "LLY", "LMT", "MA", "MCD",
	"MRK", "MRNA", "NKE", "ORCL", "PEP", "PFE", "PG", "PYPL", "RTX", "SBUX",
	"SLV", "SOFI", "SQ", "T", "TGT", "TMUS", "UNH", "V", "VZ", "WFC", "WMT", "XOM",
)
