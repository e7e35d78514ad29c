package args

import (
	"regexp"
	"strings"
)

var (
	amountPattern = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/_]*)$`)
	digitsOnly    = regexp.MustCompile(`^[0-9]+$`)
	lettersFirst  = regexp.MustCompile(`^[a-zA-Z]`)
)

// Coin is a parsed <amount><denom> token. Amount stays a decimal string so
// values beyond 64 bits survive untouched.
type Coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

func (c Coin) String() string {
	return c.Amount + c.Denom
}

// Amount parses a single coin such as 1000000umfx or
// 5ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2.
func (p Parser) Amount(field, raw string) (Coin, error) {
	m := amountPattern.FindStringSubmatch(raw)
	if m == nil {
		return Coin{}, p.fail("invalid %s: %s", field, amountHint(raw))
	}
	return Coin{Amount: m[1], Denom: m[2]}, nil
}

// Amounts parses a comma separated coin list such as 10umfx,5uatom.
func (p Parser) Amounts(field, raw string) ([]Coin, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, p.fail("invalid %s: %s", field, amountHint(raw))
	}
	parts := strings.Split(raw, ",")
	coins := make([]Coin, 0, len(parts))
	for _, part := range parts {
		coin, err := p.Amount(field, part)
		if err != nil {
			return nil, err
		}
		coins = append(coins, coin)
	}
	return coins, nil
}

func amountHint(raw string) string {
	const format = "expected <amount><denom> like 1000000umfx"
	switch {
	case raw == "":
		return "received empty string; " + format
	case strings.ContainsAny(raw, " \t"):
		return "remove the space between amount and denom in \"" + raw + "\"; " + format
	case strings.Contains(raw, ","):
		return "no commas allowed in \"" + raw + "\"; " + format
	case digitsOnly.MatchString(raw):
		return "missing denomination in \"" + raw + "\"; " + format
	case lettersFirst.MatchString(raw):
		return "amount must start with a number, got \"" + raw + "\"; " + format
	default:
		return "malformed amount \"" + raw + "\"; " + format
	}
}
