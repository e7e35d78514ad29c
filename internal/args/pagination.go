package args

const (
	DefaultLimit uint64 = 100
	MaxLimit     uint64 = 1000
)

// Pagination mirrors the cosmos PageRequest fields an agent may set.
type Pagination struct {
	Limit      uint64 `json:"limit"`
	Offset     uint64 `json:"offset,omitempty"`
	Key        string `json:"key,omitempty"`
	Reverse    bool   `json:"reverse,omitempty"`
	CountTotal bool   `json:"countTotal,omitempty"`
}

// ExtractPagination pulls --limit, --offset, --page-key, --reverse and
// --count-total out of tokens and returns the remaining positional tokens.
// An absent --limit defaults to DefaultLimit; an explicit value outside
// [1, MaxLimit] fails instead of being clamped.
func (p Parser) ExtractPagination(tokens []string) (Pagination, []string, error) {
	page := Pagination{Limit: DefaultLimit}

	limit, err := p.ExtractFlag(tokens, "limit")
	if err != nil {
		return Pagination{}, nil, err
	}
	if limit.Found {
		n, err := p.Uint("limit", limit.Value)
		if err != nil {
			return Pagination{}, nil, err
		}
		if n < 1 || n > MaxLimit {
			return Pagination{}, nil, p.fail("invalid limit %d: must be between 1 and %d", n, MaxLimit)
		}
		page.Limit = n
	}

	offset, err := p.ExtractFlag(tokens, "offset")
	if err != nil {
		return Pagination{}, nil, err
	}
	if offset.Found {
		n, err := p.Uint("offset", offset.Value)
		if err != nil {
			return Pagination{}, nil, err
		}
		page.Offset = n
	}

	key, err := p.ExtractFlag(tokens, "page-key")
	if err != nil {
		return Pagination{}, nil, err
	}
	if key.Found {
		v, err := p.NonEmpty("page-key", key.Value)
		if err != nil {
			return Pagination{}, nil, err
		}
		page.Key = v
	}
	if offset.Found && key.Found {
		return Pagination{}, nil, p.fail("use either --offset or --page-key, not both")
	}

	reverse, reverseIdx := HasSwitch(tokens, "reverse")
	countTotal, countIdx := HasSwitch(tokens, "count-total")
	page.Reverse = reverse
	page.CountTotal = countTotal

	rest := FilterConsumed(tokens, limit.Consumed, offset.Consumed, key.Consumed, reverseIdx, countIdx)
	return page, rest, nil
}
