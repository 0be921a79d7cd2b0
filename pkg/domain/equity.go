package domain

// EquityStake is one party's share in an equity-bearing case.
type EquityStake struct {
	PartyName        string  `json:"partyName"`
	Nationality      string  `json:"nationality"`
	Percentage       Decimal `json:"percentage"`
	InvestmentAmount Decimal `json:"investmentAmount"`
}
