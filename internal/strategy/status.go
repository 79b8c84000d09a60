package strategy

// Status is the lifecycle state of the engine
type Status int

const (
	// Started, unaware of account, positions and market
	Initialized Status = iota + 1
	// Account, positions and open orders are known
	AwareOfAccount
	// Flat, loading history and ranking pairs
	AnalyzingPairs
	// A pair is selected, waiting for the spread to widen
	WaitingForTrades
	SentEntryOrders
	InATrade
	SentExitOrders
)

var statusNames = map[Status]string{
	Initialized:      "INITIALIZED",
	AwareOfAccount:   "AWARE_OF_ACCOUNT",
	AnalyzingPairs:   "ANALYZING_PAIRS",
	WaitingForTrades: "WAITING_FOR_TRADES",
	SentEntryOrders:  "SENT_ENTRY_ORDERS",
	InATrade:         "IN_A_TRADE",
	SentExitOrders:   "SENT_EXIT_ORDERS",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// tradeInFlight reports states where orders or positions may exist
func (s Status) tradeInFlight() bool {
	return s == SentEntryOrders || s == InATrade || s == SentExitOrders
}
