package topics

const (
	// Settlement
	MarketResolved     = "market_resolved"
	MarketPoolsUpdated = "market_pools_updated"

	// Redis Pub/Sub do feed
	MarketEventsBroadcast = "market_events_broadcast"
)
