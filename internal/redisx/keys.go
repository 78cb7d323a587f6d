package redisx

import "time"

const (
	// Session: session:{session_id} -> hash {user_id, username}
	KeySession = "session:%s"

	// Cached order detail (with ledger status): od:{order_detail_id} -> json
	KeyOrderDetail = "od:%s"

	// Dedup of consumed jobs: dedup:{scope}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Pub/sub channel carrying ledger status transitions
	ChannelLedgerStatus = "orderdetail:ledger_status"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
