package orders

const (
	TopicLedgerSubmit = "orderdetail.ledger.submit"
)

// Partition key = order detail id, so every job for one detail stays in order.
func PartitionKey(orderDetailID string) []byte { return []byte(orderDetailID) }
