package evm

import "context"

// WSClient defines the Ethereum WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to contract logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan Log, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines the eth_subscribe "logs" filter.
type LogsFilter struct {
	// Address restricts logs to one contract.
	Address string
	// Topics is positional; an empty string matches any value at that position.
	Topics []string
}

func (f LogsFilter) params() map[string]interface{} {
	p := map[string]interface{}{"address": f.Address}
	if len(f.Topics) > 0 {
		topics := make([]interface{}, len(f.Topics))
		for i, t := range f.Topics {
			if t == "" {
				topics[i] = nil
			} else {
				topics[i] = t
			}
		}
		p["topics"] = topics
	}
	return p
}
