package session

import (
	"context"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/observability"
)

// TransferTopic is the ERC-721 Transfer event topic.
var TransferTopic = evm.EventTopic("Transfer(address,address,uint256)")

// Watch subscribes to Transfer logs of contract and starts a new pass whenever
// a transfer involves the bound owner. It blocks until ctx is done or the
// subscription channel closes.
func (s *Session) Watch(ctx context.Context, ws evm.WSClient, contract string) error {
	logs, err := ws.SubscribeLogs(ctx, evm.LogsFilter{
		Address: domain.NormalizeAddress(contract),
		Topics:  []string{TransferTopic},
	})
	if err != nil {
		return err
	}
	s.logger.Printf("watching transfers of %s", contract)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-logs:
			if !ok {
				return nil
			}
			observability.RecordWSLog()
			if s.involvesOwner(entry) {
				s.logger.Printf("transfer in tx %s involves owner, refreshing", entry.TransactionHash)
				s.Refresh()
			}
		}
	}
}

// involvesOwner reports whether a Transfer log moves a token from or to the owner.
func (s *Session) involvesOwner(entry evm.Log) bool {
	owner := s.Owner()
	if owner == "" || len(entry.Topics) < 3 || entry.Topics[0] != TransferTopic {
		return false
	}
	for _, topic := range entry.Topics[1:3] {
		addr, err := evm.TopicToAddress(topic)
		if err == nil && domain.SameAddress(addr, owner) {
			return true
		}
	}
	return false
}
