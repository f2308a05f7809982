package natsbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/energymatch/internal/adapters/natsbus"
	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
)

type fakeConn struct {
	subject    string
	data       []byte
	publishErr error
	flushErr   error
	flushed    bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.subject, f.data = subject, data
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	f.flushed = true
	return f.flushErr
}

var matches = []domain.BidOfferMatch{{
	MarketID:       "community-1",
	Bid:            domain.Bid{ID: "B1", Buyer: "a", Energy: 5, EnergyRate: 20},
	Offer:          domain.Offer{ID: "O1", Seller: "b", Energy: 5, EnergyRate: 18},
	SelectedEnergy: 5,
	TradeRate:      20,
}}

func TestSink_PublishesAndFlushes(t *testing.T) {
	conn := &fakeConn{}
	sink := natsbus.NewSink(conn, "energymatch.recommendations")

	require.NoError(t, sink.Submit(context.Background(), matches))
	assert.True(t, conn.flushed)
	assert.Equal(t, "energymatch.recommendations", conn.subject)

	got, err := wire.DecodeRecommendations(conn.data)
	require.NoError(t, err)
	assert.Equal(t, matches, got)
	sink.Close()
}

func TestSink_ErrorsWrapSinkError(t *testing.T) {
	sink := natsbus.NewSink(&fakeConn{publishErr: errors.New("slow consumer")}, "s")
	err := sink.Submit(context.Background(), matches)
	assert.ErrorIs(t, err, domain.ErrSink)
	assert.True(t, domain.IsTransient(err))

	sink = natsbus.NewSink(&fakeConn{flushErr: context.DeadlineExceeded}, "s")
	err = sink.Submit(context.Background(), matches)
	assert.ErrorIs(t, err, domain.ErrSink)
}
