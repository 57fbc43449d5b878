package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/cta/internal/schema"
)

func TestSendOrderQuantizesPriceAndVolume(t *testing.T) {
	h := newHarness(t)
	s := h.addLive(t, "alpha", true)

	ids := h.eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.RequireFromString("10.26"), decimal.RequireFromString("2.6"), false, false, false)
	require.Len(t, ids, 1)

	sent := h.gw.sent[0]
	require.True(t, sent.Price.Equal(decimal.RequireFromString("10.5")), "price snaps to 0.5 tick, got %s", sent.Price)
	require.True(t, sent.Volume.Equal(decimal.NewFromInt(3)), "volume snaps to lot size, got %s", sent.Volume)
	require.Equal(t, schema.OrderTypeLimit, sent.Type)
	require.Equal(t, "cta_alpha", sent.Reference)
}

func TestSendOrderUnknownContractRejected(t *testing.T) {
	h := newHarness(t)
	var s *scriptedStrategy
	require.NoError(t, h.registry.Register("Scripted", scriptedFactory(&s)))
	require.NoError(t, h.eng.AddStrategy("Scripted", "alpha", "ETHUSDT.SIM", nil))
	s.SetInited(true)
	s.SetTrading(true)

	ids := h.eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.NewFromInt(100), decimal.NewFromInt(1), false, false, false)
	require.Empty(t, ids)
	require.Empty(t, h.gw.sent)
}

func TestSendOrderLinksEveryLeg(t *testing.T) {
	h := newHarness(t)
	s := h.addLive(t, "alpha", true)
	h.gw.legs = 2

	ids := h.eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.NewFromInt(100), decimal.NewFromInt(1), false, true, false)
	require.Len(t, ids, 2)

	h.eng.CancelAll(s)
	require.Len(t, h.gw.cancels, 2)
}

func TestSendOrderSubmissionFailureReturnsEmpty(t *testing.T) {
	h := newHarness(t)
	s := h.addLive(t, "alpha", true)
	h.gw.failSubmission = true

	ids := h.eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.NewFromInt(100), decimal.NewFromInt(1), false, false, false)
	require.Empty(t, ids)

	var logged bool
	for _, entry := range h.notifier.logs {
		if entry.Strategy != "alpha" {
			continue
		}
		if strings.Contains(entry.Message, "code=submission_failed") &&
			strings.Contains(entry.Message, "order submission failed for "+testSymbol) {
			logged = true
		}
	}
	require.True(t, logged, "total submission failure must be surfaced")
}

func TestCancelUnknownVenueOrderLogged(t *testing.T) {
	h := newHarness(t)
	s := h.addLive(t, "alpha", true)

	h.eng.CancelOrder(s, "PAPER.404")
	require.Empty(t, h.gw.cancels)
	require.NotEmpty(t, h.notifier.logs)
}

func TestOrderThrottleDropsLegs(t *testing.T) {
	h := newHarness(t)
	gw := h.gw

	// Rebuild with a 1-per-second budget and burst of 1.
	eng, err := New(Config{OrderRate: 1, OrderBurst: 1}, gw, nil, h.store, h.registry, h.notifier,
		nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := contextWithTimeout(time.Second)
		defer cancel()
		_ = eng.Close(ctx)
	})
	var s *scriptedStrategy
	require.NoError(t, h.registry.Register("Scripted", scriptedFactory(&s)))
	require.NoError(t, eng.AddStrategy("Scripted", "alpha", testSymbol, nil))
	s.SetInited(true)
	s.SetTrading(true)

	first := eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.NewFromInt(100), decimal.NewFromInt(1), false, false, false)
	require.Len(t, first, 1)

	second := eng.SendOrder(s, schema.DirectionLong, schema.OffsetOpen,
		decimal.NewFromInt(100), decimal.NewFromInt(1), false, false, false)
	require.Empty(t, second, "second burst-exceeding order is dropped")
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		value string
		step  string
		want  string
	}{
		{"10.26", "0.5", "10.5"},
		{"10.24", "0.5", "10"},
		{"2.6", "1", "3"},
		{"2.4", "1", "2"},
		{"7.77", "0", "7.77"},
		{"0.00013", "0.0001", "0.0001"},
	}
	for _, tc := range cases {
		got := roundTo(decimal.RequireFromString(tc.value), decimal.RequireFromString(tc.step))
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"roundTo(%s, %s) = %s, want %s", tc.value, tc.step, got, tc.want)
	}
}
