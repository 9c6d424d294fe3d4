package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSide(t *testing.T) {
	assert.True(t, SideBuy.IsAvailable())
	assert.True(t, SideSell.IsAvailable())
	assert.False(t, Side(0).IsAvailable())
	assert.False(t, _side_end.IsAvailable())

	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, "buy", SideBuy.String())
	assert.Equal(t, "sell", SideSell.String())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPlaced.Terminal())
	assert.False(t, OrderStatusPartialFilled.Terminal())
	assert.True(t, OrderStatusFilled.Terminal())
	assert.True(t, OrderStatusCanceled.Terminal())
}

func TestPermissionAllows(t *testing.T) {
	assert.True(t, PermissionBoth.Allows(SideBuy))
	assert.True(t, PermissionBoth.Allows(SideSell))
	assert.False(t, PermissionBoth.Allows(Side(0)))

	assert.True(t, PermissionBuy.Allows(SideBuy))
	assert.False(t, PermissionBuy.Allows(SideSell))

	assert.True(t, PermissionSell.Allows(SideSell))
	assert.False(t, PermissionSell.Allows(SideBuy))
}
