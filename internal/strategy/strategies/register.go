package strategies

import (
	"github.com/quantfold/cta/internal/strategy"
)

// RegisterAll adds every built-in strategy class to the registry.
func RegisterAll(reg *strategy.Registry) error {
	return reg.Register("ChannelBreakout", NewChannelBreakout)
}
