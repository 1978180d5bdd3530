package twilio

import (
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/providers/twilioapi"
	"github.com/goliatone/go-twilio/transport"
)

func TwilioProvider(cfg twilioapi.Config) core.Provider {
	return twilioapi.New(cfg)
}

// TwilioProviderFactory returns a factory that reads credentials from the
// resolved config. A nil doer uses the default REST transport.
func TwilioProviderFactory(doer transport.Doer) core.ProviderFactory {
	return func(cfg core.Config) (core.Provider, error) {
		return twilioapi.NewFromConfig(cfg, doer), nil
	}
}
