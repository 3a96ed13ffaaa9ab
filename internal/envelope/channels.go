package envelope

// Channel is a logical bus channel name. Channels are flat: subscription is
// by exact string match, there is no hierarchy or wildcarding.
type Channel string

// The fixed channel registry. Every agent subscribes to a subset of these;
// the orchestrator publishes control and consumes heartbeat/alerts.
const (
	ChannelMarketData   Channel = "market_data"
	ChannelSignals      Channel = "signals"
	ChannelRiskCheck    Channel = "risk_check"
	ChannelRiskApproved Channel = "risk_approved"
	ChannelRiskRejected Channel = "risk_rejected"
	ChannelExecution    Channel = "execution"
	ChannelFills        Channel = "fills"
	ChannelHeartbeat    Channel = "heartbeat"
	ChannelControl      Channel = "control"
	ChannelAlerts       Channel = "alerts"
)

// Channels lists the full registry in a stable order, e.g. for validation
// or enumeration in diagnostics.
var Channels = []Channel{
	ChannelMarketData,
	ChannelSignals,
	ChannelRiskCheck,
	ChannelRiskApproved,
	ChannelRiskRejected,
	ChannelExecution,
	ChannelFills,
	ChannelHeartbeat,
	ChannelControl,
	ChannelAlerts,
}

// IsValidChannel reports whether ch is a member of the fixed registry.
func IsValidChannel(ch string) bool {
	for _, c := range Channels {
		if string(c) == ch {
			return true
		}
	}
	return false
}
