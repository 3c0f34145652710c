// Package notify posts scheduled briefings to a Slack channel. Delivery
// failures are logged and dropped; they never propagate into the analytics
// path.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// Notifier posts briefing text to one channel.
type Notifier struct {
	api     *slack.Client
	channel string
}

// New returns nil when no channel is configured, which callers treat as
// notifications disabled.
func New(api *slack.Client, channel string) *Notifier {
	if api == nil || channel == "" {
		return nil
	}
	return &Notifier{api: api, channel: channel}
}

// PostBriefing sends one briefing message.
func (n *Notifier) PostBriefing(model string, estimate float64, text string) {
	msg := fmt.Sprintf("*Forecast briefing* (%s, %.0f updates next cycle)\n%s", model, estimate, text)
	_, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("notify post error channel=%s err=%v", n.channel, err)
		return
	}
	log.Printf("notify posted channel=%s model=%s", n.channel, model)
}
