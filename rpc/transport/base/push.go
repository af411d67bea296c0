package base

import (
	"github.com/ValentinKolb/rKV/rpc/resp"
	"strings"
)

// subscription confirmations and the family (subscribe command) they belong to
var confirmationFamilies = map[string]string{
	"subscribe":    "subscribe",
	"unsubscribe":  "subscribe",
	"psubscribe":   "psubscribe",
	"punsubscribe": "psubscribe",
	"ssubscribe":   "ssubscribe",
	"sunsubscribe": "ssubscribe",
}

// messages delivered to subscribers
var messageMarkers = map[string]bool{
	"message":  true,
	"pmessage": true,
	"smessage": true,
}

// pushMarker returns the lower case first element of an aggregate frame
func pushMarker(frame resp.Frame) string {
	if len(frame.Elems) == 0 {
		return ""
	}
	head := frame.Elems[0]
	if head.Kind != resp.KindBulk && head.Kind != resp.KindStatus {
		return ""
	}
	return strings.ToLower(string(head.Str))
}

// routeLocked matches a decoded frame against the oldest open entry.
// It returns true when the frame is a push that belongs to no entry.
//
// RESP3 marks pushes with their own frame kind, arrays are always replies there. In RESP2
// pub/sub traffic is made of plain arrays, which are only inspected while subscriptions are
// active or a subscription command waits for its confirmations.
func (c *nodeConnection) routeLocked(frame resp.Frame) bool {
	target := c.firstOpenLocked()

	legacy := c.params.Protocol != 3 && frame.Kind == resp.KindArray &&
		(c.subscriptions > 0 || (target != nil && target.subscription != ""))
	pubsub := frame.Kind == resp.KindPush || legacy

	if pubsub {
		marker := pushMarker(frame)
		if family, ok := confirmationFamilies[marker]; ok {
			c.trackSubscriptionLocked(marker, family, frame)
			if target == nil || target.subscription != marker {
				pushFramesRead.Inc()
				return true
			}

			if target.all && len(target.replies) == 0 {
				// one confirmation per channel that was active, or a single one when there was none
				target.confirmations = len(c.channels[family]) + 1
			}
			target.replies = append(target.replies, frame)
			if len(target.replies) >= target.confirmations || (target.all && c.channelCount(family) == 0) {
				c.completeLocked(target)
			}
			return false
		}
		if messageMarkers[marker] || frame.Kind == resp.KindPush {
			pushFramesRead.Inc()
			return true
		}
	}

	if target == nil {
		Logger.Warningf("Dropping unsolicited %s frame from %s", frame.Kind, c)
		pushFramesRead.Inc()
		return true
	}
	target.replies = append(target.replies, frame)
	c.completeLocked(target)
	return false
}

// trackSubscriptionLocked updates the channel bookkeeping from a confirmation.
// Confirmations carry the channel and the total number of active subscriptions.
func (c *nodeConnection) trackSubscriptionLocked(marker, family string, frame resp.Frame) {
	if len(frame.Elems) >= 3 && frame.Elems[2].Kind == resp.KindInteger {
		c.subscriptions = frame.Elems[2].Int
	}
	if len(frame.Elems) < 2 || frame.Elems[1].IsNull() {
		return
	}

	channel := string(frame.Elems[1].Str)
	if marker == family {
		if c.channels[family] == nil {
			c.channels[family] = make(map[string]struct{})
		}
		c.channels[family][channel] = struct{}{}
	} else {
		delete(c.channels[family], channel)
	}
}

func (c *nodeConnection) channelCount(family string) int {
	return len(c.channels[family])
}

func (c *nodeConnection) completeLocked(e *pendingEntry) {
	e.done = true
	repliesRead.Inc()
	replyDuration.UpdateDuration(e.started)
}
