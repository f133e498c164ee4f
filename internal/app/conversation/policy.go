package conversation

import (
	"context"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// Everything in this file runs on the event loop.

// startSession makes a fresh session current and resets the per-session policy state.
func (o *Orchestrator) startSession(ctx context.Context, origin string) domain.SessionID {
	o.teardown()
	h := o.state.Create(ctx)
	o.offerArmed = true

	o.metrics.SessionStarted(ctx, origin)
	o.publish(Event{Kind: EventSessionStarted, SessionID: h})

	log := o.logger(h)
	log.Info().Str("origin", origin).Msg("session created")
	return h
}

// teardown cancels everything scheduled for the current session.
func (o *Orchestrator) teardown() {
	o.channel.Unbind()
	o.counter.Stop()
	o.stopReadTimer()
	o.cancelReplies()
	o.pending = nil
	o.topicsShown = false
	o.offerPending = false
	o.offerArmed = false
}

// bindChannel connects h to the responder channel. A fresh session is always
// disconnected, so the wait-time counter starts with it.
func (o *Orchestrator) bindChannel(h domain.SessionID) {
	o.channel.Bind(h, func(ev domain.ChannelEvent) {
		o.post(func() { o.handleChannelEvent(ev) })
	})
	if snap, ok := o.state.Snapshot(h); ok && !snap.IsConnected {
		o.startWaitCounter(h)
	}
}

// startWaitCounter ticks the wait time of h. The tick is bound to h: once h
// is no longer current its ticks are ignored.
func (o *Orchestrator) startWaitCounter(h domain.SessionID) {
	o.counter.Start(func() {
		o.post(func() { o.onWaitTick(h) })
	})
}

func (o *Orchestrator) onWaitTick(h domain.SessionID) {
	n, ok := o.state.IncrementWaitTime(h)
	if !ok {
		return
	}
	o.publish(Event{Kind: EventWaitTimeChanged, SessionID: h, WaitTime: n})

	if n >= o.policy.AIHelpThreshold && o.offerArmed {
		o.offerArmed = false
		o.offerPending = true
		o.metrics.AIHelpOffered(o.runCtx)
		o.publish(Event{Kind: EventAIHelpOffered, SessionID: h, WaitTime: n})

		log := o.logger(h)
		log.Info().Int("wait_time", n).Msg("ai help offered")
	}
}

func (o *Orchestrator) handleChannelEvent(ev domain.ChannelEvent) {
	h := o.state.CurrentID()
	if h == "" || ev.SessionID != h {
		log := o.logger(ev.SessionID)
		log.Debug().Str("kind", string(ev.Kind)).Msg("channel event for inactive session ignored")
		return
	}

	switch ev.Kind {
	case domain.ChannelConnected:
		o.counter.Stop()
		o.offerPending = false
		if o.state.SetConnectionStatus(h, true) {
			o.publish(Event{Kind: EventConnectionChanged, SessionID: h, Connected: true})
		}
		o.flushPending(h)

	case domain.ChannelDisconnected:
		if o.state.SetConnectionStatus(h, false) {
			o.publish(Event{Kind: EventConnectionChanged, SessionID: h, Connected: false})
			o.startWaitCounter(h)
		}

	case domain.ChannelInbound:
		o.metrics.InboundMessage(o.runCtx)
		if _, ok := o.appendMessage(h, ev.Text, domain.SenderAI); !ok {
			return
		}
		if o.state.MessageCount(h) <= 2 {
			o.showTopics(h)
		}
	}
}

// appendMessage adds a turn to h and schedules read receipts for AI turns.
func (o *Orchestrator) appendMessage(h domain.SessionID, text string, sender domain.Sender) (domain.Message, bool) {
	msg, ok := o.state.AppendMessage(h, text, sender)
	if !ok {
		return domain.Message{}, false
	}
	o.publish(Event{Kind: EventMessageAppended, SessionID: h, Message: &msg})
	if sender == domain.SenderAI {
		o.scheduleReadReceipts(h)
	}
	return msg, true
}

func (o *Orchestrator) showTopics(h domain.SessionID) {
	if len(o.script.Topics) == 0 {
		return
	}
	o.topicsShown = true
	o.publish(Event{
		Kind:      EventTopicSuggestions,
		SessionID: h,
		Topics:    append([]string(nil), o.script.Topics...),
	})
}

func (o *Orchestrator) clearTopics(h domain.SessionID) {
	if !o.topicsShown {
		return
	}
	o.topicsShown = false
	o.publish(Event{Kind: EventTopicSuggestionsCleared, SessionID: h})
}

// scheduleReadReceipts arms one settle timer for the messages unread right
// now. While it is pending new arrivals wait for the next batch.
func (o *Orchestrator) scheduleReadReceipts(h domain.SessionID) {
	if o.readTimer != nil {
		return
	}
	ids := o.state.UnreadIDs(h)
	if len(ids) == 0 {
		return
	}

	o.readGen++
	gen := o.readGen
	o.readTimer = o.clock.AfterFunc(o.policy.ReadSettleDelay, func() {
		o.post(func() { o.markBatchRead(gen, h, ids) })
	})
}

func (o *Orchestrator) markBatchRead(gen uint64, h domain.SessionID, ids []domain.MessageID) {
	if gen != o.readGen {
		return
	}
	o.readTimer = nil

	for _, id := range ids {
		if o.state.MarkRead(h, id) {
			o.publish(Event{Kind: EventMessageRead, SessionID: h, MessageID: id})
		}
	}
	o.scheduleReadReceipts(h)
}

func (o *Orchestrator) stopReadTimer() {
	if o.readTimer != nil {
		o.readTimer.Stop()
		o.readTimer = nil
	}
	o.readGen++
}

// flushPending requests the replies held back while h was disconnected.
func (o *Orchestrator) flushPending(h domain.SessionID) {
	if len(o.pending) == 0 {
		return
	}
	snap, ok := o.state.Snapshot(h)
	if !ok {
		return
	}

	queued := o.pending
	o.pending = nil
	for _, p := range queued {
		if p.session == h {
			o.requestReply(h, snap, p.text)
		}
	}
}

// requestReply queues a reply for text and fetches it off the loop.
func (o *Orchestrator) requestReply(h domain.SessionID, snap domain.Session, text string) {
	req := &replyRequest{session: h, text: text, gen: o.replyGen}
	o.replies = append(o.replies, req)

	ctx := o.runCtx
	serviceID, risk := snap.ServiceID(), snap.RiskLevel
	go func() {
		reply, err := o.messaging.SendChatMessage(ctx, serviceID, risk, text)
		o.post(func() { o.onReply(req, reply, err) })
	}()
}

func (o *Orchestrator) onReply(req *replyRequest, reply string, err error) {
	if req.gen != o.replyGen {
		return
	}
	req.resolved, req.reply, req.err = true, reply, err
	o.nextReply()
}

// nextReply displays the oldest outstanding reply once its fetch is done.
// Only one reply is typed at a time; later ones wait their turn.
func (o *Orchestrator) nextReply() {
	for o.replyTimer == nil && len(o.replies) > 0 && o.replies[0].resolved {
		req := o.replies[0]
		log := o.logger(req.session)

		if req.err != nil {
			o.replies = o.replies[1:]
			log.Error().Err(req.err).Msg("reply fetch failed")
			o.metrics.SendFailed(o.runCtx)
			o.publish(Event{Kind: EventSendFailed, SessionID: req.session, Error: req.err.Error(), Input: req.text})
			continue
		}
		if o.state.CurrentID() != req.session {
			o.replies = o.replies[1:]
			log.Debug().Msg("reply for inactive session dropped")
			continue
		}

		gen := o.replyGen
		o.replyTimer = o.clock.AfterFunc(o.policy.ReplyDelay, func() {
			o.post(func() {
				if gen != o.replyGen || len(o.replies) == 0 {
					return
				}
				o.replyTimer = nil
				o.replies = o.replies[1:]
				o.appendMessage(req.session, req.reply, domain.SenderAI)
				o.nextReply()
			})
		})
		o.publish(Event{Kind: EventAgentTyping, SessionID: req.session})
	}
}

func (o *Orchestrator) cancelReplies() {
	if o.replyTimer != nil {
		o.replyTimer.Stop()
		o.replyTimer = nil
	}
	o.replies = nil
	o.replyGen++
}
