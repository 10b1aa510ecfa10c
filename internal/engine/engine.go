package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardpost/internal/arbiter"
	"guardpost/internal/detect"
	"guardpost/internal/logger"
	"guardpost/internal/metrics"
	"guardpost/internal/policy"
	"guardpost/internal/raid"
	"guardpost/internal/rules"
	"guardpost/internal/sched"
	"guardpost/internal/suspicion"
	"guardpost/internal/verify"
	"guardpost/pkg/models"
)

// ActionWriter emits moderation action requests to the external executor.
type ActionWriter interface {
	WriteAction(action *models.ModerationActionRequest) error
	Close() error
}

// AuditWriter emits audit events.
type AuditWriter interface {
	WriteAudit(event *models.AuditEvent) error
	Close() error
}

// DMWriter emits direct message requests.
type DMWriter interface {
	WriteDM(dm *models.DirectMessageRequest) error
	Close() error
}

// Deps wires the engine's collaborators.
type Deps struct {
	Policies  *policy.Store
	Scorer    *detect.Scorer
	Prefilter *detect.Prefilter
	Rules     rules.Engine
	Ledger    *suspicion.Ledger
	Verifier  *verify.Machine
	Timers    *sched.Scheduler

	Actions ActionWriter
	Audits  AuditWriter
	DMs     DMWriter
}

// Engine coordinates the detection components. Each handler processes one
// inbound event; cross-component effects leave only through the writers.
type Engine struct {
	policies  *policy.Store
	scorer    *detect.Scorer
	prefilter *detect.Prefilter
	rules     rules.Engine
	ledger    *suspicion.Ledger
	verifier  *verify.Machine
	timers    *sched.Scheduler

	actions ActionWriter
	audits  AuditWriter
	dms     DMWriter

	mu           sync.Mutex
	raids        map[string]*raid.Detector
	restrictions map[string]models.ActionKind
	verifyGuild  map[string]string
	verifyTokens map[string]sched.Token

	now func() time.Time
}

// New creates an engine.
func New(deps Deps) *Engine {
	e := &Engine{
		policies:     deps.Policies,
		scorer:       deps.Scorer,
		prefilter:    deps.Prefilter,
		rules:        deps.Rules,
		ledger:       deps.Ledger,
		verifier:     deps.Verifier,
		timers:       deps.Timers,
		actions:      deps.Actions,
		audits:       deps.Audits,
		dms:          deps.DMs,
		raids:        make(map[string]*raid.Detector),
		restrictions: make(map[string]models.ActionKind),
		verifyGuild:  make(map[string]string),
		verifyTokens: make(map[string]sched.Token),
		now:          time.Now,
	}
	if e.rules == nil {
		e.rules = &rules.NoopEngine{}
	}
	return e
}

// SetNow overrides the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// HandleMemberJoined processes one join: raid observation, bot scoring and
// the resulting arbitration.
func (e *Engine) HandleMemberJoined(ev *models.MemberJoined) {
	pol := e.policies.For(ev.GuildID)
	if pol.IsWhitelisted(ev.UserID) {
		logger.Debugf("Join by whitelisted user %s:%s, detection skipped", ev.GuildID, ev.UserID)
		return
	}
	det := e.raidFor(ev.GuildID, pol)

	if det.ObserveJoin(ev.GuildID, ev.Timestamp) == raid.DefenseLockdown {
		metrics.RaidLockdowns.Inc()
		metrics.Detections.WithLabelValues("raid").Inc()
		logger.Warnf("Raid lockdown engaged for guild %s (%d joins in window)", ev.GuildID, det.JoinRate(ev.GuildID))
		e.audit(&models.AuditEvent{
			GuildID:     ev.GuildID,
			Kind:        models.AuditRaidDetected,
			Description: fmt.Sprintf("join burst detected (%d joins in window), verification enforced", det.JoinRate(ev.GuildID)),
			Timestamp:   e.now(),
		})
		e.policies.EnableVerification(ev.GuildID)
		pol = e.policies.For(ev.GuildID)
	}

	snapshot := models.MemberSnapshot{
		GuildID:          ev.GuildID,
		UserID:           ev.UserID,
		DisplayName:      ev.DisplayName,
		HasAvatar:        ev.HasAvatar,
		AccountCreatedAt: ev.AccountCreatedAt,
		JoinedAt:         ev.Timestamp,
	}
	res := e.scorer.Score(snapshot, det.JoinRate(ev.GuildID))

	dec := arbiter.DecideBotScore(res.Score, pol)
	if dec.PolicyFallback {
		logger.Warnf("Policy for guild %s invalid, using verification fallback: %v", ev.GuildID, dec.PolicyErr)
		e.audit(&models.AuditEvent{
			GuildID:     ev.GuildID,
			Kind:        models.AuditPolicyFallback,
			Description: fmt.Sprintf("policy invalid (%v), verification-only fallback applied", dec.PolicyErr),
			SubjectID:   ev.UserID,
			Timestamp:   e.now(),
		})
	}

	reason := dec.Reason
	if len(res.Reasons) > 0 {
		reason = fmt.Sprintf("%s: %s", dec.Reason, strings.Join(res.Reasons, "; "))
	}

	switch dec.Verdict {
	case arbiter.VerdictBan, arbiter.VerdictKick, arbiter.VerdictQuarantine:
		e.audit(&models.AuditEvent{
			GuildID:     ev.GuildID,
			Kind:        models.AuditBotDetected,
			Description: fmt.Sprintf("bot score %d: %s", res.Score, strings.Join(res.Reasons, "; ")),
			SubjectID:   ev.UserID,
			Timestamp:   e.now(),
		})
	}

	switch dec.Verdict {
	case arbiter.VerdictBan:
		metrics.Detections.WithLabelValues("bot").Inc()
		e.emitAction(ev.GuildID, ev.UserID, models.ActionBan, 0, reason)
	case arbiter.VerdictKick:
		metrics.Detections.WithLabelValues("bot").Inc()
		e.emitAction(ev.GuildID, ev.UserID, models.ActionKick, 0, reason)
	case arbiter.VerdictQuarantine:
		metrics.Detections.WithLabelValues("bot").Inc()
		e.applyRestriction(ev.GuildID, ev.UserID, models.ActionQuarantine, dec.Duration, reason)
	case arbiter.VerdictBeginVerification:
		e.beginVerification(ev.GuildID, ev.UserID)
	}
}

// HandleMessage processes one guild message: content rules, spam pre-filter
// and suspicion escalation.
func (e *Engine) HandleMessage(ev *models.MessageReceived) {
	pol := e.policies.For(ev.GuildID)
	if pol.IsWhitelisted(ev.UserID) {
		return
	}
	key := ev.GuildID + ":" + ev.UserID

	points := 0
	var notes []string
	for _, tag := range e.rules.Apply(ev) {
		points += tag.Weight(pol.SpamIncrement)
		notes = append(notes, fmt.Sprintf("rule %s (%s)", tag.Name, tag.Severity))
		metrics.Detections.WithLabelValues("rule").Inc()
	}
	for _, flag := range e.prefilter.Check(*ev, pol) {
		points += pol.SpamIncrement
		notes = append(notes, flag.Reason)
		metrics.Detections.WithLabelValues("spam").Inc()
	}
	if points == 0 {
		return
	}

	level := e.ledger.Add(key, points)
	logger.Debugf("Suspicion for %s now %d (+%d: %s)", key, level, points, strings.Join(notes, ", "))
	e.audit(&models.AuditEvent{
		GuildID:     ev.GuildID,
		Kind:        models.AuditSpamDetected,
		Description: fmt.Sprintf("%s (suspicion %d)", strings.Join(notes, ", "), level),
		SubjectID:   ev.UserID,
		Timestamp:   e.now(),
	})

	dec := arbiter.DecideSuspicion(level, pol)
	if dec.Verdict != arbiter.VerdictTimeout {
		return
	}
	// One active timeout per user; the ledger keeps accumulating regardless.
	e.applyRestriction(ev.GuildID, ev.UserID, models.ActionTimeout, dec.Duration, dec.Reason)
}

// HandleVerificationAnswer routes one challenge reply through the machine and
// performs its side effects.
func (e *Engine) HandleVerificationAnswer(ev *models.VerificationAnswerReceived) {
	e.mu.Lock()
	guildID := e.verifyGuild[ev.UserID]
	e.mu.Unlock()

	res := e.verifier.Submit(ev.UserID, ev.RawText)
	switch res.Status {
	case verify.SubmitNotPending:
		logger.Debugf("Verification answer from %s with no pending challenge", ev.UserID)
		return
	case verify.SubmitCorrect:
		metrics.VerificationOutcomes.WithLabelValues("verified").Inc()
		e.endVerification(ev.UserID)
		e.audit(&models.AuditEvent{
			GuildID:     guildID,
			Kind:        models.AuditVerification,
			Description: "verification passed",
			SubjectID:   ev.UserID,
			Timestamp:   e.now(),
		})
	case verify.SubmitFailed:
		metrics.VerificationOutcomes.WithLabelValues("failed").Inc()
		e.endVerification(ev.UserID)
		e.audit(&models.AuditEvent{
			GuildID:     guildID,
			Kind:        models.AuditVerification,
			Description: "verification failed after three attempts",
			SubjectID:   ev.UserID,
			Timestamp:   e.now(),
		})
	}

	e.applyVerifyEffects(guildID, res.Effects)
}

// HandleActionResult records the executor's report for an earlier request.
// Failures are audited once and never retried.
func (e *Engine) HandleActionResult(ev *models.ActionResultReceived) {
	key := ev.GuildID + ":" + ev.UserID

	if ev.Result != models.ResultApplied {
		metrics.ActionFailures.WithLabelValues(string(ev.Result)).Inc()
		logger.Warnf("Executor reported %s for %s on %s", ev.Result, ev.Kind, key)
		e.audit(&models.AuditEvent{
			GuildID:     ev.GuildID,
			Kind:        models.AuditActionFailed,
			Description: fmt.Sprintf("executor reported %s for %s (request %s)", ev.Result, ev.Kind, ev.RequestID),
			SubjectID:   ev.UserID,
			Timestamp:   e.now(),
		})
		// A restriction that never took effect must not block the next
		// arbitration or fire a reversal for nothing.
		switch ev.Kind {
		case models.ActionTimeout:
			if e.clearRestriction(key, models.ActionTimeout) {
				e.timers.CancelKind(key, sched.KindTimeoutReversal)
			}
		case models.ActionQuarantine:
			if e.clearRestriction(key, models.ActionQuarantine) {
				e.timers.CancelKind(key, sched.KindQuarantineReversal)
			}
		}
		return
	}

	switch ev.Kind {
	case models.ActionKick, models.ActionBan:
		// Subject left the guild; drop all local state, including any
		// verification challenge still pending.
		e.mu.Lock()
		delete(e.restrictions, key)
		delete(e.verifyGuild, ev.UserID)
		delete(e.verifyTokens, ev.UserID)
		e.mu.Unlock()
		e.timers.CancelAll(key)
		e.verifier.Drop(ev.UserID)
		e.prefilter.Forget(key)
		e.ledger.Reset(key)
	case models.ActionRemoveQuarantine, models.ActionRemoveTimeout:
		e.clearRestriction(key, reversalTarget(ev.Kind))
	}
}

// HandleRestrictionCleared processes a manual reversal done outside the
// engine, cancelling the matching reversal timer.
func (e *Engine) HandleRestrictionCleared(ev *models.RestrictionCleared) {
	key := ev.GuildID + ":" + ev.UserID
	if !e.clearRestriction(key, ev.Kind) {
		return
	}
	logger.Infof("Restriction %s on %s cleared manually", ev.Kind, key)
	timerKind := sched.KindTimeoutReversal
	if ev.Kind == models.ActionQuarantine {
		timerKind = sched.KindQuarantineReversal
	}
	e.timers.CancelKind(key, timerKind)
}

func (e *Engine) raidFor(guildID string, pol policy.Policy) *raid.Detector {
	e.mu.Lock()
	defer e.mu.Unlock()
	det, ok := e.raids[guildID]
	if !ok {
		det = raid.NewDetector(raid.Config{Window: pol.JoinWindow, MaxJoins: pol.MaxJoins})
		e.raids[guildID] = det
	}
	return det
}

func (e *Engine) beginVerification(guildID, userID string) {
	ch, created := e.verifier.Begin(userID)

	e.mu.Lock()
	e.verifyGuild[userID] = guildID
	e.mu.Unlock()

	e.dm(&models.DirectMessageRequest{
		UserID: userID,
		Kind:   models.DMChallenge,
		Text:   fmt.Sprintf("Please verify to participate. %s", ch.Question),
	})
	if !created {
		// Challenge and its expiry timer already exist; only the DM was replayed.
		return
	}

	// Keyed like restriction timers so a kick or ban cancels the expiry too.
	key := guildID + ":" + userID
	token := e.timers.Schedule(key, sched.KindVerificationExpiry, ch.Deadline.Sub(e.now()), func() {
		res := e.verifier.Expire(userID, ch.ID)
		if res.Status != verify.ExpireExpired {
			return
		}
		metrics.VerificationOutcomes.WithLabelValues("expired").Inc()
		e.mu.Lock()
		guild := e.verifyGuild[userID]
		delete(e.verifyGuild, userID)
		delete(e.verifyTokens, userID)
		e.mu.Unlock()
		e.audit(&models.AuditEvent{
			GuildID:     guild,
			Kind:        models.AuditVerification,
			Description: "verification timed out",
			SubjectID:   userID,
			Timestamp:   e.now(),
		})
		e.applyVerifyEffects(guild, res.Effects)
	})

	e.mu.Lock()
	e.verifyTokens[userID] = token
	e.mu.Unlock()
}

func (e *Engine) endVerification(userID string) {
	e.mu.Lock()
	token, hasToken := e.verifyTokens[userID]
	delete(e.verifyTokens, userID)
	delete(e.verifyGuild, userID)
	e.mu.Unlock()
	if hasToken {
		e.timers.Cancel(token)
	}
}

func (e *Engine) applyVerifyEffects(guildID string, effects []verify.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case verify.EffectSendChallenge, verify.EffectSendResult:
			kind := models.DMResult
			if eff.Kind == verify.EffectSendChallenge {
				kind = models.DMChallenge
			}
			e.dm(&models.DirectMessageRequest{UserID: eff.UserID, Kind: kind, Text: eff.Text})
		case verify.EffectLiftRestriction:
			key := guildID + ":" + eff.UserID
			if e.clearRestriction(key, models.ActionQuarantine) {
				e.emitAction(guildID, eff.UserID, models.ActionRemoveQuarantine, 0, "verification passed")
			}
		case verify.EffectKick:
			e.emitAction(guildID, eff.UserID, models.ActionKick, 0, "verification not completed")
		}
	}
}

// applyRestriction emits a reversible action and arms its reversal timer. The
// marker is set and checked in one critical section so concurrent handlers for
// the same user cannot both emit the action.
func (e *Engine) applyRestriction(guildID, userID string, kind models.ActionKind, duration time.Duration, reason string) {
	key := guildID + ":" + userID

	e.mu.Lock()
	if e.restrictions[key] == kind {
		e.mu.Unlock()
		return
	}
	e.restrictions[key] = kind
	e.mu.Unlock()

	e.emitAction(guildID, userID, kind, duration, reason)
	if duration <= 0 {
		return
	}

	timerKind := sched.KindTimeoutReversal
	reversal := models.ActionRemoveTimeout
	if kind == models.ActionQuarantine {
		timerKind = sched.KindQuarantineReversal
		reversal = models.ActionRemoveQuarantine
	}

	e.timers.Schedule(key, timerKind, duration, func() {
		// The restriction may have been cleared manually while we slept.
		if !e.clearRestriction(key, kind) {
			return
		}
		e.emitAction(guildID, userID, reversal, 0, fmt.Sprintf("%s expired", kind))
	})
}

func (e *Engine) clearRestriction(key string, kind models.ActionKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restrictions[key] != kind {
		return false
	}
	delete(e.restrictions, key)
	return true
}

func (e *Engine) emitAction(guildID, userID string, kind models.ActionKind, duration time.Duration, reason string) {
	req := &models.ModerationActionRequest{
		RequestID: uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		Kind:      kind,
		Duration:  duration,
		Reason:    reason,
		IssuedAt:  e.now(),
	}
	if err := e.actions.WriteAction(req); err != nil {
		logger.Errorf("Failed to write action %s for %s:%s: %v", kind, guildID, userID, err)
		return
	}
	metrics.ActionsRequested.WithLabelValues(string(kind)).Inc()
	e.audit(&models.AuditEvent{
		GuildID:     guildID,
		Kind:        models.AuditActionRequested,
		Description: fmt.Sprintf("%s requested: %s", kind, reason),
		SubjectID:   userID,
		Timestamp:   e.now(),
	})
}

func (e *Engine) audit(event *models.AuditEvent) {
	if e.audits == nil {
		return
	}
	if err := e.audits.WriteAudit(event); err != nil {
		logger.Errorf("Failed to write audit event: %v", err)
	}
}

func (e *Engine) dm(dm *models.DirectMessageRequest) {
	if e.dms == nil {
		return
	}
	if err := e.dms.WriteDM(dm); err != nil {
		logger.Errorf("Failed to write dm for %s: %v", dm.UserID, err)
	}
}

func reversalTarget(kind models.ActionKind) models.ActionKind {
	if kind == models.ActionRemoveQuarantine {
		return models.ActionQuarantine
	}
	return models.ActionTimeout
}
