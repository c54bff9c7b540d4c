// internal/agent/orchestrator.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

// Options are the tuning knobs the orchestrator reads from configuration.
type Options struct {
	MaxIterations   int
	MaxRetries      int
	RetryBackoff    time.Duration
	ProviderTimeout time.Duration
	ConfirmTimeout  time.Duration
	OffsetTapPixels int
	ScreenWidth     int
	ScreenHeight    int
}

// OptionsFromConfig projects the loaded configuration onto orchestrator
// options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxIterations:   cfg.Agent.MaxIterations,
		MaxRetries:      cfg.Agent.MaxRetries,
		RetryBackoff:    cfg.Agent.RetryBackoff,
		ProviderTimeout: cfg.Agent.ProviderTimeout,
		ConfirmTimeout:  cfg.Agent.ConfirmTimeout,
		OffsetTapPixels: cfg.Agent.OffsetTapPixels,
		ScreenWidth:     cfg.Device.ScreenWidth,
		ScreenHeight:    cfg.Device.ScreenHeight,
	}
}

// Collaborators bundles the external capabilities a task drives.
type Collaborators struct {
	Device   DeviceBridge
	Vision   VisionProvider
	Speech   SpeechInput
	Speaker  Speaker
	Registry AppRegistry
	// Sink is optional; nil disables transcript persistence.
	Sink TranscriptSink
}

// Hooks receive lifecycle notifications. All fields are optional.
type Hooks struct {
	OnTransition func(taskID string, from, to Node)
	OnRecovery   func(taskID string, kind ErrorKind, decision Decision)
	OnTaskDone   func(result TaskResult)
}

// Orchestrator runs one task at a time through the node sequence
// OBSERVE -> ANALYZE -> (AUTHENTICATE) -> ACT -> VERIFY -> (CONFIRM_ACTION)
// -> RESPOND. The node set and its edges are fixed at compile time; each
// step is a pure function of the current node and the session state, plus
// the collaborator call it issues.
type Orchestrator struct {
	opts   Options
	log    *zap.Logger
	collab Collaborators

	parser *Parser
	auth   *Authenticator
	policy *Policy

	lease taskLease
	hooks Hooks
}

// NewOrchestrator wires the task engine. The logger may be nil, in which case
// the process logger is used.
func NewOrchestrator(opts Options, collab Collaborators, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = observability.GetLogger().Named("agent")
	}
	return &Orchestrator{
		opts:   opts,
		log:    log,
		collab: collab,
		parser: NewParser(collab.Registry),
		auth:   NewAuthenticator(collab.Device),
		policy: NewPolicy(opts.MaxRetries, opts.RetryBackoff),
	}
}

// SetHooks installs lifecycle callbacks. Call before the first task.
func (o *Orchestrator) SetHooks(h Hooks) { o.hooks = h }

// Busy reports whether a task currently holds the execution lease, and its
// ID if so.
func (o *Orchestrator) Busy() (string, bool) { return o.lease.Holder() }

// ProcessCommand runs one utterance to terminal status. It returns
// ErrAgentBusy without touching the running task if another task holds the
// lease. Any other outcome, including failure, is reported through the
// TaskResult rather than the error return.
func (o *Orchestrator) ProcessCommand(ctx context.Context, rawInput string) (TaskResult, error) {
	taskID := uuid.NewString()
	if err := o.lease.Acquire(taskID); err != nil {
		return TaskResult{}, err
	}
	defer o.lease.Release(taskID)

	start := time.Now()
	st := newSessionState(taskID, rawInput)
	log := o.log.With(zap.String("task_id", taskID))
	log.Info("task started", zap.String("input", rawInput))

	// The parser is pure, so intent extraction happens before any device or
	// vision traffic. Small talk never reaches the screen.
	st.SetIntent(o.parser.Parse(rawInput))

	var node Node
	if st.Intent.Action == ActionConversational {
		st.Result = o.parser.CannedReply(st.Intent.Query)
		st.Status = StatusSucceeded
		node = NodeRespond
	} else {
		node = o.enterObserve(st)
	}

	for {
		if err := ctx.Err(); err != nil && node != NodeRespond {
			st.Fail(ErrKindCancelled, "task cancelled")
			node = o.transition(st, node, NodeRespond)
		}

		if node == NodeRespond {
			break
		}

		next, err := o.step(ctx, st, node)
		if err != nil {
			next = o.handleNodeError(ctx, st, node, err)
		} else {
			st.NodeSucceeded()
		}
		node = o.transition(st, node, next)
	}

	o.respond(ctx, st)

	result := TaskResult{
		TaskID:     st.TaskID,
		Input:      st.RawInput,
		Action:     st.Intent.Action,
		Status:     st.Status,
		Response:   st.Result,
		Iterations: st.IterationCount,
		Duration:   time.Since(start),
	}
	if st.LastError != nil && st.Status == StatusFailed {
		result.ErrorKind = st.LastError.Kind
	}

	log.Info("task finished",
		zap.String("status", string(st.Status)),
		zap.Int("iterations", st.IterationCount),
		zap.Duration("duration", result.Duration))

	if o.hooks.OnTaskDone != nil {
		o.hooks.OnTaskDone(result)
	}
	if o.collab.Sink != nil {
		if err := o.collab.Sink.SaveTranscript(context.WithoutCancel(ctx), result); err != nil {
			log.Warn("transcript save failed", zap.Error(err))
		}
	}
	return result, nil
}

// step executes one node's entry action and names the successor.
func (o *Orchestrator) step(ctx context.Context, st *SessionState, node Node) (Node, error) {
	switch node {
	case NodeObserve:
		return o.observe(ctx, st)
	case NodeAnalyze:
		return o.analyze(st), nil
	case NodeAuthenticate:
		return o.authenticate(ctx, st)
	case NodeAct:
		return o.act(ctx, st)
	case NodeVerify:
		return o.verify(ctx, st)
	case NodeConfirm:
		return o.confirmAction(ctx, st)
	default:
		return NodeRespond, nil
	}
}

// transition records a node change and fires the hook.
func (o *Orchestrator) transition(st *SessionState, from, to Node) Node {
	if from != to && o.hooks.OnTransition != nil {
		o.hooks.OnTransition(st.TaskID, from, to)
	}
	return to
}

// enterObserve is the single gate onto OBSERVE. Every entry counts one full
// traversal against the iteration budget, so no sequence of node outcomes
// can loop unboundedly.
func (o *Orchestrator) enterObserve(st *SessionState) Node {
	if st.IterationCount >= o.opts.MaxIterations {
		st.Fail(ErrKindIterationLimit,
			fmt.Sprintf("exceeded %d iterations", o.opts.MaxIterations))
		return NodeRespond
	}
	st.IterationCount++
	return NodeObserve
}

// observe captures the screen and runs vision analysis.
func (o *Orchestrator) observe(ctx context.Context, st *SessionState) (Node, error) {
	obs, err := o.captureAndAnalyze(ctx)
	if err != nil {
		return NodeObserve, err
	}
	st.Screen = &obs
	return NodeAnalyze, nil
}

func (o *Orchestrator) captureAndAnalyze(ctx context.Context) (ScreenObservation, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()
	img, err := o.collab.Device.Capture(cctx)
	if err != nil {
		return ScreenObservation{}, NewError(ErrKindDeviceCommandFailed, "screen capture: "+err.Error(), true)
	}

	actx, cancel2 := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel2()
	obs, err := o.collab.Vision.Analyze(actx, img)
	if err != nil {
		return ScreenObservation{}, NewError(ErrKindProviderUnavailable, "vision analysis: "+err.Error(), true)
	}
	return obs, nil
}

// analyze routes on the current observation. Pure and non-failing.
func (o *Orchestrator) analyze(st *SessionState) Node {
	if st.Screen != nil && st.Screen.IsLoginScreen && st.Auth.Stage != StageComplete {
		return NodeAuthenticate
	}
	// A sign-in that was underway is finished the moment the screen stops
	// being a login screen; most flows end after the password, without OTP.
	if st.Auth.Stage != StageNone {
		st.Auth.Advance(StageComplete)
	}
	return NodeAct
}

// authenticate performs exactly one credential exchange per visit: classify
// the screen, speak one prompt, capture one utterance, submit it, then
// re-enter OBSERVE to see where the flow landed. The credential lives only
// inside this frame.
func (o *Orchestrator) authenticate(ctx context.Context, st *SessionState) (Node, error) {
	stage := o.auth.ClassifyStage(*st.Screen)
	st.Auth.Advance(stage)
	o.log.Info("credential stage", zap.String("task_id", st.TaskID), zap.String("stage", string(st.Auth.Stage)))

	o.speak(ctx, st, o.auth.Prompt(st.Auth.Stage))

	lctx, cancel := context.WithTimeout(ctx, o.opts.ConfirmTimeout)
	credential, err := o.collab.Speech.Listen(lctx)
	cancel()
	if err != nil || strings.TrimSpace(credential) == "" {
		msg := "no credential heard"
		if err != nil {
			msg = "speech capture: " + err.Error()
		}
		return NodeAuthenticate, NewError(ErrKindProviderUnavailable, msg, true)
	}

	if err := o.auth.Submit(ctx, *st.Screen, st.Auth.Stage, credential); err != nil {
		return NodeAuthenticate, err
	}
	if st.Auth.Stage == StageAwaitingOTP {
		st.Auth.Advance(StageComplete)
	}
	return o.enterObserve(st), nil
}

// act dispatches the single device action the intent calls for.
func (o *Orchestrator) act(ctx context.Context, st *SessionState) (Node, error) {
	// A query queued by a prior app launch takes precedence: this traversal
	// exists to type it.
	if st.PendingQuery != "" {
		if err := o.typeIntoField(ctx, st, st.PendingQuery); err != nil {
			return NodeAct, err
		}
		st.PendingQuery = ""
		// The launch message is stale now; VERIFY reports what the query
		// produced instead.
		st.Result = ""
		return NodeVerify, nil
	}

	switch st.Intent.Action {
	case ActionOpenApp:
		pkg, ok := o.collab.Registry.Resolve(st.Intent.Target)
		if !ok {
			return NodeAct, NewError(ErrKindElementNotFound,
				"no installed app matches "+st.Intent.Target, false)
		}
		dctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
		err := o.collab.Device.LaunchApp(dctx, pkg)
		cancel()
		if err != nil {
			return NodeAct, NewError(ErrKindDeviceCommandFailed, "launch "+pkg+": "+err.Error(), true)
		}
		st.PendingQuery = st.Intent.Query
		st.Result = "Opened " + st.Intent.Target + "."
		return NodeVerify, nil

	case ActionSearch, ActionQuery:
		if err := o.typeIntoField(ctx, st, st.Intent.Query); err != nil {
			return NodeAct, err
		}
		return NodeVerify, nil

	case ActionExtract:
		st.Result = st.Screen.Description
		st.Status = StatusSucceeded
		return NodeRespond, nil

	case ActionSystem:
		dctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
		err := o.collab.Device.Home(dctx)
		cancel()
		if err != nil {
			return NodeAct, NewError(ErrKindDeviceCommandFailed, "go home: "+err.Error(), true)
		}
		st.Result = "Done, back on the home screen."
		st.Status = StatusSucceeded
		return NodeRespond, nil

	default:
		st.Result = st.Intent.Query
		st.Status = StatusSucceeded
		return NodeRespond, nil
	}
}

// typeIntoField finds an input field on the current screen, taps it, types
// the text, and confirms with enter.
func (o *Orchestrator) typeIntoField(ctx context.Context, st *SessionState, text string) error {
	field, ok := findInputField(st.Screen)
	if !ok {
		return NewError(ErrKindElementNotFound, "no input field on screen", true)
	}
	if err := o.tapElement(ctx, st, field); err != nil {
		return err
	}
	dctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()
	if err := o.collab.Device.TypeText(dctx, text); err != nil {
		return NewError(ErrKindDeviceCommandFailed, "type text: "+err.Error(), true)
	}
	if err := o.collab.Device.PressKey(dctx, "KEYCODE_ENTER"); err != nil {
		return NewError(ErrKindDeviceCommandFailed, "press enter: "+err.Error(), true)
	}
	return nil
}

// tapElement validates, clamps, and dispatches a tap, applying any armed
// recovery nudge.
func (o *Orchestrator) tapElement(ctx context.Context, st *SessionState, el Element) error {
	if el.X == 0 && el.Y == 0 {
		return NewError(ErrKindElementNotFound, "element has no coordinates: "+el.Description, true)
	}
	nudge := st.TakeTapNudge()
	x := clamp(el.X+nudge, 0, o.opts.ScreenWidth-1)
	y := clamp(el.Y+nudge, 0, o.opts.ScreenHeight-1)
	st.lastTap = &el

	dctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()
	if err := o.collab.Device.Tap(dctx, x, y); err != nil {
		return NewError(ErrKindDeviceCommandFailed, fmt.Sprintf("tap (%d,%d): %v", x, y, err), true)
	}
	return nil
}

// verify re-observes the screen after an action and decides whether a human
// needs to approve the next step.
func (o *Orchestrator) verify(ctx context.Context, st *SessionState) (Node, error) {
	obs, err := o.captureAndAnalyze(ctx)
	if err != nil {
		return NodeVerify, err
	}
	st.Screen = &obs

	if el, ok := importantAction(&obs); ok {
		st.FlagConfirmation(&el)
		return NodeConfirm, nil
	}

	if st.PendingQuery != "" {
		return o.enterObserve(st), nil
	}

	if st.Result == "" {
		st.Result = obs.Description
	}
	st.Status = StatusSucceeded
	return NodeRespond, nil
}

// affirmatives is the closed set of phrases accepted as user approval.
var affirmatives = []string{"yes", "okay", "ok", "continue", "proceed", "go ahead", "sure"}

// confirmAction gets the user's verdict on a flagged button. A negative or
// unclear answer is a normal outcome: the task succeeds without tapping.
// The decision step itself is never retried.
func (o *Orchestrator) confirmAction(ctx context.Context, st *SessionState) (Node, error) {
	pending := st.PendingTap
	if !st.TakeConfirmation() || pending == nil {
		return NodeRespond, nil
	}

	question := st.Screen.Description + " Should I tap " + pending.Description + "?"
	o.speak(ctx, st, question)

	lctx, cancel := context.WithTimeout(ctx, o.opts.ConfirmTimeout)
	answer, err := o.collab.Speech.Listen(lctx)
	cancel()
	if err != nil {
		st.Fail(ErrKindProviderUnavailable, "confirmation not heard: "+err.Error())
		return NodeRespond, nil
	}

	if !isAffirmative(answer) {
		o.log.Info("confirmation declined", zap.String("task_id", st.TaskID))
		st.PendingTap = nil
		st.Result = "Okay, I won't do that."
		st.Status = StatusSucceeded
		return NodeRespond, nil
	}

	// The user already approved; a failed tap here is terminal rather than a
	// reason to re-ask.
	if err := o.tapElement(ctx, st, *pending); err != nil {
		st.Fail(KindOf(err), err.Error())
		return NodeRespond, nil
	}
	st.PendingTap = nil
	if st.Result == "" {
		st.Result = "Done."
	}
	st.Status = StatusSucceeded
	return NodeRespond, nil
}

// respond voices the terminal result. Failures surface as concise messages
// keyed by error kind; no response string ever carries a credential because
// nothing upstream retains one.
func (o *Orchestrator) respond(ctx context.Context, st *SessionState) {
	if st.Status == StatusRunning {
		st.Status = StatusSucceeded
	}
	if st.Status == StatusFailed && st.LastError != nil {
		st.Result = friendlyFailure(st.LastError.Kind)
	}
	if st.Result == "" {
		st.Result = "Done."
	}
	o.speak(context.WithoutCancel(ctx), st, st.Result)
}

// speak voices text best-effort. A dead speaker never fails a task.
func (o *Orchestrator) speak(ctx context.Context, st *SessionState, text string) {
	sctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()
	if err := o.collab.Speaker.Speak(sctx, text); err != nil {
		o.log.Warn("speech output failed", zap.String("task_id", st.TaskID), zap.Error(err))
	}
}

// handleNodeError classifies a node failure, consults the recovery policy,
// performs the chosen corrective action, and names the next node. Recovery
// attempts consume the per-node retry budget; the iteration budget is spent
// only by traversals re-entering OBSERVE.
func (o *Orchestrator) handleNodeError(ctx context.Context, st *SessionState, node Node, err error) Node {
	kind := KindOf(err)
	recoverable := true
	var ae *Error
	if errors.As(err, &ae) {
		recoverable = ae.Recoverable
	}
	st.RecordError(kind, err.Error(), recoverable)

	// A missed element is often really a popup sitting on top of it. Look
	// again before deciding.
	if kind == ErrKindElementNotFound && recoverable {
		if obs, oerr := o.captureAndAnalyze(ctx); oerr == nil {
			st.Screen = &obs
			if obs.HasPopup {
				kind = ErrKindPopupBlocking
				st.RecordError(kind, "popup blocking: "+err.Error(), true)
			}
		}
	}

	decision := o.policy.Decide(kind, recoverable, st.RetryCount)
	o.log.Warn("node failed",
		zap.String("task_id", st.TaskID),
		zap.String("node", string(node)),
		zap.String("kind", string(kind)),
		zap.String("decision", string(decision.Op)),
		zap.Int("retry_count", st.RetryCount))
	if o.hooks.OnRecovery != nil {
		o.hooks.OnRecovery(st.TaskID, kind, decision)
	}

	switch decision.Op {
	case OpRetry:
		st.RetryCount++
		if !o.sleep(ctx, decision.Backoff) {
			st.Fail(ErrKindCancelled, "task cancelled")
			return NodeRespond
		}
		if node == NodeObserve {
			return o.enterObserve(st)
		}
		return node

	case OpRecover:
		st.RetryCount++
		switch decision.Recovery {
		case RecoverDismissPopup:
			o.dismissPopup(ctx, st)
			return node
		case RecoverOffsetTap:
			st.SetTapNudge(o.opts.OffsetTapPixels)
			return node
		case RecoverReObserve:
			if kind == ErrKindElementNotFound {
				// The element may simply be below the fold.
				sctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
				if serr := o.collab.Device.SwipeUp(sctx); serr != nil {
					o.log.Warn("scroll before re-observe failed",
						zap.String("task_id", st.TaskID), zap.Error(serr))
				}
				cancel()
			}
			return o.enterObserve(st)
		}
		return node

	default:
		st.Fail(kind, err.Error())
		return NodeRespond
	}
}

// dismissPopup taps a dismiss-like element if vision found one, otherwise
// presses back, then refreshes the observation best-effort so the re-run of
// the failed node sees the uncovered screen.
func (o *Orchestrator) dismissPopup(ctx context.Context, st *SessionState) {
	dctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()

	if el, ok := dismissElement(st.Screen); ok {
		x := clamp(el.X, 0, o.opts.ScreenWidth-1)
		y := clamp(el.Y, 0, o.opts.ScreenHeight-1)
		if err := o.collab.Device.Tap(dctx, x, y); err != nil {
			o.log.Warn("popup dismiss tap failed", zap.String("task_id", st.TaskID), zap.Error(err))
		}
	} else if err := o.collab.Device.Back(dctx); err != nil {
		o.log.Warn("popup dismiss back failed", zap.String("task_id", st.TaskID), zap.Error(err))
	}

	if obs, err := o.captureAndAnalyze(ctx); err == nil {
		st.Screen = &obs
	}
}

// sleep pauses for d, returning false if the context dies first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// dismissKeywords mark elements that close an overlay.
var dismissKeywords = []string{"close", "dismiss", "ok", "cancel", "x", "got it", "skip", "not now", "no thanks"}

func dismissElement(obs *ScreenObservation) (Element, bool) {
	if obs == nil {
		return Element{}, false
	}
	for _, el := range obs.Elements {
		if el.X == 0 && el.Y == 0 {
			continue
		}
		desc := strings.ToLower(el.Description)
		for _, kw := range dismissKeywords {
			// Short keywords ("x", "ok") match only exactly; longer ones may
			// appear inside a label like "close this ad".
			if desc == kw || (len(kw) > 2 && strings.Contains(desc, kw)) {
				return el, true
			}
		}
	}
	return Element{}, false
}

// confirmKeywords flag buttons whose tap needs a human verdict first.
var confirmKeywords = []string{
	"delete", "pay", "purchase", "buy", "confirm", "send", "submit",
	"sign out", "log out", "uninstall", "remove", "transfer",
}

// importantAction finds the flagged primary element, if the screen's primary
// action looks consequential.
func importantAction(obs *ScreenObservation) (Element, bool) {
	primary := strings.ToLower(obs.PrimaryAction)
	if primary == "" {
		return Element{}, false
	}
	matched := false
	for _, kw := range confirmKeywords {
		if strings.Contains(primary, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return Element{}, false
	}
	for _, el := range obs.Elements {
		if strings.Contains(strings.ToLower(el.Description), primary) && !(el.X == 0 && el.Y == 0) {
			return el, true
		}
	}
	for _, el := range obs.Elements {
		if el.Kind == ElementButton && !(el.X == 0 && el.Y == 0) {
			return el, true
		}
	}
	return Element{}, false
}

// findInputField locates the field to type into: a text field if present,
// else anything that reads like a search box.
func findInputField(obs *ScreenObservation) (Element, bool) {
	if obs == nil {
		return Element{}, false
	}
	for _, el := range obs.Elements {
		if el.Kind == ElementTextField && !(el.X == 0 && el.Y == 0) {
			return el, true
		}
	}
	for _, el := range obs.Elements {
		if strings.Contains(strings.ToLower(el.Description), "search") && !(el.X == 0 && el.Y == 0) {
			return el, true
		}
	}
	return Element{}, false
}

func isAffirmative(answer string) bool {
	lower := strings.ToLower(strings.TrimSpace(answer))
	for _, a := range affirmatives {
		if lower == a || strings.HasPrefix(lower, a+" ") || strings.HasPrefix(lower, a+",") {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func friendlyFailure(kind ErrorKind) string {
	switch kind {
	case ErrKindIterationLimit:
		return "I tried a few times but couldn't finish that. Could you try rephrasing?"
	case ErrKindElementNotFound:
		return "I couldn't find what I needed on the screen."
	case ErrKindPopupBlocking:
		return "A popup kept getting in the way and I couldn't get past it."
	case ErrKindAuthFieldNotFound:
		return "I couldn't find where to enter your sign-in details."
	case ErrKindDeviceCommandFailed:
		return "The device didn't respond to my commands."
	case ErrKindProviderUnavailable:
		return "I'm having trouble reaching my services right now. Please try again."
	case ErrKindCancelled:
		return "Okay, I've stopped."
	default:
		return "Sorry, something went wrong with that."
	}
}
