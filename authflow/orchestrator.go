package authflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/glideidentity/phone-auth-core/api"
)

// Credential source failure conditions.
var (
	// ErrCredentialDenied means the user dismissed or rejected the prompt.
	ErrCredentialDenied = errors.New("credential request denied")

	// ErrPlatformUnsupported means the platform cannot show the prompt at all.
	ErrPlatformUnsupported = errors.New("credential prompts not supported on this platform")

	// ErrNoFailedAttempt is returned by Retry when there is nothing to retry.
	ErrNoFailedAttempt = errors.New("no failed attempt to retry")
)

// Gateway is the backend surface the orchestrator drives. The HTTP
// implementation lives in the clients package.
type Gateway interface {
	Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error)
	// Invoke is best-effort; the orchestrator ignores its error.
	Invoke(ctx context.Context, sessionID string) error
	Process(ctx context.Context, req *api.ProcessRequest) (*api.ProcessResponse, error)
	// Status returns one of api.StatusApproved, api.StatusPending,
	// api.StatusDenied.
	Status(ctx context.Context, sessionID string) (string, error)
}

// CredentialSource is the platform credential prompt. It blocks until the
// user answers, the context expires, or the platform refuses.
type CredentialSource interface {
	RequestCredential(ctx context.Context, promptData map[string]any) (string, error)
}

// Reference timing behavior.
const (
	DefaultInitialTimeout     = 30 * time.Second
	DefaultCrossDeviceTimeout = 120 * time.Second
	DefaultPollInterval       = 3 * time.Second
	DefaultSilentRetryBound   = 2
)

// Config carries the orchestrator's timing and retry knobs. Zero values fall
// back to the reference defaults.
type Config struct {
	InitialTimeout     time.Duration
	CrossDeviceTimeout time.Duration
	PollInterval       time.Duration
	SilentRetryBound   int
}

func (c *Config) applyDefaults() {
	if c.InitialTimeout <= 0 {
		c.InitialTimeout = DefaultInitialTimeout
	}
	if c.CrossDeviceTimeout <= 0 {
		c.CrossDeviceTimeout = DefaultCrossDeviceTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SilentRetryBound <= 0 {
		c.SilentRetryBound = DefaultSilentRetryBound
	}
}

// Orchestrator drives a single authentication flow through the prepare,
// credential, poll, and process phases. At most one attempt is live at a
// time; starting a new one tears the previous one down first. All methods
// are safe for concurrent use.
type Orchestrator struct {
	gateway Gateway
	creds   CredentialSource
	log     *slog.Logger
	cfg     Config

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observer func(State)

	mu            sync.Mutex
	state         State
	lastReq       *api.PrepareRequest
	generation    int
	cancelAttempt context.CancelFunc
	attemptDone   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNowFunc overrides the clock, primarily for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSleepFunc overrides the poll delay, primarily for tests.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithObserver registers a callback invoked after every committed state
// transition. Calls are serialized; the callback must not call back into the
// orchestrator.
func WithObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// New creates an Orchestrator.
func New(gateway Gateway, creds CredentialSource, log *slog.Logger, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		gateway: gateway,
		creds:   creds,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepContext,
		state:   State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns a snapshot of the current attempt.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done returns a channel closed when the current attempt reaches a terminal
// phase. With no attempt started it returns an already-closed channel.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attemptDone == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return o.attemptDone
}

// Start begins a fresh attempt. A live attempt is torn down first: its
// context is cancelled and its run loop is waited out, so no two poll loops
// ever run for the same flow.
func (o *Orchestrator) Start(ctx context.Context, req *api.PrepareRequest) {
	o.teardown()

	o.mu.Lock()
	o.generation++
	gen := o.generation
	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancelAttempt = cancel
	o.attemptDone = done
	o.lastReq = req
	st := State{Phase: PhasePreparing, Attempt: gen}
	o.state = st
	o.mu.Unlock()

	go o.run(attemptCtx, gen, done, st, req)
}

// Retry resumes after a failure, re-entering at the last completed phase
// boundary: with no session yet it re-prepares from scratch, otherwise it
// reuses the session and goes straight back to the credential prompt or the
// poll loop. Retry counts and the cross-device flag reset; the deadline is
// recomputed for the new attempt.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Phase != PhaseFailed {
		o.mu.Unlock()
		return ErrNoFailedAttempt
	}
	prev := o.state
	req := o.lastReq
	// The failed attempt's run loop has exited, but its derived context must
	// still be released before a new one replaces it.
	if o.cancelAttempt != nil {
		o.cancelAttempt()
	}
	o.generation++
	gen := o.generation
	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancelAttempt = cancel
	o.attemptDone = done
	st := State{
		Phase:      PhasePreparing,
		Attempt:    gen,
		Strategy:   prev.Strategy,
		Session:    prev.Session,
		PromptData: prev.PromptData,
	}
	o.state = st
	o.mu.Unlock()

	go o.run(attemptCtx, gen, done, st, req)
	return nil
}

// Cancel aborts the live attempt. The run loop notices between suspension
// points and commits the Cancelled phase, distinct from Failed. No-op when
// nothing is running.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancelAttempt
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) teardown() {
	o.mu.Lock()
	cancel := o.cancelAttempt
	done := o.attemptDone
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// commit publishes st as the current state unless the attempt has been
// superseded. A stale generation discards the transition, which is how late
// results from a torn-down attempt are kept from corrupting the live one.
func (o *Orchestrator) commit(gen int, st State) bool {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return false
	}
	o.state = st
	obs := o.observer
	o.mu.Unlock()
	if obs != nil {
		obs(st)
	}
	return true
}

func (o *Orchestrator) run(ctx context.Context, gen int, done chan struct{}, st State, req *api.PrepareRequest) {
	defer close(done)

	fail := func(code, message string, retryable bool) {
		st.Phase = PhaseFailed
		st.Failure = &Failure{Code: code, Message: message, Retryable: retryable}
		o.commit(gen, st)
		o.log.Warn("authentication attempt failed", "attempt", gen, "code", code, "retryable", retryable)
	}
	cancelled := func() {
		st.Phase = PhaseCancelled
		st.Failure = nil
		o.commit(gen, st)
		o.log.Info("authentication attempt cancelled", "attempt", gen)
	}

	if st.Session.SessionKey == "" {
		if !o.commit(gen, st) {
			return
		}
		resp, err := o.prepare(ctx, gen, &st, req)
		if err != nil {
			if ctx.Err() != nil {
				cancelled()
				return
			}
			code, message := failureFrom(err)
			fail(code, message, true)
			return
		}
		st.Strategy = resp.AuthenticationStrategy
		st.Session = resp.Session
		st.PromptData = resp.Data
	}

	// One wall-clock deadline per attempt. Polls never reset it.
	st.TimeoutBudget = o.cfg.InitialTimeout
	st.Deadline = o.now().Add(st.TimeoutBudget)

	var credential string
	if st.Strategy.OutOfBand() {
		if !o.poll(ctx, gen, &st, fail, cancelled) {
			return
		}
	} else {
		cred, ok := o.awaitCredential(ctx, gen, &st, fail, cancelled)
		if !ok {
			return
		}
		credential = cred
	}

	st.Phase = PhaseProcessing
	if !o.commit(gen, st) {
		return
	}
	result, err := o.process(ctx, gen, &st, req, credential)
	if err != nil {
		if ctx.Err() != nil {
			cancelled()
			return
		}
		code, message := failureFrom(err)
		fail(code, message, true)
		return
	}

	st.Phase = PhaseCompleted
	st.Result = result
	o.commit(gen, st)
	o.log.Info("authentication attempt completed", "attempt", gen, "strategy", st.Strategy)
}

// prepare calls the gateway, silently retrying transient network failures up
// to the bound. Provider-reported failures are terminal right away.
func (o *Orchestrator) prepare(ctx context.Context, gen int, st *State, req *api.PrepareRequest) (*api.PrepareResponse, error) {
	for {
		resp, err := o.gateway.Prepare(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !api.IsTransient(err) || st.RetryCount >= o.cfg.SilentRetryBound {
			return nil, err
		}
		st.RetryCount++
		if !o.commit(gen, *st) {
			return nil, context.Canceled
		}
		o.log.Debug("retrying prepare after transient failure", "attempt", gen, "retry", st.RetryCount)
	}
}

// awaitCredential runs the same-device branch: report the invocation, show
// the platform prompt, and silently retry a denial or transient failure up to
// the bound. Reports false when the attempt reached a terminal phase.
func (o *Orchestrator) awaitCredential(ctx context.Context, gen int, st *State, fail func(string, string, bool), cancelled func()) (string, bool) {
	st.Phase = PhaseAwaitingCredential
	if !o.commit(gen, *st) {
		return "", false
	}

	for {
		if !st.Deadline.After(o.now()) {
			fail(api.CodeTimeout, "Authentication timed out waiting for the credential prompt.", true)
			return "", false
		}

		// Invocation reporting never blocks the prompt.
		if err := o.gateway.Invoke(ctx, o.invokeID(st)); err != nil {
			o.log.Debug("invocation report failed (ignored)", "err", err)
		}

		// The remaining budget is measured on the injected clock, then applied
		// as a relative timeout. Handing the absolute deadline to the context
		// would compare it against the real wall clock instead.
		credCtx, cancel := context.WithTimeout(ctx, st.Deadline.Sub(o.now()))
		credential, err := o.creds.RequestCredential(credCtx, st.PromptData)
		cancel()
		if err == nil {
			return credential, true
		}

		switch {
		case ctx.Err() != nil:
			cancelled()
			return "", false
		case errors.Is(err, context.DeadlineExceeded):
			fail(api.CodeTimeout, "Authentication timed out waiting for the credential prompt.", true)
			return "", false
		case errors.Is(err, ErrPlatformUnsupported):
			fail(api.CodeUnexpectedError, "This platform cannot show the credential prompt.", false)
			return "", false
		case errors.Is(err, ErrCredentialDenied) || api.IsTransient(err):
			if st.RetryCount >= o.cfg.SilentRetryBound {
				fail(api.CodeUserDenied, "The credential request was denied.", true)
				return "", false
			}
			st.RetryCount++
			if !o.commit(gen, *st) {
				return "", false
			}
			o.log.Debug("retrying credential prompt", "attempt", gen, "retry", st.RetryCount)
		default:
			code, message := failureFrom(err)
			fail(code, message, true)
			return "", false
		}
	}
}

// poll runs the out-of-band branch: flag cross-device, widen the deadline
// once, then poll until approval, denial, timeout, or cancellation. Reports
// false when the attempt reached a terminal phase.
func (o *Orchestrator) poll(ctx context.Context, gen int, st *State, fail func(string, string, bool), cancelled func()) bool {
	if !st.CrossDeviceDetected {
		st.CrossDeviceDetected = true
		st.Deadline = st.Deadline.Add(o.cfg.CrossDeviceTimeout - st.TimeoutBudget)
		st.TimeoutBudget = o.cfg.CrossDeviceTimeout
	}
	st.Phase = PhasePolling
	if !o.commit(gen, *st) {
		return false
	}

	sessionID := o.invokeID(st)
	for {
		if !st.Deadline.After(o.now()) {
			fail(api.CodeTimeout, "Authentication timed out waiting for approval on the other device.", true)
			return false
		}

		status, err := o.gateway.Status(ctx, sessionID)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			cancelled()
			return false
		case api.IsTransient(err) && st.RetryCount < o.cfg.SilentRetryBound:
			st.RetryCount++
			if !o.commit(gen, *st) {
				return false
			}
			o.log.Debug("retrying status poll after transient failure", "attempt", gen, "retry", st.RetryCount)
			status = api.StatusPending
		default:
			code, message := failureFrom(err)
			fail(code, message, true)
			return false
		}

		switch status {
		case api.StatusApproved:
			return true
		case api.StatusDenied:
			fail(api.CodeUserDenied, "Authentication was denied on the other device.", true)
			return false
		default:
			// Pending, or an unknown status treated as pending.
			if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
				cancelled()
				return false
			}
		}
	}
}

// process exchanges the credential for the verified result, with the same
// bounded transient retry as the other phases.
func (o *Orchestrator) process(ctx context.Context, gen int, st *State, req *api.PrepareRequest, credential string) (*api.ProcessResponse, error) {
	processReq := &api.ProcessRequest{
		UseCase:    req.UseCase,
		Session:    st.Session,
		Credential: credential,
	}
	for {
		resp, err := o.gateway.Process(ctx, processReq)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !api.IsTransient(err) || st.RetryCount >= o.cfg.SilentRetryBound {
			return nil, err
		}
		st.RetryCount++
		if !o.commit(gen, *st) {
			return nil, context.Canceled
		}
		o.log.Debug("retrying process after transient failure", "attempt", gen, "retry", st.RetryCount)
	}
}

// invokeID picks the identifier used for invocation reports and status polls.
func (o *Orchestrator) invokeID(st *State) string {
	if st.Session.SessionID != "" {
		return st.Session.SessionID
	}
	return st.Session.SessionKey
}

// failureFrom maps a gateway error to a machine code and message. Structured
// provider failures keep their own code; everything else collapses to the
// generic one.
func failureFrom(err error) (code, message string) {
	if pe, ok := api.AsProviderError(err); ok {
		return pe.Code, pe.Message
	}
	return api.CodeUnexpectedError, "Authentication failed unexpectedly. Please try again."
}
