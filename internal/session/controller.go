package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
)

// mailbox is an unbounded FIFO of loop events. post never blocks, so collaborators may
// call back synchronously from inside the loop.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}

// Controller is the session state machine. Methods are safe for concurrent use;
// watchers run on the controller goroutine and must not call back into blocking
// Controller methods.
type Controller struct {
	auth     AuthProvider
	profiles ProfileStore
	blobs    BlobStore
	local    localstate.Store
	notifier notify.Notifier
	splash   func(time.Duration) <-chan time.Time
	now      func() time.Time
	cfg      Config
	logger   zerolog.Logger

	mb        mailbox
	quit      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	started      bool
	closed       bool
	splashCh     <-chan time.Time
	splashDone   bool
	pending      *Identity
	pendingSet   bool
	status       Status
	user         *Profile
	guest        bool
	identity     *Identity
	epoch        uint64
	profileGen   uint64
	profileUnsub func()
	authUnsub    func()
	saving       bool
	watchers     map[int]func(Snapshot)
	nextWatcher  int

	mu   sync.RWMutex
	snap Snapshot
}

// New builds a Controller and starts its event loop. Call Start to begin observing
// identities and Close to release it.
func New(cfg Config, deps Deps) *Controller {
	if cfg.MinSplash < 0 {
		cfg.MinSplash = 0
	}
	if deps.Splash == nil {
		deps.Splash = time.After
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Local == nil {
		deps.Local = localstate.NewMemory(localstate.Record{})
	}

	c := &Controller{
		auth:     deps.Auth,
		profiles: deps.Profiles,
		blobs:    deps.Blobs,
		local:    deps.Local,
		notifier: deps.Notifier,
		splash:   deps.Splash,
		now:      deps.Now,
		cfg:      cfg,
		logger:   logx.Component("session"),
		mb:       mailbox{wake: make(chan struct{}, 1)},
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
		status:   Initializing,
		watchers: make(map[int]func(Snapshot)),
		snap:     Snapshot{Status: Initializing},
	}

	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.exited)

	for {
		select {
		case <-c.mb.wake:
			for _, fn := range c.mb.drain() {
				if c.closed {
					break
				}
				fn()
			}
		case <-c.splashCh:
			c.splashCh = nil
			if !c.closed {
				c.onSplashElapsed()
			}
		case <-c.quit:
			return
		}
	}
}

// post queues fn on the loop. Events queued after teardown are dropped.
func (c *Controller) post(fn func()) bool {
	return c.mb.post(fn)
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	if !c.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-c.exited:
		return ErrClosed
	}
}

// Start subscribes to the identity stream and arms the splash timer. Calling it again
// has no effect.
func (c *Controller) Start() error {
	return c.do(func() {
		if c.started {
			return
		}
		c.started = true
		c.splashCh = c.splash(c.cfg.MinSplash)
		c.authUnsub = c.auth.Subscribe(func(id *Identity) {
			var cp *Identity
			if id != nil {
				v := *id
				cp = &v
			}
			c.post(func() { c.onIdentity(cp) })
		})
	})
}

// Close cancels every subscription the controller holds. No state change is published
// afterwards.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		_ = c.do(c.teardown)
		c.mb.close()
		close(c.quit)
		<-c.exited
	})
	return nil
}

func (c *Controller) teardown() {
	c.unsubscribeProfile()
	if c.authUnsub != nil {
		c.authUnsub()
		c.authUnsub = nil
	}
	c.closed = true
	c.watchers = map[int]func(Snapshot){}
	c.logger.Debug().Msg("session controller closed")
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSnapshot(c.snap)
}

// Watch calls fn with the current state and then after every change until the returned
// function is called.
func (c *Controller) Watch(fn func(Snapshot)) (cancel func()) {
	var id int
	if err := c.do(func() {
		id = c.nextWatcher
		c.nextWatcher++
		c.watchers[id] = fn
		fn(cloneSnapshot(c.snap))
	}); err != nil {
		return func() {}
	}

	return func() {
		c.post(func() { delete(c.watchers, id) })
	}
}

func (c *Controller) publish() {
	snap := Snapshot{Status: c.status, Guest: c.guest}
	if c.user != nil {
		u := c.user.Clone()
		snap.User = &u
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	for _, fn := range c.watchers {
		fn(cloneSnapshot(snap))
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.User != nil {
		u := s.User.Clone()
		s.User = &u
	}
	return s
}

func (c *Controller) notify(key string, params map[string]any) {
	c.notifier.Notify(notify.New(key, params))
}

// onSplashElapsed applies the last identity cached during the splash, or "no
// identity" when the provider stayed silent.
func (c *Controller) onSplashElapsed() {
	c.splashDone = true
	id := c.pending
	c.pending, c.pendingSet = nil, false
	c.applyIdentity(id)
}

func (c *Controller) onIdentity(id *Identity) {
	if !c.splashDone {
		c.pending, c.pendingSet = id, true
		return
	}
	c.applyIdentity(id)
}

func (c *Controller) applyIdentity(id *Identity) {
	if id == nil {
		if c.guest {
			return
		}
		if c.status == Unauthenticated && c.identity == nil && c.profileUnsub == nil {
			return
		}
		c.signedOut()
		return
	}

	if c.identity != nil && c.identity.UID == id.UID && !c.guest && c.profileUnsub != nil {
		c.identity = id
		return
	}

	c.epoch++
	c.guest = false
	c.identity = id
	c.subscribeProfile(*id)
}

func (c *Controller) signedOut() {
	c.unsubscribeProfile()
	c.epoch++
	c.identity = nil
	c.user = nil
	c.status = Unauthenticated
	c.publish()

	show, err := localstate.TakePendingLogoutNotice(c.local)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reading logout marker failed")
		return
	}
	if show {
		c.notify("success_logout", nil)
	}
}

func (c *Controller) subscribeProfile(id Identity) {
	c.unsubscribeProfile()
	c.profileGen++
	gen := c.profileGen

	c.profileUnsub = c.profiles.Subscribe(id.UID,
		func(doc *wire.ProfileDocument) {
			var cp *wire.ProfileDocument
			if doc != nil {
				v := wire.ProfileDocument{}.Merge(*doc)
				cp = &v
			}
			c.post(func() {
				if gen == c.profileGen {
					c.onProfile(id, cp)
				}
			})
		},
		func(err error) {
			c.post(func() {
				if gen == c.profileGen {
					c.onProfileError(id, err)
				}
			})
		},
	)
}

func (c *Controller) unsubscribeProfile() {
	c.profileGen++
	if c.profileUnsub != nil {
		c.profileUnsub()
		c.profileUnsub = nil
	}
}

func (c *Controller) onProfile(id Identity, doc *wire.ProfileDocument) {
	rec, err := c.local.Load()
	if err != nil {
		c.logger.Warn().Err(err).Msg("loading local state failed")
	}

	var p Profile
	if doc == nil {
		p = synthesize(id, rec, c.now())
	} else {
		p = materialize(id, *doc, c.now())
		c.remember(p.ThemePreference, p.LanguagePreference)
	}

	c.user = &p
	c.status = Authenticated
	c.publish()
}

func (c *Controller) onProfileError(id Identity, err error) {
	c.logger.Error().Err(err).Str("uid", id.UID).Msg("profile subscription failed")

	c.unsubscribeProfile()
	c.epoch++
	c.identity = nil
	c.user = nil
	c.status = Unauthenticated
	c.publish()
	c.notify("error_profile_load_failed", nil)
}

// remember keeps the display preferences available before the next sign-in.
func (c *Controller) remember(theme, lang string) {
	err := c.local.Update(func(r *localstate.Record) {
		r.Theme = theme
		r.Language = lang
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("saving preferences failed")
	}
}
