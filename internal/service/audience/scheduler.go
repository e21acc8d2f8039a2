// Package audience drives the synthetic viewers of every active stream: idle
// chatter, speech bursts, mention exclusivity, face greetings and the viewer
// count.
package audience

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/facematch"
	"github.com/zhouzirui/fake-audience/backend/internal/analysis/mention"
	"github.com/zhouzirui/fake-audience/backend/internal/analysis/viewers"
	"github.com/zhouzirui/fake-audience/backend/internal/model/chat"
	"github.com/zhouzirui/fake-audience/backend/internal/model/face"
	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
	"github.com/zhouzirui/fake-audience/backend/internal/service/ai"
	"github.com/zhouzirui/fake-audience/backend/internal/service/session"
)

// Broadcaster delivers an event to a stream's room.
type Broadcaster interface {
	Broadcast(streamID, event string, data any) int
}

// LineGenerator produces one chat line per request and never fails.
type LineGenerator interface {
	Generate(ctx context.Context, req ai.Request) ai.Line
}

// Scheduler owns the per-session timers and all synthetic emission.
type Scheduler struct {
	cfg      Config
	registry *session.Registry
	hub      Broadcaster
	personas []persona.Persona
	gen      LineGenerator

	gallery face.Store
	matcher *facematch.Matcher

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time

	loops sync.WaitGroup
	jobs  sync.WaitGroup
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithFaceGallery resolves face-detected descriptors against store.
func WithFaceGallery(store face.Store, matcher *facematch.Matcher) Option {
	return func(s *Scheduler) {
		s.gallery = store
		s.matcher = matcher
	}
}

// WithSeed makes persona and interval selection reproducible.
func WithSeed(seed int64) Option {
	return func(s *Scheduler) { s.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Scheduler. personas must not be empty.
func New(cfg Config, registry *session.Registry, hub Broadcaster, personas []persona.Persona, gen LineGenerator, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		personas: append([]persona.Persona(nil), personas...),
		gen:      gen,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.matcher == nil {
		s.matcher = facematch.New(facematch.DefaultThreshold)
	}
	return s
}

// Start creates the session for streamID if absent, broadcasts the initial
// audience and launches its timers. A second Start is a no-op.
func (s *Scheduler) Start(streamID string) (chat.Session, bool, error) {
	h, created, err := s.registry.Create(streamID, func(st *session.State) {
		st.AudienceSize = s.cfg.Band.Clamp(s.cfg.InitialAudience)
	})
	if err != nil {
		return chat.Session{}, false, err
	}

	var snapshot chat.Session
	s.registry.Do(h, func(st *session.State) {
		snapshot = st.Snapshot()
		if created {
			s.hub.Broadcast(h.ID, EventAudienceUpdate, st.AudienceSize)
		}
	})
	if !created {
		log.Printf("[audience] start ignored, stream %s already active", h.ID)
		return snapshot, false, nil
	}

	log.Printf("[audience] stream %s started with %d viewers", h.ID, snapshot.AudienceSize)
	s.loops.Add(1)
	go s.run(h)
	return snapshot, true, nil
}

// Stop destroys the session, cancelling its timers, and tells the room.
// It reports whether the stream existed.
func (s *Scheduler) Stop(streamID string) bool {
	stopped := s.registry.Destroy(streamID, func(*session.State) {
		s.hub.Broadcast(streamID, EventStreamStopped, nil)
	})
	if stopped {
		log.Printf("[audience] stream %s stopped", streamID)
	}
	return stopped
}

// UpdateStreamerName renames the broadcaster of an active stream.
func (s *Scheduler) UpdateStreamerName(streamID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return s.registry.Update(streamID, func(st *session.State) {
		st.StreamerName = name
	})
}

// HandleChat relays a real viewer message to the room.
func (s *Scheduler) HandleChat(streamID, username, message string) bool {
	message = strings.TrimSpace(message)
	if streamID == "" || message == "" {
		return false
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "Viewer"
	}

	ev := chat.NewEvent(username, message)
	ev.IsReal = true
	s.hub.Broadcast(streamID, EventRealChat, ev)
	return true
}

// Wait blocks until pending bursts and greetings have been emitted or dropped.
func (s *Scheduler) Wait() {
	s.jobs.Wait()
}

// Close destroys all sessions and waits for background work to finish.
func (s *Scheduler) Close() {
	s.registry.Close()
	s.loops.Wait()
	s.jobs.Wait()
}

func (s *Scheduler) run(h session.Handle) {
	defer s.loops.Done()
	ctx := h.Context()

	idle := time.NewTimer(s.idleInterval())
	defer idle.Stop()

	var drift <-chan time.Time
	if s.cfg.DriftInterval > 0 {
		ticker := time.NewTicker(s.cfg.DriftInterval)
		defer ticker.Stop()
		drift = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			s.idleTick(ctx, h)
			idle.Reset(s.idleInterval())
		case <-drift:
			s.registry.Do(h, func(st *session.State) {
				st.AudienceSize = s.walk(st.AudienceSize)
				s.hub.Broadcast(h.ID, EventAudienceUpdate, st.AudienceSize)
			})
		}
	}
}

// idleTick emits one idle line and resamples the audience, unless a mention
// is still cooling down.
func (s *Scheduler) idleTick(ctx context.Context, h session.Handle) {
	var (
		streamer   string
		suppressed bool
	)
	if !s.registry.Do(h, func(st *session.State) {
		streamer = st.StreamerName
		suppressed = s.coolingDown(st)
	}) {
		return
	}
	if suppressed {
		return
	}

	p := s.pickPersonas(1)[0]
	line := s.gen.Generate(ctx, ai.Request{
		StreamerName: streamer,
		Persona:      p,
		Trigger:      s.pickTopic(),
		Kind:         ai.KindIdle,
	})
	ev := fakeEvent(p, line, "")

	s.registry.Do(h, func(st *session.State) {
		if s.coolingDown(st) {
			return
		}
		s.hub.Broadcast(h.ID, EventFakeChat, ev)
		st.AudienceSize = s.resample()
		s.hub.Broadcast(h.ID, EventAudienceUpdate, st.AudienceSize)
	})
}

func (s *Scheduler) coolingDown(st *session.State) bool {
	if st.LastMention.IsZero() || s.cfg.MentionCooldown <= 0 {
		return false
	}
	return s.now().Sub(st.LastMention) < s.cfg.MentionCooldown
}

// HandleSpeech validates a transcript and, when accepted, generates a burst in
// the background. Mentions take effect before HandleSpeech returns.
func (s *Scheduler) HandleSpeech(streamID, transcript string, confidence float64) bool {
	text := strings.TrimSpace(transcript)
	if confidence < s.cfg.MinConfidence || utf8.RuneCountInString(text) < s.cfg.MinTranscriptLength {
		return false
	}
	h, ok := s.registry.Lookup(streamID)
	if !ok {
		return false
	}

	mentioned := mention.Detect(text, s.personas)
	var streamer string
	if !s.registry.Do(h, func(st *session.State) {
		streamer = st.StreamerName
		if len(mentioned) > 0 {
			st.LastMention = s.now()
		}
	}) {
		return false
	}

	responders := mentioned
	if len(responders) == 0 {
		responders = s.pickPersonas(s.cfg.BurstSize)
	} else {
		log.Printf("[audience] stream %s mentioned %d persona(s), exclusive burst", h.ID, len(mentioned))
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.burst(h, streamer, text, responders)
	}()
	return true
}

func (s *Scheduler) burst(h session.Handle, streamer, text string, responders []persona.Persona) {
	ctx := h.Context()

	lines := make([]ai.Line, len(responders))
	var wg sync.WaitGroup
	for i, p := range responders {
		wg.Add(1)
		go func(i int, p persona.Persona) {
			defer wg.Done()
			lines[i] = s.gen.Generate(ctx, ai.Request{
				StreamerName: streamer,
				Persona:      p,
				Trigger:      text,
				Kind:         ai.KindSpeech,
			})
		}(i, p)
	}
	wg.Wait()

	events := make([]chat.Event, 0, len(lines))
	for i, line := range lines {
		if line.Fallback {
			continue
		}
		events = append(events, fakeEvent(responders[i], line, text))
	}
	if len(events) == 0 && len(responders) > 0 {
		log.Printf("[audience] stream %s burst failed entirely, sending fallback", h.ID)
		p := responders[s.intn(len(responders))]
		events = append(events, fakeEvent(p, ai.Fallback(), text))
	}

	for i, ev := range events {
		if i > 0 && !sleep(ctx, s.cfg.Stagger) {
			return
		}
		if !s.registry.Do(h, func(*session.State) {
			s.hub.Broadcast(h.ID, EventFakeChat, ev)
		}) {
			return
		}
	}
}

// HandleFaceDetected re-broadcasts a face signal and greets labels that are
// new to the session. Unknown faces are never greeted.
func (s *Scheduler) HandleFaceDetected(streamID string, sig FaceSignal) {
	sig.StreamID = streamID
	sig.Person = s.resolveFace(&sig)
	sig.Descriptor = nil

	h, ok := s.registry.Lookup(streamID)
	if !ok {
		s.hub.Broadcast(streamID, EventFaceDetected, sig)
		return
	}

	var (
		greet    bool
		streamer string
	)
	s.registry.Do(h, func(st *session.State) {
		s.hub.Broadcast(streamID, EventFaceDetected, sig)
		if sig.Person == face.UnknownLabel {
			return
		}
		if _, present := st.PresentFaces[sig.Person]; present {
			return
		}
		st.PresentFaces[sig.Person] = struct{}{}
		greet = true
		streamer = st.StreamerName
	})
	if !greet {
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.greet(h, streamer, sig.Person)
	}()
}

func (s *Scheduler) resolveFace(sig *FaceSignal) string {
	person := strings.TrimSpace(sig.Person)
	if len(sig.Descriptor) > 0 && s.gallery != nil {
		match, ok := s.matcher.Match(face.Descriptor(sig.Descriptor), s.gallery.List())
		if !ok {
			return face.UnknownLabel
		}
		sig.Confidence = match.Confidence
		return match.Label
	}
	if person == "" {
		return face.UnknownLabel
	}
	return person
}

func (s *Scheduler) greet(h session.Handle, streamer, label string) {
	ctx := h.Context()
	if !sleep(ctx, s.cfg.GreetingDelay) {
		return
	}

	p := s.pickPersonas(1)[0]
	line := s.gen.Generate(ctx, ai.Request{
		StreamerName: streamer,
		Persona:      p,
		Trigger:      label,
		Kind:         ai.KindWelcome,
	})
	ev := fakeEvent(p, line, "")

	s.registry.Do(h, func(*session.State) {
		s.hub.Broadcast(h.ID, EventFakeChat, ev)
	})
}

// HandleFaceLeft forgets label so a later arrival is greeted again.
func (s *Scheduler) HandleFaceLeft(streamID, person string) {
	person = strings.TrimSpace(person)
	payload := FaceLeft{StreamID: streamID, Person: person}
	if err := s.registry.Update(streamID, func(st *session.State) {
		delete(st.PresentFaces, person)
		s.hub.Broadcast(streamID, EventFaceLeft, payload)
	}); err != nil {
		s.hub.Broadcast(streamID, EventFaceLeft, payload)
	}
}

// HandleFacesLeft clears every present face.
func (s *Scheduler) HandleFacesLeft(streamID string) {
	payload := map[string]string{"streamId": streamID}
	if err := s.registry.Update(streamID, func(st *session.State) {
		clear(st.PresentFaces)
		s.hub.Broadcast(streamID, EventFacesLeft, payload)
	}); err != nil {
		s.hub.Broadcast(streamID, EventFacesLeft, payload)
	}
}

// HandleCurrentFaces only re-broadcasts the snapshot.
func (s *Scheduler) HandleCurrentFaces(streamID string, faces []PresentFace) {
	if faces == nil {
		faces = []PresentFace{}
	}
	s.hub.Broadcast(streamID, EventCurrentFaces, CurrentFaces{StreamID: streamID, Faces: faces})
}

func fakeEvent(p persona.Persona, line ai.Line, basedOn string) chat.Event {
	ev := chat.NewEvent(p.Name, line.Text)
	ev.Emoji = p.Emoji
	ev.IsFake = true
	ev.IsFallback = line.Fallback
	if basedOn != "" {
		ev.IsContextual = true
		ev.BasedOnSpeech = basedOn
	}
	return ev
}

// pickPersonas returns n distinct personas, capped at the catalogue size.
func (s *Scheduler) pickPersonas(n int) []persona.Persona {
	if n > len(s.personas) {
		n = len(s.personas)
	}
	if n < 1 {
		n = 1
	}
	s.rngMu.Lock()
	order := s.rng.Perm(len(s.personas))
	s.rngMu.Unlock()

	out := make([]persona.Persona, n)
	for i := range out {
		out[i] = s.personas[order[i]]
	}
	return out
}

func (s *Scheduler) pickTopic() string {
	return ai.IdleTopics[s.intn(len(ai.IdleTopics))]
}

func (s *Scheduler) idleInterval() time.Duration {
	span := s.cfg.IdleMax - s.cfg.IdleMin
	if span <= 0 {
		return s.cfg.IdleMin
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.IdleMin + time.Duration(s.rng.Int63n(int64(span)+1))
}

func (s *Scheduler) resample() int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return viewers.Resample(s.rng, s.cfg.Band)
}

func (s *Scheduler) walk(current int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return viewers.Walk(s.rng, current, s.cfg.Band, s.cfg.DriftStepMin, s.cfg.DriftStepMax)
}

func (s *Scheduler) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
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
