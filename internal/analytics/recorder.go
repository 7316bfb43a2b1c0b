package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/smartlink-preview/internal/bot"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// ErrDropped is returned when the hub refuses an event under backpressure.
var ErrDropped = errors.New("analytics event dropped")

// Input is the raw tracking request received from the SPA.
type Input struct {
	Kind      smartlink.EventKind
	Slug      string
	Platform  string
	Referrer  string
	UserAgent string
}

// Recorder turns tracking requests into events and hands them to the hub.
type Recorder struct {
	links   smartlink.LinkStore
	emitter Emitter
	ids     smartlink.IDGenerator
	clock   smartlink.Clock
	bots    *bot.Classifier
}

// NewRecorder wires a Recorder.
func NewRecorder(
	links smartlink.LinkStore,
	emitter Emitter,
	ids smartlink.IDGenerator,
	clock smartlink.Clock,
	bots *bot.Classifier,
) (*Recorder, error) {
	if links == nil || emitter == nil || ids == nil || clock == nil {
		return nil, fmt.Errorf("recorder requires links, emitter, ids and clock")
	}
	if bots == nil {
		bots = bot.New()
	}
	return &Recorder{links: links, emitter: emitter, ids: ids, clock: clock, bots: bots}, nil
}

// Record validates in, resolves the link and enqueues the event. Clicks must
// name a known platform that the link actually carries.
func (r *Recorder) Record(ctx context.Context, in Input) (smartlink.Event, error) {
	slug, err := smartlink.NormalizeSlug(in.Slug)
	if err != nil {
		return smartlink.Event{}, err
	}
	evt := smartlink.Event{
		Kind:      in.Kind,
		Slug:      slug,
		Referrer:  truncate(strings.TrimSpace(in.Referrer), 2048),
		UserAgent: truncate(in.UserAgent, 512),
		Bot:       r.bots.IsBot(in.UserAgent),
	}
	switch in.Kind {
	case smartlink.EventView:
	case smartlink.EventClick:
		platform, ok := smartlink.ParsePlatform(in.Platform)
		if !ok {
			return smartlink.Event{}, fmt.Errorf("%w: unknown platform %q", smartlink.ErrInvalid, in.Platform)
		}
		evt.Platform = platform
	default:
		return smartlink.Event{}, fmt.Errorf("%w: unknown event kind %q", smartlink.ErrInvalid, in.Kind)
	}

	link, err := r.links.GetBySlug(ctx, slug)
	if err != nil {
		return smartlink.Event{}, fmt.Errorf("record %s: %w", in.Kind, err)
	}
	if evt.Kind == smartlink.EventClick && !hasPlatform(link, evt.Platform) {
		return smartlink.Event{}, fmt.Errorf("%w: %s has no %s link", smartlink.ErrInvalid, slug, evt.Platform)
	}
	evt.LinkID = link.ID

	id, err := r.ids.NewID()
	if err != nil {
		return smartlink.Event{}, fmt.Errorf("record %s: %w", in.Kind, err)
	}
	evt.ID = id
	evt.OccurredAt = r.clock.Now().UTC()

	if !r.emitter.Emit(evt) {
		return evt, ErrDropped
	}
	return evt, nil
}

func hasPlatform(link smartlink.SmartLink, platform smartlink.Platform) bool {
	for _, p := range link.Platforms {
		if p.Platform == platform {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
