package production

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dlnapm/egreetz/internal/audio"
)

const (
	defaultPollInterval  = 8 * time.Second
	defaultRetryDelay    = 2 * time.Second
	defaultNarrationWait = 10 * time.Second

	// MaxTransientRetries bounds how many times a transient remote error is
	// retried before the production fails with the last observed error.
	MaxTransientRetries = 3
)

// Orchestrator drives one or more remote generation jobs to a planned target
// duration: submit, poll to completion with bounded transient retry, then
// chain extension jobs. Narration runs concurrently as an independent
// sibling operation.
type Orchestrator struct {
	video    VideoJobService
	narrator Narrator

	// Timing knobs, overridable in tests.
	PollInterval  time.Duration
	RetryDelay    time.Duration
	NarrationWait time.Duration
}

func New(video VideoJobService, narrator Narrator) *Orchestrator {
	return &Orchestrator{
		video:         video,
		narrator:      narrator,
		PollInterval:  defaultPollInterval,
		RetryDelay:    defaultRetryDelay,
		NarrationWait: defaultNarrationWait,
	}
}

// ScriptParams describes one production run.
type ScriptParams struct {
	Script      string
	Environment string
	VoiceName   string
	Extended    bool
	References  []ReferenceImage
}

// Result is a finished production. NarrationPCM is nil for silent greetings.
// Partial marks a successful-but-shorter outcome after a failed extension.
type Result struct {
	Video            *VideoAsset
	NarrationPCM     []byte
	NarrationSeconds float64
	Target           float64
	Partial          bool
}

// ChooseProfile picks the generation tier, once, before the first call.
func ChooseProfile(refs []ReferenceImage, segments int) GenerationProfile {
	if len(refs) > 0 || segments > 1 {
		return ProfileQuality
	}
	return ProfileFast
}

// Produce runs the full pipeline for one greeting. It may suspend for
// seconds to minutes; the caller treats it as a single long-running
// operation.
func (o *Orchestrator) Produce(ctx context.Context, p ScriptParams) (*Result, error) {
	res := &Result{}
	narrCh := make(chan float64, 1)

	g, gctx := errgroup.WithContext(ctx)

	// Narration branch. Failure or empty audio is a valid silent outcome
	// and never fails the production.
	g.Go(func() error {
		defer func() {
			// Unblock the video branch whether or not audio arrived.
			select {
			case narrCh <- res.NarrationSeconds:
			default:
			}
		}()

		if o.narrator == nil {
			return nil
		}

		pcm, err := o.narrator.Narrate(gctx, p.Script, p.VoiceName)
		if err != nil {
			log.Printf("[Produce] narration failed, continuing without voice: %v", err)
			return nil
		}
		if len(pcm) == 0 {
			log.Printf("[Produce] narration returned no audio, continuing without voice")
			return nil
		}

		res.NarrationPCM = pcm
		res.NarrationSeconds = float64(len(pcm)) / audio.BytesPerSample / audio.NarrationSampleRate
		return nil
	})

	// Video branch.
	g.Go(func() error {
		video, target, partial, err := o.produceVideo(gctx, p, narrCh)
		if err != nil {
			return err
		}
		res.Video = video
		res.Target = target
		res.Partial = partial
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Resolve the final asset's retrievable form.
	data, err := o.video.Download(ctx, res.Video)
	if err != nil {
		return nil, fmt.Errorf("failed to download final video: %w", err)
	}
	res.Video.Bytes = data

	log.Printf("[Produce] done: %.0fs video (target %.1fs, partial=%v), narration %.2fs",
		res.Video.Seconds, res.Target, res.Partial, res.NarrationSeconds)
	return res, nil
}

// produceVideo runs the initial generation plus the extension loop.
//
// Loop policy (documented decision): extend while produced < target, strict
// less-than, so the final segment may overshoot the target. A 15s target
// from 7s segments therefore produces 7 → 14 → 21.
func (o *Orchestrator) produceVideo(ctx context.Context, p ScriptParams, narrCh <-chan float64) (*VideoAsset, float64, bool, error) {
	// The duration plan uses whichever narration estimate exists when the
	// video step must start; a fallback estimate is used rather than
	// blocking video submission on narration indefinitely.
	narrSeconds := 0.0
	select {
	case s := <-narrCh:
		narrSeconds = s
	case <-time.After(o.NarrationWait):
		log.Printf("[Produce] narration not ready after %v, planning with fallback estimate", o.NarrationWait)
	case <-ctx.Done():
		return nil, 0, false, ctx.Err()
	}

	target := PlanTarget(narrSeconds, p.Extended)
	profile := ChooseProfile(p.References, SegmentsNeeded(target))
	log.Printf("[Produce] target=%.1fs segments=%d profile=%s", target, SegmentsNeeded(target), profile)

	handle, err := o.video.Submit(ctx, SubmitRequest{
		Script:      p.Script,
		Environment: p.Environment,
		References:  p.References,
		Profile:     profile,
	})
	if err != nil {
		return nil, target, false, fmt.Errorf("failed to submit generation: %w", err)
	}

	current, err := o.pollToCompletion(ctx, handle)
	if err != nil {
		return nil, target, false, err
	}
	if current == nil {
		// Likely safety-filtered or a transient capacity issue; no asset
		// exists yet so this is fatal.
		return nil, target, false, ErrNoAsset
	}
	if current.Seconds <= 0 {
		current.Seconds = SegmentSeconds
	}
	produced := current.Seconds

	partial := false
	for produced < target {
		next, err := o.extend(ctx, p, current, profile)
		if err != nil {
			if ctx.Err() != nil {
				return nil, target, false, ctx.Err()
			}
			// At least one asset exists: degrade gracefully instead of
			// failing the whole production for a failed extension.
			log.Printf("[Produce] extension failed at %.0fs of %.1fs, keeping best asset: %v", produced, target, err)
			partial = true
			break
		}
		if next == nil {
			log.Printf("[Produce] extension finished with no asset and no error, stopping at %.0fs", produced)
			partial = true
			break
		}

		// Each extension consumes the prior asset and returns a replacement
		// one segment longer. Produced duration only grows within a run.
		produced += SegmentSeconds
		if next.Seconds > produced {
			produced = next.Seconds
		} else {
			next.Seconds = produced
		}
		current = next
	}

	return current, target, partial, nil
}

func (o *Orchestrator) extend(ctx context.Context, p ScriptParams, prior *VideoAsset, profile GenerationProfile) (*VideoAsset, error) {
	handle, err := o.video.Submit(ctx, SubmitRequest{
		Script:       p.Script,
		Environment:  p.Environment,
		Continuation: prior,
		Profile:      profile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit extension: %w", err)
	}
	return o.pollToCompletion(ctx, handle)
}

// ---------------------------------------------------------------------------
// Poll-to-completion, modeled as an explicit state machine so the retry
// bound and transition conditions are testable without a remote service:
// Polling → RetryingTransient(count) → Done | Failed.
// ---------------------------------------------------------------------------

type pollPhase int

const (
	phasePolling pollPhase = iota
	phaseRetryingTransient
	phaseDone
	phaseFailed
)

type pollState struct {
	phase   pollPhase
	retries int
}

// nextPollState is the pure transition function. pollErr is an unclassified
// exception from the poll call itself; both it and transient-classified
// terminal errors consume one bounded retry. A terminal non-transient error
// fails immediately.
func nextPollState(s pollState, res PollResult, pollErr error, bound int) pollState {
	if pollErr != nil {
		if errors.Is(pollErr, ErrCredentialExpired) {
			return pollState{phase: phaseFailed, retries: s.retries}
		}
		if s.retries >= bound {
			return pollState{phase: phaseFailed, retries: s.retries}
		}
		return pollState{phase: phaseRetryingTransient, retries: s.retries + 1}
	}

	if !res.Done {
		return pollState{phase: phasePolling, retries: s.retries}
	}

	if res.ErrMessage != "" {
		if IsTransient(res.ErrMessage) && s.retries < bound {
			return pollState{phase: phaseRetryingTransient, retries: s.retries + 1}
		}
		return pollState{phase: phaseFailed, retries: s.retries}
	}

	return pollState{phase: phaseDone, retries: s.retries}
}

// pollToCompletion queries the job after a fixed delay until it is terminal.
// Transient errors re-query the same job — never resubmit — up to the retry
// bound, with a shorter delay before each re-query.
func (o *Orchestrator) pollToCompletion(ctx context.Context, handle JobHandle) (*VideoAsset, error) {
	state := pollState{phase: phasePolling}
	var lastErr error

	for {
		delay := o.PollInterval
		if state.phase == phaseRetryingTransient {
			delay = o.RetryDelay
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}

		res, err := o.video.Poll(ctx, handle)
		if err != nil {
			lastErr = err
		} else if res.Done && res.ErrMessage != "" {
			lastErr = fmt.Errorf("remote job error: %s", res.ErrMessage)
		}

		state = nextPollState(state, res, err, MaxTransientRetries)
		switch state.phase {
		case phaseDone:
			return res.Asset, nil
		case phaseFailed:
			return nil, lastErr
		case phaseRetryingTransient:
			log.Printf("[Produce] transient remote error, retry %d/%d: %v", state.retries, MaxTransientRetries, lastErr)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
