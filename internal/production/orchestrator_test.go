package production

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dlnapm/egreetz/internal/audio"
)

// ---------------------------------------------------------------------------
// Scripted fakes
// ---------------------------------------------------------------------------

type pollOutcome struct {
	res PollResult
	err error
}

type scriptedJob struct {
	outcomes []pollOutcome
	i        int
}

// fakeVideoService replays a scripted sequence of poll outcomes per
// submission, in submission order. The last outcome repeats if over-polled.
type fakeVideoService struct {
	mu      sync.Mutex
	submits []SubmitRequest
	scripts [][]pollOutcome
}

func (f *fakeVideoService) Submit(ctx context.Context, req SubmitRequest) (JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.submits)
	f.submits = append(f.submits, req)
	if idx >= len(f.scripts) {
		return nil, fmt.Errorf("unexpected submission %d", idx)
	}
	return &scriptedJob{outcomes: f.scripts[idx]}, nil
}

func (f *fakeVideoService) Poll(ctx context.Context, handle JobHandle) (PollResult, error) {
	job := handle.(*scriptedJob)
	i := job.i
	if i >= len(job.outcomes) {
		i = len(job.outcomes) - 1
	}
	job.i++
	return job.outcomes[i].res, job.outcomes[i].err
}

func (f *fakeVideoService) Download(ctx context.Context, asset *VideoAsset) ([]byte, error) {
	return []byte("mp4-bytes"), nil
}

func (f *fakeVideoService) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type fakeNarrator struct {
	pcm []byte
	err error
}

func (n *fakeNarrator) Narrate(ctx context.Context, script, voiceName string) ([]byte, error) {
	return n.pcm, n.err
}

func pcmSeconds(sec float64) []byte {
	return make([]byte, int(sec*audio.NarrationSampleRate)*audio.BytesPerSample)
}

func pending() pollOutcome {
	return pollOutcome{res: PollResult{Done: false}}
}

func doneAsset(sec float64) pollOutcome {
	return pollOutcome{res: PollResult{Done: true, Asset: &VideoAsset{URI: "videos/seg", Seconds: sec}}}
}

func doneErr(msg string) pollOutcome {
	return pollOutcome{res: PollResult{Done: true, ErrMessage: msg}}
}

func newTestOrchestrator(svc VideoJobService, narr Narrator) *Orchestrator {
	o := New(svc, narr)
	o.PollInterval = time.Millisecond
	o.RetryDelay = time.Millisecond
	o.NarrationWait = 100 * time.Millisecond
	return o
}

// ---------------------------------------------------------------------------
// Extension loop
// ---------------------------------------------------------------------------

func TestSingleExtensionForShortNarration(t *testing.T) {
	// 5.2s narration → target 9.5s → 7s base + exactly one extension
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{pending(), doneAsset(7)},
		{doneAsset(7)},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(5.2)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "happy birthday"})
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}

	if got := svc.submitCount(); got != 2 {
		t.Fatalf("submissions: got %d, want 2 (initial + 1 extension)", got)
	}
	if svc.submits[0].Continuation != nil {
		t.Error("initial submission must not carry a continuation asset")
	}
	if svc.submits[1].Continuation == nil {
		t.Error("extension submission must carry the prior asset")
	}
	if res.Video.Seconds != 14 {
		t.Errorf("produced duration: got %v, want 14", res.Video.Seconds)
	}
	if res.Partial {
		t.Error("fully successful run must not be marked partial")
	}
	if len(res.Video.Bytes) == 0 {
		t.Error("final asset bytes were not resolved")
	}
}

func TestExtendedGreetingOvershootsTarget(t *testing.T) {
	// extended=true, 2s narration → target 15s. With strict `<`:
	// 7 < 15 → extend (14), 14 < 15 → extend (21), 21 ≥ 15 → stop.
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
		{doneAsset(7)},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(2)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "hello", Extended: true})
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}

	if got := svc.submitCount(); got != 3 {
		t.Errorf("submissions: got %d, want 3", got)
	}
	if res.Video.Seconds != 21 {
		t.Errorf("produced duration: got %v, want 21", res.Video.Seconds)
	}
}

func TestProfileSelection(t *testing.T) {
	// Multi-segment plan forces the quality profile even without references.
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
	}}
	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(5.2)})
	if _, err := o.Produce(context.Background(), ScriptParams{Script: "x"}); err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	for i, s := range svc.submits {
		if s.Profile != ProfileQuality {
			t.Errorf("submission %d: got profile %s, want %s", i, s.Profile, ProfileQuality)
		}
	}

	// Single segment, no references → fast profile.
	svc2 := &fakeVideoService{scripts: [][]pollOutcome{{doneAsset(7)}}}
	o2 := newTestOrchestrator(svc2, &fakeNarrator{pcm: pcmSeconds(1)})
	if _, err := o2.Produce(context.Background(), ScriptParams{Script: "x"}); err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if svc2.submits[0].Profile != ProfileFast {
		t.Errorf("got profile %s, want %s", svc2.submits[0].Profile, ProfileFast)
	}
}

// ---------------------------------------------------------------------------
// Retry policy
// ---------------------------------------------------------------------------

func TestTransientErrorsWithinBoundRecover(t *testing.T) {
	// Three consecutive transient terminal errors, then success — must
	// recover by re-polling the same job, never resubmitting.
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{
			doneErr("internal error encountered"),
			doneErr("HTTP 503 service unavailable"),
			doneErr("deadline exceeded"),
			doneAsset(7),
		},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(1)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("expected recovery, got: %v", err)
	}
	if got := svc.submitCount(); got != 1 {
		t.Errorf("submissions: got %d, want 1 (no resubmission on transient errors)", got)
	}
	if res.Video.Seconds != 7 {
		t.Errorf("produced duration: got %v, want 7", res.Video.Seconds)
	}
}

func TestTransientErrorsBeyondBoundFail(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{
			doneErr("internal error 1"),
			doneErr("internal error 2"),
			doneErr("internal error 3"),
			doneErr("internal error 4"),
		},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(1)})
	_, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err == nil {
		t.Fatal("expected failure after retry bound exhausted")
	}
	if !strings.Contains(err.Error(), "internal error 4") {
		t.Errorf("expected last observed error to surface, got: %v", err)
	}
}

func TestNonTransientErrorFailsImmediately(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneErr("blocked by safety filters")},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(1)})
	_, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "safety filters") {
		t.Errorf("expected remote message in error, got: %v", err)
	}
}

func TestPollExceptionsRetryThenPropagate(t *testing.T) {
	boom := errors.New("connection reset by peer")
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{
			{err: boom},
			{err: boom},
			doneAsset(7),
		},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(1)})
	if _, err := o.Produce(context.Background(), ScriptParams{Script: "x"}); err != nil {
		t.Fatalf("expected recovery from poll exceptions, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Graceful degradation
// ---------------------------------------------------------------------------

func TestExtensionFailureReturnsPartialResult(t *testing.T) {
	// Initial segment succeeds; the extension fails non-transiently.
	// The production completes shorter instead of erroring.
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneErr("blocked by safety filters")},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(5.2)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("expected partial success, got: %v", err)
	}
	if !res.Partial {
		t.Error("expected result to be marked partial")
	}
	if res.Video.Seconds != 7 {
		t.Errorf("produced duration: got %v, want 7", res.Video.Seconds)
	}
}

func TestSecondExtensionFailureKeepsOnceExtendedAsset(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
		{doneErr("invalid argument")},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(10)}) // target 14.5 → 3 segments
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("expected partial success, got: %v", err)
	}
	if res.Video.Seconds != 14 {
		t.Errorf("expected the once-extended 14s asset, got %v", res.Video.Seconds)
	}
	if !res.Partial {
		t.Error("expected result to be marked partial")
	}
}

func TestExtensionNoAssetNoErrorStopsGracefully(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{{res: PollResult{Done: true}}}, // terminal, no asset, no error
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(5.2)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("expected graceful stop, got: %v", err)
	}
	if res.Video.Seconds != 7 || !res.Partial {
		t.Errorf("expected partial 7s result, got %vs partial=%v", res.Video.Seconds, res.Partial)
	}
}

func TestInitialNoAssetIsFatal(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{{res: PollResult{Done: true}}},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(1)})
	_, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if !errors.Is(err, ErrNoAsset) {
		t.Fatalf("expected ErrNoAsset, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Narration as an independent sibling
// ---------------------------------------------------------------------------

func TestNilNarrationIsValidSilentGreeting(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
	}}

	// Narrator yields no audio: plan falls back to the 5s estimate
	// (target 8.5 → two segments) and the production still succeeds.
	o := newTestOrchestrator(svc, &fakeNarrator{pcm: nil})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("silent greeting must not fail production: %v", err)
	}
	if res.NarrationPCM != nil {
		t.Error("expected no narration payload")
	}
	if res.NarrationSeconds != 0 {
		t.Errorf("narration seconds: got %v, want 0", res.NarrationSeconds)
	}
	if got := svc.submitCount(); got != 2 {
		t.Errorf("submissions with fallback plan: got %d, want 2", got)
	}
}

func TestNarrationErrorIsSilentOptionalFailure(t *testing.T) {
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{err: errors.New("tts quota exceeded")})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("narration failure must not fail production: %v", err)
	}
	if res.NarrationPCM != nil {
		t.Error("expected no narration payload after narration failure")
	}
}

func TestNarrationDurationFeedsThePlan(t *testing.T) {
	// 11s narration → target 14.5s → 3 segments.
	svc := &fakeVideoService{scripts: [][]pollOutcome{
		{doneAsset(7)},
		{doneAsset(7)},
		{doneAsset(7)},
	}}

	o := newTestOrchestrator(svc, &fakeNarrator{pcm: pcmSeconds(11)})
	res, err := o.Produce(context.Background(), ScriptParams{Script: "x"})
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if res.Target != 14.5 {
		t.Errorf("target: got %v, want 14.5", res.Target)
	}
	if res.Video.Seconds != 21 {
		t.Errorf("produced duration: got %v, want 21", res.Video.Seconds)
	}
}

// ---------------------------------------------------------------------------
// Poll state machine transitions
// ---------------------------------------------------------------------------

func TestNextPollStateTransitions(t *testing.T) {
	bound := MaxTransientRetries

	// Not done → keep polling
	s := nextPollState(pollState{phase: phasePolling}, PollResult{}, nil, bound)
	if s.phase != phasePolling {
		t.Errorf("pending poll: got phase %d, want polling", s.phase)
	}

	// Transient terminal error consumes one retry
	s = nextPollState(pollState{phase: phasePolling}, PollResult{Done: true, ErrMessage: "503"}, nil, bound)
	if s.phase != phaseRetryingTransient || s.retries != 1 {
		t.Errorf("transient: got phase=%d retries=%d, want retrying/1", s.phase, s.retries)
	}

	// At the bound, one more transient error fails
	s = nextPollState(pollState{phase: phaseRetryingTransient, retries: bound}, PollResult{Done: true, ErrMessage: "503"}, nil, bound)
	if s.phase != phaseFailed {
		t.Errorf("exhausted transient: got phase %d, want failed", s.phase)
	}

	// Non-transient terminal error fails regardless of remaining budget
	s = nextPollState(pollState{phase: phasePolling}, PollResult{Done: true, ErrMessage: "safety filtered"}, nil, bound)
	if s.phase != phaseFailed {
		t.Errorf("permanent: got phase %d, want failed", s.phase)
	}

	// Expired credential fails immediately even from a poll exception
	s = nextPollState(pollState{phase: phasePolling}, PollResult{}, fmt.Errorf("poll: %w", ErrCredentialExpired), bound)
	if s.phase != phaseFailed {
		t.Errorf("expired credential: got phase %d, want failed", s.phase)
	}

	// Clean completion
	s = nextPollState(pollState{phase: phaseRetryingTransient, retries: 2}, PollResult{Done: true, Asset: &VideoAsset{}}, nil, bound)
	if s.phase != phaseDone {
		t.Errorf("done: got phase %d, want done", s.phase)
	}
}
