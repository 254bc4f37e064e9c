package production

import (
	"context"
	"errors"
	"strings"
)

// GenerationProfile selects the remote model tier. Chosen once before the
// first submission and held for the whole production run.
type GenerationProfile string

const (
	// ProfileFast is the cheaper, lower-latency tier for single-segment,
	// no-reference greetings.
	ProfileFast GenerationProfile = "fast"

	// ProfileQuality is the higher-capability tier, required when reference
	// imagery is supplied or the plan needs more than one segment.
	ProfileQuality GenerationProfile = "quality"
)

// ReferenceRole tags how a reference image steers generation. The roles are
// asymmetric: the subject image anchors who or what appears, the style image
// anchors the visual treatment. The mapping to remote prompt weights is the
// service's business.
type ReferenceRole string

const (
	RoleSubject ReferenceRole = "subject"
	RoleStyle   ReferenceRole = "style"
)

type ReferenceImage struct {
	Data     []byte
	MIMEType string
	Role     ReferenceRole
}

// VideoAsset is the handle to one produced (possibly extended) silent video.
// Ref carries the service-native object needed for continuation; Bytes is
// populated once the asset is resolved for local use.
type VideoAsset struct {
	Ref     any
	URI     string
	Seconds float64
	Bytes   []byte
}

// SubmitRequest is one generation call. Continuation == nil starts a fresh
// video; otherwise the remote job continues the prior asset and owns visual
// continuity — the caller never stitches segments locally.
type SubmitRequest struct {
	Script       string
	Environment  string
	References   []ReferenceImage
	Continuation *VideoAsset
	Profile      GenerationProfile
}

// JobHandle is an opaque token for one in-flight remote job.
type JobHandle interface{}

// PollResult is one status observation. A terminal result carries either an
// asset, a remote error message, or neither (the "no usable asset, no error"
// case, which the orchestrator treats as a graceful stop).
type PollResult struct {
	Done       bool
	ErrMessage string
	Asset      *VideoAsset
}

// VideoJobService is the opaque remote video generator. Implementations own
// the wire format; the orchestrator owns calling discipline (poll interval,
// retry bound, error classification).
type VideoJobService interface {
	Submit(ctx context.Context, req SubmitRequest) (JobHandle, error)
	Poll(ctx context.Context, handle JobHandle) (PollResult, error)
	Download(ctx context.Context, asset *VideoAsset) ([]byte, error)
}

// Narrator generates narration audio for a script. A nil payload with a nil
// error is a valid outcome: the greeting is simply silent.
type Narrator interface {
	Narrate(ctx context.Context, script, voiceName string) ([]byte, error)
}

// Sentinel errors surfaced to callers.
var (
	// ErrNoAsset means the remote job completed without producing a usable
	// video — most likely safety-filtered or a transient capacity issue.
	ErrNoAsset = errors.New("no visual asset produced")

	// ErrCredentialExpired means the generation credential was rejected and
	// the user must re-authenticate it.
	ErrCredentialExpired = errors.New("generation credential expired")
)

// transientPatterns match serverside/internal-error classes that are worth
// retrying. Permanent rejections (safety filters, bad requests, expired
// keys) never match.
var transientPatterns = []string{
	"internal error",
	"internal server",
	"500",
	"503",
	"unavailable",
	"deadline exceeded",
	"overloaded",
	"resource exhausted",
	"resource has been exhausted",
	"429",
	"try again",
}

// IsTransient classifies a remote error message.
func IsTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
