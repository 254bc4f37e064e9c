package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dlnapm/egreetz/internal/models"
	"github.com/dlnapm/egreetz/internal/production"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("submit: %w", production.ErrCredentialExpired), "credential_expired"},
		{production.ErrNoAsset, "no_asset"},
		{errors.New("remote job error: safety policy"), "production_failed"},
	}
	for _, c := range cases {
		if got := errorCode(c.err); got != c.want {
			t.Errorf("errorCode(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestPlanMessageFoldsContext(t *testing.T) {
	name := "Maya"
	occasion := "graduation"
	g := &models.Greeting{Message: "So proud of you!", RecipientName: &name, Occasion: &occasion}

	got := planMessage(g)
	want := "For Maya: So proud of you! (occasion: graduation)"
	if got != want {
		t.Errorf("planMessage: got %q, want %q", got, want)
	}

	bare := &models.Greeting{Message: "Hello"}
	if got := planMessage(bare); got != "Hello" {
		t.Errorf("planMessage without context: got %q", got)
	}
}
