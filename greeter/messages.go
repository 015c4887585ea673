package greeter

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultWelcomeMessage is used when no template is configured.
const DefaultWelcomeMessage = "Welcome {newcomer}! The channel is pretty quiet right now, so I thought I'd say " +
	"hello, and ping some people that you're here (like {greeter_string}). I'm a bot! " +
	"If no one responds for a while, try coming back later."

// DefaultHelpMessage is the self-description sent on a help request.
const DefaultHelpMessage = "I'm a bot! I welcome newcomers to this channel once they have been around for a little while."

// AdminList renders admins as prose: "a", "a and b", "a, b, and c".
func AdminList(admins []string) string {
	switch len(admins) {
	case 0:
		return ""
	case 1:
		return admins[0]
	case 2:
		return admins[0] + " and " + admins[1]
	}
	return strings.Join(admins[:len(admins)-1], ", ") + ", and " + admins[len(admins)-1]
}

// FormatWelcome fills the {newcomer} and {greeter_string} placeholders of tmpl.
func FormatWelcome(tmpl, newcomer string, admins []string) string {
	return strings.NewReplacer(
		"{newcomer}", newcomer,
		"{greeter_string}", AdminList(admins),
	).Replace(tmpl)
}

func waitTimeConfirmation(actor string, seconds int) string {
	return fmt.Sprintf("%s the wait time is changing to %d seconds.", actor, seconds)
}

func waitTimeDenial(actor string, admins []string) string {
	return fmt.Sprintf("%s you are not authorized to make that change. "+
		"Please contact one of the channel greeters, like %s, for assistance.", actor, AdminList(admins))
}

// Chooser picks one of several options.
type Chooser interface {
	Choose(options []string) string
}

type randChooser struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewChooser returns a Chooser backed by math/rand. A zero seed seeds from the clock.
func NewChooser(seed int64) Chooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // G404: greeting choice is not security sensitive
	return &randChooser{r: rand.New(rand.NewSource(seed))}
}

func (c *randChooser) Choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return options[c.r.Intn(len(options))]
}
