package builtin

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
)

// Capability group names as seen by snippets under `api`.
const (
	PathGroup      = "path"
	CryptoGroup    = "crypto"
	UIGroup        = "ui"
	DOMGroup       = "dom"
	StringsGroup   = "strings"
	TransformGroup = "transform"
)

// Deps carries host collaborators the builtin groups call into.
type Deps struct {
	Notifier Notifier
}

// Register installs every builtin group into reg.
func Register(reg *capability.Registry, deps Deps) error {
	if deps.Notifier == nil {
		deps.Notifier = DiscardNotifier{}
	}

	groups := []struct {
		name  string
		value any
	}{
		{PathGroup, Path()},
		{CryptoGroup, Crypto()},
		{UIGroup, UI(deps.Notifier)},
		{DOMGroup, DOM()},
		{StringsGroup, Strings()},
		{TransformGroup, Transform()},
	}

	for _, g := range groups {
		if err := reg.Register(g.name, g.value); err != nil {
			return fmt.Errorf("failed to register %s capabilities: %w", g.name, err)
		}
	}
	return nil
}
