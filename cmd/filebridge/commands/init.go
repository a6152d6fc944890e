// Package commands implements the filebridge CLI subcommands that do
// not run a bridge session.
package commands

import (
	"errors"
	"fmt"

	"github.com/filebridge-dev/filebridge/internal/cli/prompt"
	"github.com/filebridge-dev/filebridge/pkg/config"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// InitCommand writes a starter configuration file, prompting for the
// allow-list roots unless running non-interactively.
type InitCommand struct {
	configFile     string
	force          bool
	nonInteractive bool
}

// NewInitCommand creates a new init command handler.
func NewInitCommand(configFile string, force, nonInteractive bool) *InitCommand {
	return &InitCommand{
		configFile:     configFile,
		force:          force,
		nonInteractive: nonInteractive,
	}
}

// Run executes the init command and returns the path of the written file.
func (c *InitCommand) Run() (string, error) {
	roots := sandbox.DefaultRoots()

	if !c.nonInteractive {
		chosen, err := c.promptRoots(roots)
		if err != nil {
			if prompt.IsAborted(err) {
				return "", errors.New("aborted")
			}
			return "", err
		}
		roots = chosen
	}

	return config.InitFile(c.configFile, c.force, roots)
}

// promptRoots asks whether the default allow-list is acceptable and,
// if not, collects roots one per prompt until an empty answer.
func (c *InitCommand) promptRoots(defaults []string) ([]string, error) {
	fmt.Println("The allow-list limits which directories the host may read from.")
	fmt.Println("Default roots:")
	for _, root := range defaults {
		fmt.Printf("  - %s\n", root)
	}

	useDefaults, err := prompt.Confirm("Use the default allow-list")
	if err != nil {
		return nil, err
	}
	if useDefaults {
		return defaults, nil
	}

	var roots []string
	fmt.Println("Enter allowed roots one per line. Empty line finishes.")
	for {
		root, err := prompt.InputAbsolutePath(fmt.Sprintf("Root %d", len(roots)+1))
		if err != nil {
			return nil, err
		}
		if root == "" {
			break
		}
		roots = append(roots, root)
	}

	if len(roots) == 0 {
		return nil, errors.New("at least one allowed root is required")
	}
	return roots, nil
}
