package commands

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/filebridge-dev/filebridge/internal/cli/output"
	"github.com/filebridge-dev/filebridge/pkg/config"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// SandboxCommand inspects the configured allow-list from the command
// line: listing roots and dry-running the path check a READ would get.
type SandboxCommand struct {
	configFile string
}

// NewSandboxCommand creates a new sandbox inspection command handler.
func NewSandboxCommand() *SandboxCommand {
	return &SandboxCommand{}
}

func (c *SandboxCommand) parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.StringVar(&c.configFile, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// loadPolicy builds the sandbox policy from the configured allow-list.
func (c *SandboxCommand) loadPolicy() (*sandbox.Policy, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return nil, err
	}
	return sandbox.NewPolicy(cfg.Sandbox.AllowedRoots)
}

// RunCheckPath tests each path argument against the allow-list and
// prints the verdict the bridge would give a READ request.
func (c *SandboxCommand) RunCheckPath(args []string) error {
	fs := flag.NewFlagSet("check-path", flag.ExitOnError)
	paths, err := c.parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: filebridge check-path [--config path] <path> [path...]")
	}

	policy, err := c.loadPolicy()
	if err != nil {
		return err
	}

	table := output.NewTable("PATH", "VERDICT", "DETAIL")
	denied := false
	for _, path := range paths {
		canonical, denial := policy.Check(path)
		if denial == sandbox.Allowed {
			table.AddRow(path, "allowed", canonical)
		} else {
			table.AddRow(path, "denied", string(denial))
			denied = true
		}
	}

	table.Render(os.Stdout)
	if denied {
		os.Exit(1)
	}
	return nil
}

// RunRoots prints the configured allow-list roots and whether each one
// currently resolves on this machine.
func (c *SandboxCommand) RunRoots(args []string) error {
	fs := flag.NewFlagSet("roots", flag.ExitOnError)
	if _, err := c.parseFlags(fs, args); err != nil {
		return err
	}

	policy, err := c.loadPolicy()
	if err != nil {
		return err
	}

	table := output.NewTable("ROOT", "RESOLVES TO")
	for _, root := range policy.Roots() {
		canonical, err := filepath.EvalSymlinks(root)
		if err != nil {
			table.AddRow(root, fmt.Sprintf("unresolvable: %v", err))
			continue
		}
		table.AddRow(root, canonical)
	}
	table.Render(os.Stdout)
	return nil
}
