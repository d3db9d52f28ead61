package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planexec/planexec/internal/planio"
	"github.com/planexec/planexec/pkg/exec"
	"github.com/planexec/planexec/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var policyDirs []string

	cmd := &cobra.Command{
		Use:   "validate <plan.json>",
		Short: "Parse a plan document and run it through the policy engine without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := exec.NewMemoryStateCache()
			root, err := planio.LoadFile(cmd.Context(), args[0], cache)
			if err != nil {
				return err
			}

			if len(policyDirs) == 0 {
				fmt.Printf("%s: parsed ok, node count unchecked against policy (no --policy-dir given)\n", args[0])
				return nil
			}

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return fmt.Errorf("create policy engine: %w", err)
			}
			if err := engine.LoadPolicies(cmd.Context(), policyDirs); err != nil {
				return fmt.Errorf("load policies: %w", err)
			}
			if err := engine.ValidatePlan(root); err != nil {
				return fmt.Errorf("plan rejected: %w", err)
			}

			fmt.Printf("%s: valid\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directory of Rego policies to validate against (repeatable)")
	return cmd
}
