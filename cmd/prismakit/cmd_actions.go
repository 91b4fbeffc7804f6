package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prismakit/internal/automation"
	"prismakit/internal/messaging"
)

// =============================================================================
// ONE-SHOT ACTIONS - run a single flow against the host tab and exit
// =============================================================================

var dsearchCmd = &cobra.Command{
	Use:     "dsearch [d-number]",
	Short:   "Search the host app for a D-Number and open the matching result",
	Example: `  prismakit dsearch D12345678`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := dispatchOnce(cmd, automation.ActionDNumberSearch, map[string]string{"dNumber": args[0]}); err != nil {
			return err
		}
		cmd.Printf("Opened result for %s\n", args[0])
		return nil
	},
}

var swapAccountCmd = &cobra.Command{
	Use:   "swap-account",
	Short: "Switch to the first inactive PID in the account dialog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := dispatchOnce(cmd, automation.ActionSwapAccount, nil); err != nil {
			return err
		}
		cmd.Println("Account swapped; page reloaded")
		return nil
	},
}

var pasteApproversCmd = &cobra.Command{
	Use:     "paste-approvers [email]...",
	Short:   "Add approvers to the approver field by email",
	Example: `  prismakit paste-approvers dana.whitfield@agency.example priya.raman@agency.example`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := dispatchOnce(cmd, automation.ActionPasteApprover, map[string][]string{"emails": args})
		if err != nil {
			return err
		}
		res, _ := data.(automation.BatchResult)
		for _, email := range res.Added {
			cmd.Printf("  added   %s\n", email)
		}
		for _, f := range res.Failed {
			cmd.Printf("  failed  %s (%s: %s)\n", f.Email, f.Step, f.Err)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d approvers could not be added", len(res.Failed), len(res.Failed)+len(res.Added))
		}
		return nil
	},
}

// dispatchOnce starts an agent, sends one action through its bus and shuts
// it down again.
func dispatchOnce(cmd *cobra.Command, action string, payload any) (any, error) {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := startAgent(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	msg := messaging.Message{Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}

	logger.Debug("Dispatching action", zap.String("action", action))
	resp := a.coord.Bus().Dispatch(ctx, msg)
	if !resp.OK() {
		return nil, errors.New(resp.Error)
	}
	return resp.Data, nil
}
