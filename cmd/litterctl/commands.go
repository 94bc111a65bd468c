package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"litterbox-service/internal/messaging"
	"litterbox-service/internal/types"
)

func listCommand(use, short, list string, valid []string) *cobra.Command {
	return &cobra.Command{
		Use:       use + " <command>",
		Short:     short,
		ValidArgs: valid,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.SendCommand(list, args[0]); err != nil {
				return fmt.Errorf("send %s %s: %w", use, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s queued\n", use, args[0])
			return nil
		},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the published motor and weight state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer client.Close()

		status, err := client.GetMotorStatus()
		if err != nil {
			return err
		}
		weight, err := client.GetWeight()
		if err != nil {
			return err
		}
		lastErr, err := client.GetHashField(messaging.MotorHash, "last-error")
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatStatus(status, weight, lastErr))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set cruise-speed <0-100>",
	Short: "Persist the cruise speed setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "cruise-speed" {
			return fmt.Errorf("unknown setting %q", args[0])
		}
		duty, err := strconv.Atoi(args[1])
		if err != nil || duty < 0 || duty > 100 {
			return fmt.Errorf("cruise speed must be 0-100, got %q", args[1])
		}

		client, err := connect()
		if err != nil {
			return err
		}
		defer client.Close()
		return client.SetSetting("litterbox.cruise-speed", strconv.Itoa(duty))
	},
}

func init() {
	rootCmd.AddCommand(
		listCommand("motor", "Drive the motor directly", messaging.MotorCommandList,
			[]string{"forward", "reverse", "brake", "coast", "speed-up", "speed-down"}),
		listCommand("action", "Start or stop a homing or cleaning sequence", messaging.ActionCommandList,
			[]string{"home", "clean", "stop"}),
		listCommand("autotest", "Start or stop the endurance test", messaging.AutoTestCommandList,
			[]string{"start", "stop"}),
		statusCmd,
		setCmd,
	)
}

func formatStatus(s types.MotorStatus, w types.Weight, lastErr string) string {
	out := fmt.Sprintf("action: %s\nmotor : %s\nmotor speed: %d\noutput: %d\nauto test: %t\nweight: %d (%.1f g)\n",
		s.Action, s.Drive, s.Speed, s.Output, s.AutoTest, w.Raw, w.Grams)
	if lastErr != "" {
		out += "last error: " + lastErr + "\n"
	}
	return out
}
