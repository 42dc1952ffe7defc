package cli

import (
	"fmt"

	"live-quiz-service/internal/domain/nickname"
	"github.com/spf13/cobra"
)

// NewNicknameCmd reports whether a display name would be accepted on join.
func NewNicknameCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "nickname <name>",
		Short: "Validate a participant nickname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			v := nickname.NewValidator(cfg.Nickname.MinLength, cfg.Nickname.MaxLength)
			name := nickname.Normalize(args[0])
			if !v.IsValid(name) {
				return fmt.Errorf("nickname %q is invalid: must be %d to %d characters", name, v.MinLength(), v.MaxLength())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nickname %q is valid\n", name)
			return nil
		},
	}
}
