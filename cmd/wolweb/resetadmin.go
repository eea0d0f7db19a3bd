package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wolweb/internal/config"
	"wolweb/internal/store"
)

// resetAdminCmd recovers access when the superuser password is lost.
// The new password is read from stdin so it never appears in argv or
// shell history.
var resetAdminCmd = &cobra.Command{
	Use:   "reset-admin",
	Short: "Reset the superuser password",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		u, err := st.Users.GetByID(cmd.Context(), store.SuperuserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errors.New("no superuser yet: register the first account through the web UI")
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "New password for %s: ", u.Username)
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		password = strings.TrimRight(password, "\r\n")

		if err := st.Users.SetPassword(cmd.Context(), u.ID, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
		return nil
	},
}
