package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/catalog"
	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/pavelpascari/fetchstate/pkg/forms"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in, run lessons login first")

func newLoginCommand(a *app) *cobra.Command {
	var (
		form   forms.Auth
		signUp bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.check(form); err != nil {
				return err
			}

			sess, closeSession, err := a.session()
			if err != nil {
				return err
			}
			defer closeSession()

			transport, err := a.transport(nil)
			if err != nil {
				return err
			}

			d := catalog.SignIn(form.Email, form.Password)
			if signUp {
				d = catalog.SignUp(form.Email, form.Password)
			}

			c := fetchstate.NewController[catalog.Credentials](transport, fetchstate.WithLogger(a.logger))
			defer c.Close()

			state := c.Do(cmd.Context(), d)
			if !state.Resolved() {
				return settle(a, state)
			}

			expiresAt := time.Now().Add(state.Data.ExpiresIn)
			if err := sess.Login(state.Data.IDToken, expiresAt); err != nil {
				return err
			}

			_, err = fmt.Fprintf(a.out, "Signed in as %s until %s\n", state.Data.Email, expiresAt.Format(time.Kitchen))
			return err
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Account password")
	cmd.Flags().BoolVar(&signUp, "signup", false, "Create the account first")

	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			sess, closeSession, err := a.session()
			if err != nil {
				return err
			}
			defer closeSession()

			if err := sess.Logout(); err != nil {
				return err
			}

			_, err = fmt.Fprintln(a.out, "Signed out")
			return err
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, closeSession, err := a.session()
			if err != nil {
				return err
			}
			defer closeSession()

			if !sess.IsLoggedIn() {
				return errNotSignedIn
			}

			transport, err := a.transport(sess)
			if err != nil {
				return err
			}

			c := fetchstate.NewController[catalog.Account](transport, fetchstate.WithLogger(a.logger))
			defer c.Close()

			return settle(a, c.Do(cmd.Context(), catalog.Lookup()))
		},
	}
}

func newPasswdCommand(a *app) *cobra.Command {
	var form forms.NewPassword

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.check(form); err != nil {
				return err
			}

			sess, closeSession, err := a.session()
			if err != nil {
				return err
			}
			defer closeSession()

			if !sess.IsLoggedIn() {
				return errNotSignedIn
			}

			transport, err := a.transport(nil)
			if err != nil {
				return err
			}

			c := fetchstate.NewController[catalog.Account](transport, fetchstate.WithLogger(a.logger))
			defer c.Close()

			state := c.Do(cmd.Context(), catalog.ChangePassword(sess.Token(), form.Password))
			if !state.Resolved() {
				return settle(a, state)
			}

			_, err = fmt.Fprintf(a.out, "Password changed for %s\n", state.Data.Email)
			return err
		},
	}

	cmd.Flags().StringVar(&form.Password, "password", "", "New password")

	return cmd
}
