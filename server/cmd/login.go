package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Email a sign-in link",
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(cmd.Context())
	},
}

var verifyToken string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Finish signing in with the token from the emailed link",
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyRun(cmd.Context())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun(cmd.Context())
	},
}

func init() {
	certifyCmd.AddCommand(loginCmd, verifyCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	verifyCmd.Flags().StringVar(&verifyToken, "token", "", "Token from the sign-in link")
}

func loginRun(ctx context.Context) error {
	if loginEmail == "" {
		return errors.New("--email is required")
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.client.SendMagicLink(ctx, loginEmail); err != nil {
		return err
	}
	fmt.Printf("Check %s for a sign-in link, then run: certify verify --token <token>\n", loginEmail)
	return nil
}

func verifyRun(ctx context.Context) error {
	if verifyToken == "" {
		return errors.New("--token is required")
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	sess, err := env.client.Verify(ctx, verifyToken)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", sess.User.Email)
	return nil
}

func logoutRun(ctx context.Context) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.client.Logout(ctx); err != nil {
		env.log.WithError(err).Warn("server side logout failed, local session cleared")
	}
	fmt.Println("Signed out")
	return nil
}

func whoamiRun(ctx context.Context) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	sess, err := env.session(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s), session expires %s\n", sess.User.Email, sess.User.ID, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
