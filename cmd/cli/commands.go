package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/repository/jsonfile"
)

type rootOptions struct {
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fkctl",
		Short:         "Client for the face authentication API",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env file is optional
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:8000", "server address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newWhoamiCmd(opts),
		newUsersCmd(),
	)
	return root
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var username, password string
	var files []string
	cmd := &cobra.Command{
		Use:   "register -u <username> -p <password> -i <image> [-i <image>...]",
		Short: "Enroll a user from one or more face images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(files) == 0 {
				return errors.New("at least one --image is required")
			}
			images := make([][]byte, 0, len(files))
			for _, f := range files {
				b, err := readAll(f)
				if err != nil {
					return fmt.Errorf("read %s: %w", f, err)
				}
				images = append(images, b)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			resp, err := newAPIClient(opts.addr, opts.timeout).register(ctx, username, password, images)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringSliceVarP(&files, "image", "i", nil, "face image file, - for stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var username, password, file string
	cmd := &cobra.Command{
		Use:   "login -u <username> -p <password> -i <image>",
		Short: "Verify password and face; saves the access token when issued",
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := readAll(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			resp, err := newAPIClient(opts.addr, opts.timeout).login(ctx, username, password, img)
			if err != nil {
				return err
			}
			if resp.AccessToken != "" {
				if err := saveToken(tokenFile{Username: username, AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt}); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
			}
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVarP(&file, "image", "i", "", "face image file, - for stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the saved access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tf, err := loadToken()
			if err != nil {
				return err
			}
			c := newAPIClient(opts.addr, opts.timeout)
			c.token = tf.AccessToken

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			name, err := c.whoami(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List usernames in a local user document (read-only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := jsonfile.New(path).Load(cmd.Context())
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("%s: no user document", path)
			}
			if err != nil {
				return err
			}
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Username)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "store-path", "data/users.json", "user document path")
	return cmd
}
