package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/SumantSagar73/certify/pkg/prefs"
	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return themeRun(cmd.Context(), args)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories [add|remove <name>]",
	Short: "List categories or manage your own ones",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoriesRun(cmd.Context(), args)
	},
}

func init() {
	certifyCmd.AddCommand(themeCmd, categoriesCmd)
}

func themeRun(ctx context.Context, args []string) error {
	p, err := prefs.Open(conf.Client.StatePath)
	if err != nil {
		return err
	}
	defer p.Close()

	var theme prefs.Theme
	switch {
	case len(args) == 0:
		theme, err = p.Theme(ctx)
	case args[0] == "toggle":
		theme, err = p.ToggleTheme(ctx)
	case args[0] == string(prefs.ThemeLight), args[0] == string(prefs.ThemeDark):
		theme = prefs.Theme(args[0])
		err = p.SetTheme(ctx, theme)
	default:
		return fmt.Errorf("unknown theme %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println(theme)
	return nil
}

func categoriesRun(ctx context.Context, args []string) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	sess, err := env.session(ctx)
	if err != nil {
		return err
	}
	user := sess.User.ID

	if len(args) > 0 {
		if len(args) != 2 {
			return fmt.Errorf("usage: certify categories %s <name>", args[0])
		}
		switch args[0] {
		case "add":
			_, err = env.prefs.AddCustomCategory(ctx, user, args[1])
		case "remove":
			_, err = env.prefs.RemoveCustomCategory(ctx, user, args[1])
		default:
			return fmt.Errorf("unknown action %q", args[0])
		}
		if err != nil {
			return err
		}
	}
	all, err := env.prefs.AllCategories(ctx, user)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(all, "\n"))
	return nil
}
