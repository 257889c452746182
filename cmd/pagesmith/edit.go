package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pagesmith/internal/sanitize"
	"pagesmith/pkg/editor"
	"pagesmith/pkg/inliner"
)

// readSource returns the content of the first argument.
func readSource(cmd *cli.Command) (string, string, error) {
	if cmd.Args().Len() == 0 {
		return "", "", errors.New("no SOURCE file specified")
	}
	if cmd.Args().Len() > 2 {
		return "", "", fmt.Errorf("too many arguments: %s", strings.Join(cmd.Args().Slice()[2:], " "))
	}
	src := cmd.Args().Get(0)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", "", fmt.Errorf("unable to read source: %w", err)
	}
	return string(data), cmd.Args().Get(1), nil
}

// runEdit drives an editor session the way a user would: click, edit, save.
func runEdit(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)
	content, dst, err := readSource(cmd)
	if err != nil {
		return err
	}

	var saved string
	opts := env.Cfg.Editor.Options()
	opts.AutosaveEnabled = false
	opts.OnSave = func(html string) { saved = html }
	opts.Logger = env.Log
	s := editor.New(opts)
	if err := s.Load(content); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Unmount()) }()

	selector := cmd.String("select")
	target, err := s.Find(selector)
	if err != nil {
		return fmt.Errorf("unable to find %q: %w", selector, err)
	}
	sel, err := s.Click(target)
	if err != nil {
		return err
	}
	if sel == nil {
		return fmt.Errorf("clicking %q selects nothing", selector)
	}
	env.Log.Info("Selected", zap.String("tag", sel.Panel.Tag), zap.Stringer("rule", sel.Rule))

	if cmd.IsSet("text") {
		if err := s.EditText(cmd.String("text")); err != nil {
			return err
		}
	}
	for _, spec := range cmd.StringSlice("style") {
		property, value, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(property) == "" {
			return fmt.Errorf("malformed style %q, expected PROPERTY=VALUE", spec)
		}
		if err := s.ApplyStyle(strings.TrimSpace(property), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	toggles := []struct {
		flag string
		fn   func() error
	}{
		{"bold", s.ToggleBold},
		{"italic", s.ToggleItalic},
		{"underline", s.ToggleUnderline},
	}
	for _, t := range toggles {
		if cmd.Bool(t.flag) {
			if err := t.fn(); err != nil {
				return err
			}
		}
	}

	changes, err := s.Changes()
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	env.Log.Info("Edits applied", zap.Int("insertions", changes.Insertions), zap.Int("deletions", changes.Deletions))
	return writeOutput(dst, []byte(saved))
}

func runInline(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	content, dst, err := readSource(cmd)
	if err != nil {
		return err
	}

	res, err := inliner.New(inliner.Options{KeepStyleTags: cmd.Bool("keep-styles")}, env.Log).Inline(content)
	if err != nil {
		return err
	}
	env.Log.Info("Styles inlined",
		zap.Int("rules", res.Stats.RulesParsed),
		zap.Int("elements", res.Stats.ElementsStyled),
		zap.Int("kept style tags", res.Stats.StyleTagsKept))
	return writeOutput(dst, []byte(res.HTML))
}

func runOutline(ctx context.Context, cmd *cli.Command) error {
	content, dst, err := readSource(cmd)
	if err != nil {
		return err
	}
	md, err := sanitize.NewOutliner().Outline(content)
	if err != nil {
		return err
	}
	return writeOutput(dst, []byte(md+"\n"))
}
