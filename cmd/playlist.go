package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vidx/internal/formatter"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/playlists"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/desertthunder/vidx/internal/ui"
	"github.com/urfave/cli/v3"
)

// readCriteria returns the criteria given by --criteria or --criteria-file, or nil when neither holds a document.
func readCriteria(cmd *cli.Command) (*models.Criteria, error) {
	inline := cmd.String("criteria")
	file := cmd.String("criteria-file")

	if inline != "" && file != "" {
		return nil, fmt.Errorf("%w: cannot specify both --criteria and --criteria-file", shared.ErrInvalidArgument)
	}

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read criteria file: %w", err)
		}
		data = b
	}
	return models.DecodeCriteria(data)
}

// PlaylistCreate creates a DYNAMIC playlist, or a STATIC one with --static.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	var detail *playlists.PlaylistDetail
	if cmd.Bool("static") {
		if cmd.IsSet("criteria") || cmd.IsSet("criteria-file") {
			return fmt.Errorf("%w: STATIC playlists do not take criteria", shared.ErrInvalidArgument)
		}
		detail, err = r.service.CreateStatic(ctx, actor, playlists.CreateStaticInput{
			Name:        cmd.String("name"),
			Description: cmd.String("description"),
			Public:      cmd.Bool("public"),
		})
	} else {
		criteria, cerr := readCriteria(cmd)
		if cerr != nil {
			return cerr
		}
		detail, err = r.service.CreateDynamic(ctx, actor, playlists.CreateDynamicInput{
			Name:        cmd.String("name"),
			Description: cmd.String("description"),
			Criteria:    criteria,
			Public:      cmd.Bool("public"),
			AutoUpdate:  cmd.Bool("auto-update"),
			Featured:    cmd.Bool("featured"),
		})
	}
	if err != nil {
		return err
	}

	p := detail.Playlist
	return r.writePlain("%s created %s playlist %q (%s) with %d videos\n",
		ui.OK("✓"), ui.Kind(string(p.Kind())), p.Name, p.ID, p.Stats.EntryCount)
}

// PlaylistList prints the acting user's playlists.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	list, err := r.service.List(ctx, actor)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(list, true)
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(list)))
	for _, p := range list {
		refreshed := ui.Help("never refreshed")
		if p.LastUpdated != nil {
			refreshed = ui.Help("refreshed " + p.LastUpdated.Local().Format("2006-01-02 15:04"))
		}
		r.writePlain("%s  %-7s  %s  %d videos, %s  %s\n", p.ID, ui.Kind(string(p.Kind())), p.Name,
			p.Stats.EntryCount, shared.FormatDuration(p.Stats.TotalDuration), refreshed)
	}
	return nil
}

// PlaylistShow renders a playlist in the requested format, to stdout or --output.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	detail, err := r.service.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	export := &formatter.Export{Playlist: detail.Playlist, Entries: detail.Entries}
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(export, format, path)
		if err != nil {
			return err
		}
		return r.writePlain("%s wrote %s\n", ui.OK("✓"), written)
	}
	return formatter.Write(r.output, export, format)
}

// PlaylistRefresh reconciles one DYNAMIC playlist.
func (r *Runner) PlaylistRefresh(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := r.service.Refresh(ctx, actor, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writeRefresh(result)
}

// PlaylistCriteria replaces the criteria of a DYNAMIC playlist and reconciles it.
func (r *Runner) PlaylistCriteria(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}

	criteria, err := readCriteria(cmd)
	if err != nil {
		return err
	}
	if criteria == nil {
		return fmt.Errorf("%w: --criteria or --criteria-file is required", shared.ErrMissingArgument)
	}

	var autoUpdate *bool
	if cmd.IsSet("auto-update") {
		v := cmd.Bool("auto-update")
		autoUpdate = &v
	}

	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := r.service.UpdateCriteria(ctx, actor, id, *criteria, autoUpdate)
	if err != nil {
		return err
	}
	return r.writeRefresh(result)
}

// PlaylistPreview shows the matches for criteria without persisting anything.
func (r *Runner) PlaylistPreview(ctx context.Context, cmd *cli.Command) error {
	criteria, err := readCriteria(cmd)
	if err != nil {
		return err
	}
	if criteria == nil {
		criteria = &models.Criteria{}
	}
	if err := r.open(); err != nil {
		return err
	}

	result, err := r.service.Preview(ctx, *criteria, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainHeader(fmt.Sprintf("Preview: %d matches", result.TotalMatches))
	for i, v := range result.Sample {
		r.writePlain("%d. %s - %s [%s]\n", i+1, v.ArtistName, v.Title, shared.FormatDuration(v.DurationSeconds()))
	}
	if remaining := result.TotalMatches - len(result.Sample); remaining > 0 {
		r.writePlain("%s\n", ui.Help(fmt.Sprintf("... and %d more", remaining)))
	}
	return nil
}

// TemplatesList prints the template registry.
func (r *Runner) TemplatesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	summaries := r.service.ListTemplates()
	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	r.writePlainHeader("Templates")
	for _, s := range summaries {
		r.writePlain("%-16s %s\n", ui.Title(s.ID), s.Name)
		r.writePlain("%-16s %s\n", "", ui.Help(s.Description))
	}
	return nil
}

// TemplatesApply creates a DYNAMIC playlist from a template.
func (r *Runner) TemplatesApply(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: template id is required", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	var overrides playlists.TemplateOverrides
	if cmd.IsSet("name") {
		v := cmd.String("name")
		overrides.Name = &v
	}
	if cmd.IsSet("description") {
		v := cmd.String("description")
		overrides.Description = &v
	}
	if cmd.IsSet("public") {
		v := cmd.Bool("public")
		overrides.Public = &v
	}
	if cmd.IsSet("auto-update") {
		v := cmd.Bool("auto-update")
		overrides.AutoUpdate = &v
	}

	detail, err := r.service.CreateFromTemplate(ctx, actor, id, overrides)
	if err != nil {
		return err
	}

	p := detail.Playlist
	return r.writePlain("%s created %q (%s) from %s with %d videos\n", ui.OK("✓"), p.Name, p.ID, id, p.Stats.EntryCount)
}

// RefreshAll runs the batch sweep, printing progress unless --quiet.
func (r *Runner) RefreshAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	actor, err := r.actor(ctx, cmd)
	if err != nil {
		return err
	}

	maxAge := r.config.Refresh.MaxAge()
	if cmd.IsSet("max-age") {
		maxAge = cmd.Duration("max-age")
	}

	var progressCh chan tasks.ProgressUpdate
	done := make(chan struct{})
	if cmd.Bool("quiet") {
		close(done)
	} else {
		progressCh = make(chan tasks.ProgressUpdate, 50)
		go func() {
			defer close(done)
			for update := range progressCh {
				switch update.Phase {
				case tasks.ReconcileFailed:
					r.writePlain("   %s\n", ui.Err(update.Message))
				case tasks.ReconcilePlaylist:
					r.writePlain("   %s\n", update.Message)
				default:
					r.writePlain("%s\n", update.Message)
				}
			}
		}()
	}

	summary, err := r.service.UpdateAll(ctx, actor, maxAge, progressCh)
	if progressCh != nil {
		close(progressCh)
	}
	<-done

	if summary != nil {
		r.writePlain("\n")
		r.writePlainHeader("Refresh Complete")
		r.writePlain("Checked: %d\n", summary.Checked)
		r.writePlain("Updated: %d (%d changed)\n", summary.Updated, summary.Changed)
		if summary.Errors > 0 {
			r.writePlain("%s\n", ui.Err(fmt.Sprintf("Errors: %d", summary.Errors)))
			for _, f := range summary.Failures {
				r.writePlain("  - %s: %s\n", f.PlaylistID, f.Error)
			}
		}
	}
	return err
}

func (r *Runner) writeRefresh(result *playlists.RefreshResult) error {
	if !result.ChangesMade {
		return r.writePlain("%s no changes\n", ui.OK("✓"))
	}
	count := 0
	if result.Playlist != nil {
		count = result.Playlist.Playlist.Stats.EntryCount
	}
	return r.writePlain("%s +%d / -%d, now %d videos\n", ui.OK("✓"), result.Added, result.Removed, count)
}
