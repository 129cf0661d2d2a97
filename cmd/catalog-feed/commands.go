package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"github.com/Sternrassler/catalog-feed/pkg/client"
	"github.com/Sternrassler/catalog-feed/pkg/config"
	"github.com/Sternrassler/catalog-feed/pkg/listing"
	"github.com/Sternrassler/catalog-feed/pkg/logging"
	"github.com/Sternrassler/catalog-feed/pkg/pagination"
	"github.com/urfave/cli/v3"
)

// defaultPages is how many pages browse loads unless told otherwise.
const defaultPages = 3

func browseCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "print the items of one listing as JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Usage: "listing view", Value: listing.CategoryProducts.Name},
			&cli.StringFlag{Name: "scope", Usage: "category, collection or feed id"},
			&cli.StringFlag{Name: "search", Usage: "free-text search"},
			&cli.StringFlag{Name: "sort", Usage: "sort order (relevance, newest, price_asc, price_desc, name_asc, name_desc)"},
			&cli.IntFlag{Name: "pages", Usage: "maximum number of pages to load (0 loads all)", Value: defaultPages},
			&cli.IntFlag{Name: "retries", Usage: "retries per failed page"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			view, ok := listing.ViewByName(cmd.String("view"))
			if !ok {
				return fmt.Errorf("unknown view %q (available: %v)", cmd.String("view"), listing.ViewNames())
			}
			sortBy, err := catalog.ParseSortBy(cmd.String("sort"))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q := catalog.Query{ScopeID: cmd.String("scope"), Search: cmd.String("search"), SortBy: sortBy, Page: 1}
			return browse(ctx, cfg, view, q, browseOptions{pages: cmd.Int("pages"), retries: cmd.Int("retries")}, out)
		},
	}
}

func dashboardCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "load the first page of several feeds",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "feed", Usage: "feed id (repeatable)", Required: true},
			&cli.StringFlag{Name: "sort", Usage: "sort order shared by all feeds"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sortBy, err := catalog.ParseSortBy(cmd.String("sort"))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return dashboard(ctx, cfg, cmd.StringSlice("feed"), sortBy, out)
		},
	}
}

func viewsCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "views",
		Usage: "list the available listing views",
		Action: func(_ context.Context, _ *cli.Command) error {
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VIEW\tRESOURCE\tNAMESPACE")
			for _, name := range listing.ViewNames() {
				v, _ := listing.ViewByName(name)
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Resource, v.Namespace)
			}
			return w.Flush()
		},
	}
}

type browseOptions struct {
	pages   int
	retries int
}

// newEngine wires the catalog client and session cache into a list engine.
func newEngine(ctx context.Context, cfg config.Config) (*listing.Engine, func(), error) {
	c, err := client.New(cfg.Client())
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	startMetrics(ctx, cfg)

	engine := listing.NewEngine(func(resource string) pagination.PageFetcher {
		return c.Lister(resource)
	}, store, cfg.Session())
	return engine, closeStore, nil
}

// browse loads up to opts.pages pages of one listing and writes every item
// once, in order, as it arrives.
func browse(ctx context.Context, cfg config.Config, view listing.View, q catalog.Query, opts browseOptions, out io.Writer) error {
	logger := logging.NewLogger("catalog-feed")

	engine, closeStore, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	session, err := engine.Open(ctx, view)
	if err != nil {
		return err
	}
	defer session.Close()

	written := 0
	flush := func() error {
		items := session.State().Items
		for _, item := range items[written:] {
			if _, err := fmt.Fprintf(out, "%s\n", item.Raw); err != nil {
				return err
			}
		}
		written = len(items)
		return nil
	}

	step := func(load func() error) error {
		err := load()
		for attempt := 0; err != nil && attempt < opts.retries; attempt++ {
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Page failed, retrying")
			err = session.Retry(ctx)
		}
		if err != nil {
			return err
		}
		return flush()
	}

	if err := step(func() error { return session.SetQuery(ctx, q) }); err != nil {
		return err
	}
	for pages := 1; opts.pages <= 0 || pages < opts.pages; pages++ {
		if st := session.State(); st.Status != listing.StatusReady {
			break
		}
		if err := step(func() error { return session.LoadMore(ctx) }); err != nil {
			return err
		}
	}

	st := session.State()
	logger.Info().
		Str("view", view.Name).
		Str("key", st.Key).
		Str("status", string(st.Status)).
		Int("items", len(st.Items)).
		Int("total", st.Total).
		Int("page", st.Page).
		Msg("Browse finished")
	return nil
}

// dashboard opens one feed session per id and prints a summary table.
func dashboard(ctx context.Context, cfg config.Config, feeds []string, sortBy catalog.SortBy, out io.Writer) error {
	engine, closeStore, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	d, err := engine.OpenDashboard(ctx, feeds, sortBy)
	if err != nil {
		return err
	}
	defer d.Close()

	states := d.States()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEED\tSTATUS\tITEMS\tTOTAL\tMORE\tERROR")
	for _, id := range d.Feeds() {
		st := states[id]
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n", id, st.Status, len(st.Items), st.Total, st.HasNext, st.Error)
	}
	return w.Flush()
}
