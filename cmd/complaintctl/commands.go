package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/tbourn/go-complaint-desk/internal/auth"
	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/store"
)

// fileList collects repeated -attach flags.
type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

// filterArgs holds the raw filter flags shared by list and search.
type filterArgs struct {
	status, category, priority, search string
	page, limit                        int
}

func addFilterFlags(fs *flag.FlagSet) *filterArgs {
	var f filterArgs
	fs.StringVar(&f.status, "status", "", "pending|in-progress|resolved|rejected")
	fs.StringVar(&f.category, "category", "", "category name")
	fs.StringVar(&f.priority, "priority", "", "low|medium|high|urgent")
	fs.StringVar(&f.search, "search", "", "substring filter")
	fs.IntVar(&f.page, "page", 0, "page number")
	fs.IntVar(&f.limit, "limit", 0, "page size")
	return &f
}

func (f *filterArgs) filters() domain.Filters {
	cat := domain.Category(f.category)
	if c, ok := domain.ParseCategory(f.category); ok {
		cat = c
	}
	return domain.Filters{
		Status:   domain.Status(strings.ToLower(f.status)),
		Category: cat,
		Priority: domain.Priority(strings.ToLower(f.priority)),
		Search:   f.search,
		Page:     f.page,
		Limit:    f.limit,
	}
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fa := addFilterFlags(fs)
	_ = fs.Parse(args)
	f := fa.filters()

	a.complaints.SetFilters(store.FilterPatch{Status: &f.Status, Category: &f.Category, Priority: &f.Priority, Search: &f.Search})
	q := a.complaints.State().Filters
	q.Page, q.Limit = f.Page, f.Limit
	if err := a.complaints.FetchAll(ctx, q); err != nil {
		return err
	}
	return a.renderList()
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	term := fs.String("q", "", "search term (required)")
	fa := addFilterFlags(fs)
	_ = fs.Parse(args)
	if strings.TrimSpace(*term) == "" && fs.NArg() > 0 {
		*term = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*term) == "" {
		return errors.New("search: -q is required")
	}
	if err := a.complaints.Search(ctx, *term, fa.filters()); err != nil {
		return err
	}
	return a.renderList()
}

func (a *app) get(ctx context.Context, args []string) error {
	id, err := oneID("get", args)
	if err != nil {
		return err
	}
	if _, err := a.complaints.FetchOne(ctx, id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("complaint %s not found", id)
		}
		return err
	}
	return a.renderComplaint(a.complaints.State().Current)
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	var (
		d      client.Draft
		attach fileList
	)
	fs.StringVar(&d.Title, "title", "", "short summary (required)")
	fs.StringVar(&d.Category, "category", "", "category (required)")
	fs.StringVar(&d.Priority, "priority", "", "low|medium|high|urgent")
	fs.StringVar(&d.Description, "description", "", "details (required)")
	fs.StringVar(&d.Location, "location", "", "where it happened")
	fs.StringVar(&d.IdempotencyKey, "key", "", "idempotency key (generated when empty)")
	fs.Var(&attach, "attach", "file to attach (repeatable)")
	_ = fs.Parse(args)

	for _, path := range attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		d.Attachments = append(d.Attachments, client.File{Name: filepath.Base(path), Data: data})
	}

	c, err := a.complaints.Submit(ctx, d)
	if err != nil {
		return err
	}
	return a.renderComplaint(c)
}

func (a *app) update(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errors.New("update: complaint id required before flags")
	}
	id := args[0]

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	vals := map[string]*string{}
	for _, name := range []string{"title", "category", "priority", "status", "description", "location"} {
		vals[name] = fs.String(name, "", "new "+name)
	}
	_ = fs.Parse(args[1:])

	var p client.Patch
	set := 0
	fs.Visit(func(fl *flag.Flag) {
		v := vals[fl.Name]
		set++
		switch fl.Name {
		case "title":
			p.Title = v
		case "category":
			p.Category = v
		case "priority":
			p.Priority = v
		case "status":
			p.Status = v
		case "description":
			p.Description = v
		case "location":
			p.Location = v
		}
	})
	if set == 0 {
		return errors.New("update: nothing to change")
	}

	c, err := a.complaints.Update(ctx, id, p)
	if err != nil {
		return err
	}
	return a.renderComplaint(c)
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, err := oneID("delete", args)
	if err != nil {
		return err
	}
	if err := a.complaints.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func (a *app) stats(ctx context.Context) error {
	a.complaints.FetchStats(ctx)
	st := a.complaints.State().Stats
	if a.json {
		return a.writeJSON(st)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\npending\t%d\nresolved\t%d\nrejected\t%d\n", st.Total, st.Pending, st.Resolved, st.Rejected)
	return tw.Flush()
}

func (a *app) token(args []string) error {
	id, err := oneID("token", args)
	if err != nil {
		return err
	}
	if a.cfg.Auth.JWTSecret == "" {
		return errors.New("token: JWT_SECRET is not set")
	}
	tm := auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL)
	tok, exp, err := tm.Issue(id)
	if err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(map[string]any{"token": tok, "expiresAt": exp})
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

func oneID(cmd string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%s: exactly one id required", cmd)
	}
	return args[0], nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) renderList() error {
	st := a.complaints.State()
	if a.json {
		return a.writeJSON(client.ComplaintList{Complaints: st.Complaints, Pagination: &st.Pagination})
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCATEGORY\tTITLE\tSUBMITTED")
	for _, c := range st.Complaints {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.Priority, c.Category, c.Title, c.SubmittedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p := st.Pagination
	if p.TotalPages > 0 {
		fmt.Fprintf(a.out, "page %d/%d, %d total\n", p.Page, p.TotalPages, p.Total)
	}
	return nil
}

func (a *app) renderComplaint(c *domain.Complaint) error {
	if c == nil {
		return nil
	}
	if a.json {
		return a.writeJSON(c)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", c.ID)
	fmt.Fprintf(tw, "title\t%s\n", c.Title)
	fmt.Fprintf(tw, "category\t%s\n", c.Category)
	fmt.Fprintf(tw, "priority\t%s\n", c.Priority)
	fmt.Fprintf(tw, "status\t%s\n", c.Status)
	if c.Location != "" {
		fmt.Fprintf(tw, "location\t%s\n", c.Location)
	}
	fmt.Fprintf(tw, "submitted\t%s\n", c.SubmittedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "updated\t%s\n", c.UpdatedAt.Format("2006-01-02 15:04"))
	for _, att := range c.Attachments {
		fmt.Fprintf(tw, "attachment\t%s (%s, %d bytes)\n", att.Filename, att.ContentType, att.Size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%s\n", c.Description)
	return nil
}
