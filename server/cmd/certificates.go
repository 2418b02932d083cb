package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SumantSagar73/certify/pkg/dashboard"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type filterFlags struct {
	page      int
	title     string
	category  string
	authority string
	from      string
	to        string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.page, "page", 1, "Page number")
	fs.StringVarP(&f.title, "query", "q", "", "Title contains")
	fs.StringVar(&f.category, "category", "", "Category equals")
	fs.StringVar(&f.authority, "authority", "", "Issuing authority contains")
	fs.StringVar(&f.from, "from", "", "Issued on or after (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "Issued on or before (YYYY-MM-DD)")
}

func (f *filterFlags) filters() (dashboard.Filters, error) {
	from, err := models.ParseOptionalDate(f.from)
	if err != nil {
		return dashboard.Filters{}, fmt.Errorf("--from: %w", err)
	}
	to, err := models.ParseOptionalDate(f.to)
	if err != nil {
		return dashboard.Filters{}, fmt.Errorf("--to: %w", err)
	}
	return dashboard.Filters{
		Title:     f.title,
		Category:  f.category,
		Authority: f.authority,
		From:      from,
		To:        to,
	}, nil
}

type editFlags struct {
	title     string
	authority string
	category  string
	notes     string
	issued    string
	expires   string
	private   bool
}

func (f *editFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "Title")
	fs.StringVar(&f.authority, "authority", "", "Issuing authority")
	fs.StringVar(&f.category, "category", "", "Category")
	fs.StringVar(&f.notes, "notes", "", "Notes")
	fs.StringVar(&f.issued, "issued", "", "Issue date (YYYY-MM-DD)")
	fs.StringVar(&f.expires, "expires", "", "Expiry date (YYYY-MM-DD)")
	fs.BoolVar(&f.private, "private", true, "Keep the certificate private")
}

// apply overlays the flags the user set onto base.
func (f *editFlags) apply(fs *pflag.FlagSet, base models.CertificateEdit) (models.CertificateEdit, error) {
	if fs.Changed("title") {
		base.Title = f.title
	}
	if fs.Changed("authority") {
		base.IssuingAuthority = f.authority
	}
	if fs.Changed("category") {
		base.Category = f.category
	}
	if fs.Changed("notes") {
		base.Notes = f.notes
	}
	if fs.Changed("private") {
		base.IsPrivate = f.private
	}
	if fs.Changed("issued") {
		d, err := models.ParseOptionalDate(f.issued)
		if err != nil {
			return base, fmt.Errorf("--issued: %w", err)
		}
		base.IssueDate = d
	}
	if fs.Changed("expires") {
		d, err := models.ParseOptionalDate(f.expires)
		if err != nil {
			return base, fmt.Errorf("--expires: %w", err)
		}
		base.ExpiryDate = d
	}
	return base, nil
}

var (
	listOpts     filterFlags
	uploadOpts   editFlags
	editOpts     editFlags
	deleteBulk   bool
	deleteStrict bool
	downloadOut  string
	downloadAll  filterFlags
	downloadPage bool
	watchOpts    filterFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRun(cmd.Context())
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a certificate file with its details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return uploadRun(cmd.Context(), cmd.Flags(), args[0])
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the details of a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRun(cmd.Context(), cmd.Flags(), args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete certificates; interrupt during the undo window to keep them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteBulk {
			return bulkDeleteRun(cmd.Context(), args)
		}
		return deleteRun(cmd.Context(), args)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [id]...",
	Short: "Download certificates into one zip archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return downloadRun(cmd.Context(), args)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the list again whenever it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(cmd.Context())
	},
}

func init() {
	certifyCmd.AddCommand(listCmd, uploadCmd, editCmd, deleteCmd, downloadCmd, watchCmd)
	listOpts.register(listCmd.Flags())
	uploadOpts.register(uploadCmd.Flags())
	editOpts.register(editCmd.Flags())
	deleteCmd.Flags().BoolVar(&deleteBulk, "bulk", false, "Delete at once, files first, no undo")
	deleteCmd.Flags().BoolVar(&deleteStrict, "strict", false, "With --bulk, stop before deleting records when a file cannot be removed")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", ".", "Directory for the archive")
	downloadCmd.Flags().BoolVar(&downloadPage, "listed", false, "Download the page selected by the filter flags instead of ids")
	downloadAll.register(downloadCmd.Flags())
	watchOpts.register(watchCmd.Flags())
}

func printState(w io.Writer, s dashboard.State, pageSize int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHORITY\tCATEGORY\tISSUED\tEXPIRES\tFILE")
	for _, c := range s.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.DisplayName(), c.IssuingAuthority, c.Category,
			models.FormatOptional(c.IssueDate), models.FormatOptional(c.ExpiryDate), c.FileName)
	}
	tw.Flush()
	pages := (s.Total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	fmt.Fprintf(w, "page %d of %d, %d certificates\n", s.Page, pages, s.Total)
}

func listRun(ctx context.Context) error {
	f, err := listOpts.filters()
	if err != nil {
		return err
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Apply(ctx, f, listOpts.page); err != nil {
		return err
	}
	printState(os.Stdout, d.State(), certificates.DefaultPageSize)
	return nil
}

func uploadRun(ctx context.Context, fs *pflag.FlagSet, file string) error {
	edit, err := uploadOpts.apply(fs, models.CertificateEdit{IsPrivate: true})
	if err != nil {
		return err
	}
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return err
	}

	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Upload(ctx, certificates.UploadInput{
		FileName: filepath.Base(file),
		Size:     info.Size(),
		Body:     fh,
		Edit:     edit,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s as %s\n", res.Certificate.DisplayName(), res.Certificate.ID)
	if res.URL != "" {
		fmt.Println(res.URL)
	}
	return nil
}

func editRun(ctx context.Context, fs *pflag.FlagSet, id string) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	found, err := env.client.Get(ctx, []string{id})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("certificate %s not found", id)
	}
	edit, err := editOpts.apply(fs, models.EditOf(found[0]))
	if err != nil {
		return err
	}
	updated, err := d.Edit(ctx, id, edit)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s\n", updated.DisplayName())
	return nil
}

// adopt loads ids and puts them on the dashboard's list.
func adopt(ctx context.Context, env *clientEnv, d *dashboard.Dashboard, ids []string) error {
	found, err := env.client.Get(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%d of %d certificates not found", len(ids)-len(found), len(ids))
	}
	d.Adopt(found...)
	return nil
}

func deleteRun(ctx context.Context, ids []string) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := adopt(ctx, env, d, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := d.Delete(id); err != nil {
			return err
		}
	}

	window := conf.Client.UndoWindow
	fmt.Printf("Deleting %d certificate(s) in %s, press Ctrl+C to undo\n", len(ids), window)
	sig, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	select {
	case <-sig.Done():
		for _, id := range d.Pending() {
			d.Undo(id)
		}
		fmt.Println("Undone, nothing was deleted")
		return nil
	case <-time.After(window):
	}
	if err := d.Flush(ctx); err != nil {
		return err
	}
	fmt.Println("Deleted")
	return nil
}

func bulkDeleteRun(ctx context.Context, ids []string) error {
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := adopt(ctx, env, d, ids); err != nil {
		return err
	}
	for _, id := range ids {
		d.Select(id)
	}
	report, err := d.BulkDelete(ctx, deleteStrict)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d certificate(s)\n", len(report.Deleted))
	if len(report.Missing) > 0 {
		fmt.Println("Already gone:", strings.Join(report.Missing, ", "))
	}
	if report.BlobErrors != nil {
		fmt.Println("Some files could not be removed:", report.BlobErrors)
	}
	return nil
}

func downloadRun(ctx context.Context, ids []string) error {
	if len(ids) == 0 && !downloadPage {
		return errors.New("give certificate ids or --listed")
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	d, _, err := env.dashboard(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if downloadPage {
		f, err := downloadAll.filters()
		if err != nil {
			return err
		}
		if err := d.Apply(ctx, f, downloadAll.page); err != nil {
			return err
		}
		d.SelectPage()
	} else {
		if err := adopt(ctx, env, d, ids); err != nil {
			return err
		}
		for _, id := range ids {
			d.Select(id)
		}
	}

	report, err := d.BulkDownload(ctx, func(name string) (io.WriteCloser, error) {
		return os.Create(filepath.Join(downloadOut, name))
	})
	if errors.Is(err, dashboard.ErrNothingToDownload) {
		return errors.New("nothing could be downloaded")
	}
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s with %d file(s)\n", filepath.Join(downloadOut, report.Archive), len(report.Files))
	if report.Failed != nil {
		fmt.Println("Skipped:", report.Failed)
	}
	return nil
}

func watchRun(ctx context.Context) error {
	f, err := watchOpts.filters()
	if err != nil {
		return err
	}
	env, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	sess, err := env.session(ctx)
	if err != nil {
		return err
	}

	changes := make(chan dashboard.State, 16)
	d := dashboard.New(env.client, dashboard.Options{
		UserID: sess.User.ID,
		Logger: env.log.WithField("component", "dashboard"),
		OnChange: func(s dashboard.State) {
			select {
			case changes <- s:
			default:
			}
		},
		OnError: func(err error) {
			fmt.Println("error:", err)
		},
	})
	defer d.Close()
	stop := d.ResetOnSignOut(env.client.Session())
	defer stop()

	sig, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	if err := d.Apply(sig, f, watchOpts.page); err != nil {
		return err
	}
	if err := d.Start(sig); err != nil {
		return err
	}
	for {
		select {
		case <-sig.Done():
			return nil
		case s := <-changes:
			fmt.Println()
			printState(os.Stdout, s, certificates.DefaultPageSize)
		}
	}
}
