package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jotapp/jot/internal/database"
	"github.com/jotapp/jot/internal/logging"
	"github.com/jotapp/jot/internal/model"
	"github.com/jotapp/jot/internal/notestore"
	"github.com/jotapp/jot/internal/remote"
	"github.com/jotapp/jot/internal/store"
	"github.com/jotapp/jot/internal/sync"
)

const usage = `usage: jot <command> [arguments]

commands:
  add [-title t] <text>        add a free-text note
  tasklist [-title t] <items>  add a tasklist, one item per argument
  list [-deleted] [-since ms]  list notes, newest first
  rm <id>                      delete a note (tombstone, synced to the server)
  draft [text]                 show, set, or with -clear discard the draft
  sync                         run one push/pull pass against the server
  watch                        sync periodically and report changes

environment:
  JOT_DB_PATH       local replica path (default jot.db)
  JOT_SERVER_URL    server base URL; empty runs fully offline
  JOT_AUTH_TOKEN    bearer token for the server
  JOT_SYNC_INTERVAL watch interval (default 5s)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logging.Setup(os.Getenv("JOT_LOG_LEVEL"), os.Getenv("JOT_LOG_FORMAT"))

	dbPath := os.Getenv("JOT_DB_PATH")
	if dbPath == "" {
		dbPath = "jot.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		fatal("open database: %v", err)
	}
	defer db.Close()

	local, err := store.OpenLocal(store.NewNoteStore(db), "notes", nil)
	if err != nil {
		fatal("open local store: %v", err)
	}

	serverURL := os.Getenv("JOT_SERVER_URL")

	var client *remote.Client
	var pusher notestore.Pusher
	if serverURL != "" {
		client = remote.NewClient(serverURL, os.Getenv("JOT_AUTH_TOKEN"), logger.With("component", "remote"))
		pusher = client
	}

	notes := notestore.New(local, pusher, logger.With("component", "notes"))

	var coord *sync.Coordinator
	if client != nil {
		coord = sync.New(local, client, notes.Notifier().Notify, logger.With("component", "sync"))
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "add":
		err = cmdAdd(notes, args)
	case "tasklist":
		err = cmdTasklist(notes, args)
	case "list":
		err = cmdList(notes, args)
	case "rm":
		err = cmdRemove(notes, args)
	case "draft":
		err = cmdDraft(notes, args)
	case "sync":
		err = cmdSync(coord)
	case "watch":
		err = cmdWatch(coord, notes)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "jot: "+format+"\n", args...)
	os.Exit(1)
}

func cmdAdd(notes *notestore.Store, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "note title")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("add: note text required")
	}

	n, err := notes.Add(&model.Note{
		Type:    model.TypeNote,
		Title:   *title,
		Content: model.Content{Text: strings.Join(fs.Args(), " ")},
	})
	if err != nil {
		return err
	}
	fmt.Println(n.ID)
	return nil
}

func cmdTasklist(notes *notestore.Store, args []string) error {
	fs := flag.NewFlagSet("tasklist", flag.ExitOnError)
	title := fs.String("title", "", "tasklist title")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("tasklist: at least one item required")
	}

	tasks := make([]model.TaskItem, 0, fs.NArg())
	for _, item := range fs.Args() {
		tasks = append(tasks, model.TaskItem{Content: item})
	}

	n, err := notes.Add(&model.Note{
		Type:    model.TypeTasklist,
		Title:   *title,
		Content: model.Content{Tasks: tasks},
	})
	if err != nil {
		return err
	}
	fmt.Println(n.ID)
	return nil
}

func cmdList(notes *notestore.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	since := fs.Int64("since", 0, "only notes updated after this timestamp (ms)")
	deleted := fs.Bool("deleted", false, "include deleted notes")
	fs.Parse(args)

	all, err := notes.All(*since, *deleted)
	if err != nil {
		return err
	}
	for _, n := range all {
		printNote(&n)
	}
	return nil
}

func cmdRemove(notes *notestore.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rm: note id required")
	}
	n, err := notes.Get(args[0])
	if err != nil {
		return err
	}
	if n == nil || !n.Live() {
		return fmt.Errorf("rm: no note %s", args[0])
	}
	return notes.Remove(n)
}

func cmdDraft(notes *notestore.Store, args []string) error {
	fs := flag.NewFlagSet("draft", flag.ExitOnError)
	clear := fs.Bool("clear", false, "discard the draft")
	fs.Parse(args)

	if *clear {
		return notes.ClearDraft()
	}
	if fs.NArg() > 0 {
		return notes.SetDraft(&model.Note{
			Type:    model.TypeNote,
			Content: model.Content{Text: strings.Join(fs.Args(), " ")},
		})
	}

	draft, err := notes.Draft()
	if err != nil {
		return err
	}
	if draft == nil {
		fmt.Println("no draft")
		return nil
	}
	fmt.Println(draft.Content.Text)
	return nil
}

func cmdSync(coord *sync.Coordinator) error {
	if coord == nil {
		return fmt.Errorf("sync: JOT_SERVER_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return coord.Sync(ctx)
}

func cmdWatch(coord *sync.Coordinator, notes *notestore.Store) error {
	if coord == nil {
		return fmt.Errorf("watch: JOT_SERVER_URL not set")
	}

	interval := 5 * time.Second
	if raw := os.Getenv("JOT_SYNC_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changes := notes.Notifier().Subscribe()
	defer notes.Notifier().Unsubscribe(changes)

	go coord.Run(ctx, interval)

	fmt.Printf("watching, syncing every %s\n", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			fmt.Printf("%s changed\n", time.Now().Format(time.TimeOnly))
		}
	}
}

func printNote(n *model.Note) {
	title := n.Title
	if title == "" {
		title = "(untitled)"
	}
	switch n.Type {
	case model.TypeTasklist:
		done := 0
		for _, t := range n.Content.Tasks {
			if t.Checked {
				done++
			}
		}
		fmt.Printf("%s  %s  [%d/%d]\n", n.ID, title, done, len(n.Content.Tasks))
	default:
		text := n.Content.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Printf("%s  %s  %s\n", n.ID, title, text)
	}
}
