/*
Package main is the Schoolmaps terminal client.

It restores the stored session, waits out the splash, and then reads commands from
stdin: signing in or out, guest mode, profile settings, notes, tasks and the study
timer. Notices are printed in the language of the active profile.
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"schoolmaps/internal/app/collections"
	"schoolmaps/internal/app/pomodoro"
	"schoolmaps/internal/configs"
	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/i18n"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
	"schoolmaps/internal/remote"
	"schoolmaps/internal/session"
)

func main() {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logFile, err := openLog(cfg.StateFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logx.InitGlobalLoggerTo(logFile, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local := localstate.NewFile(cfg.StateFile)
	client := remote.NewClient(cfg.ServerURL, local)
	auth := remote.NewAuth(client)
	live := remote.NewLive(client)
	defer live.Close()

	docs := remote.NewDocs(client, live)
	blobs := remote.NewBlobs(client)

	a := &app{out: os.Stdout, lang: i18n.DefaultLanguage}
	notifier := notify.Func(a.notice)

	a.session = session.New(session.Config{MinSplash: cfg.MinSplash}, session.Deps{
		Auth:     auth,
		Profiles: remote.NewProfiles(client, live),
		Blobs:    blobs,
		Local:    local,
		Notifier: notifier,
	})
	defer a.session.Close()

	a.service = collections.NewService(docs, blobs, notifier)
	a.notes = collections.NewView(docs, func(notes []collections.Note) {
		a.printf("(%d notes)\n", len(notes))
	}, a.viewFailed)
	defer a.notes.Close()
	a.tasks = collections.NewView(docs, func(tasks []collections.Task) {
		a.printf("(%d tasks)\n", len(tasks))
	}, a.viewFailed)
	defer a.tasks.Close()

	a.timer = pomodoro.New(pomodoro.DefaultFocusMinutes, pomodoro.DefaultBreakMinutes)
	a.timer.OnSwitch(func(m pomodoro.Mode) {
		key := "focus_session"
		if m == pomodoro.Break {
			key = "break_session"
		}
		a.printf("%s\n", i18n.T(a.language(), key, nil))
	})
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go a.timer.Run(ctx, ticker.C)

	unwatch := a.session.Watch(a.onSnapshot)
	defer unwatch()

	if err := a.session.Start(); err != nil {
		logx.Fatal(err, "Failed to start session")
	}
	if err := auth.Restore(ctx); err != nil {
		logx.Warn("Restoring the stored session failed", "error", err.Error())
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := a.exec(ctx, line); quit {
				return
			}
		}
	}
}

// openLog places the client log next to the state file.
func openLog(stateFile string) (*os.File, error) {
	dir := filepath.Dir(stateFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "client.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

type app struct {
	session *session.Controller
	service *collections.Service
	notes   *collections.View[collections.Note]
	tasks   *collections.View[collections.Task]
	timer   *pomodoro.Timer

	outMu sync.Mutex
	out   io.Writer

	mu    sync.Mutex
	lang  string
	owner collections.Owner
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lang
}

func (a *app) currentOwner() collections.Owner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

func (a *app) notice(n notify.Notice) {
	a.printf("* %s\n", i18n.T(a.language(), n.Key, n.Params))
}

func (a *app) viewFailed(err error) {
	logx.Warn("Live view ended", "error", err.Error())
	a.printf("* %s\n", i18n.T(a.language(), "error_connection_lost", nil))
}

// onSnapshot follows the session: the language of the profile, and the live views
// of the signed-in user.
func (a *app) onSnapshot(s session.Snapshot) {
	owner := collections.Owner{Guest: s.Guest}
	lang := i18n.DefaultLanguage
	if s.User != nil {
		owner.UID = s.User.UID
		lang = s.User.LanguagePreference
	}

	a.mu.Lock()
	changed := a.owner != owner
	a.owner = owner
	a.lang = lang
	a.mu.Unlock()

	a.printf("[%s]\n", i18n.T(lang, "status_"+strings.ToLower(s.Status.String()), nil))

	if !changed {
		return
	}
	if s.Status != session.Authenticated || owner.Guest || owner.UID == "" {
		a.notes.SetScope(nil)
		a.tasks.SetScope(nil)
		return
	}
	notes := collections.NotesQuery(owner.UID, "")
	tasks := collections.TasksQuery(owner.UID)
	a.notes.SetScope(&notes)
	a.tasks.SetScope(&tasks)
}

const registerUsage = "register <email> <password> <name> <school> <class> <level> <subject,...>"

const usage = `commands:
  login <email> <password>        ` + registerUsage + `
  guest                           logout
  reset <email>                   profile
  set <field> <value>             avatar <file>
  notes                           note <title> | <content>
  tasks                           task <text>
  done <id>                       undo <id>
  timer [start|pause|reset]       quit`

// exec runs one command line and reports whether the client should exit.
func (a *app) exec(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	args := strings.Fields(rest)

	var err error
	switch cmd {
	case "":
	case "quit", "exit":
		return true
	case "help":
		a.printf("%s\n", usage)
	case "login":
		if len(args) != 2 {
			a.printf("usage: login <email> <password>\n")
			return false
		}
		err = a.session.SignIn(ctx, args[0], args[1])
	case "register":
		if len(args) != 7 {
			a.printf("usage: %s\n", registerUsage)
			return false
		}
		err = a.session.Register(ctx, session.RegistrationForm{
			Email:          args[0],
			Password:       args[1],
			Name:           args[2],
			SchoolName:     args[3],
			ClassName:      args[4],
			EducationLevel: args[5],
			Subjects:       strings.Split(args[6], ","),
			Language:       a.language(),
		})
	case "guest":
		err = a.session.EnterGuest()
	case "logout":
		err = a.session.Logout(ctx)
	case "reset":
		err = a.session.SendPasswordReset(ctx, strings.TrimSpace(rest))
	case "profile":
		a.printProfile()
	case "set":
		err = a.set(ctx, args)
	case "avatar":
		err = a.avatar(ctx, strings.TrimSpace(rest))
	case "notes":
		for _, n := range a.notes.Items() {
			a.printf("%s  %-24s %s\n", n.ID, n.Title, i18n.Subject(a.language(), n.Subject))
		}
	case "note":
		title, content, _ := strings.Cut(rest, "|")
		_, err = a.service.SaveNote(ctx, a.currentOwner(), collections.NoteInput{
			Title:   title,
			Content: strings.TrimSpace(content),
			Subject: collections.GeneralSubject,
		})
	case "tasks":
		for _, t := range a.tasks.Items() {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			a.printf("[%s] %s  %s\n", mark, t.ID, t.Text)
		}
	case "task":
		_, err = a.service.AddTask(ctx, a.currentOwner(), rest)
	case "done", "undo":
		if len(args) != 1 {
			a.printf("usage: %s <id>\n", cmd)
			return false
		}
		err = a.service.ToggleTask(ctx, a.currentOwner(), args[0], cmd == "done")
	case "timer":
		a.runTimer(args)
	default:
		a.printf("unknown command %q, try help\n", cmd)
	}

	if err != nil {
		logx.Logger().Debug().Err(err).Str("command", cmd).Msg("Command failed")
	}
	return false
}

func (a *app) printProfile() {
	s := a.session.Snapshot()
	if s.User == nil {
		a.printf("%s\n", i18n.T(a.language(), "error_not_ready", nil))
		return
	}
	u := s.User
	subjects := make([]string, 0, len(u.SelectedSubjects))
	for _, key := range u.SelectedSubjects {
		subjects = append(subjects, i18n.Subject(u.LanguagePreference, key))
	}
	a.printf("%s <%s>\n  school: %s %s (%s)\n  subjects: %s\n  language: %s  theme: %s\n  picture: %s\n",
		u.UserName, u.Email, u.SchoolName, u.ClassName, u.EducationLevel,
		strings.Join(subjects, ", "), u.LanguagePreference, u.ThemePreference, u.ProfilePictureURL)
}

// set maps one command-line field onto a profile patch.
func (a *app) set(ctx context.Context, args []string) error {
	if len(args) < 2 {
		a.printf("usage: set <name|school|class|level|language|theme|subjects> <value>\n")
		return nil
	}
	value := strings.Join(args[1:], " ")

	var patch wire.ProfileDocument
	switch args[0] {
	case "name":
		patch.UserName = wire.Ptr(value)
	case "school":
		patch.SchoolName = wire.Ptr(value)
	case "class":
		patch.ClassName = wire.Ptr(value)
	case "level":
		patch.EducationLevel = wire.Ptr(value)
	case "language":
		patch.LanguagePreference = wire.Ptr(value)
	case "theme":
		patch.ThemePreference = wire.Ptr(value)
	case "subjects":
		patch.SelectedSubjects = strings.Split(value, ",")
	default:
		a.printf("unknown field %q\n", args[0])
		return nil
	}
	return a.session.UpdateProfile(ctx, patch)
}

func (a *app) avatar(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		a.printf("%v\n", err)
		return err
	}
	return a.session.UploadProfilePicture(ctx, filepath.Base(path), data)
}

func (a *app) runTimer(args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "start":
			a.timer.Start()
		case "pause":
			a.timer.Pause()
		case "reset":
			a.timer.Reset()
		case "focus", "break":
			if len(args) == 3 {
				f, errF := strconv.Atoi(args[1])
				b, errB := strconv.Atoi(args[2])
				if errF == nil && errB == nil {
					a.timer.SetDurations(f, b)
				}
			}
		}
	}

	st := a.timer.State()
	key := "focus_session"
	if st.Mode == pomodoro.Break {
		key = "break_session"
	}
	a.printf("%s %s (%.0f%%)\n", i18n.T(a.language(), key, nil), st.Clock(), st.Progress)
}
