package intent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Poster runs callbacks on the application's main goroutine.
type Poster interface {
	Post(f func())
}

// ErrNoActivity is returned when no route handles an intent's action.
var ErrNoActivity = errors.New("no activity found to handle intent")

// Status summarizes the activities a Launcher is waiting on.
type Status struct {
	// Pending counts activities started for a result that have not finished.
	Pending int
	// Action is the action of the most recently started activity.
	Action string
}

// Launcher starts the programs that handle intents.
type Launcher struct {
	appCtx context.Context
	poster Poster
	routes map[string]*Route

	lock     sync.Mutex
	status   Status
	watchers map[chan Status]struct{}
	running  sync.WaitGroup
}

// NewLauncher returns a launcher using routes. Child processes are killed
// when appCtx is cancelled. Later routes for an action replace earlier ones.
func NewLauncher(appCtx context.Context, poster Poster, routes []Route) (*Launcher, error) {
	l := &Launcher{
		appCtx:   appCtx,
		poster:   poster,
		routes:   make(map[string]*Route, len(routes)),
		watchers: make(map[chan Status]struct{}),
	}
	for _, r := range routes {
		r := r
		if err := r.compile(); err != nil {
			return nil, err
		}
		l.routes[r.Action] = &r
	}
	return l, nil
}

func (l *Launcher) command(i Intent) (*exec.Cmd, *Route, error) {
	route, ok := l.routes[i.Action]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoActivity, i)
	}
	args, err := route.render(i)
	if err != nil {
		return nil, nil, err
	}
	payload, err := i.Marshal()
	if err != nil {
		return nil, nil, fmt.Errorf("failed encoding intent: %w", err)
	}
	cmd := exec.CommandContext(l.appCtx, route.Command, args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "INTENT_ACTION="+i.Action)
	return cmd, route, nil
}

// StartActivity launches the handler for i and does not wait for it.
func (l *Launcher) StartActivity(i Intent) error {
	cmd, _, err := l.command(i)
	if err != nil {
		return err
	}
	cmd.Stdout = os.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed launching %q: %w", cmd.Path, err)
	}
	l.update(func(s *Status) { s.Action = i.Action })
	l.running.Add(1)
	go func() {
		defer l.running.Done()
		if err := cmd.Wait(); err != nil {
			log.Printf("activity for %s exited: %v", i.Action, err)
		}
	}()
	return nil
}

// StartActivityForResult launches the handler for i and, once it exits,
// posts exactly one result for requestCode to r. Nothing is posted if the
// activity could not be started.
func (l *Launcher) StartActivityForResult(i Intent, requestCode int, r Receiver) error {
	cmd, route, err := l.command(i)
	if err != nil {
		return err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed launching %q: %w", cmd.Path, err)
	}
	l.update(func(s *Status) {
		s.Pending++
		s.Action = i.Action
	})
	l.running.Add(1)
	go func() {
		defer l.running.Done()
		waitErr := cmd.Wait()
		code, data := collectResult(route, waitErr, stdout.Bytes())
		if waitErr != nil {
			log.Printf("activity for %s exited: %v", i.Action, waitErr)
		}
		l.poster.Post(func() {
			r.OnActivityResult(requestCode, code, data)
		})
		l.update(func(s *Status) { s.Pending-- })
	}()
	return nil
}

// Wait blocks until every started activity has exited.
func (l *Launcher) Wait() {
	l.running.Wait()
}

func collectResult(route *Route, waitErr error, output []byte) (ResultCode, Intent) {
	if waitErr != nil {
		return ResultCanceled, Intent{}
	}
	if route.ResultExtra != "" {
		text := strings.TrimSpace(string(output))
		if text == "" {
			return ResultCanceled, Intent{}
		}
		var data Intent
		data.PutExtra(route.ResultExtra, text)
		return ResultOK, data
	}
	if len(bytes.TrimSpace(output)) == 0 {
		return ResultOK, Intent{}
	}
	data, err := Unmarshal(output)
	if err != nil {
		log.Printf("discarding result of %s: %v", route.Action, err)
		return ResultCanceled, Intent{}
	}
	return ResultOK, data
}

// Status streams the launcher's state, starting with the current one, until
// ctx is cancelled. Slow readers only observe the latest state.
func (l *Launcher) Status(ctx context.Context) <-chan Status {
	out := make(chan Status, 1)
	l.lock.Lock()
	out <- l.status
	l.watchers[out] = struct{}{}
	l.lock.Unlock()
	go func() {
		<-ctx.Done()
		l.lock.Lock()
		defer l.lock.Unlock()
		delete(l.watchers, out)
		close(out)
	}()
	return out
}

func (l *Launcher) update(f func(*Status)) {
	l.lock.Lock()
	defer l.lock.Unlock()
	f(&l.status)
	for w := range l.watchers {
		select {
		case <-w:
		default:
		}
		w <- l.status
	}
}
