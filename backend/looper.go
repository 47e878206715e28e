package backend

import "sync"

// Poster accepts work that must run on the window goroutine.
type Poster interface {
	Post(f func())
}

// Looper queues callbacks from any goroutine and runs them on whichever
// goroutine calls Drain, which is the window's event loop in the application.
type Looper struct {
	lock  sync.Mutex
	queue []func()
	wake  func()
}

var _ Poster = (*Looper)(nil)

// NewLooper returns a looper that invokes wake (if non-nil) whenever new work
// is posted, typically a window's Invalidate method.
func NewLooper(wake func()) *Looper {
	return &Looper{wake: wake}
}

func (l *Looper) Post(f func()) {
	l.lock.Lock()
	l.queue = append(l.queue, f)
	l.lock.Unlock()
	if l.wake != nil {
		l.wake()
	}
}

// Drain runs every queued callback in the order it was posted, including ones
// posted by the callbacks themselves, and returns how many ran.
func (l *Looper) Drain() int {
	ran := 0
	for {
		l.lock.Lock()
		queue := l.queue
		l.queue = nil
		l.lock.Unlock()
		if len(queue) == 0 {
			return ran
		}
		for _, f := range queue {
			f()
		}
		ran += len(queue)
	}
}

// Pending reports how many callbacks are waiting to run.
func (l *Looper) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.queue)
}
