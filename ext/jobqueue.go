package ext

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/tgbot/internal/logger"
)

// JobFunc is the callback of a job.
type JobFunc func(ctx context.Context, c *CallbackContext) error

// Job is a callback scheduled on a JobQueue.
type Job struct {
	Name   string
	Data   any
	ChatID int64
	UserID int64

	callback JobFunc
	schedule cron.Schedule
	jq       *JobQueue
	entryID  cron.EntryID

	enabled atomic.Bool
	removed atomic.Bool
	running sync.Mutex
}

// JobOption configures a Job.
type JobOption func(*Job)

// JobName names the job. The default is the name of the callback function.
func JobName(name string) JobOption { return func(j *Job) { j.Name = name } }

// JobData attaches data to the job, available as c.Job.Data.
func JobData(data any) JobOption { return func(j *Job) { j.Data = data } }

// JobChatID ties the job to a chat, making c.ChatData available.
func JobChatID(id int64) JobOption { return func(j *Job) { j.ChatID = id } }

// JobUserID ties the job to a user, making c.UserData available.
func JobUserID(id int64) JobOption { return func(j *Job) { j.UserID = id } }

// Enabled reports whether the job runs when due.
func (j *Job) Enabled() bool { return j.enabled.Load() }

// SetEnabled pauses or resumes the job. A paused job skips its runs.
func (j *Job) SetEnabled(enabled bool) { j.enabled.Store(enabled) }

// Removed reports whether the job was removed from its queue.
func (j *Job) Removed() bool { return j.removed.Load() }

// ScheduleRemoval removes the job from its queue. A running callback is not
// interrupted.
func (j *Job) ScheduleRemoval() {
	if j.removed.Swap(true) {
		return
	}
	j.jq.remove(j)
}

// NextRunTime returns when the job runs next, or the zero time when it will
// not run again.
func (j *Job) NextRunTime() time.Time {
	if j.Removed() {
		return time.Time{}
	}
	return j.jq.nextRun(j)
}

// Run executes the callback now. Errors are passed to the application's
// error handlers and returned.
func (j *Job) Run(ctx context.Context) error {
	app := j.jq.application()
	c := NewContextFromJob(j, app)
	err := j.callback(ctx, c)
	if app != nil {
		app.markDirty(j.UserID, j.ChatID)
	}
	if err == nil || isControlError(err) {
		return nil
	}
	if app != nil {
		app.metrics.handlerError()
		app.ProcessError(ctx, nil, err, j)
	} else {
		j.jq.log.Error().Err(err).Str("job", j.Name).Msg("Job failed")
	}
	return err
}

// JobQueue runs jobs on schedules backed by a cron scheduler. Jobs can be
// added before the queue is started; they first run once it is.
type JobQueue struct {
	cron *cron.Cron
	loc  *time.Location
	log  zerolog.Logger

	mu      sync.Mutex
	app     *Application
	jobs    map[cron.EntryID]*Job
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// JobQueueOption configures a JobQueue.
type JobQueueOption func(*JobQueue)

// WithLocation sets the default time zone of daily, monthly and cron
// schedules. The default is time.Local.
func WithLocation(loc *time.Location) JobQueueOption {
	return func(jq *JobQueue) { jq.loc = loc }
}

// WithJobLogger sets the logger of the queue.
func WithJobLogger(l zerolog.Logger) JobQueueOption {
	return func(jq *JobQueue) { jq.log = l }
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewJobQueue returns a stopped job queue.
func NewJobQueue(opts ...JobQueueOption) *JobQueue {
	jq := &JobQueue{
		loc:  time.Local,
		log:  logger.Component("ext.jobqueue"),
		jobs: make(map[cron.EntryID]*Job),
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(jq)
	}
	jq.cron = cron.New(cron.WithLocation(jq.loc), cron.WithParser(cronParser))
	return jq
}

func (jq *JobQueue) setApplication(app *Application) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	jq.app = app
	if app != nil {
		jq.log = app.Logger()
	}
}

func (jq *JobQueue) application() *Application {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	return jq.app
}

func (jq *JobQueue) runContext() context.Context {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	return jq.ctx
}

// Location returns the default time zone of the queue.
func (jq *JobQueue) Location() *time.Location { return jq.loc }

func (jq *JobQueue) add(callback JobFunc, schedule cron.Schedule, opts []JobOption) (*Job, error) {
	if callback == nil {
		return nil, errors.New("ext: job has no callback")
	}
	j := &Job{callback: callback, schedule: schedule, jq: jq}
	j.enabled.Store(true)
	for _, opt := range opts {
		opt(j)
	}
	if j.Name == "" {
		j.Name = funcName(callback)
	}

	jq.mu.Lock()
	defer jq.mu.Unlock()
	j.entryID = jq.cron.Schedule(schedule, cron.FuncJob(func() { jq.fire(j) }))
	jq.jobs[j.entryID] = j
	jq.log.Debug().Str("job", j.Name).Msg("Job scheduled")
	return j, nil
}

func (jq *JobQueue) fire(j *Job) {
	if j.Removed() || !j.Enabled() {
		return
	}
	if !j.running.TryLock() {
		jq.log.Warn().Str("job", j.Name).Msg("Job still running, skipping run")
		return
	}
	defer j.running.Unlock()

	if _, once := j.schedule.(*onceSchedule); once {
		j.ScheduleRemoval()
	}
	jq.log.Debug().Str("job", j.Name).Msg("Job started")
	if err := j.Run(jq.runContext()); err == nil {
		jq.log.Debug().Str("job", j.Name).Msg("Job completed")
	}
}

func (jq *JobQueue) remove(j *Job) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	jq.cron.Remove(j.entryID)
	delete(jq.jobs, j.entryID)
}

func (jq *JobQueue) nextRun(j *Job) time.Time {
	jq.mu.Lock()
	started := jq.started
	jq.mu.Unlock()
	if started {
		if e := jq.cron.Entry(j.entryID); e.Valid() {
			return e.Next
		}
	}
	if p, ok := j.schedule.(*onceSchedule); ok {
		return p.at
	}
	return j.schedule.Next(time.Now().In(jq.loc))
}

// RunOnce runs callback once after the given delay.
func (jq *JobQueue) RunOnce(callback JobFunc, after time.Duration, opts ...JobOption) (*Job, error) {
	return jq.RunOnceAt(callback, time.Now().Add(after), opts...)
}

// RunOnceAt runs callback once at the given time. A time in the past runs
// the job as soon as the queue is running.
func (jq *JobQueue) RunOnceAt(callback JobFunc, at time.Time, opts ...JobOption) (*Job, error) {
	return jq.add(callback, &onceSchedule{at: at}, opts)
}

// RunRepeating runs callback every interval, first after the given delay.
// A non-zero last ends the repetition.
func (jq *JobQueue) RunRepeating(callback JobFunc, interval, first time.Duration, last time.Time, opts ...JobOption) (*Job, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("ext: repeating job interval must be positive, got %s", interval)
	}
	start := time.Now().Add(first)
	if !last.IsZero() && last.Before(start) {
		return nil, errors.New("ext: repeating job ends before its first run")
	}
	return jq.add(callback, &repeatingSchedule{first: start, interval: interval, last: last}, opts)
}

// RunDaily runs callback every day at the clock time of at, in at's
// location. With days given, only on those weekdays.
func (jq *JobQueue) RunDaily(callback JobFunc, at time.Time, days ...time.Weekday) (*Job, error) {
	return jq.RunDailyWith(callback, at, days)
}

// RunDailyWith is RunDaily with job options.
func (jq *JobQueue) RunDailyWith(callback JobFunc, at time.Time, days []time.Weekday, opts ...JobOption) (*Job, error) {
	s := &dailySchedule{
		hour: at.Hour(), minute: at.Minute(), second: at.Second(),
		loc: at.Location(),
	}
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("ext: invalid weekday %d", d)
		}
		s.days[d] = true
	}
	if len(days) == 0 {
		s.days = [7]bool{true, true, true, true, true, true, true}
	}
	return jq.add(callback, s, opts)
}

// RunMonthly runs callback every month on day at the clock time of at. A
// day beyond the end of a month runs on its last day; -1 always does.
func (jq *JobQueue) RunMonthly(callback JobFunc, at time.Time, day int, opts ...JobOption) (*Job, error) {
	if day != -1 && (day < 1 || day > 31) {
		return nil, fmt.Errorf("ext: invalid day of month %d", day)
	}
	return jq.add(callback, &monthlySchedule{
		day:  day,
		hour: at.Hour(), minute: at.Minute(), second: at.Second(),
		loc: at.Location(),
	}, opts)
}

// RunCustom runs callback on a cron schedule. Both five and six field
// expressions are accepted, as well as descriptors like "@hourly" and a
// CRON_TZ prefix. Without a prefix the queue's location applies.
func (jq *JobQueue) RunCustom(callback JobFunc, spec string, opts ...JobOption) (*Job, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("ext: invalid cron schedule %q: %w", spec, err)
	}
	return jq.add(callback, schedule, opts)
}

// Jobs returns the scheduled jobs ordered by their next run time.
func (jq *JobQueue) Jobs() []*Job {
	jq.mu.Lock()
	jobs := make([]*Job, 0, len(jq.jobs))
	for _, j := range jq.jobs {
		jobs = append(jobs, j)
	}
	jq.mu.Unlock()

	next := make(map[*Job]time.Time, len(jobs))
	for _, j := range jobs {
		next[j] = j.NextRunTime()
	}
	slices.SortStableFunc(jobs, func(a, b *Job) int {
		ta, tb := next[a], next[b]
		switch {
		case ta.IsZero() && tb.IsZero():
			return cmp.Compare(a.entryID, b.entryID)
		case ta.IsZero():
			return 1
		case tb.IsZero():
			return -1
		}
		if c := ta.Compare(tb); c != 0 {
			return c
		}
		return cmp.Compare(a.entryID, b.entryID)
	})
	return jobs
}

// JobsByName returns the scheduled jobs with the given name.
func (jq *JobQueue) JobsByName(name string) []*Job {
	return slices.DeleteFunc(jq.Jobs(), func(j *Job) bool { return j.Name != name })
}

// Start runs due jobs until Stop. Callbacks receive a context derived from ctx.
func (jq *JobQueue) Start(ctx context.Context) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	if jq.started {
		return
	}
	jq.ctx, jq.cancel = context.WithCancel(ctx)
	jq.started = true
	jq.cron.Start()
	jq.log.Info().Int("jobs", len(jq.jobs)).Msg("Job queue started")
}

// Stop stops scheduling and waits for running callbacks.
func (jq *JobQueue) Stop(ctx context.Context) error {
	jq.mu.Lock()
	if !jq.started {
		jq.mu.Unlock()
		return nil
	}
	jq.started = false
	cancel := jq.cancel
	jq.mu.Unlock()

	select {
	case <-jq.cron.Stop().Done():
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("failed to wait for running jobs: %w", ctx.Err())
	}
	cancel()
	jq.log.Info().Msg("Job queue stopped")
	return nil
}

func funcName(fn any) string {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// onceSchedule fires once. The cron scheduler asks for the next time when
// an entry is added or started, and again after each run; only the first
// answer is non-zero.
type onceSchedule struct {
	at    time.Time
	asked atomic.Bool
}

func (s *onceSchedule) Next(time.Time) time.Time {
	if s.asked.Swap(true) {
		return time.Time{}
	}
	return s.at
}

type repeatingSchedule struct {
	first    time.Time
	interval time.Duration
	last     time.Time
}

func (s *repeatingSchedule) Next(t time.Time) time.Time {
	next := s.first
	if !next.After(t) {
		n := t.Sub(s.first)/s.interval + 1
		next = s.first.Add(n * s.interval)
	}
	if !s.last.IsZero() && next.After(s.last) {
		return time.Time{}
	}
	return next
}

// dailySchedule fires at a clock time on the selected weekdays. It works
// with any location, including fixed zones that have no IANA name.
type dailySchedule struct {
	hour, minute, second int
	days                 [7]bool
	loc                  *time.Location
}

func (s *dailySchedule) Next(t time.Time) time.Time {
	t = t.In(s.loc)
	for i := range 8 {
		next := time.Date(t.Year(), t.Month(), t.Day()+i, s.hour, s.minute, s.second, 0, s.loc)
		if next.After(t) && s.days[next.Weekday()] {
			return next
		}
	}
	return time.Time{}
}

type monthlySchedule struct {
	day                  int
	hour, minute, second int
	loc                  *time.Location
}

func (s *monthlySchedule) at(year int, month time.Month) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, s.loc).Day()
	day := s.day
	if day == -1 || day > last {
		day = last
	}
	return time.Date(year, month, day, s.hour, s.minute, s.second, 0, s.loc)
}

func (s *monthlySchedule) Next(t time.Time) time.Time {
	t = t.In(s.loc)
	if next := s.at(t.Year(), t.Month()); next.After(t) {
		return next
	}
	return s.at(t.Year(), t.Month()+1)
}
